// Package queue orders the pages of a batch capture.
package queue

import (
	"net/url"
	"sync"
)

// Queue is a thread-safe FIFO of page URLs. A page is queued at most once.
type Queue struct {
	urls []string
	seen map[string]bool
	done int
	mu   sync.Mutex
}

// New creates an empty Queue
func New() *Queue {
	return &Queue{
		urls: make([]string, 0),
		seen: make(map[string]bool),
	}
}

// Add queues pageURL unless the same page was queued before. Addresses
// that differ only in their fragment are the same page.
func (q *Queue) Add(pageURL string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	k := key(pageURL)
	if q.seen[k] {
		return false
	}
	q.seen[k] = true
	q.urls = append(q.urls, pageURL)
	return true
}

// Next returns the next page to capture
func (q *Queue) Next() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.urls) == 0 {
		return "", false
	}
	u := q.urls[0]
	q.urls = q.urls[1:]
	q.done++
	return u, true
}

// Len returns the number of pages still queued
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.urls)
}

// Taken returns how many pages Next has handed out
func (q *Queue) Taken() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.done
}

func key(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
