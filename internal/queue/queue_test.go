package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueOrderAndDedup(t *testing.T) {
	q := New()
	assert.True(t, q.Add("https://novel.example/ch/1"))
	assert.True(t, q.Add("https://novel.example/ch/2"))
	assert.False(t, q.Add("https://novel.example/ch/1#comments"))
	assert.Equal(t, 2, q.Len())

	u, ok := q.Next()
	assert.True(t, ok)
	assert.Equal(t, "https://novel.example/ch/1", u)

	// a page taken from the queue is still known
	assert.False(t, q.Add("https://novel.example/ch/1"))

	u, ok = q.Next()
	assert.True(t, ok)
	assert.Equal(t, "https://novel.example/ch/2", u)

	_, ok = q.Next()
	assert.False(t, ok)
	assert.Equal(t, 2, q.Taken())
	assert.Equal(t, 0, q.Len())
}

func TestQueueKeepsUnparseableURLs(t *testing.T) {
	q := New()
	assert.True(t, q.Add("://bad"))
	assert.False(t, q.Add("://bad"))
	assert.Equal(t, 1, q.Len())
}
