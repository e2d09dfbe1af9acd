package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Capture is one extracted chapter as it was about to be submitted
type Capture struct {
	SourceURL  string    `json:"source_url"`
	NovelID    int       `json:"novel_id"`
	ChapterNo  int       `json:"chapter_no"`
	Text       string    `json:"text"`
	CapturedAt time.Time `json:"captured_at"`
}

// FileWriter keeps a JSON copy of every capture on disk
type FileWriter struct {
	outputDir string
	mu        sync.Mutex
}

// New creates a FileWriter, creating outputDir if needed
func New(outputDir string) (*FileWriter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &FileWriter{outputDir: outputDir}, nil
}

// Write stores c and returns the file path
func (w *FileWriter) Write(c Capture) (string, error) {
	if c.CapturedAt.IsZero() {
		c.CapturedAt = time.Now()
	}
	name := fmt.Sprintf("%d_novel%d_ch%d_%s.json",
		c.CapturedAt.UnixNano(), c.NovelID, c.ChapterNo, sanitizeFilename(c.SourceURL))
	path := filepath.Join(w.outputDir, name)

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode capture: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write capture: %w", err)
	}
	return path, nil
}

// sanitizeFilename creates a safe, bounded filename fragment from a URL
func sanitizeFilename(url string) string {
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "www.")

	unsafe := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " ", "&", "=", "#"}
	for _, char := range unsafe {
		url = strings.ReplaceAll(url, char, "_")
	}
	if len(url) > 120 {
		url = url[:120]
	}
	if url == "" {
		url = "page"
	}
	return url
}
