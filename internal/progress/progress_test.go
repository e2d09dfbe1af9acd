package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, 4)
	assert.Equal(t, 0.0, tr.Percent())

	tr.Start("https://novel.example/ch/1")
	tr.Finish("https://novel.example/ch/1", true, "chapter 5")
	tr.Start("https://novel.example/ch/2")
	tr.Finish("https://novel.example/ch/2", false, "stopped at Submit")

	done, failed := tr.Counts()
	assert.Equal(t, 2, done)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 0.5, tr.Percent())

	out := buf.String()
	assert.Contains(t, out, "Capturing 1/4: https://novel.example/ch/1")
	assert.Contains(t, out, "Capturing 2/4: https://novel.example/ch/2")
	assert.Contains(t, out, "stopped at Submit")
	assert.Contains(t, out, "2/4 pages")
}

func TestTrackerEmptyBatch(t *testing.T) {
	tr := New(&bytes.Buffer{}, 0)
	assert.Equal(t, 0.0, tr.Percent())
}
