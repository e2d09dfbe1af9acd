package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock backend for client tests
func setupMockBackend(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		server.Close()
	})
	return server
}

func TestCreateChapter(t *testing.T) {
	server := setupMockBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/novels/3/chapters", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"chapter_no":5,"raw":"Hello world","source_url":"https://example.com/5"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":42,"novel_id":3,"chapter_no":5,"status":"raw","title":null,
			"created_at":"2026-01-02T03:04:05Z","updated_at":"2026-01-02T03:04:05Z"}`))
	})

	// trailing slashes in the base url are tolerated
	c := NewClient(server.URL+"//", nil)
	ch, err := c.CreateChapter(context.Background(), 3, ChapterCreate{
		ChapterNo: 5,
		Raw:       "Hello world",
		SourceURL: "https://example.com/5",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), ch.ID)
	assert.Equal(t, "raw", ch.Status)
	assert.JSONEq(t, `{"id":42,"novel_id":3,"chapter_no":5,"status":"raw","title":null,
			"created_at":"2026-01-02T03:04:05Z","updated_at":"2026-01-02T03:04:05Z"}`, string(ch.Body))
}

func TestCreateChapterIgnoresFieldsOtherThanID(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "timestamps without timezone",
			body: `{"id":7,"status":"raw","created_at":"2026-01-02T03:04:05.123456","updated_at":"2026-01-02T03:04:05.123456","translated_at":null}`,
		},
		{
			name: "unexpected field types",
			body: `{"id":7,"status":3,"chapter_no":"five","prev_chapter_id":"x"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupMockBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(tt.body))
			})

			ch, err := NewClient(server.URL, nil).CreateChapter(context.Background(), 3, ChapterCreate{ChapterNo: 5, Raw: "x"})
			require.NoError(t, err)
			assert.Equal(t, int64(7), ch.ID)
		})
	}
}

func TestCreateChapterRejectsBadID(t *testing.T) {
	server := setupMockBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"forty-two"}`))
	})
	_, err := NewClient(server.URL, nil).CreateChapter(context.Background(), 3, ChapterCreate{ChapterNo: 5, Raw: "x"})
	assert.ErrorContains(t, err, "failed to decode response")
}

func TestTranslateChapter(t *testing.T) {
	server := setupMockBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chapters/42/translate", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		json.NewEncoder(w).Encode(map[string]any{"id": 42, "status": "translated"})
	})

	ch, err := NewClient(server.URL, nil).TranslateChapter(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "translated", ch.Status)
}

func TestNon2xxIsHTTPError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "json body",
			status:  http.StatusConflict,
			body:    `{ "detail": "Chapter number already exists for this novel" }`,
			wantMsg: `HTTP 409: {"detail":"Chapter number already exists for this novel"}`,
		},
		{
			name:    "text body",
			status:  http.StatusBadGateway,
			body:    "upstream down",
			wantMsg: "HTTP 502: upstream down",
		},
		{
			name:    "json string body",
			status:  http.StatusInternalServerError,
			body:    `"boom"`,
			wantMsg: "HTTP 500: boom",
		},
		{
			name:    "redirect status is not success",
			status:  http.StatusNotModified,
			body:    "",
			wantMsg: "HTTP 304: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupMockBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := NewClient(server.URL, nil).CreateChapter(context.Background(), 1, ChapterCreate{ChapterNo: 1, Raw: "x"})
			require.Error(t, err)

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.wantMsg, httpErr.Error())
		})
	}
}
