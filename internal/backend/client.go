package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ChapterCreate is the payload of a chapter submission
type ChapterCreate struct {
	ChapterNo int    `json:"chapter_no"`
	Raw       string `json:"raw"`
	SourceURL string `json:"source_url"`
}

// Chapter is the backend's chapter object. Only ID is decoded strictly;
// the rest of the reply is kept as sent.
type Chapter struct {
	ID     int64
	Status string
	Body   json.RawMessage
}

func (c *Chapter) UnmarshalJSON(data []byte) error {
	var head struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	*c = Chapter{ID: head.ID, Body: append(json.RawMessage(nil), data...)}

	var extra struct {
		Status string `json:"status"`
	}
	if json.Unmarshal(data, &extra) == nil {
		c.Status = extra.Status
	}
	return nil
}

// HTTPError is a non-2xx answer from the backend
type HTTPError struct {
	StatusCode int
	// Body is the response body, compact JSON when it parsed as JSON
	Body string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Client talks to the chapter backend
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for baseURL. Trailing slashes are ignored.
// A nil httpClient uses a client without timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// CreateChapter posts a new chapter for novelID
func (c *Client) CreateChapter(ctx context.Context, novelID int, in ChapterCreate) (*Chapter, error) {
	var ch Chapter
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/novels/%d/chapters", novelID), in, &ch); err != nil {
		return nil, fmt.Errorf("create chapter %d: %w", in.ChapterNo, err)
	}
	return &ch, nil
}

// TranslateChapter triggers translation of chapter id
func (c *Client) TranslateChapter(ctx context.Context, id int64) (*Chapter, error) {
	var ch Chapter
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/chapters/%d/translate", id), nil, &ch); err != nil {
		return nil, fmt.Errorf("translate chapter id=%d: %w", id, err)
	}
	return &ch, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: renderBody(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// renderBody shows JSON bodies compactly and anything else verbatim
func renderBody(data []byte) string {
	var buf bytes.Buffer
	if json.Valid(data) && json.Compact(&buf, data) == nil {
		if s, ok := jsonString(buf.Bytes()); ok {
			return s
		}
		return buf.String()
	}
	return string(data)
}

// jsonString unwraps a body that is a bare JSON string
func jsonString(data []byte) (string, bool) {
	var s string
	if json.Unmarshal(data, &s) != nil {
		return "", false
	}
	return s, true
}
