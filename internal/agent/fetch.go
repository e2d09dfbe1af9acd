package agent

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-scripts/chapterhook/internal/extract"
)

// FetchPage downloads pageURL and parses it as a StaticPage
func FetchPage(ctx context.Context, client *http.Client, pageURL, userAgent string) (*StaticPage, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := extract.NewStaticDocument(resp.Body)
	if err != nil {
		return nil, err
	}
	// redirects change the address the page is known by
	return NewStaticPage(resp.Request.URL.String(), doc), nil
}
