package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxDocumentBytes = 32 << 20 // 32 MB

// HTTPFileFetcher fetches uploaded documents over plain HTTP(S).
type HTTPFileFetcher struct {
	client *http.Client
}

func NewHTTPFileFetcher(timeout time.Duration) *HTTPFileFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFileFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFileFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request failed: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch document status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read document body failed: %w", err)
	}
	return body, nil
}
