package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dgallion1/docview/internal/document"
)

// ErrUnavailable is returned (wrapped) for every failed load.
var ErrUnavailable = errors.New("content unavailable")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

func (e *StatusError) Unwrap() error { return ErrUnavailable }

// DefaultMaxBytes caps the document body.
const DefaultMaxBytes = 16 << 20

// Client fetches the remote source document.
type Client struct {
	url        string
	httpClient *http.Client
	maxBytes   int64
	now        func() time.Time
}

// NewClient creates a loader for url. A nil httpClient gets a default with a
// 30s timeout.
func NewClient(url string, httpClient *http.Client, maxBytes int64) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Client{
		url:        url,
		httpClient: httpClient,
		maxBytes:   maxBytes,
		now:        time.Now,
	}
}

// URL returns the document address.
func (c *Client) URL() string {
	return c.url
}

// Load fetches the document once, bypassing HTTP caches. There is no retry.
func (c *Client) Load(ctx context.Context) (document.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return document.Document{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Accept", "text/markdown, text/plain;q=0.9, */*;q=0.1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return document.Document{}, fmt.Errorf("fetch %s: %w: %w", c.url, ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return document.Document{}, &StatusError{URL: c.url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return document.Document{}, fmt.Errorf("read %s: %w: %w", c.url, ErrUnavailable, err)
	}
	if int64(len(body)) > c.maxBytes {
		return document.Document{}, fmt.Errorf("fetch %s: %w: body exceeds %d bytes", c.url, ErrUnavailable, c.maxBytes)
	}

	return document.Document{
		URL:       c.url,
		Source:    string(body),
		FetchedAt: c.now(),
	}, nil
}
