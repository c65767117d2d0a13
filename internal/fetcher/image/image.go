// Package imagefetcher retrieves thumbnail payloads over HTTP.
package imagefetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotImage is returned when the response is not an image payload.
var ErrNotImage = errors.New("response is not an image")

// Fetcher implements relay.ImageFetcher with a bounded HTTP client.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// Config controls fetch behavior.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = 10 << 20
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0"
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

// Fetch downloads the image at url. Any non-200 status or non-image
// content type is an error; callers treat all errors as a signal to fall
// back to a text-only post.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("empty image url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "image") {
		return nil, ErrNotImage
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	return data, nil
}
