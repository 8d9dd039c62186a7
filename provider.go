package catstatus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultImageBaseURL is where the status code images come from.
	DefaultImageBaseURL = "https://http.cat"
	// DefaultFetchTimeout bounds a single image download.
	DefaultFetchTimeout = 30 * time.Second
)

// ImageProvider fetches the image for a status code.
type ImageProvider interface {
	Fetch(ctx context.Context, code int) ([]byte, error)
}

// FetchError is returned when no image could be fetched for a status code.
// The code is kept so that callers can still respond with it.
type FetchError struct {
	Code int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch image for status %d: %v", e.Code, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type HTTPProviderConfig struct {
	// Base URL of the image service, without trailing slash.
	// DefaultImageBaseURL is used if empty.
	BaseURL string
	// DefaultFetchTimeout is used if zero.
	Timeout   time.Duration
	Transport http.RoundTripper
}

// HTTPProvider downloads images from <base>/<code>.jpg.
type HTTPProvider struct {
	baseURL string
	client  http.Client
}

func NewHTTPProvider(config HTTPProviderConfig) *HTTPProvider {
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultImageBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPProvider{
		baseURL: baseURL,
		client: http.Client{
			Timeout:   timeout,
			Transport: config.Transport,
		},
	}
}

// ImageURL returns the URL of the image for the given code.
func (p *HTTPProvider) ImageURL(code int) string {
	return fmt.Sprintf("%s/%d.jpg", p.baseURL, code)
}

// Fetch downloads the image for code. There are no retries.
// All failures are returned as *FetchError.
func (p *HTTPProvider) Fetch(ctx context.Context, code int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.ImageURL(code), nil)
	if err != nil {
		return nil, &FetchError{Code: code, Err: err}
	}
	res, err := p.client.Do(req)
	if err != nil {
		return nil, &FetchError{Code: code, Err: err}
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &FetchError{Code: code, Err: fmt.Errorf("image service responded with %s", res.Status)}
	}
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &FetchError{Code: code, Err: fmt.Errorf("read body: %w", err)}
	}
	return b, nil
}
