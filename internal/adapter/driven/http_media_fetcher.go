package driven

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/umdl/umd-host/internal/breaker"
	port "github.com/umdl/umd-host/internal/port/driven"
)

const defaultFetchTimeout = 30 * time.Second

// HTTPMediaFetcher retrieves media resources over HTTP.
// It implements the driven.MediaFetcher port. Every request carries the
// client's bounded timeout; a timed-out request surfaces as an ordinary
// fetch error.
//
// Requests run through a per-host circuit breaker, so a host that keeps
// failing is skipped for a cooldown period instead of being retried on
// every probe and segment.
type HTTPMediaFetcher struct {
	client *http.Client

	mu       sync.Mutex
	breakers map[string]*breaker.Breaker
}

// NewHTTPMediaFetcher creates a fetcher with the given timeout.
// A non-positive timeout falls back to 30 seconds. If client is nil, a
// default client is created.
func NewHTTPMediaFetcher(timeout time.Duration, client *http.Client) *HTTPMediaFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPMediaFetcher{
		client:   client,
		breakers: make(map[string]*breaker.Breaker),
	}
}

// Fetch performs a full GET of the URL and returns the body and the
// response content type. Non-2xx statuses are errors.
func (f *HTTPMediaFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	var (
		body        []byte
		contentType string
	)
	err := f.breakerFor(rawURL).Execute(func() error {
		var err error
		body, contentType, err = f.fetch(ctx, rawURL)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return body, contentType, nil
}

func (f *HTTPMediaFetcher) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("unexpected HTTP status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading response body: %w", err)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// Head performs a metadata-only HEAD request. The content length is -1
// when the server does not advertise one.
func (f *HTTPMediaFetcher) Head(ctx context.Context, rawURL string) (port.HeadResult, error) {
	var result port.HeadResult
	err := f.breakerFor(rawURL).Execute(func() error {
		var err error
		result, err = f.head(ctx, rawURL)
		return err
	})
	if err != nil {
		return port.HeadResult{}, err
	}
	return result, nil
}

func (f *HTTPMediaFetcher) head(ctx context.Context, rawURL string) (port.HeadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return port.HeadResult{}, fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return port.HeadResult{}, fmt.Errorf("probing %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return port.HeadResult{}, fmt.Errorf("unexpected HTTP status: %d %s", resp.StatusCode, resp.Status)
	}

	return port.HeadResult{
		ContentLength: resp.ContentLength,
		ContentType:   resp.Header.Get("Content-Type"),
	}, nil
}

// breakerFor returns the circuit for the URL's host, creating it on
// first use. Unparseable URLs share one circuit keyed by the empty
// host; the request itself fails with a clearer error anyway.
func (f *HTTPMediaFetcher) breakerFor(rawURL string) *breaker.Breaker {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.breakers[host]
	if !ok {
		b = breaker.New(breaker.Config{Host: host})
		f.breakers[host] = b
	}
	return b
}
