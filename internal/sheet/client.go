// Package sheet fetches the constituent sheet as CSV text and parses it
// into typed stock records.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrTransport marks any failure to obtain the CSV text: a transport error
// or a non-2xx response.
var ErrTransport = errors.New("sheet: transport failure")

// FetchError describes a failed fetch. StatusCode is zero when no response
// was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching sheet: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("fetching sheet: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes every FetchError match ErrTransport.
func (e *FetchError) Is(target error) bool { return target == ErrTransport }

// Fetcher returns raw CSV text.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// Client downloads the CSV export of a Google Sheet.
type Client struct {
	url  string
	http *http.Client
	log  *slog.Logger
}

// Compile-time interface check.
var _ Fetcher = (*Client)(nil)

// NewClient creates a Client for the given export URL. A zero timeout
// leaves the transport default in place.
func NewClient(url string, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// URL returns the export URL the client fetches.
func (c *Client) URL() string { return c.url }

// Fetch performs one GET of the export URL. It never retries.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", &FetchError{URL: c.url, Err: err}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &FetchError{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &FetchError{URL: c.url, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{URL: c.url, Err: fmt.Errorf("reading body: %w", err)}
	}

	c.log.Debug("sheet fetched", "bytes", len(body), "elapsed", time.Since(start))
	return string(body), nil
}
