// Package gemini is a minimal client for the Gemini generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"qqqdash/internal/util"
)

// FallbackText is returned in place of generated text when a successful
// response carries none.
const FallbackText = "無法生成報告，請稍後再試。"

// ErrAuth means the credential is missing or was rejected.
var ErrAuth = errors.New("gemini: invalid or missing API key")

// TransportError is any other failure: no response, or a non-2xx status
// that is not an auth rejection.
type TransportError struct {
	StatusCode int // zero when no response was received
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Message != "" {
			return fmt.Sprintf("gemini: HTTP %d: %s", e.StatusCode, e.Message)
		}
		return fmt.Sprintf("gemini: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("gemini: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Generator produces text for a prompt.
type Generator interface {
	GenerateText(ctx context.Context, prompt, credential string) (string, error)
}

// Client calls generateContent for one model.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// Compile-time interface check.
var _ Generator = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithRateLimit paces requests to perMinute. Zero disables pacing.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) { c.limiter = util.NewRateLimiter(perMinute) }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a Client. baseURL is the API root, e.g.
// "https://generativelanguage.googleapis.com/v1beta".
func NewClient(baseURL, model string, timeout time.Duration, log *slog.Logger, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string { return c.model }

// --- wire types ---

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content *content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Reason string `json:"reason"`
		} `json:"details"`
	} `json:"error"`
}

// GenerateText sends prompt as a single user turn and returns the first
// candidate's first text part. It makes exactly one request.
func (c *Client) GenerateText(ctx context.Context, prompt, credential string) (string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", ErrAuth
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", &TransportError{Err: err}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(credential))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// The URL carries the key; report only the cause.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", &TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.classify(resp.StatusCode, raw)
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", &TransportError{StatusCode: resp.StatusCode, Message: "malformed response body", Err: err}
	}

	c.log.Debug("gemini response", "model", c.model, "elapsed", time.Since(start), "bytes", len(raw))

	if len(gr.Candidates) == 0 || gr.Candidates[0].Content == nil ||
		len(gr.Candidates[0].Content.Parts) == 0 || gr.Candidates[0].Content.Parts[0].Text == "" {
		c.log.Warn("gemini response has no text", "model", c.model)
		return FallbackText, nil
	}
	return gr.Candidates[0].Content.Parts[0].Text, nil
}

// classify maps a non-2xx response to ErrAuth or a TransportError.
func (c *Client) classify(status int, raw []byte) error {
	var er errorResponse
	_ = json.Unmarshal(raw, &er)
	msg := er.Error.Message

	auth := status == http.StatusUnauthorized || status == http.StatusForbidden
	if status == http.StatusBadRequest {
		for _, d := range er.Error.Details {
			if d.Reason == "API_KEY_INVALID" {
				auth = true
			}
		}
		if strings.Contains(msg, "API key not valid") {
			auth = true
		}
	}

	c.log.Warn("gemini request failed", "status", status, "auth", auth, "message", msg)
	if auth {
		if msg != "" {
			return fmt.Errorf("%w: %s", ErrAuth, msg)
		}
		return ErrAuth
	}
	return &TransportError{StatusCode: status, Message: msg, Err: errors.New(http.StatusText(status))}
}
