// Package upstream is the HTTP client for the remote accounting API.
//
// A Client carries its own cookie jar, so one Client serves exactly one
// visitor; the remote API's session cookies never cross visitors.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// TokenHeader carries the anti-forgery token on credentialed calls.
const TokenHeader = "X-CSRF-TOKEN"

const (
	defaultTimeout = 10 * time.Second
	// maxErrorBody caps how much of a failed response is read for its message.
	maxErrorBody = 4 << 10
)

// RequestObserver receives one observation per completed remote call.
type RequestObserver interface {
	ObserveUpstream(endpoint, outcome string, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	// BaseURL is the scheme and host of the remote API, e.g. https://synergyaccounting.app.
	BaseURL string
	Timeout time.Duration
	// HTTPClient is copied; its Jar is replaced by the Client's own jar.
	HTTPClient *http.Client
	// Jar overrides the default public-suffix-aware jar.
	Jar      http.CookieJar
	Logger   *slog.Logger
	Observer RequestObserver
}

// Client talks to the remote API on behalf of one visitor.
type Client struct {
	base     *url.URL
	hc       *http.Client
	logger   *slog.Logger
	observer RequestObserver
}

// NewClient validates the base URL and builds a Client with a fresh cookie jar.
func NewClient(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("upstream base url is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse upstream base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("upstream base url must be http or https, got %q", base.Scheme)
	}

	jar := opts.Jar
	if jar == nil {
		jar, err = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var hc http.Client
	if opts.HTTPClient != nil {
		hc = *opts.HTTPClient
	}
	hc.Jar = jar
	if hc.Timeout <= 0 {
		hc.Timeout = timeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:     base,
		hc:       &hc,
		logger:   logger.With("component", "upstream"),
		observer: opts.Observer,
	}, nil
}

// call describes one remote request.
type call struct {
	// endpoint is a low-cardinality name used for logs and metrics.
	endpoint    string
	method      string
	path        string
	query       url.Values
	token       string
	jsonBody    any
	body        io.Reader
	contentType string
	header      http.Header
}

// do executes c and returns the response for 2xx statuses.
// Non-2xx statuses are consumed and returned as *APIError.
// The caller closes the body of a returned response.
func (cl *Client) do(ctx context.Context, c call) (*http.Response, error) {
	start := time.Now()
	resp, err := cl.send(ctx, c)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "transport"
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		outcome = "status"
	}
	if cl.observer != nil {
		cl.observer.ObserveUpstream(c.endpoint, outcome, time.Since(start))
	}
	if err != nil {
		cl.logger.DebugContext(ctx, "upstream request failed", "endpoint", c.endpoint, "error", err)
		return nil, err
	}
	if outcome == "status" {
		apiErr := readAPIError(resp)
		cl.logger.DebugContext(ctx, "upstream rejected request",
			"endpoint", c.endpoint, "status", apiErr.Status, "message", apiErr.Message)
		return nil, apiErr
	}
	return resp, nil
}

func (cl *Client) send(ctx context.Context, c call) (*http.Response, error) {
	u := *cl.base
	u.Path = strings.TrimRight(u.Path, "/") + c.path
	if len(c.query) > 0 {
		u.RawQuery = c.query.Encode()
	}

	body := c.body
	contentType := c.contentType
	if c.jsonBody != nil {
		data, err := json.Marshal(c.jsonBody)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", c.endpoint, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, c.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", c.endpoint, err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if c.token != "" {
		req.Header.Set(TokenHeader, c.token)
	}

	resp, err := cl.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, c.endpoint, err)
	}
	return resp, nil
}

// doJSON executes c and decodes a 2xx body into out.
func (cl *Client) doJSON(ctx context.Context, c call, out any) error {
	resp, err := cl.do(ctx, c)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	return decodeJSON(resp, c.endpoint, out)
}

func decodeJSON(resp *http.Response, endpoint string, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", ErrTransport, endpoint, err)
	}
	return nil
}

// doMessage executes c and returns the {message} of a 2xx body.
// An empty or non-JSON body yields its trimmed text.
func (cl *Client) doMessage(ctx context.Context, c call) (string, error) {
	resp, err := cl.do(ctx, c)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read %s response: %w", ErrTransport, c.endpoint, err)
	}
	return parseMessage(data), nil
}

// doDiscard executes c and drops the 2xx body.
func (cl *Client) doDiscard(ctx context.Context, c call) error {
	resp, err := cl.do(ctx, c)
	if err != nil {
		return err
	}
	closeBody(resp)
	return nil
}

type messageResponse struct {
	Message string `json:"message"`
}

func parseMessage(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ""
	}
	var msg messageResponse
	if err := json.Unmarshal(trimmed, &msg); err == nil {
		return msg.Message
	}
	return string(trimmed)
}

func readAPIError(resp *http.Response) *APIError {
	defer closeBody(resp)
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := parseMessage(data)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

func closeBody(resp *http.Response) {
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
