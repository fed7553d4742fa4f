// Package apiclient wraps outbound calls to the external recruiting APIs
// with timeouts, rate-limit retry, circuit breaking, and cursor pagination.
// It is the only place transient errors are absorbed; every other failure
// surfaces to the caller with its original context.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxTries  = 5
	defaultRetryBase = time.Second
)

// AuthFunc injects authentication into an outgoing request.
type AuthFunc func(*http.Request)

// Client performs JSON HTTP calls against a single upstream API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	auth       AuthFunc
	breaker    *breaker

	maxTries  uint
	retryBase time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAuth sets the authentication header injector.
func WithAuth(auth AuthFunc) Option {
	return func(c *Client) { c.auth = auth }
}

// WithRetryBase overrides the base delay of the rate-limit backoff.
// Intended for tests.
func WithRetryBase(d time.Duration) Option {
	return func(c *Client) { c.retryBase = d }
}

// WithBreakerConfig overrides the circuit breaker settings.
func WithBreakerConfig(cfg BreakerConfig) Option {
	return func(c *Client) { c.breaker = newBreaker(cfg) }
}

// New creates a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		breaker:    newBreaker(DefaultBreakerConfig()),
		maxTries:   defaultMaxTries,
		retryBase:  defaultRetryBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AbsoluteURL resolves a possibly relative URL (such as a server-provided
// "next page" pointer) against the client's base URL.
func (c *Client) AbsoluteURL(u string) string {
	if u == "" {
		return ""
	}
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return c.baseURL + "/" + strings.TrimLeft(u, "/")
}

// GetJSON performs a GET and decodes the response body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	return c.Do(ctx, http.MethodGet, url, nil, out)
}

// PostJSON performs a POST with a JSON payload. Side-effecting calls are
// retried only on rate-limit responses; any other failure surfaces
// immediately, since retrying a non-idempotent mutation risks duplicate
// effects.
func (c *Client) PostJSON(ctx context.Context, url string, payload, out any) error {
	return c.Do(ctx, http.MethodPost, url, payload, out)
}

// PatchJSON performs a PATCH with a JSON payload.
func (c *Client) PatchJSON(ctx context.Context, url string, payload, out any) error {
	return c.Do(ctx, http.MethodPatch, url, payload, out)
}

// Do performs a single logical call: marshal payload, send with auth,
// retry on HTTP 429 with exponential backoff (doubling per attempt, up to
// five attempts total), and decode a success body into out when non-nil.
func (c *Client) Do(ctx context.Context, method, url string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshaling %s payload: %w", method, err)
		}
	}

	target := c.AbsoluteURL(url)

	attempt := func() ([]byte, error) {
		return c.roundTrip(ctx, method, target, body)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryBase
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = 5 * time.Minute

	respBody, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &DecodeError{Err: fmt.Errorf("%s %s: %w", method, target, err)}
	}
	return nil
}

// roundTrip performs one HTTP attempt. A 429 response is returned as a
// plain (retryable) error; everything else that fails is marked permanent.
func (c *Client) roundTrip(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	if !c.breaker.allow() {
		return nil, backoff.Permanent(&TransportError{Err: errCircuitOpen})
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth != nil {
		c.auth(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.recordFailure()
		return nil, backoff.Permanent(&TransportError{Err: err})
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.recordFailure()
		return nil, backoff.Permanent(&TransportError{Err: err})
	}
	c.breaker.recordSuccess()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, backoff.Permanent(&APIError{
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(respBody)),
		})
	}

	return respBody, nil
}

// page is the cursor-paginated envelope used by the applicant-tracking API.
type page[T any] struct {
	Results []T     `json:"results"`
	Next    *string `json:"next"`
}

// CollectPages follows a listing endpoint's "next" pointer until it is
// absent, accumulating every page into one sequence in server-provided
// order.
func CollectPages[T any](ctx context.Context, c *Client, first string) ([]T, error) {
	var all []T

	url := first
	for url != "" {
		var p page[T]
		if err := c.GetJSON(ctx, url, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Results...)

		url = ""
		if p.Next != nil && *p.Next != "" {
			url = c.AbsoluteURL(*p.Next)
		}
	}

	return all, nil
}

// VisitPages is like CollectPages but hands each page to visit, letting the
// caller filter while paginating and stop early by returning false.
func VisitPages[T any](ctx context.Context, c *Client, first string, visit func(item T) bool) error {
	url := first
	for url != "" {
		var p page[T]
		if err := c.GetJSON(ctx, url, &p); err != nil {
			return err
		}
		for _, item := range p.Results {
			if !visit(item) {
				return nil
			}
		}

		url = ""
		if p.Next != nil && *p.Next != "" {
			url = c.AbsoluteURL(*p.Next)
		}
	}
	return nil
}
