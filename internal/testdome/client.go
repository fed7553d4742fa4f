// Package testdome reads assessment results from the TestDome API.
package testdome

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/pmontanari/screenops/internal/apiclient"
	"github.com/pmontanari/screenops/internal/config"
)

const defaultPageSize = 100

// pagePause spaces out page requests so a full-archive fetch stays
// under the vendor's rate limit instead of tripping 429 retries.
const pagePause = 500 * time.Millisecond

type Client struct {
	api      *apiclient.Client
	pageSize int
}

// New builds a client authenticating via the OAuth2 client-credentials
// grant. Token acquisition and refresh ride on the oauth2 transport.
func New(cfg config.TestDome, opts ...apiclient.Option) *Client {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.BaseURL + "/token",
	}
	hc := cc.Client(context.Background())
	hc.Timeout = 30 * time.Second

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	opts = append([]apiclient.Option{apiclient.WithHTTPClient(hc)}, opts...)
	return &Client{
		api:      apiclient.New(cfg.BaseURL, opts...),
		pageSize: pageSize,
	}
}

// FetchResults walks the candidate archive page by page and returns one
// flattened result per candidate, newest activity winning.
func (c *Client) FetchResults(ctx context.Context) ([]Result, error) {
	var results []Result
	for skip := 0; ; skip += c.pageSize {
		page, err := c.fetchPage(ctx, skip)
		if err != nil {
			return nil, fmt.Errorf("candidates page at offset %d: %w", skip, err)
		}
		for _, cand := range page.Value {
			results = append(results, normalize(cand))
		}
		if !page.HasMoreItems {
			return results, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pagePause):
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, skip int) (candidatePage, error) {
	q := url.Values{}
	q.Set("$top", strconv.Itoa(c.pageSize))
	q.Set("$skip", strconv.Itoa(skip))
	q.Set("$expand", "test,activities")

	var page candidatePage
	err := c.api.GetJSON(ctx, "/v3/candidates?"+q.Encode(), &page)
	return page, err
}

// ResultsByEmail groups results under the lowercased candidate email.
func ResultsByEmail(results []Result) map[string][]Result {
	byEmail := make(map[string][]Result, len(results))
	for _, r := range results {
		if r.Email == "" {
			continue
		}
		byEmail[r.Email] = append(byEmail[r.Email], r)
	}
	return byEmail
}

// Ping verifies credentials and connectivity with a single-item fetch.
func (c *Client) Ping(ctx context.Context) error {
	var page candidatePage
	q := url.Values{}
	q.Set("$top", "1")
	q.Set("$skip", "0")
	if err := c.api.GetJSON(ctx, "/v3/candidates?"+q.Encode(), &page); err != nil {
		return fmt.Errorf("testdome probe: %w", err)
	}
	return nil
}
