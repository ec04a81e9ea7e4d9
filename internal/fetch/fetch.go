// Package fetch performs the widget's outbound GET requests: suggestion
// lookups, preview fragments and whole result pages.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/oakwood-commons/facetview/internal/dom"
	"github.com/oakwood-commons/facetview/internal/metrics"
	"github.com/oakwood-commons/facetview/pkg/settings"
)

const (
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 4 << 20

	acceptJSON = "application/json"
	acceptHTML = "text/html"
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// Client issues the widget's requests.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	userAgent string
	policy    *bluemonday.Policy
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithPolicy replaces the sanitizer applied to preview fragments.
func WithPolicy(p *bluemonday.Policy) Option {
	return func(c *Client) {
		if p != nil {
			c.policy = p
		}
	}
}

// New returns a Client with defaults applied.
func New(opts ...Option) *Client {
	c := &Client{
		http:      http.DefaultClient,
		timeout:   DefaultTimeout,
		userAgent: settings.CliBinaryName + "/" + settings.VersionInformation.BuildVersion,
		policy:    FragmentPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FragmentPolicy is the UGC policy extended with the class and data
// attributes preview markup relies on.
func FragmentPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowDataAttributes()
	p.AllowAttrs("role", "aria-label", "aria-hidden").Globally()
	return p
}

// Suggestions fetches a JSON array and returns its entries as strings.
// Non-string scalars are formatted, nulls skipped.
func (c *Client) Suggestions(ctx context.Context, u *url.URL) ([]string, error) {
	body, err := c.get(ctx, metrics.KindAutocomplete, u, acceptJSON)
	if err != nil {
		return nil, err
	}
	var raw []any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch s := v.(type) {
		case nil:
		case string:
			out = append(out, s)
		case map[string]any, []any:
		default:
			out = append(out, fmt.Sprint(s))
		}
	}
	return out, nil
}

// Fragment fetches an HTML fragment and returns it sanitized.
func (c *Client) Fragment(ctx context.Context, u *url.URL) (string, error) {
	body, err := c.get(ctx, metrics.KindPreview, u, acceptHTML)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(c.policy.Sanitize(string(body))), nil
}

// Page fetches and parses a full page. Its URL becomes the document's base.
func (c *Client) Page(ctx context.Context, u *url.URL) (*dom.Document, error) {
	body, err := c.get(ctx, metrics.KindPage, u, acceptHTML)
	if err != nil {
		return nil, err
	}
	return dom.Parse(bytes.NewReader(body), u)
}

func (c *Client) get(ctx context.Context, kind string, u *url.URL, accept string) ([]byte, error) {
	start := time.Now()
	body, err := c.do(ctx, u, accept)
	metrics.FetchRequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	metrics.FetchRequestsTotal.WithLabelValues(kind, statusLabel(err)).Inc()
	return body, err
}

func (c *Client) do(ctx context.Context, u *url.URL, accept string) ([]byte, error) {
	if u == nil {
		return nil, errors.New("fetch: url is required")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u.Redacted(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: u.Redacted(), StatusCode: resp.StatusCode, Status: resp.Status}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u.Redacted(), err)
	}
	return data, nil
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var se *StatusError
	if errors.As(err, &se) {
		return strconv.Itoa(se.StatusCode)
	}
	return "error"
}
