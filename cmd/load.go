package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/oakwood-commons/facetview/internal/config"
	"github.com/oakwood-commons/facetview/internal/debounce"
	"github.com/oakwood-commons/facetview/internal/dom"
	"github.com/oakwood-commons/facetview/internal/fetch"
	"github.com/oakwood-commons/facetview/internal/widget"
)

// newClient builds the HTTP client from the http config section.
func newClient(cfg *config.Config) *fetch.Client {
	opts := []fetch.Option{fetch.WithTimeout(cfg.HTTP.Timeout.Std())}
	if cfg.HTTP.UserAgent != "" {
		opts = append(opts, fetch.WithUserAgent(cfg.HTTP.UserAgent))
	}
	return fetch.New(opts...)
}

// loadDocument loads the page named by arg. An http(s) URL is fetched; any
// other argument is read as a file and parsed as if served from baseURL.
func loadDocument(ctx context.Context, client *fetch.Client, arg, baseURL string) (*dom.Document, error) {
	if u, err := url.Parse(arg); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if baseURL != "" {
			return nil, fmt.Errorf("--base-url only applies to files, got URL %s", arg)
		}
		return client.Page(ctx, u)
	}

	pageURL, err := filePageURL(arg, baseURL)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(arg)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()
	doc, err := dom.Parse(f, pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", arg, err)
	}
	return doc, nil
}

func filePageURL(path, baseURL string) (*url.URL, error) {
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse --base-url: %w", err)
		}
		if !u.IsAbs() {
			return nil, fmt.Errorf("--base-url must be absolute, got %q", baseURL)
		}
		return u, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve page path: %w", err)
	}
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}, nil
}

// attacher returns a function attaching the widget with the configured
// selectors and timing. The logger travels in ctx. A nil scheduler keeps
// real timers.
func attacher(ctx context.Context, cfg *config.Config, client *fetch.Client, scheduler debounce.Scheduler) func(*dom.Document) (*widget.Widget, error) {
	return func(doc *dom.Document) (*widget.Widget, error) {
		opts := []widget.Option{
			widget.WithContext(ctx),
			widget.WithFetcher(client),
			widget.WithSelectors(cfg.Selectors),
			widget.WithTiming(cfg.WidgetTiming()),
		}
		if scheduler != nil {
			opts = append(opts, widget.WithScheduler(scheduler))
		}
		w, err := widget.Attach(doc, opts...)
		if err != nil {
			return nil, fmt.Errorf("attach widget to %s: %w", doc.PageURL(), err)
		}
		return w, nil
	}
}
