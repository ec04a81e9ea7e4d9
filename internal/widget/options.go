package widget

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/oakwood-commons/facetview/internal/autocomplete"
	"github.com/oakwood-commons/facetview/internal/debounce"
	"github.com/oakwood-commons/facetview/internal/facetbox"
	"github.com/oakwood-commons/facetview/internal/preview"
)

// Fetcher performs the widget's lookups. *fetch.Client implements it.
type Fetcher interface {
	autocomplete.Fetcher
	preview.Fetcher
}

// Selectors describe the markup the widget attaches to.
type Selectors struct {
	Root             string `json:"root" yaml:"root" toml:"root"`
	Form             string `json:"form" yaml:"form" toml:"form"`
	Box              string `json:"box" yaml:"box" toml:"box"`
	Rows             string `json:"rows" yaml:"rows" toml:"rows"`
	Label            string `json:"label" yaml:"label" toml:"label"`
	ShowMore         string `json:"show_more" yaml:"show_more" toml:"show_more"`
	SearchInput      string `json:"search_input" yaml:"search_input" toml:"search_input"`
	PreviewToggle    string `json:"preview_toggle" yaml:"preview_toggle" toml:"preview_toggle"`
	PreviewRow       string `json:"preview_row" yaml:"preview_row" toml:"preview_row"`
	PreviewContainer string `json:"preview_container" yaml:"preview_container" toml:"preview_container"`
	Select           string `json:"select" yaml:"select" toml:"select"`
	Autocomplete     string `json:"autocomplete" yaml:"autocomplete" toml:"autocomplete"`
}

// DefaultSelectors match the markup of the faceted search page.
func DefaultSelectors() Selectors {
	box := facetbox.DefaultSelectors()
	pv := preview.DefaultSelectors()
	return Selectors{
		Root:             "#ep_solr_facetview",
		Form:             "#facetview_search",
		Box:              box.Box,
		Rows:             box.Rows,
		Label:            box.Label,
		ShowMore:         box.ShowMore,
		SearchInput:      ".facet_search_input",
		PreviewToggle:    ".facet_preview_toggle",
		PreviewRow:       pv.Row,
		PreviewContainer: pv.Container,
		Select:           ".facet_select",
		Autocomplete:     `#facetview_freetext[data-autocomplete="true"]`,
	}
}

// merge fills empty fields from the defaults.
func (s Selectors) merge() Selectors {
	d := DefaultSelectors()
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	return Selectors{
		Root:             pick(s.Root, d.Root),
		Form:             pick(s.Form, d.Form),
		Box:              pick(s.Box, d.Box),
		Rows:             pick(s.Rows, d.Rows),
		Label:            pick(s.Label, d.Label),
		ShowMore:         pick(s.ShowMore, d.ShowMore),
		SearchInput:      pick(s.SearchInput, d.SearchInput),
		PreviewToggle:    pick(s.PreviewToggle, d.PreviewToggle),
		PreviewRow:       pick(s.PreviewRow, d.PreviewRow),
		PreviewContainer: pick(s.PreviewContainer, d.PreviewContainer),
		Select:           pick(s.Select, d.Select),
		Autocomplete:     pick(s.Autocomplete, d.Autocomplete),
	}
}

// Timing holds the widget's delays. Zero values use the package defaults.
type Timing struct {
	AutocompleteDelay time.Duration
	FilterDelay       time.Duration
	BlurDelay         time.Duration
}

type options struct {
	ctx       context.Context
	log       *logr.Logger
	fetcher   Fetcher
	scheduler debounce.Scheduler
	selectors Selectors
	timing    Timing
}

// Option configures Attach.
type Option func(*options)

// WithContext bounds every request the widget issues. Detach cancels a
// context derived from it.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// WithLogger overrides the logger found in the context.
func WithLogger(log logr.Logger) Option {
	return func(o *options) { o.log = &log }
}

// WithFetcher replaces the HTTP client.
func WithFetcher(f Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithScheduler replaces the timer source, mainly for tests.
func WithScheduler(s debounce.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithSelectors overrides markup selectors. Empty fields keep defaults.
func WithSelectors(s Selectors) Option {
	return func(o *options) { o.selectors = s }
}

// WithTiming overrides the debounce and blur delays.
func WithTiming(t Timing) Option {
	return func(o *options) { o.timing = t }
}
