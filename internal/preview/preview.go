// Package preview shows an inline preview of a facet refinement next to its
// toggle. Each toggle runs its own Hidden, Loading, Shown/Error cycle and has
// at most one request in flight.
package preview

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	tea "charm.land/bubbletea/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/go-logr/logr"
	"golang.org/x/net/html"

	"github.com/oakwood-commons/facetview/internal/dom"
	"github.com/oakwood-commons/facetview/internal/form"
	"github.com/oakwood-commons/facetview/internal/metrics"
)

// Phase is the lifecycle position of one toggle's preview.
type Phase int

const (
	Hidden Phase = iota
	Loading
	Shown
	Error
)

func (p Phase) String() string {
	switch p {
	case Hidden:
		return "hidden"
	case Loading:
		return "loading"
	case Shown:
		return "shown"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

const (
	ActionName = "facet_preview"

	LoadingHTML = `<div class="facet_preview_loading">Loading preview…</div>`
	ErrorHTML   = `<div class="facet_preview_error">Error loading preview.</div>`
)

// State is the preview state of one toggle.
type State struct {
	Phase       Phase
	Field       string
	Value       string
	FilterQuery string
	Content     string
	Err         error
	Gen         uint64
}

// Fetcher retrieves a sanitized HTML fragment.
type Fetcher interface {
	Fragment(ctx context.Context, u *url.URL) (string, error)
}

// RequestBuilder turns form overrides into a request URL.
type RequestBuilder interface {
	Build(set, add url.Values) (*url.URL, error)
}

// ResultMsg carries a finished preview request back to the controller.
type ResultMsg struct {
	Toggle  *html.Node
	Gen     uint64
	Content string
	Err     error
}

// Selectors locate a toggle's preview container.
type Selectors struct {
	Row       string
	Container string
}

// DefaultSelectors match the rendered facet rows.
func DefaultSelectors() Selectors {
	return Selectors{Row: "li", Container: ".facet_preview_container"}
}

// Config wires a Controller.
type Config struct {
	Context   context.Context
	Selectors Selectors
	Fetcher   Fetcher
	Requests  RequestBuilder
	Logger    logr.Logger
}

// Controller tracks preview state per toggle.
type Controller struct {
	ctx      context.Context
	sel      Selectors
	rowMatch cascadia.Selector
	fetcher  Fetcher
	requests RequestBuilder
	log      logr.Logger

	states  map[*html.Node]*State
	nextGen uint64
}

// New returns a controller. The context bounds every request it issues.
func New(cfg Config) (*Controller, error) {
	row, err := cascadia.Compile(cfg.Selectors.Row)
	if err != nil {
		return nil, fmt.Errorf("preview row selector %q: %w", cfg.Selectors.Row, err)
	}
	if _, err := cascadia.Compile(cfg.Selectors.Container); err != nil {
		return nil, fmt.Errorf("preview container selector %q: %w", cfg.Selectors.Container, err)
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &Controller{
		ctx:      ctx,
		sel:      cfg.Selectors,
		rowMatch: row,
		fetcher:  cfg.Fetcher,
		requests: cfg.Requests,
		log:      cfg.Logger,
		states:   make(map[*html.Node]*State),
	}, nil
}

// OnToggle advances the toggle's preview: Hidden starts a fetch, Shown and
// Error collapse, Loading ignores the activation.
func (c *Controller) OnToggle(toggle *html.Node) tea.Cmd {
	container := c.container(toggle)
	if container.Length() == 0 {
		return nil
	}
	st := c.state(toggle)
	switch st.Phase {
	case Loading:
		return nil
	case Shown, Error:
		c.hide(toggle, container, st)
		return nil
	}

	t := dom.Select(toggle)
	field := t.AttrOr("data-field", "")
	value := t.AttrOr("data-value", "")
	fq := t.AttrOr("data-fq", "")
	u, err := c.requests.Build(url.Values{
		"_action":    {ActionName},
		"field":      {field},
		"value":      {value},
		"preview_fq": {fq},
	}, nil)
	if errors.Is(err, form.ErrFormNotFound) {
		c.log.V(1).Info("preview skipped", "reason", err.Error())
		return nil
	}

	c.nextGen++
	*st = State{Phase: Loading, Field: field, Value: value, FilterQuery: fq, Gen: c.nextGen}
	dom.SetDisplay(container, "block")
	container.SetHtml(LoadingHTML)
	t.SetAttr("aria-expanded", "true")
	metrics.PreviewTransitionsTotal.WithLabelValues(Loading.String()).Inc()

	if err != nil {
		return c.finish(ResultMsg{Toggle: toggle, Gen: st.Gen, Err: err})
	}
	return c.fetch(toggle, st.Gen, u)
}

// Dismiss collapses the toggle's preview from any visible phase. A request
// still in flight is discarded when it completes.
func (c *Controller) Dismiss(toggle *html.Node) bool {
	st, ok := c.states[toggle]
	if !ok || st.Phase == Hidden {
		return false
	}
	container := c.container(toggle)
	if container.Length() == 0 {
		return false
	}
	c.hide(toggle, container, st)
	return true
}

// Update applies a finished request if the toggle is still waiting for it.
func (c *Controller) Update(msg ResultMsg) {
	st, ok := c.states[msg.Toggle]
	if !ok || st.Phase != Loading || st.Gen != msg.Gen {
		metrics.StaleResponsesTotal.WithLabelValues(metrics.KindPreview).Inc()
		c.log.V(1).Info("stale preview response dropped", "gen", msg.Gen)
		return
	}
	container := c.container(msg.Toggle)
	if msg.Err != nil {
		c.log.Error(msg.Err, "facet preview failed", "field", st.Field, "value", st.Value)
		st.Phase = Error
		st.Err = msg.Err
		container.SetHtml(ErrorHTML)
	} else {
		st.Phase = Shown
		st.Content = msg.Content
		container.SetHtml(msg.Content)
	}
	metrics.PreviewTransitionsTotal.WithLabelValues(st.Phase.String()).Inc()
}

// State returns the toggle's current preview state.
func (c *Controller) State(toggle *html.Node) State {
	if st, ok := c.states[toggle]; ok {
		return *st
	}
	return State{}
}

func (c *Controller) fetch(toggle *html.Node, gen uint64, u *url.URL) tea.Cmd {
	ctx, fetcher := c.ctx, c.fetcher
	return func() tea.Msg {
		content, err := fetcher.Fragment(ctx, u)
		if err != nil {
			err = fmt.Errorf("load preview: %w", err)
		}
		return ResultMsg{Toggle: toggle, Gen: gen, Content: content, Err: err}
	}
}

func (c *Controller) finish(msg ResultMsg) tea.Cmd {
	return func() tea.Msg { return msg }
}

func (c *Controller) hide(toggle *html.Node, container *goquery.Selection, st *State) {
	dom.Hide(container)
	container.SetHtml("")
	dom.Select(toggle).SetAttr("aria-expanded", "false")
	*st = State{Phase: Hidden, Field: st.Field, Value: st.Value, FilterQuery: st.FilterQuery, Gen: st.Gen}
	metrics.PreviewTransitionsTotal.WithLabelValues(Hidden.String()).Inc()
}

func (c *Controller) container(toggle *html.Node) *goquery.Selection {
	row := dom.Closest(toggle, c.rowMatch, nil)
	if row == nil {
		return &goquery.Selection{}
	}
	return dom.Select(row).Find(c.sel.Container).First()
}

func (c *Controller) state(toggle *html.Node) *State {
	st, ok := c.states[toggle]
	if !ok {
		st = &State{}
		c.states[toggle] = st
	}
	return st
}
