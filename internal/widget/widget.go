// Package widget attaches the faceted search controllers to a parsed results
// page and routes events and completions between them.
//
// A Widget is driven from a single goroutine: hosts feed *dom.Event values
// and the messages produced by returned commands back into Update, the way a
// Bubble Tea program does.
package widget

import (
	"context"
	"errors"
	"fmt"

	tea "charm.land/bubbletea/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-logr/logr"
	"golang.org/x/net/html"

	"github.com/oakwood-commons/facetview/internal/autocomplete"
	"github.com/oakwood-commons/facetview/internal/debounce"
	"github.com/oakwood-commons/facetview/internal/dom"
	"github.com/oakwood-commons/facetview/internal/facetbox"
	"github.com/oakwood-commons/facetview/internal/fetch"
	"github.com/oakwood-commons/facetview/internal/form"
	"github.com/oakwood-commons/facetview/internal/preview"
	"github.com/oakwood-commons/facetview/internal/refine"
	"github.com/oakwood-commons/facetview/internal/router"
	"github.com/oakwood-commons/facetview/pkg/logger"
)

// ErrRootNotFound is returned by Attach when the page has no widget root.
var ErrRootNotFound = errors.New("widget root not found")

// Route names in table order.
const (
	RouteSuggestionPick = "suggestion-pick"
	RoutePreviewClick   = "preview-click"
	RouteShowMore       = "show-more"
	RoutePreviewKey     = "preview-key"
	RoutePreviewDismiss = "preview-dismiss"
	RouteFacetSelect    = "facet-select"
	RouteFilterInput    = "filter-input"
	RouteFilterEscape   = "filter-escape"
	RouteSuggestInput   = "suggest-input"
	RouteSuggestKey     = "suggest-key"
	RouteSuggestBlur    = "suggest-blur"
)

// Widget is one attachment of the controllers to a document.
type Widget struct {
	doc    *dom.Document
	root   *goquery.Selection
	sel    Selectors
	ctx    context.Context
	cancel context.CancelFunc
	log    logr.Logger

	router   *router.Router
	boxes    *facetbox.Controller
	previews *preview.Controller
	suggest  *autocomplete.Controller
	refine   *refine.Controller

	detached bool
}

// Attach wires the controllers to doc, collapses every facet box and wraps
// the autocomplete input. It fails only when the root is missing or a
// selector does not compile.
func Attach(doc *dom.Document, opts ...Option) (*Widget, error) {
	o := options{ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}
	sel := o.selectors.merge()

	root := doc.Find(sel.Root).First()
	if root.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, sel.Root)
	}

	ctx := o.ctx
	if o.log != nil {
		ctx = logger.WithLogger(ctx, o.log)
	}
	if o.fetcher == nil {
		o.fetcher = fetch.New()
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Widget{
		doc:    doc,
		root:   root,
		sel:    sel,
		ctx:    ctx,
		cancel: cancel,
		log:    logger.Component(ctx, "widget"),
	}
	if err := w.build(o); err != nil {
		cancel()
		return nil, err
	}
	w.boxes.Init()
	w.log.V(1).Info("widget attached", "page", doc.PageURL().String(), "routes", w.router.Names(), "autocomplete", w.suggest != nil)
	return w, nil
}

func (w *Widget) build(o options) error {
	requests := form.Builder{Doc: w.doc, Selector: w.sel.Form}

	boxes, err := facetbox.New(facetbox.Config{
		Root: w.root,
		Selectors: facetbox.Selectors{
			Box:      w.sel.Box,
			Rows:     w.sel.Rows,
			Label:    w.sel.Label,
			ShowMore: w.sel.ShowMore,
		},
		Delay:     o.timing.FilterDelay,
		Scheduler: o.scheduler,
		Logger:    logger.Component(w.ctx, facetbox.Owner),
	})
	if err != nil {
		return err
	}
	w.boxes = boxes

	previews, err := preview.New(preview.Config{
		Context:   w.ctx,
		Selectors: preview.Selectors{Row: w.sel.PreviewRow, Container: w.sel.PreviewContainer},
		Fetcher:   o.fetcher,
		Requests:  requests,
		Logger:    logger.Component(w.ctx, "preview"),
	})
	if err != nil {
		return err
	}
	w.previews = previews
	w.refine = refine.New(requests, logger.Component(w.ctx, "refine"))

	input := w.doc.Find(w.sel.Autocomplete).First()
	if input.Length() > 0 {
		w.suggest, err = autocomplete.New(autocomplete.Config{
			Context:    w.ctx,
			Input:      input,
			Fetcher:    o.fetcher,
			Requests:   requests,
			Scheduler:  o.scheduler,
			InputDelay: o.timing.AutocompleteDelay,
			BlurDelay:  o.timing.BlurDelay,
			Logger:     logger.Component(w.ctx, autocomplete.Owner),
		})
		if err != nil {
			return err
		}
	}

	w.router, err = router.New(dom.Node(w.root), w.routes()...)
	return err
}

func (w *Widget) routes() []router.Route {
	click := []dom.EventType{dom.Click}
	keydown := []dom.EventType{dom.KeyDown}
	routes := []router.Route{
		{Name: RoutePreviewClick, Events: click, Selector: w.sel.PreviewToggle, Prevent: true, Handle: w.onPreviewToggle},
		{Name: RouteShowMore, Events: click, Selector: w.sel.ShowMore, Prevent: true, Handle: w.onShowMore},
		{Name: RoutePreviewKey, Events: keydown, Keys: []string{dom.KeyEnter, dom.KeySpace}, Selector: w.sel.PreviewToggle, Prevent: true, Handle: w.onPreviewToggle},
		{Name: RoutePreviewDismiss, Events: keydown, Keys: []string{dom.KeyEscape}, Selector: w.sel.PreviewToggle, Handle: w.onPreviewDismiss},
		{Name: RouteFacetSelect, Events: []dom.EventType{dom.Change}, Selector: w.sel.Select, Handle: w.onFacetSelect},
		{Name: RouteFilterInput, Events: []dom.EventType{dom.Input}, Selector: w.sel.SearchInput, Handle: w.onFilterInput},
		{Name: RouteFilterEscape, Events: keydown, Keys: []string{dom.KeyEscape}, Selector: w.sel.SearchInput, Handle: w.onFilterEscape},
	}
	if w.suggest == nil {
		return routes
	}
	pick := router.Route{
		Name:     RouteSuggestionPick,
		Events:   []dom.EventType{dom.PointerDown},
		Selector: "." + autocomplete.ItemClass,
		Scope:    router.Direct,
		Prevent:  true,
		Handle:   w.onSuggestionPick,
	}
	return append(append([]router.Route{pick}, routes...),
		router.Route{Name: RouteSuggestInput, Events: []dom.EventType{dom.Input}, Selector: w.sel.Autocomplete, Scope: router.Direct, Handle: w.onSuggestInput},
		router.Route{Name: RouteSuggestKey, Events: keydown, Selector: w.sel.Autocomplete, Scope: router.Direct, Handle: w.onSuggestKey},
		router.Route{Name: RouteSuggestBlur, Events: []dom.EventType{dom.Blur}, Selector: w.sel.Autocomplete, Scope: router.Direct, Handle: w.onSuggestBlur},
	)
}

func (w *Widget) onSuggestionPick(_ *dom.Event, el *html.Node) tea.Cmd {
	if i, ok := autocomplete.ItemIndex(dom.Select(el)); ok {
		w.suggest.OnSelect(i)
	}
	return nil
}

func (w *Widget) onPreviewToggle(_ *dom.Event, el *html.Node) tea.Cmd {
	return w.previews.OnToggle(el)
}

func (w *Widget) onPreviewDismiss(ev *dom.Event, el *html.Node) tea.Cmd {
	if w.previews.Dismiss(el) {
		ev.PreventDefault()
	}
	return nil
}

func (w *Widget) onShowMore(_ *dom.Event, el *html.Node) tea.Cmd {
	w.boxes.OnShowMoreToggle(el)
	return nil
}

func (w *Widget) onFacetSelect(_ *dom.Event, el *html.Node) tea.Cmd {
	return w.refine.OnChange(el, dom.Value(dom.Select(el)))
}

func (w *Widget) onFilterInput(ev *dom.Event, el *html.Node) tea.Cmd {
	return w.boxes.OnFilterInput(el, ev.Value)
}

func (w *Widget) onFilterEscape(_ *dom.Event, el *html.Node) tea.Cmd {
	w.boxes.OnFilterEscape(el)
	return nil
}

func (w *Widget) onSuggestInput(ev *dom.Event, _ *html.Node) tea.Cmd {
	return w.suggest.OnInput(ev.Value)
}

func (w *Widget) onSuggestKey(ev *dom.Event, _ *html.Node) tea.Cmd {
	w.suggest.OnKey(ev)
	return nil
}

func (w *Widget) onSuggestBlur(_ *dom.Event, _ *html.Node) tea.Cmd {
	return w.suggest.OnBlur()
}

// Dispatch routes a user event. Input and change events first write their
// value into the target control, as the browser does before listeners run.
func (w *Widget) Dispatch(ev *dom.Event) tea.Cmd {
	if w.detached || ev == nil || ev.Target == nil {
		return nil
	}
	if ev.Type == dom.Input || ev.Type == dom.Change {
		dom.SetValue(dom.Select(ev.Target), ev.Value)
	}
	return w.router.Dispatch(ev)
}

// Update handles events, fired timers and request completions. Messages
// that belong to no controller are ignored.
func (w *Widget) Update(msg tea.Msg) tea.Cmd {
	if w.detached {
		return nil
	}
	switch msg := msg.(type) {
	case *dom.Event:
		return w.Dispatch(msg)
	case debounce.FiredMsg:
		switch msg.Owner {
		case facetbox.Owner:
			w.boxes.Update(msg)
		case autocomplete.Owner:
			if w.suggest != nil {
				cmd, _ := w.suggest.UpdateTimer(msg)
				return cmd
			}
		}
	case preview.ResultMsg:
		w.previews.Update(msg)
	case autocomplete.ResultMsg:
		if w.suggest != nil {
			w.suggest.Update(msg)
		}
	}
	return nil
}

// Submit submits the search form the way a browser would, as a
// navigation to the results page.
func (w *Widget) Submit() tea.Cmd {
	if w.detached {
		return nil
	}
	u, err := form.Builder{Doc: w.doc, Selector: w.sel.Form}.Build(nil, nil)
	if err != nil {
		w.log.Error(err, "submit search form")
		return nil
	}
	w.log.V(1).Info("submit search form", "url", u.String())
	return func() tea.Msg { return refine.NavigateMsg{URL: u} }
}

// Detach stops timers and aborts requests in flight. Later events and
// messages are ignored.
func (w *Widget) Detach() {
	if w.detached {
		return
	}
	w.detached = true
	w.cancel()
	w.boxes.Stop()
	if w.suggest != nil {
		w.suggest.Stop()
	}
	w.log.V(1).Info("widget detached")
}

// Detached reports whether Detach was called.
func (w *Widget) Detached() bool { return w.detached }

// Document is the page the widget mutates.
func (w *Widget) Document() *dom.Document { return w.doc }

// Root is the widget root element.
func (w *Widget) Root() *goquery.Selection { return w.root }

// Selectors are the selectors in effect.
func (w *Widget) Selectors() Selectors { return w.sel }

// Routes names the active routes in table order.
func (w *Widget) Routes() []string { return w.router.Names() }

// Handles reports whether ev would reach a controller.
func (w *Widget) Handles(ev *dom.Event) bool {
	_, _, ok := w.router.Match(ev)
	return ok
}

// Boxes reports the state of every facet box.
func (w *Widget) Boxes() []facetbox.Box { return w.boxes.Boxes() }

// Preview reports the preview state of a toggle.
func (w *Widget) Preview(toggle *html.Node) preview.State { return w.previews.State(toggle) }

// Autocomplete reports the autocomplete session, if the page has an
// autocomplete input.
func (w *Widget) Autocomplete() (autocomplete.Session, bool) {
	if w.suggest == nil {
		return autocomplete.Session{}, false
	}
	return w.suggest.Session(), true
}

// SuggestionList is the rendered suggestion list, empty without autocomplete.
func (w *Widget) SuggestionList() *goquery.Selection {
	if w.suggest == nil {
		return &goquery.Selection{}
	}
	return w.suggest.List()
}
