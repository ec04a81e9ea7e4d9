// Package autocomplete adds typeahead suggestions to the free-text search
// input: debounced lookups, stale response rejection, a keyboard cursor over
// the suggestion list and delayed close on blur.
package autocomplete

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tea "charm.land/bubbletea/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-logr/logr"

	"github.com/oakwood-commons/facetview/internal/debounce"
	"github.com/oakwood-commons/facetview/internal/dom"
	"github.com/oakwood-commons/facetview/internal/form"
	"github.com/oakwood-commons/facetview/internal/metrics"
)

const (
	// Owner tags this controller's debounce messages.
	Owner      = "autocomplete"
	ActionName = "autocomplete"

	MinTermLength  = 2
	MaxSuggestions = 10
	InputDelay     = 250 * time.Millisecond
	BlurDelay      = 150 * time.Millisecond

	WrapperClass = "facetview_autocomplete_wrapper"
	ListClass    = "facetview_autocomplete_list"
	ItemClass    = "facetview_autocomplete_item"
	ActiveClass  = "active"
	ItemIDPrefix = "autocomplete-item-"

	keyInput = "input"
	keyBlur  = "blur"
)

// ErrNoInput is returned by New when the input selection is empty.
var ErrNoInput = errors.New("autocomplete input not found")

// Session is the state of one autocomplete input.
type Session struct {
	Term        string
	Seq         uint64
	Suggestions []string
	Active      int
	Open        bool
}

// Fetcher retrieves suggestions for a request URL.
type Fetcher interface {
	Suggestions(ctx context.Context, u *url.URL) ([]string, error)
}

// RequestBuilder turns form overrides into a request URL.
type RequestBuilder interface {
	Build(set, add url.Values) (*url.URL, error)
}

// ResultMsg carries a finished suggestion lookup.
type ResultMsg struct {
	Seq         uint64
	Term        string
	Suggestions []string
	Err         error
}

// Config wires a Controller to its input.
type Config struct {
	Context    context.Context
	Input      *goquery.Selection
	Fetcher    Fetcher
	Requests   RequestBuilder
	Scheduler  debounce.Scheduler
	InputDelay time.Duration
	BlurDelay  time.Duration
	Logger     logr.Logger
}

// Controller owns the suggestion list of one input.
type Controller struct {
	ctx        context.Context
	input      *goquery.Selection
	list       *goquery.Selection
	fetcher    Fetcher
	requests   RequestBuilder
	debouncer  *debounce.Debouncer
	inputDelay time.Duration
	blurDelay  time.Duration
	log        logr.Logger

	session Session
}

// New wraps the input and appends an empty, hidden suggestion list next to
// it. Markup from an earlier attach is reused.
func New(cfg Config) (*Controller, error) {
	if cfg.Input == nil || cfg.Input.Length() == 0 {
		return nil, ErrNoInput
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	c := &Controller{
		ctx:        ctx,
		input:      cfg.Input.First(),
		fetcher:    cfg.Fetcher,
		requests:   cfg.Requests,
		debouncer:  debounce.New(Owner, cfg.Scheduler),
		inputDelay: orDefault(cfg.InputDelay, InputDelay),
		blurDelay:  orDefault(cfg.BlurDelay, BlurDelay),
		log:        cfg.Logger,
		session:    Session{Active: -1},
	}
	c.list = c.ensureList()
	c.clear()
	return c, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func (c *Controller) ensureList() *goquery.Selection {
	parent := c.input.Parent()
	if !parent.HasClass(WrapperClass) {
		c.input.WrapHtml(`<div class="` + WrapperClass + `"></div>`)
		parent = c.input.Parent()
	}
	list := parent.ChildrenFiltered("ul." + ListClass).First()
	if list.Length() == 0 {
		c.input.AfterHtml(`<ul class="` + ListClass + `" role="listbox" aria-label="Search suggestions"></ul>`)
		list = parent.ChildrenFiltered("ul." + ListClass).First()
	}
	return list
}

// List is the suggestion list element.
func (c *Controller) List() *goquery.Selection { return c.list }

// Session returns a copy of the current session.
func (c *Controller) Session() Session {
	s := c.session
	s.Suggestions = append([]string(nil), c.session.Suggestions...)
	return s
}

// OnInput records the new term. Short terms close the list at once; longer
// ones schedule a lookup after the quiet period.
func (c *Controller) OnInput(term string) tea.Cmd {
	term = strings.TrimSpace(term)
	c.session.Term = term
	c.debouncer.Cancel(keyBlur)
	if utf8.RuneCountInString(term) < MinTermLength {
		c.abandon()
		c.clear()
		return nil
	}
	return c.debouncer.Schedule(keyInput, c.inputDelay, term)
}

// OnKey handles navigation keys while the list is open. Handled keys other
// than Escape are prevented.
func (c *Controller) OnKey(ev *dom.Event) {
	n := len(c.session.Suggestions)
	if !c.session.Open || n == 0 {
		return
	}
	switch ev.Key {
	case dom.KeyArrowDown:
		ev.PreventDefault()
		c.setActive((c.session.Active + 1) % n)
	case dom.KeyArrowUp:
		ev.PreventDefault()
		if c.session.Active <= 0 {
			c.setActive(n - 1)
		} else {
			c.setActive(c.session.Active - 1)
		}
	case dom.KeyEnter:
		ev.PreventDefault()
		if c.session.Active >= 0 {
			c.commit(c.session.Active)
		}
	case dom.KeyEscape:
		c.abandon()
		c.clear()
	}
}

// OnSelect commits the suggestion at index, as a pointer press does.
func (c *Controller) OnSelect(index int) {
	if !c.session.Open || index < 0 || index >= len(c.session.Suggestions) {
		return
	}
	c.commit(index)
}

// OnBlur closes the list after a grace period so a pointer press on an item
// still lands. Typing again before the period ends keeps the list.
func (c *Controller) OnBlur() tea.Cmd {
	return c.debouncer.Schedule(keyBlur, c.blurDelay, nil)
}

// ItemIndex returns the index encoded in a suggestion item's id.
func ItemIndex(item *goquery.Selection) (int, bool) {
	id := item.AttrOr("id", "")
	if !strings.HasPrefix(id, ItemIDPrefix) {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimPrefix(id, ItemIDPrefix))
	return i, err == nil
}

// UpdateTimer handles this controller's fired timers and reports whether
// msg belonged to it.
func (c *Controller) UpdateTimer(msg debounce.FiredMsg) (tea.Cmd, bool) {
	if msg.Owner != Owner {
		return nil, false
	}
	if !c.debouncer.Accept(msg) {
		return nil, true
	}
	switch msg.Key {
	case keyInput:
		term, _ := msg.Payload.(string)
		return c.dispatch(term), true
	case keyBlur:
		c.log.V(1).Info("autocomplete closed on blur")
		// A pending lookup is newer than the blur and still runs.
		c.session.Seq++
		c.clear()
	}
	return nil, true
}

// Update applies a lookup result if it answers the latest request.
func (c *Controller) Update(msg ResultMsg) {
	if msg.Seq != c.session.Seq {
		metrics.StaleResponsesTotal.WithLabelValues(metrics.KindAutocomplete).Inc()
		c.log.V(1).Info("stale suggestions dropped", "seq", msg.Seq, "current", c.session.Seq, "term", msg.Term)
		return
	}
	if msg.Err != nil {
		c.log.Error(msg.Err, "autocomplete lookup failed", "term", msg.Term)
		c.clear()
		return
	}
	c.render(msg.Suggestions)
}

// Stop cancels pending timers and invalidates requests in flight.
func (c *Controller) Stop() {
	c.debouncer.Stop()
	c.session.Seq++
}

func (c *Controller) dispatch(term string) tea.Cmd {
	c.session.Seq++
	seq := c.session.Seq
	u, err := c.requests.Build(url.Values{"_action": {ActionName}, "term": {term}}, nil)
	if err != nil {
		if !errors.Is(err, form.ErrFormNotFound) {
			c.log.Error(err, "build autocomplete request", "term", term)
		}
		c.clear()
		return nil
	}
	c.log.V(1).Info("autocomplete lookup", "term", term, "seq", seq)
	ctx, fetcher := c.ctx, c.fetcher
	return func() tea.Msg {
		suggestions, err := fetcher.Suggestions(ctx, u)
		if err != nil {
			err = fmt.Errorf("autocomplete %q: %w", term, err)
		}
		return ResultMsg{Seq: seq, Term: term, Suggestions: suggestions, Err: err}
	}
}

// abandon cancels the pending lookup and any response still in flight.
func (c *Controller) abandon() {
	c.debouncer.Cancel(keyInput)
	c.session.Seq++
}

func (c *Controller) commit(index int) {
	value := c.session.Suggestions[index]
	dom.SetValue(c.input, value)
	c.session.Term = value
	c.abandon()
	c.clear()
}

func (c *Controller) clear() {
	c.list.Empty()
	dom.Hide(c.list)
	c.list.RemoveAttr("aria-activedescendant")
	c.list.SetAttr("aria-expanded", "false")
	c.session.Suggestions = nil
	c.session.Active = -1
	c.session.Open = false
}

func (c *Controller) render(suggestions []string) {
	c.clear()
	if len(suggestions) > MaxSuggestions {
		suggestions = suggestions[:MaxSuggestions]
	}
	if len(suggestions) == 0 {
		return
	}
	var b strings.Builder
	for i, s := range suggestions {
		fmt.Fprintf(&b, `<li class="%s" id="%s%d" role="option">%s</li>`, ItemClass, ItemIDPrefix, i, html.EscapeString(s))
	}
	c.list.AppendHtml(b.String())
	dom.SetDisplay(c.list, "block")
	c.list.SetAttr("aria-expanded", "true")
	c.session.Suggestions = append([]string(nil), suggestions...)
	c.session.Open = true
}

func (c *Controller) setActive(index int) {
	items := c.list.ChildrenFiltered("li." + ItemClass)
	items.RemoveClass(ActiveClass)
	item := items.Eq(index)
	if item.Length() == 0 {
		return
	}
	item.AddClass(ActiveClass)
	c.list.SetAttr("aria-activedescendant", item.AttrOr("id", ""))
	c.session.Active = index
}
