// Package facetbox drives the facet value lists: live substring filtering
// and the show more / show less toggle, which together decide which rows of
// a box are displayed.
package facetbox

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/go-logr/logr"
	"golang.org/x/net/html"

	"github.com/oakwood-commons/facetview/internal/debounce"
	"github.com/oakwood-commons/facetview/internal/dom"
)

const (
	// Owner tags this controller's debounce messages.
	Owner = "facetbox"

	// VisibleThreshold is the number of rows a collapsed box displays.
	VisibleThreshold = 10
	// FilterDelay is the quiet period before a filter term is applied.
	FilterDelay = 300 * time.Millisecond

	LabelShowMore = "Show More"
	LabelShowLess = "Show Less"
	ExpandedClass = "facet-expanded"
)

// Selectors locate the parts of a facet box.
type Selectors struct {
	Box      string
	Rows     string
	Label    string
	ShowMore string
}

// DefaultSelectors match the markup the search page renders.
func DefaultSelectors() Selectors {
	return Selectors{
		Box:      ".ep_solr_facet_box",
		Rows:     "ul.facetview_values > li",
		Label:    ".facetview_filterchoice, .facetview_filterselected",
		ShowMore: ".facet_show_more",
	}
}

// Config wires a Controller to its document.
type Config struct {
	Root      *goquery.Selection
	Selectors Selectors
	Delay     time.Duration
	Scheduler debounce.Scheduler
	Logger    logr.Logger
}

// Box is a read-only view of one facet box.
type Box struct {
	Field        string
	Expanded     bool
	Term         string
	Rows         int
	Matching     int
	Visible      int
	ButtonHidden bool
	Label        string
}

type boxState struct {
	expanded bool
	term     string
}

type filterRequest struct {
	input *html.Node
	term  string
}

// Controller owns the view state of every facet box under the root.
type Controller struct {
	root      *goquery.Selection
	sel       Selectors
	boxMatch  cascadia.Selector
	delay     time.Duration
	debouncer *debounce.Debouncer
	log       logr.Logger

	boxes  map[*html.Node]*boxState
	keys   map[*html.Node]string
	nextID int
}

// New validates the selectors and returns a controller. Call Init once the
// document is ready.
func New(cfg Config) (*Controller, error) {
	for _, s := range []string{cfg.Selectors.Box, cfg.Selectors.Rows, cfg.Selectors.Label, cfg.Selectors.ShowMore} {
		if _, err := cascadia.Compile(s); err != nil {
			return nil, fmt.Errorf("facet box selector %q: %w", s, err)
		}
	}
	delay := cfg.Delay
	if delay <= 0 {
		delay = FilterDelay
	}
	return &Controller{
		root:      cfg.Root,
		sel:       cfg.Selectors,
		boxMatch:  cascadia.MustCompile(cfg.Selectors.Box),
		delay:     delay,
		debouncer: debounce.New(Owner, cfg.Scheduler),
		log:       cfg.Logger,
		boxes:     make(map[*html.Node]*boxState),
		keys:      make(map[*html.Node]string),
	}, nil
}

// Init collapses every box that has a show-more control. Boxes without one
// stay expanded since nothing could reveal their hidden rows.
func (c *Controller) Init() {
	c.root.Find(c.sel.Box).Each(func(_ int, box *goquery.Selection) {
		st := c.state(dom.Node(box))
		st.expanded = box.Find(c.sel.ShowMore).Length() == 0
		c.apply(box, st)
	})
}

// OnShowMoreToggle flips the expanded flag of the button's box. The box is
// found by ancestry, so a button without data-field still works.
func (c *Controller) OnShowMoreToggle(button *html.Node) {
	box := c.boxOf(button)
	if box == nil {
		return
	}
	st := c.state(box)
	st.expanded = !st.expanded
	c.log.V(1).Info("facet box toggled", "field", c.field(dom.Select(box)), "expanded", st.expanded)
	c.apply(dom.Select(box), st)
}

// OnFilterInput schedules the filter for the input's box.
func (c *Controller) OnFilterInput(input *html.Node, term string) tea.Cmd {
	if c.boxOf(input) == nil {
		return nil
	}
	req := filterRequest{input: input, term: strings.ToLower(strings.TrimSpace(term))}
	return c.debouncer.Schedule(c.key(input), c.delay, req)
}

// OnFilterEscape clears the input and restores the unfiltered view at once.
func (c *Controller) OnFilterEscape(input *html.Node) {
	if c.boxOf(input) == nil {
		return
	}
	c.debouncer.Cancel(c.key(input))
	dom.SetValue(dom.Select(input), "")
	c.filter(input, "")
}

// Update applies a fired filter timer. It reports whether msg was this
// controller's.
func (c *Controller) Update(msg debounce.FiredMsg) bool {
	if msg.Owner != Owner {
		return false
	}
	if !c.debouncer.Accept(msg) {
		return true
	}
	req, ok := msg.Payload.(filterRequest)
	if !ok {
		return true
	}
	c.log.V(1).Info("facet filter fired", "term", req.term)
	c.filter(req.input, req.term)
	return true
}

// Box reports the state of the box containing n.
func (c *Controller) Box(n *html.Node) (Box, bool) {
	box := c.boxOf(n)
	if box == nil {
		return Box{}, false
	}
	return c.snapshot(dom.Select(box), c.state(box)), true
}

// Boxes reports every box under the root in document order.
func (c *Controller) Boxes() []Box {
	var out []Box
	c.root.Find(c.sel.Box).Each(func(_ int, box *goquery.Selection) {
		out = append(out, c.snapshot(box, c.state(dom.Node(box))))
	})
	return out
}

// Stop cancels pending filter timers.
func (c *Controller) Stop() { c.debouncer.Stop() }

func (c *Controller) filter(input *html.Node, term string) {
	box := c.boxOf(input)
	if box == nil {
		return
	}
	st := c.state(box)
	st.term = term
	c.apply(dom.Select(box), st)
}

// apply recomputes row visibility from the filter term and expand flag.
func (c *Controller) apply(box *goquery.Selection, st *boxState) {
	shown := 0
	matching := 0
	box.Find(c.sel.Rows).Each(func(_ int, row *goquery.Selection) {
		if !c.matches(row, st.term) {
			dom.Hide(row)
			return
		}
		matching++
		visible := st.expanded || shown < VisibleThreshold
		if visible {
			shown++
		}
		dom.SetVisible(row, visible)
	})

	box.SetAttr("data-expanded", strconv.FormatBool(st.expanded))
	if st.expanded {
		box.AddClass(ExpandedClass)
	} else {
		box.RemoveClass(ExpandedClass)
	}

	button := box.Find(c.sel.ShowMore).First()
	if button.Length() == 0 {
		return
	}
	if st.expanded {
		button.SetText(LabelShowLess)
	} else {
		button.SetText(LabelShowMore)
	}
	dom.SetVisible(button, matching > VisibleThreshold)
}

func (c *Controller) matches(row *goquery.Selection, term string) bool {
	if term == "" {
		return true
	}
	text := row.Text()
	if label := row.Find(c.sel.Label).First(); label.Length() > 0 {
		text = label.Text()
	}
	return strings.Contains(strings.ToLower(text), term)
}

func (c *Controller) snapshot(box *goquery.Selection, st *boxState) Box {
	b := Box{Field: c.field(box), Expanded: st.expanded, Term: st.term, ButtonHidden: true}
	box.Find(c.sel.Rows).Each(func(_ int, row *goquery.Selection) {
		b.Rows++
		if c.matches(row, st.term) {
			b.Matching++
		}
		if dom.Display(row) != dom.DisplayNone {
			b.Visible++
		}
	})
	if button := box.Find(c.sel.ShowMore).First(); button.Length() > 0 {
		b.Label = strings.TrimSpace(button.Text())
		b.ButtonHidden = dom.Display(button) == dom.DisplayNone
	}
	return b
}

func (c *Controller) field(box *goquery.Selection) string {
	if f, ok := box.Attr("data-field"); ok {
		return f
	}
	return box.Find(c.sel.ShowMore).First().AttrOr("data-field", "")
}

func (c *Controller) boxOf(n *html.Node) *html.Node {
	return dom.Closest(n, c.boxMatch, dom.Node(c.root))
}

func (c *Controller) state(box *html.Node) *boxState {
	st, ok := c.boxes[box]
	if !ok {
		st = &boxState{}
		c.boxes[box] = st
	}
	return st
}

func (c *Controller) key(input *html.Node) string {
	k, ok := c.keys[input]
	if !ok {
		c.nextID++
		k = "filter-" + strconv.Itoa(c.nextID)
		c.keys[input] = k
	}
	return k
}
