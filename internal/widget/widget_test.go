package widget

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/facetview/internal/autocomplete"
	"github.com/oakwood-commons/facetview/internal/dom"
	"github.com/oakwood-commons/facetview/internal/facetbox"
	"github.com/oakwood-commons/facetview/internal/preview"
	"github.com/oakwood-commons/facetview/internal/refine"
	"github.com/oakwood-commons/facetview/internal/testutil"
)

type fakeFetcher struct {
	mu          sync.Mutex
	suggestions map[string][]string
	fragment    string
	calls       []url.Values
	ctxs        []context.Context
}

func (f *fakeFetcher) record(ctx context.Context, u *url.URL) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, u.Query())
	f.ctxs = append(f.ctxs, ctx)
}

func (f *fakeFetcher) Suggestions(ctx context.Context, u *url.URL) ([]string, error) {
	f.record(ctx, u)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.suggestions[u.Query().Get("term")], nil
}

func (f *fakeFetcher) Fragment(ctx context.Context, u *url.URL) (string, error) {
	f.record(ctx, u)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.fragment, nil
}

func fullPage() testutil.Page {
	values := testutil.Values(15)
	values[2] = "library science"
	values[7] = "Liberal arts"
	values[13] = "public libraries"
	return testutil.Page{
		Action:       "/cgi/search",
		Query:        "",
		Filters:      []string{"type:book"},
		Autocomplete: true,
		Select:       []string{"year:2020", "year:2021"},
		Boxes: []testutil.FacetBox{
			{Field: "subject", Values: values},
			{Field: "type", Values: []string{"article", "book"}, Preview: true},
		},
	}
}

type harness struct {
	t       *testing.T
	w       *Widget
	doc     *dom.Document
	fetcher *fakeFetcher
	timers  *testutil.Timers
	// host collects messages the widget does not consume.
	host []tea.Msg
}

func newHarness(t *testing.T, page testutil.Page, opts ...Option) *harness {
	t.Helper()
	doc := page.Parse(t, "https://repo.example.org/search")
	h := &harness{
		t:   t,
		doc: doc,
		fetcher: &fakeFetcher{
			suggestions: map[string][]string{"lo": {"london", "los angeles"}},
			fragment:    `<p class="preview-hits">3 results</p>`,
		},
		timers: &testutil.Timers{},
	}
	opts = append([]Option{
		WithFetcher(h.fetcher),
		WithScheduler(h.timers.Scheduler()),
		WithLogger(logr.Discard()),
	}, opts...)
	w, err := Attach(doc, opts...)
	require.NoError(t, err)
	h.w = w
	return h
}

// drive runs cmd and feeds every resulting message back into the widget
// until nothing is left.
func (h *harness) drive(cmd tea.Cmd) {
	for _, msg := range testutil.Run(cmd) {
		switch msg.(type) {
		case refine.NavigateMsg:
			h.host = append(h.host, msg)
		default:
			h.drive(h.w.Update(msg))
		}
	}
}

func (h *harness) send(ev *dom.Event) *dom.Event {
	h.drive(h.w.Update(ev))
	return ev
}

func (h *harness) find(sel string) *goquery.Selection {
	return h.doc.Find(sel)
}

func TestAttachRequiresRoot(t *testing.T) {
	doc := testutil.ParseHTML(t, `<p>plain page</p>`, "https://example.org/")
	_, err := Attach(doc, WithLogger(logr.Discard()))
	assert.True(t, errors.Is(err, ErrRootNotFound))
}

func TestAttachRejectsBadSelector(t *testing.T) {
	doc := fullPage().Parse(t, "https://example.org/")
	_, err := Attach(doc, WithLogger(logr.Discard()), WithSelectors(Selectors{ShowMore: "button["}))
	assert.Error(t, err)
}

func TestAttachInitializes(t *testing.T) {
	h := newHarness(t, fullPage())

	boxes := h.w.Boxes()
	require.Len(t, boxes, 2)
	assert.Equal(t, 10, boxes[0].Visible)
	assert.False(t, boxes[0].Expanded)

	assert.Equal(t, []string{
		RouteSuggestionPick, RoutePreviewClick, RouteShowMore, RoutePreviewKey, RoutePreviewDismiss,
		RouteFacetSelect, RouteFilterInput, RouteFilterEscape, RouteSuggestInput, RouteSuggestKey, RouteSuggestBlur,
	}, h.w.Routes())
	assert.Equal(t, 1, h.find("."+autocomplete.WrapperClass+" > #facetview_freetext").Length())
}

func TestAttachWithoutAutocomplete(t *testing.T) {
	page := fullPage()
	page.Autocomplete = false
	h := newHarness(t, page)

	_, ok := h.w.Autocomplete()
	assert.False(t, ok)
	assert.NotContains(t, h.w.Routes(), RouteSuggestInput)
	assert.Equal(t, 0, h.w.SuggestionList().Length())

	ev := h.send(dom.NewValueEvent(dom.Input, h.find("#facetview_freetext"), "lo"))
	assert.False(t, ev.DefaultPrevented())
	assert.Empty(t, h.fetcher.calls)
}

func TestShowMoreClick(t *testing.T) {
	h := newHarness(t, fullPage())
	ev := h.send(dom.NewEvent(dom.Click, h.find(".facet_show_more").First()))

	assert.True(t, ev.DefaultPrevented())
	assert.Equal(t, 15, h.w.Boxes()[0].Visible)
	assert.Equal(t, facetbox.LabelShowLess, h.find(".facet_show_more").First().Text())
}

func TestFilterInputThenEscape(t *testing.T) {
	h := newHarness(t, fullPage())
	input := h.find(".facet_search_input").First()

	h.send(dom.NewValueEvent(dom.Input, input, "l"))
	h.send(dom.NewValueEvent(dom.Input, input, "Lib"))

	box := h.w.Boxes()[0]
	assert.Equal(t, "lib", box.Term)
	assert.Equal(t, 3, box.Visible)
	assert.True(t, box.ButtonHidden)
	assert.Equal(t, "Lib", dom.Value(input))
	assert.Contains(t, h.timers.Delays, facetbox.FilterDelay)

	h.send(dom.NewKeyEvent(input, dom.KeyEscape))
	box = h.w.Boxes()[0]
	assert.Equal(t, "", box.Term)
	assert.Equal(t, 10, box.Visible)
	assert.Equal(t, "", dom.Value(input))
}

func TestPreviewLifecycle(t *testing.T) {
	h := newHarness(t, fullPage())
	toggle := h.find(".facet_preview_toggle").Last()
	node := dom.Node(toggle)

	ev := h.send(dom.NewEvent(dom.Click, toggle))
	assert.True(t, ev.DefaultPrevented())
	assert.Equal(t, preview.Shown, h.w.Preview(node).Phase)
	assert.Equal(t, "3 results", toggle.Closest("li").Find(".preview-hits").Text())

	require.Len(t, h.fetcher.calls, 1)
	q := h.fetcher.calls[0]
	assert.Equal(t, "facet_preview", q.Get("_action"))
	assert.Equal(t, "type:book", q.Get("preview_fq"))

	ev = h.send(dom.NewKeyEvent(toggle, dom.KeyEnter))
	assert.True(t, ev.DefaultPrevented())
	assert.Equal(t, preview.Hidden, h.w.Preview(node).Phase)

	h.send(dom.NewKeyEvent(toggle, dom.KeySpace))
	assert.Equal(t, preview.Shown, h.w.Preview(node).Phase)
}

func TestPreviewEscapeMidFetch(t *testing.T) {
	h := newHarness(t, fullPage())
	toggle := h.find(".facet_preview_toggle").First()
	node := dom.Node(toggle)

	fetchCmd := h.w.Update(dom.NewEvent(dom.Click, toggle))
	require.NotNil(t, fetchCmd)
	assert.Equal(t, preview.Loading, h.w.Preview(node).Phase)

	esc := h.send(dom.NewKeyEvent(toggle, dom.KeyEscape))
	assert.True(t, esc.DefaultPrevented())
	assert.Equal(t, preview.Hidden, h.w.Preview(node).Phase)

	h.drive(fetchCmd)
	assert.Equal(t, preview.Hidden, h.w.Preview(node).Phase)
	assert.Equal(t, 0, toggle.Closest("li").Find(".facet_preview_container").Children().Length())
}

func TestAutocompleteScenario(t *testing.T) {
	h := newHarness(t, fullPage())
	input := h.find("#facetview_freetext")

	h.send(dom.NewValueEvent(dom.Input, input, "l"))
	h.send(dom.NewValueEvent(dom.Input, input, "lo"))

	require.Len(t, h.fetcher.calls, 1)
	assert.Equal(t, "lo", h.fetcher.calls[0].Get("term"))
	assert.Equal(t, autocomplete.InputDelay, h.timers.Delays[0])

	s, ok := h.w.Autocomplete()
	require.True(t, ok)
	assert.Equal(t, []string{"london", "los angeles"}, s.Suggestions)

	enter := h.send(dom.NewKeyEvent(input, dom.KeyEnter))
	assert.True(t, enter.DefaultPrevented())
	assert.Equal(t, "lo", dom.Value(input))

	h.send(dom.NewKeyEvent(input, dom.KeyArrowDown))
	h.send(dom.NewKeyEvent(input, dom.KeyEnter))
	assert.Equal(t, "london", dom.Value(input))
	s, _ = h.w.Autocomplete()
	assert.False(t, s.Open)
}

func TestSuggestionPointerDown(t *testing.T) {
	h := newHarness(t, fullPage())
	input := h.find("#facetview_freetext")
	h.send(dom.NewValueEvent(dom.Input, input, "lo"))

	ev := h.send(dom.NewEvent(dom.PointerDown, h.w.SuggestionList().Find("#autocomplete-item-1")))
	assert.True(t, ev.DefaultPrevented())
	assert.Equal(t, "los angeles", dom.Value(input))
}

func TestBlurClosesSuggestions(t *testing.T) {
	h := newHarness(t, fullPage())
	input := h.find("#facetview_freetext")
	h.send(dom.NewValueEvent(dom.Input, input, "lo"))

	h.send(dom.NewEvent(dom.Blur, input))
	s, _ := h.w.Autocomplete()
	assert.False(t, s.Open)
	assert.Contains(t, h.timers.Delays, autocomplete.BlurDelay)
}

func TestFreetextOutsideRoot(t *testing.T) {
	page := fullPage()
	page.FreetextOutside = true
	h := newHarness(t, page)

	h.send(dom.NewValueEvent(dom.Input, h.find("#facetview_freetext"), "lo"))
	s, ok := h.w.Autocomplete()
	require.True(t, ok)
	assert.True(t, s.Open)
}

func TestFacetSelectNavigates(t *testing.T) {
	h := newHarness(t, fullPage())
	sel := h.find(".facet_select")

	h.send(dom.NewValueEvent(dom.Change, sel, "year:2021"))
	require.Len(t, h.host, 1)
	nav := h.host[0].(refine.NavigateMsg)
	assert.Equal(t, "/cgi/search", nav.URL.Path)
	assert.Equal(t, []string{"type:book", "year:2021"}, nav.URL.Query()["fq"])
	assert.True(t, sel.HasClass(refine.LoadingClass))
}

func TestSubmit(t *testing.T) {
	h := newHarness(t, fullPage())
	dom.SetValue(h.find("#facetview_freetext"), "rivers")

	h.drive(h.w.Submit())
	require.Len(t, h.host, 1)
	nav := h.host[0].(refine.NavigateMsg)
	assert.Equal(t, "https://repo.example.org/cgi/search?q=rivers&fq=type%3Abook&facet_pick=", nav.URL.String())

	h.w.Detach()
	assert.Nil(t, h.w.Submit())
}

func TestUnroutedEventsAreIgnored(t *testing.T) {
	h := newHarness(t, fullPage())
	ev := dom.NewEvent(dom.Click, h.find("h3").First())
	assert.False(t, h.w.Handles(ev))
	assert.Nil(t, h.w.Update(ev))
	assert.Nil(t, h.w.Update("unrelated"))
}

func TestDetach(t *testing.T) {
	h := newHarness(t, fullPage())
	input := h.find("#facetview_freetext")
	toggle := h.find(".facet_preview_toggle").First()

	fetchCmd := h.w.Update(dom.NewEvent(dom.Click, toggle))
	require.NotNil(t, fetchCmd)
	pending := h.w.Update(dom.NewValueEvent(dom.Input, input, "lo"))
	require.NotNil(t, pending)

	h.w.Detach()
	h.w.Detach()
	assert.True(t, h.w.Detached())

	h.drive(fetchCmd)
	h.drive(pending)
	assert.Equal(t, preview.Loading, h.w.Preview(dom.Node(toggle)).Phase)
	require.Len(t, h.fetcher.ctxs, 1)
	assert.ErrorIs(t, h.fetcher.ctxs[0].Err(), context.Canceled)

	assert.Nil(t, h.w.Update(dom.NewEvent(dom.Click, h.find(".facet_show_more").First())))
	assert.Equal(t, 10, h.w.Boxes()[0].Visible)
}

func TestCustomSelectors(t *testing.T) {
	raw := `<section id="facets">
<form id="search"><input name="q"></form>
<div class="facet" data-field="lang"><ul class="facetview_values"><li>en</li><li>de</li></ul></div>
</section>`
	doc := testutil.ParseHTML(t, raw, "https://example.org/")
	w, err := Attach(doc, WithLogger(logr.Discard()), WithFetcher(&fakeFetcher{}), WithSelectors(Selectors{Root: "#facets", Form: "#search", Box: ".facet"}))
	require.NoError(t, err)

	assert.Equal(t, "#facets", w.Selectors().Root)
	assert.Equal(t, DefaultSelectors().ShowMore, w.Selectors().ShowMore)
	require.Len(t, w.Boxes(), 1)
	assert.Equal(t, "lang", w.Boxes()[0].Field)
}
