package preview

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/facetview/internal/dom"
	"github.com/oakwood-commons/facetview/internal/form"
	"github.com/oakwood-commons/facetview/internal/testutil"
)

type fakeFetcher struct {
	calls   []*url.URL
	content string
	err     error
}

func (f *fakeFetcher) Fragment(_ context.Context, u *url.URL) (string, error) {
	f.calls = append(f.calls, u)
	return f.content, f.err
}

type fixture struct {
	c       *Controller
	doc     *dom.Document
	fetcher *fakeFetcher
	toggle  *goquery.Selection
}

func (f fixture) container() *goquery.Selection {
	return f.toggle.Closest("li").Find(".facet_preview_container")
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	doc := testutil.Page{
		Action: "/cgi/search",
		Query:  "solr",
		Boxes:  []testutil.FacetBox{{Field: "type", Values: []string{"article", "book"}, Preview: true}},
	}.Parse(t, "https://repo.example.org/search")
	fetcher := &fakeFetcher{content: `<ul class="hits"><li>Result</li></ul>`}
	c, err := New(Config{
		Selectors: DefaultSelectors(),
		Fetcher:   fetcher,
		Requests:  form.Builder{Doc: doc, Selector: "#facetview_search"},
		Logger:    logr.Discard(),
	})
	require.NoError(t, err)
	return fixture{c: c, doc: doc, fetcher: fetcher, toggle: doc.Find(".facet_preview_toggle").Last()}
}

func TestToggleLoadsAndShows(t *testing.T) {
	f := newFixture(t)
	toggle := dom.Node(f.toggle)

	cmd := f.c.OnToggle(toggle)
	require.NotNil(t, cmd)
	assert.Equal(t, Loading, f.c.State(toggle).Phase)
	assert.Equal(t, "block", dom.Display(f.container()))
	assert.Equal(t, 1, f.container().Find(".facet_preview_loading").Length())
	assert.Equal(t, "true", f.toggle.AttrOr("aria-expanded", ""))

	msg := cmd().(ResultMsg)
	f.c.Update(msg)

	st := f.c.State(toggle)
	assert.Equal(t, Shown, st.Phase)
	assert.Equal(t, "type", st.Field)
	assert.Equal(t, "book", st.Value)
	assert.Equal(t, "type:book", st.FilterQuery)
	assert.Equal(t, "Result", f.container().Find("ul.hits li").Text())

	require.Len(t, f.fetcher.calls, 1)
	u := f.fetcher.calls[0]
	assert.Equal(t, "https://repo.example.org/cgi/search", u.Scheme+"://"+u.Host+u.Path)
	q := u.Query()
	assert.Equal(t, "facet_preview", q.Get("_action"))
	assert.Equal(t, "type", q.Get("field"))
	assert.Equal(t, "book", q.Get("value"))
	assert.Equal(t, "type:book", q.Get("preview_fq"))
	assert.Equal(t, "solr", q.Get("q"))
}

func TestToggleWhileLoadingIsNoop(t *testing.T) {
	f := newFixture(t)
	toggle := dom.Node(f.toggle)

	first := f.c.OnToggle(toggle)
	require.NotNil(t, first)
	assert.Nil(t, f.c.OnToggle(toggle))
	assert.Nil(t, f.c.OnToggle(toggle))

	f.c.Update(first().(ResultMsg))
	assert.Len(t, f.fetcher.calls, 1)
	assert.Equal(t, Shown, f.c.State(toggle).Phase)
}

func TestRetoggleHides(t *testing.T) {
	f := newFixture(t)
	toggle := dom.Node(f.toggle)

	f.c.Update(f.c.OnToggle(toggle)().(ResultMsg))
	assert.Nil(t, f.c.OnToggle(toggle))

	assert.Equal(t, Hidden, f.c.State(toggle).Phase)
	assert.Equal(t, dom.DisplayNone, dom.Display(f.container()))
	assert.Equal(t, 0, f.container().Children().Length())
	assert.Equal(t, "false", f.toggle.AttrOr("aria-expanded", ""))
}

func TestFailureShowsErrorAndIsRetryable(t *testing.T) {
	f := newFixture(t)
	toggle := dom.Node(f.toggle)
	f.fetcher.err = errors.New("connection refused")

	f.c.Update(f.c.OnToggle(toggle)().(ResultMsg))
	st := f.c.State(toggle)
	assert.Equal(t, Error, st.Phase)
	assert.ErrorContains(t, st.Err, "connection refused")
	assert.Equal(t, "Error loading preview.", f.container().Find(".facet_preview_error").Text())

	assert.Nil(t, f.c.OnToggle(toggle))
	assert.Equal(t, Hidden, f.c.State(toggle).Phase)

	f.fetcher.err = nil
	f.c.Update(f.c.OnToggle(toggle)().(ResultMsg))
	assert.Equal(t, Shown, f.c.State(toggle).Phase)
	assert.Len(t, f.fetcher.calls, 2)
}

func TestLateResponseAfterDismissIsDiscarded(t *testing.T) {
	f := newFixture(t)
	toggle := dom.Node(f.toggle)

	cmd := f.c.OnToggle(toggle)
	require.True(t, f.c.Dismiss(toggle))
	assert.Equal(t, Hidden, f.c.State(toggle).Phase)

	f.c.Update(cmd().(ResultMsg))
	assert.Equal(t, Hidden, f.c.State(toggle).Phase)
	assert.Equal(t, dom.DisplayNone, dom.Display(f.container()))
	assert.Equal(t, 0, f.container().Children().Length())
}

func TestResponseFromEarlierCycleIsDiscarded(t *testing.T) {
	f := newFixture(t)
	toggle := dom.Node(f.toggle)

	stale := f.c.OnToggle(toggle)
	f.c.Dismiss(toggle)
	fresh := f.c.OnToggle(toggle)
	require.NotNil(t, fresh)

	f.c.Update(stale().(ResultMsg))
	assert.Equal(t, Loading, f.c.State(toggle).Phase)

	f.c.Update(fresh().(ResultMsg))
	assert.Equal(t, Shown, f.c.State(toggle).Phase)
}

func TestTogglesAreIndependent(t *testing.T) {
	f := newFixture(t)
	first := dom.Node(f.doc.Find(".facet_preview_toggle").First())
	second := dom.Node(f.toggle)

	a := f.c.OnToggle(first)
	b := f.c.OnToggle(second)
	require.NotNil(t, a)
	require.NotNil(t, b)

	f.c.Update(b().(ResultMsg))
	assert.Equal(t, Loading, f.c.State(first).Phase)
	assert.Equal(t, Shown, f.c.State(second).Phase)
}

func TestDismissWhenHidden(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.c.Dismiss(dom.Node(f.toggle)))
}

func TestMissingContainerIsNoop(t *testing.T) {
	doc := testutil.ParseHTML(t, `<form id="facetview_search"></form><a class="facet_preview_toggle" data-field="x">p</a>`, "https://example.org/")
	fetcher := &fakeFetcher{}
	c, err := New(Config{Selectors: DefaultSelectors(), Fetcher: fetcher, Requests: form.Builder{Doc: doc, Selector: "#facetview_search"}, Logger: logr.Discard()})
	require.NoError(t, err)

	assert.Nil(t, c.OnToggle(dom.Node(doc.Find(".facet_preview_toggle"))))
	assert.Empty(t, fetcher.calls)
}

func TestMissingFormIsNoop(t *testing.T) {
	doc := testutil.ParseHTML(t, `<ul><li><a class="facet_preview_toggle">p</a><div class="facet_preview_container"></div></li></ul>`, "https://example.org/")
	c, err := New(Config{Selectors: DefaultSelectors(), Fetcher: &fakeFetcher{}, Requests: form.Builder{Doc: doc, Selector: "#facetview_search"}, Logger: logr.Discard()})
	require.NoError(t, err)

	toggle := dom.Node(doc.Find(".facet_preview_toggle"))
	assert.Nil(t, c.OnToggle(toggle))
	assert.Equal(t, Hidden, c.State(toggle).Phase)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "phase(9)", Phase(9).String())
}
