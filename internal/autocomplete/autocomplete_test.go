package autocomplete

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/facetview/internal/dom"
	"github.com/oakwood-commons/facetview/internal/form"
	"github.com/oakwood-commons/facetview/internal/metrics"
	fixtures "github.com/oakwood-commons/facetview/internal/testutil"
)

type fakeFetcher struct {
	calls   []*url.URL
	results map[string][]string
	err     error
}

func (f *fakeFetcher) Suggestions(_ context.Context, u *url.URL) ([]string, error) {
	f.calls = append(f.calls, u)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[u.Query().Get("term")], nil
}

type fixture struct {
	c       *Controller
	doc     *dom.Document
	input   *goquery.Selection
	fetcher *fakeFetcher
	timers  *fixtures.Timers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doc := fixtures.Page{Autocomplete: true, Filters: []string{"type:book"}}.Parse(t, "https://example.org/search")
	fetcher := &fakeFetcher{results: map[string][]string{
		"lo":  {"london", "los angeles"},
		"lon": {"london", "long island", "longitude"},
		"ma":  {"madrid", "manila", "marseille", "mayotte", "malta"},
	}}
	timers := &fixtures.Timers{}
	input := doc.Find("#facetview_freetext")
	c, err := New(Config{
		Input:     input,
		Fetcher:   fetcher,
		Requests:  form.Builder{Doc: doc, Selector: "#facetview_search"},
		Scheduler: timers.Scheduler(),
		Logger:    logr.Discard(),
	})
	require.NoError(t, err)
	return &fixture{c: c, doc: doc, input: input, fetcher: fetcher, timers: timers}
}

// typeTerm feeds an input event and lets its timer fire, returning the
// lookup command.
func (f *fixture) typeTerm(t *testing.T, term string) func() ResultMsg {
	t.Helper()
	dom.SetValue(f.input, term)
	require.NotNil(t, f.c.OnInput(term))
	cmd, ok := f.c.UpdateTimer(f.timers.Last(t))
	require.True(t, ok)
	require.NotNil(t, cmd)
	return func() ResultMsg { return cmd().(ResultMsg) }
}

func (f *fixture) open(t *testing.T, term string) {
	t.Helper()
	f.c.Update(f.typeTerm(t, term)())
	require.True(t, f.c.Session().Open)
}

func (f *fixture) key(key string) *dom.Event {
	ev := dom.NewKeyEvent(f.input, key)
	f.c.OnKey(ev)
	return ev
}

func items(list *goquery.Selection) []string {
	var out []string
	list.Find("li." + ItemClass).Each(func(_ int, li *goquery.Selection) {
		out = append(out, li.Text())
	})
	return out
}

func TestNewWrapsInput(t *testing.T) {
	f := newFixture(t)

	wrapper := f.input.Parent()
	assert.True(t, wrapper.HasClass(WrapperClass))
	assert.Equal(t, "facetview_search", wrapper.Parent().AttrOr("id", ""))

	list := f.c.List()
	assert.Equal(t, "listbox", list.AttrOr("role", ""))
	assert.Equal(t, "Search suggestions", list.AttrOr("aria-label", ""))
	assert.Equal(t, dom.DisplayNone, dom.Display(list))

	again, err := New(Config{Input: f.input, Fetcher: f.fetcher, Requests: form.Builder{Doc: f.doc, Selector: "#facetview_search"}, Logger: logr.Discard()})
	require.NoError(t, err)
	assert.Equal(t, 1, f.doc.Find("."+WrapperClass).Length())
	assert.Equal(t, 1, f.doc.Find("ul."+ListClass).Length())
	assert.Same(t, dom.Node(list), dom.Node(again.List()))
}

func TestNewWithoutInput(t *testing.T) {
	_, err := New(Config{Input: &goquery.Selection{}})
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestEndToEndTypeNavigateCommit(t *testing.T) {
	f := newFixture(t)

	lookup := f.typeTerm(t, "lo")
	assert.Equal(t, InputDelay, f.timers.Delays[0])
	msg := lookup()
	require.Len(t, f.fetcher.calls, 1)
	q := f.fetcher.calls[0].Query()
	assert.Equal(t, "lo", q.Get("term"))
	assert.Equal(t, "autocomplete", q.Get("_action"))
	assert.Equal(t, []string{"type:book"}, q["fq"])

	f.c.Update(msg)
	assert.Equal(t, []string{"london", "los angeles"}, items(f.c.List()))
	assert.Equal(t, "block", dom.Display(f.c.List()))
	assert.Equal(t, "true", f.c.List().AttrOr("aria-expanded", ""))

	ev := f.key(dom.KeyEnter)
	assert.True(t, ev.DefaultPrevented(), "Enter is consumed while the list is open")
	assert.True(t, f.c.Session().Open)
	assert.Equal(t, "lo", dom.Value(f.input))

	assert.True(t, f.key(dom.KeyArrowDown).DefaultPrevented())
	assert.Equal(t, 0, f.c.Session().Active)
	assert.Equal(t, "autocomplete-item-0", f.c.List().AttrOr("aria-activedescendant", ""))
	assert.True(t, f.c.List().Find("#autocomplete-item-0").HasClass(ActiveClass))

	f.key(dom.KeyEnter)
	assert.Equal(t, "london", dom.Value(f.input))
	s := f.c.Session()
	assert.False(t, s.Open)
	assert.Equal(t, -1, s.Active)
	assert.Empty(t, items(f.c.List()))
	_, has := f.c.List().Attr("aria-activedescendant")
	assert.False(t, has)
}

func TestKeyboardWraps(t *testing.T) {
	f := newFixture(t)
	f.open(t, "ma")
	require.Len(t, f.c.Session().Suggestions, 5)

	f.key(dom.KeyArrowUp)
	assert.Equal(t, 4, f.c.Session().Active)
	f.key(dom.KeyArrowDown)
	assert.Equal(t, 0, f.c.Session().Active)
	f.key(dom.KeyArrowUp)
	assert.Equal(t, 4, f.c.Session().Active)
	assert.Equal(t, 1, f.c.List().Find("."+ActiveClass).Length())
}

func TestOtherKeysAreIgnored(t *testing.T) {
	f := newFixture(t)
	f.open(t, "ma")

	ev := f.key("a")
	assert.False(t, ev.DefaultPrevented())
	assert.Equal(t, -1, f.c.Session().Active)
}

func TestKeysIgnoredWhenClosed(t *testing.T) {
	f := newFixture(t)
	for _, k := range []string{dom.KeyArrowDown, dom.KeyArrowUp, dom.KeyEnter, dom.KeyEscape} {
		ev := f.key(k)
		assert.False(t, ev.DefaultPrevented(), k)
	}
	assert.Equal(t, -1, f.c.Session().Active)
}

func TestEscapeClosesWithoutCommit(t *testing.T) {
	f := newFixture(t)
	f.open(t, "lo")
	f.key(dom.KeyArrowDown)

	ev := f.key(dom.KeyEscape)
	assert.False(t, ev.DefaultPrevented())
	assert.False(t, f.c.Session().Open)
	assert.Equal(t, "lo", dom.Value(f.input))
}

func TestOnlyLastKeystrokeDispatches(t *testing.T) {
	f := newFixture(t)

	f.c.OnInput("lo")
	f.c.OnInput("lon")
	require.Len(t, f.timers.Scheduled, 2)

	cmd, ok := f.c.UpdateTimer(f.timers.Scheduled[0])
	assert.True(t, ok)
	assert.Nil(t, cmd)

	cmd, _ = f.c.UpdateTimer(f.timers.Scheduled[1])
	require.NotNil(t, cmd)
	cmd()
	require.Len(t, f.fetcher.calls, 1)
	assert.Equal(t, "lon", f.fetcher.calls[0].Query().Get("term"))
}

func TestStaleResponseIsDropped(t *testing.T) {
	f := newFixture(t)
	before := testutil.ToFloat64(metrics.StaleResponsesTotal.WithLabelValues(metrics.KindAutocomplete))

	first := f.typeTerm(t, "lo")
	second := f.typeTerm(t, "lon")

	newer := second()
	older := first()
	f.c.Update(newer)
	f.c.Update(older)

	assert.Equal(t, []string{"london", "long island", "longitude"}, items(f.c.List()))
	assert.Equal(t, newer.Seq, f.c.Session().Seq)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.StaleResponsesTotal.WithLabelValues(metrics.KindAutocomplete)))
}

func TestShortTermClosesAndInvalidates(t *testing.T) {
	f := newFixture(t)
	f.open(t, "lo")

	inflight := f.typeTerm(t, "lon")
	assert.Nil(t, f.c.OnInput("l"))
	assert.False(t, f.c.Session().Open)

	f.c.Update(inflight())
	assert.False(t, f.c.Session().Open, "a late response cannot reopen the list")
	assert.Empty(t, items(f.c.List()))
}

func TestShortTermCancelsPendingLookup(t *testing.T) {
	f := newFixture(t)
	f.c.OnInput("lo")
	pending := f.timers.Last(t)
	f.c.OnInput("")

	cmd, ok := f.c.UpdateTimer(pending)
	assert.True(t, ok)
	assert.Nil(t, cmd)
}

func TestMultibyteTermLength(t *testing.T) {
	f := newFixture(t)
	assert.Nil(t, f.c.OnInput("é"))
	assert.NotNil(t, f.c.OnInput("éa"))
}

func TestSuggestionsAreCapped(t *testing.T) {
	f := newFixture(t)
	f.fetcher.results["xx"] = fixtures.Values(14)
	f.open(t, "xx")
	assert.Len(t, items(f.c.List()), MaxSuggestions)
	assert.Equal(t, "autocomplete-item-9", f.c.List().Find("li").Last().AttrOr("id", ""))
}

func TestEmptyResultClosesList(t *testing.T) {
	f := newFixture(t)
	f.open(t, "lo")
	f.c.Update(f.typeTerm(t, "zz")())
	assert.False(t, f.c.Session().Open)
	assert.Equal(t, dom.DisplayNone, dom.Display(f.c.List()))
}

func TestFailureClearsList(t *testing.T) {
	f := newFixture(t)
	f.open(t, "lo")
	f.fetcher.err = errors.New("503")

	f.c.Update(f.typeTerm(t, "lon")())
	assert.False(t, f.c.Session().Open)
	assert.Empty(t, items(f.c.List()))

	f.fetcher.err = nil
	f.open(t, "lon")
}

func TestPointerSelectCommits(t *testing.T) {
	f := newFixture(t)
	f.open(t, "lon")

	item := f.c.List().Find("#autocomplete-item-1")
	i, ok := ItemIndex(item)
	require.True(t, ok)
	f.c.OnSelect(i)

	assert.Equal(t, "long island", dom.Value(f.input))
	assert.False(t, f.c.Session().Open)

	f.c.OnSelect(0)
	assert.Equal(t, "long island", dom.Value(f.input), "no commit while closed")
}

func TestBlurClosesAfterGrace(t *testing.T) {
	f := newFixture(t)
	f.open(t, "lo")

	require.NotNil(t, f.c.OnBlur())
	assert.Equal(t, BlurDelay, f.timers.Delays[len(f.timers.Delays)-1])
	assert.True(t, f.c.Session().Open, "still open during the grace period")

	f.c.OnSelect(1)
	assert.Equal(t, "los angeles", dom.Value(f.input))

	_, ok := f.c.UpdateTimer(f.timers.Last(t))
	assert.True(t, ok)
	assert.False(t, f.c.Session().Open)
}

func TestBlurInvalidatesInflight(t *testing.T) {
	f := newFixture(t)
	inflight := f.typeTerm(t, "lo")

	f.c.OnBlur()
	f.c.UpdateTimer(f.timers.Last(t))
	f.c.Update(inflight())
	assert.False(t, f.c.Session().Open)
}

func TestInputAfterBlurStillLooksUp(t *testing.T) {
	f := newFixture(t)
	f.c.OnBlur()
	blur := f.timers.Last(t)
	dom.SetValue(f.input, "lon")
	require.NotNil(t, f.c.OnInput("lon"))
	input := f.timers.Last(t)

	cmd, ok := f.c.UpdateTimer(blur)
	assert.True(t, ok)
	assert.Nil(t, cmd)
	cmd, ok = f.c.UpdateTimer(input)
	require.True(t, ok)
	require.NotNil(t, cmd)
	f.c.Update(cmd().(ResultMsg))

	require.Len(t, f.fetcher.calls, 1)
	assert.Equal(t, "lon", f.fetcher.calls[0].Query().Get("term"))
	assert.True(t, f.c.Session().Open)
	assert.Equal(t, []string{"london", "long island", "longitude"}, f.c.Session().Suggestions)
}

func TestBlurKeepsPendingLookup(t *testing.T) {
	f := newFixture(t)
	dom.SetValue(f.input, "lon")
	require.NotNil(t, f.c.OnInput("lon"))
	input := f.timers.Last(t)
	f.c.OnBlur()

	f.c.UpdateTimer(f.timers.Last(t))
	assert.False(t, f.c.Session().Open)
	cmd, ok := f.c.UpdateTimer(input)
	require.True(t, ok)
	require.NotNil(t, cmd)
	assert.Len(t, f.fetcher.calls, 0)
	cmd()
	assert.Len(t, f.fetcher.calls, 1)
}

func TestStopDropsEverything(t *testing.T) {
	f := newFixture(t)
	inflight := f.typeTerm(t, "lo")
	f.c.OnInput("lon")
	pending := f.timers.Last(t)

	f.c.Stop()
	cmd, _ := f.c.UpdateTimer(pending)
	assert.Nil(t, cmd)
	f.c.Update(inflight())
	assert.False(t, f.c.Session().Open)
}

func TestItemIndex(t *testing.T) {
	doc := fixtures.ParseHTML(t, `<li id="autocomplete-item-7"></li><li id="other"></li>`, "https://example.org/")
	i, ok := ItemIndex(doc.Find("li").First())
	assert.True(t, ok)
	assert.Equal(t, 7, i)
	_, ok = ItemIndex(doc.Find("li").Last())
	assert.False(t, ok)
}
