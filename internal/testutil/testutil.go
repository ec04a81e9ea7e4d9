// Package testutil builds facet search fixture pages and runs Bubble Tea
// commands synchronously for controller tests.
package testutil

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/facetview/internal/debounce"
	"github.com/oakwood-commons/facetview/internal/dom"
)

// FacetBox describes one facet box of a fixture page.
type FacetBox struct {
	Field    string
	Values   []string
	Preview  bool
	NoButton bool
	NoSearch bool
}

// Page describes a search results page.
type Page struct {
	Action       string
	Query        string
	Filters      []string
	Boxes        []FacetBox
	Select       []string
	Autocomplete bool
	// FreetextOutside renders the free-text input after the widget root.
	FreetextOutside bool
}

// HTML renders the page markup.
func (p Page) HTML() string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Search</title></head><body>\n")
	b.WriteString(`<div id="ep_solr_facetview">` + "\n")
	fmt.Fprintf(&b, `<form id="facetview_search"%s>`+"\n", attr("action", p.Action))
	if !p.FreetextOutside {
		b.WriteString(p.freetext())
	}
	for _, fq := range p.Filters {
		fmt.Fprintf(&b, `<input type="hidden" name="fq" value="%s">`+"\n", html.EscapeString(fq))
	}
	b.WriteString(`<button type="submit">Search</button>` + "\n")
	if len(p.Select) > 0 {
		b.WriteString(`<select class="facet_select" name="facet_pick"><option value="">Refine…</option>`)
		for _, v := range p.Select {
			fmt.Fprintf(&b, `<option value="%s">%s</option>`, html.EscapeString(v), html.EscapeString(v))
		}
		b.WriteString("</select>\n")
	}
	b.WriteString("</form>\n")
	for _, box := range p.Boxes {
		b.WriteString(box.html())
	}
	b.WriteString("</div>\n")
	if p.FreetextOutside {
		b.WriteString(`<div id="header">` + p.freetext() + "</div>\n")
	}
	b.WriteString("</body></html>\n")
	return b.String()
}

func (p Page) freetext() string {
	ac := ""
	if p.Autocomplete {
		ac = ` data-autocomplete="true"`
	}
	return fmt.Sprintf(`<input type="text" id="facetview_freetext" name="q" value="%s"%s>`+"\n", html.EscapeString(p.Query), ac)
}

func (f FacetBox) html() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="ep_solr_facet_box" data-field="%s">`+"\n", html.EscapeString(f.Field))
	fmt.Fprintf(&b, "<h3>%s</h3>\n", html.EscapeString(f.Field))
	if !f.NoSearch {
		b.WriteString(`<input type="text" class="facet_search_input" placeholder="Filter">` + "\n")
	}
	b.WriteString(`<ul class="facetview_values">` + "\n")
	for i, v := range f.Values {
		ev := html.EscapeString(v)
		fmt.Fprintf(&b, `<li><a class="facetview_filterchoice" href="?fq=%s">%s</a> <span class="count">(%d)</span>`, url.QueryEscape(v), ev, i+1)
		if f.Preview {
			fq := html.EscapeString(f.Field + ":" + v)
			fmt.Fprintf(&b, `<a href="#" class="facet_preview_toggle" aria-expanded="false" data-field="%s" data-value="%s" data-fq="%s">preview</a>`, html.EscapeString(f.Field), ev, fq)
			b.WriteString(`<div class="facet_preview_container" style="display: none"></div>`)
		}
		b.WriteString("</li>\n")
	}
	b.WriteString("</ul>\n")
	if !f.NoButton {
		fmt.Fprintf(&b, `<button class="facet_show_more" data-field="%s">Show More</button>`+"\n", html.EscapeString(f.Field))
	}
	b.WriteString("</div>\n")
	return b.String()
}

// Parse renders and parses the page as if served from pageURL.
func (p Page) Parse(tb testing.TB, pageURL string) *dom.Document {
	tb.Helper()
	return ParseHTML(tb, p.HTML(), pageURL)
}

// ParseHTML parses raw markup as if served from pageURL.
func ParseHTML(tb testing.TB, raw, pageURL string) *dom.Document {
	tb.Helper()
	u, err := url.Parse(pageURL)
	require.NoError(tb, err)
	doc, err := dom.Parse(strings.NewReader(raw), u)
	require.NoError(tb, err)
	return doc
}

// Values returns n generated facet values, "value-01" and up.
func Values(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("value-%02d", i+1)
	}
	return out
}

func attr(name, value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf(` %s="%s"`, name, html.EscapeString(value))
}

// Timers records scheduled debounce timers instead of waiting for them.
type Timers struct {
	Scheduled []debounce.FiredMsg
	Delays    []time.Duration
}

// Scheduler records the timer and returns a command yielding its message
// immediately.
func (t *Timers) Scheduler() debounce.Scheduler {
	return func(d time.Duration, msg tea.Msg) tea.Cmd {
		if fired, ok := msg.(debounce.FiredMsg); ok {
			t.Scheduled = append(t.Scheduled, fired)
		}
		t.Delays = append(t.Delays, d)
		return func() tea.Msg { return msg }
	}
}

// Last returns the most recently scheduled timer.
func (t *Timers) Last(tb testing.TB) debounce.FiredMsg {
	tb.Helper()
	require.NotEmpty(tb, t.Scheduled, "no timer scheduled")
	return t.Scheduled[len(t.Scheduled)-1]
}

// Run executes cmd and any batched commands it yields, returning every
// resulting message in order. Nil commands and nil messages are skipped.
func Run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	switch m := msg.(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range m {
			out = append(out, Run(c)...)
		}
		return out
	default:
		return []tea.Msg{msg}
	}
}
