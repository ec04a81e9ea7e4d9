package ui

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/oakwood-commons/facetview/internal/dom"
	"github.com/oakwood-commons/facetview/internal/widget"
)

type controlKind int

const (
	kindSuggest controlKind = iota
	kindFilter
	kindShowMore
	kindToggle
	kindSelect
)

func (k controlKind) editable() bool { return k == kindSuggest || k == kindFilter }

type control struct {
	kind controlKind
	node *html.Node
}

type kindMatcher struct {
	kind controlKind
	m    cascadia.Selector
}

type classifier struct {
	all   string
	kinds []kindMatcher
}

func newClassifier(sel widget.Selectors) classifier {
	c := classifier{}
	add := func(k controlKind, s string) {
		m, err := cascadia.Compile(s)
		if err != nil {
			return
		}
		c.kinds = append(c.kinds, kindMatcher{kind: k, m: m})
	}
	add(kindSuggest, sel.Autocomplete)
	add(kindFilter, sel.SearchInput)
	add(kindShowMore, sel.ShowMore)
	add(kindToggle, sel.PreviewToggle)
	add(kindSelect, sel.Select)
	c.all = strings.Join([]string{sel.Autocomplete, sel.SearchInput, sel.ShowMore, sel.PreviewToggle, sel.Select}, ", ")
	return c
}

func (c classifier) kindOf(n *html.Node) (controlKind, bool) {
	for _, k := range c.kinds {
		if k.m.Match(n) {
			return k.kind, true
		}
	}
	return 0, false
}

// collectControls lists the focusable controls of the page in document
// order. Controls hidden by the widget are skipped.
func collectControls(w *widget.Widget) []control {
	c := newClassifier(w.Selectors())
	var out []control
	for _, n := range w.Document().Find(c.all).Nodes {
		s := dom.Select(n)
		if !dom.Displayed(s) || dom.Disabled(s) {
			continue
		}
		if kind, ok := c.kindOf(n); ok {
			out = append(out, control{kind: kind, node: n})
		}
	}
	return out
}

// indexOf finds n among controls, or -1.
func indexOf(controls []control, n *html.Node) int {
	for i, c := range controls {
		if c.node == n {
			return i
		}
	}
	return -1
}
