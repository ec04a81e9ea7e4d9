// Package dom is the small document model the widget controllers work on: a
// parsed HTML page plus the element operations a browser would offer
// (closest-ancestor lookup, inline display toggling, control values) and the
// events hosts feed into the widget.
package dom

import (
	"fmt"
	"io"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Document is a parsed page together with the URL it was loaded from.
type Document struct {
	*goquery.Document
}

// Parse reads an HTML page. pageURL is the address the page was served from;
// relative form actions resolve against it. A nil pageURL means "/".
func Parse(r io.Reader, pageURL *url.URL) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if pageURL == nil {
		pageURL = &url.URL{Path: "/"}
	}
	doc.Url = pageURL
	return &Document{Document: doc}, nil
}

// PageURL returns a copy of the page address.
func (d *Document) PageURL() *url.URL {
	u := *d.Url
	return &u
}

// Render serializes the (possibly mutated) document back to HTML.
func (d *Document) Render() (string, error) {
	return d.Html()
}

// Select wraps a single node in a selection. A nil node yields an empty
// selection.
func Select(n *html.Node) *goquery.Selection {
	if n == nil {
		return &goquery.Selection{}
	}
	return goquery.NewDocumentFromNode(n).Selection
}

// Node returns the first node of s, or nil.
func Node(s *goquery.Selection) *html.Node {
	if s == nil || s.Length() == 0 {
		return nil
	}
	return s.Get(0)
}

// Contains reports whether n is ancestor itself or one of its descendants.
func Contains(ancestor, n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Closest walks from n up through its ancestors and returns the first
// element matching m. When bound is non-nil the walk never leaves bound:
// nodes outside it never match, mirroring a listener delegated on bound.
func Closest(n *html.Node, m cascadia.Matcher, bound *html.Node) *html.Node {
	if n == nil || (bound != nil && !Contains(bound, n)) {
		return nil
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && m.Match(cur) {
			return cur
		}
		if cur == bound {
			return nil
		}
	}
	return nil
}
