// Package form serializes the page's search form the way the browser's
// FormData does and turns it into request URLs for the widget's endpoints.
package form

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/oakwood-commons/facetview/internal/dom"
)

// ErrFormNotFound is returned when the document has no search form.
var ErrFormNotFound = errors.New("search form not found")

// Field is one name/value pair of a form data set.
type Field struct {
	Name  string
	Value string
}

// Fields is a form data set in document order.
type Fields []Field

// Values groups the pairs by name.
func (fs Fields) Values() url.Values {
	values := url.Values{}
	for _, f := range fs {
		values.Add(f.Name, f.Value)
	}
	return values
}

// Encode renders the pairs as a query string without reordering them.
func (fs Fields) Encode() string {
	var b strings.Builder
	for i, f := range fs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.Value))
	}
	return b.String()
}

// Merge replaces every name in set, keeping the position of its first
// occurrence, then appends the pairs in add. Names new to fs go last, sorted.
func (fs Fields) Merge(set, add url.Values) Fields {
	out := make(Fields, 0, len(fs))
	placed := make(map[string]bool, len(set))
	for _, f := range fs {
		vs, ok := set[f.Name]
		if !ok {
			out = append(out, f)
			continue
		}
		if !placed[f.Name] {
			placed[f.Name] = true
			for _, v := range vs {
				out = append(out, Field{Name: f.Name, Value: v})
			}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(set)) {
		if placed[name] {
			continue
		}
		for _, v := range set[name] {
			out = append(out, Field{Name: name, Value: v})
		}
	}
	for _, name := range slices.Sorted(maps.Keys(add)) {
		for _, v := range add[name] {
			out = append(out, Field{Name: name, Value: v})
		}
	}
	return out
}

// Serialize collects the successful controls of f grouped by name.
func Serialize(f *goquery.Selection) url.Values {
	return Collect(f).Values()
}

// Collect returns the successful controls of f in document order.
func Collect(f *goquery.Selection) Fields {
	var fields Fields
	add := func(name, value string) { fields = append(fields, Field{Name: name, Value: value}) }
	f.Find("input, select, textarea").Each(func(_ int, el *goquery.Selection) {
		name, ok := el.Attr("name")
		if !ok || name == "" || dom.Disabled(el) {
			return
		}
		switch goquery.NodeName(el) {
		case "select":
			if _, multiple := el.Attr("multiple"); multiple {
				el.Find("option[selected]").Each(func(_ int, opt *goquery.Selection) {
					add(name, dom.OptionValue(opt))
				})
				return
			}
			if el.Find("option").Length() > 0 {
				add(name, dom.Value(el))
			}
		case "textarea":
			add(name, el.Text())
		default:
			typ := strings.ToLower(el.AttrOr("type", "text"))
			switch typ {
			case "submit", "button", "reset", "image", "file":
				return
			case "checkbox", "radio":
				if _, checked := el.Attr("checked"); !checked {
					return
				}
				add(name, el.AttrOr("value", "on"))
			default:
				add(name, el.AttrOr("value", ""))
			}
		}
	})
	return fields
}

// Action resolves the form's action attribute against the page URL. Without
// an action the page path is used. The returned URL carries no query.
func Action(f *goquery.Selection, page *url.URL) (*url.URL, error) {
	base := &url.URL{Scheme: page.Scheme, Host: page.Host, Path: page.Path}
	action := strings.TrimSpace(f.AttrOr("action", ""))
	if action == "" {
		return base, nil
	}
	ref, err := url.Parse(action)
	if err != nil {
		return nil, fmt.Errorf("parse form action %q: %w", action, err)
	}
	target := base.ResolveReference(ref)
	target.RawQuery = ""
	target.Fragment = ""
	return target, nil
}

// Builder produces endpoint URLs from the live state of the search form.
type Builder struct {
	Doc      *dom.Document
	Selector string
}

// Build serializes the form, replaces the keys in set, appends the pairs in
// add, and returns the form action URL carrying the result as its query.
func (b Builder) Build(set, add url.Values) (*url.URL, error) {
	f := b.Doc.Find(b.Selector).First()
	if f.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrFormNotFound, b.Selector)
	}
	target, err := Action(f, b.Doc.PageURL())
	if err != nil {
		return nil, err
	}
	target.RawQuery = Collect(f).Merge(set, add).Encode()
	return target, nil
}
