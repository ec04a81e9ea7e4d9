package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DisplayNone hides an element.
const DisplayNone = "none"

type declaration struct {
	property string
	value    string
}

// SetDisplay sets the inline display property on every element of s. An
// empty value removes the property, restoring the stylesheet default.
func SetDisplay(s *goquery.Selection, value string) {
	s.Each(func(_ int, el *goquery.Selection) {
		style, _ := el.Attr("style")
		decls := setDeclaration(parseStyle(style), "display", value)
		if len(decls) == 0 {
			el.RemoveAttr("style")
			return
		}
		el.SetAttr("style", formatStyle(decls))
	})
}

// Show clears an inline display override; Hide sets display:none.
func Show(s *goquery.Selection) { SetDisplay(s, "") }

// Hide sets display:none on every element of s.
func Hide(s *goquery.Selection) { SetDisplay(s, DisplayNone) }

// SetVisible shows or hides s.
func SetVisible(s *goquery.Selection, visible bool) {
	if visible {
		Show(s)
		return
	}
	Hide(s)
}

// Display returns the inline display value of the first element of s.
func Display(s *goquery.Selection) string {
	style, _ := s.First().Attr("style")
	for _, d := range parseStyle(style) {
		if d.property == "display" {
			return d.value
		}
	}
	return ""
}

// Displayed reports whether the first element of s and all of its ancestors
// are free of display:none and the hidden attribute.
func Displayed(s *goquery.Selection) bool {
	if s.Length() == 0 {
		return false
	}
	for cur := s.First(); cur.Length() > 0; cur = cur.Parent() {
		if Display(cur) == DisplayNone {
			return false
		}
		if _, hidden := cur.Attr("hidden"); hidden {
			return false
		}
	}
	return true
}

func parseStyle(style string) []declaration {
	var out []declaration
	for _, part := range strings.Split(style, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		if prop == "" {
			continue
		}
		out = append(out, declaration{property: prop, value: strings.TrimSpace(value)})
	}
	return out
}

func setDeclaration(decls []declaration, property, value string) []declaration {
	out := decls[:0]
	found := false
	for _, d := range decls {
		if d.property != property {
			out = append(out, d)
			continue
		}
		if value != "" && !found {
			out = append(out, declaration{property: property, value: value})
			found = true
		}
	}
	if value != "" && !found {
		out = append(out, declaration{property: property, value: value})
	}
	return out
}

func formatStyle(decls []declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d.property+": "+d.value)
	}
	return strings.Join(parts, "; ")
}
