package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Value returns the current value of a form control: the value attribute of
// an input, the text of a textarea, or the selected option of a select
// (falling back to its first option).
func Value(s *goquery.Selection) string {
	el := s.First()
	switch goquery.NodeName(el) {
	case "textarea":
		return el.Text()
	case "select":
		opt := el.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = el.Find("option").First()
		}
		if opt.Length() == 0 {
			return ""
		}
		return OptionValue(opt)
	default:
		v, _ := el.Attr("value")
		return v
	}
}

// SetValue updates a form control. For a select the matching option becomes
// the only selected one; an unknown value leaves the select unchanged.
func SetValue(s *goquery.Selection, value string) {
	el := s.First()
	switch goquery.NodeName(el) {
	case "textarea":
		el.SetText(value)
	case "select":
		var match *goquery.Selection
		el.Find("option").EachWithBreak(func(_ int, opt *goquery.Selection) bool {
			if OptionValue(opt) == value {
				match = opt
				return false
			}
			return true
		})
		if match == nil {
			return
		}
		el.Find("option").RemoveAttr("selected")
		match.SetAttr("selected", "selected")
	default:
		el.SetAttr("value", value)
	}
}

// OptionValue is the value attribute of an option, or its collapsed text.
func OptionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return strings.Join(strings.Fields(opt.Text()), " ")
}

// Disabled reports whether a control is disabled directly or through an
// enclosing disabled fieldset.
func Disabled(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	return s.Closest("fieldset[disabled]").Length() > 0
}

// CollapsedText returns the text content of s with runs of whitespace
// collapsed to single spaces.
func CollapsedText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
