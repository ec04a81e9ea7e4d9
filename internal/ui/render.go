package ui

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/mattn/go-runewidth"
	"golang.org/x/net/html"

	"github.com/oakwood-commons/facetview/internal/dom"
	"github.com/oakwood-commons/facetview/internal/preview"
	"github.com/oakwood-commons/facetview/internal/widget"
)

const (
	indent      = "  "
	rowBullet   = "• "
	suggestMark = "› "
)

// renderer turns the widget's document into terminal lines.
type renderer struct {
	w       *widget.Widget
	st      Styles
	width   int
	focus   *html.Node
	spinner string
	// editor returns the live editor view for the focused text control.
	editor func(n *html.Node) (string, bool)
	// pending returns the option index being chosen on a select.
	pending func(n *html.Node) (int, bool)

	lines     []string
	focusLine int
}

func (r *renderer) render() ([]string, int) {
	r.lines = nil
	r.focusLine = -1

	if input := r.w.Document().Find(r.w.Selectors().Autocomplete).First(); input.Length() > 0 {
		r.textControl("Search: ", r.st.Heading, input)
		r.suggestions()
		r.blank()
	}

	boxes := r.w.Boxes()
	r.w.Root().Find(r.w.Selectors().Box).Each(func(i int, box *goquery.Selection) {
		summary := ""
		if i < len(boxes) {
			b := boxes[i]
			summary = fmt.Sprintf(" (%d of %d)", b.Visible, b.Rows)
			if b.Term != "" {
				summary = fmt.Sprintf(" (%d of %d matching %q)", b.Visible, b.Rows, b.Term)
			}
		}
		r.box(box, summary)
		r.blank()
	})

	r.w.Root().Find(r.w.Selectors().Select).Each(func(_ int, sel *goquery.Selection) {
		r.selectControl(sel)
	})
	for len(r.lines) > 0 && r.lines[len(r.lines)-1] == "" {
		r.lines = r.lines[:len(r.lines)-1]
	}
	return r.lines, r.focusLine
}

func (r *renderer) blank() { r.lines = append(r.lines, "") }

func (r *renderer) add(line string, n *html.Node) {
	if n != nil && n == r.focus {
		r.focusLine = len(r.lines)
	}
	r.lines = append(r.lines, line)
}

func (r *renderer) fit(s string, used int) string {
	if r.width <= 0 {
		return s
	}
	room := r.width - used
	if room < 1 {
		return ""
	}
	return runewidth.Truncate(s, room, "…")
}

func (r *renderer) focused(n *html.Node, text string) string {
	if n == r.focus {
		return r.st.Focus.Render(text)
	}
	return text
}

func (r *renderer) textControl(prefix string, style lipgloss.Style, input *goquery.Selection) {
	n := dom.Node(input)
	if view, ok := r.editor(n); ok && n == r.focus {
		r.add(style.Render(prefix)+view, n)
		return
	}
	value := r.fit("["+dom.Value(input)+"]", runewidth.StringWidth(prefix))
	r.add(style.Render(prefix)+r.focused(n, value), n)
}

func (r *renderer) suggestions() {
	session, ok := r.w.Autocomplete()
	if !ok || !session.Open {
		return
	}
	for i, s := range session.Suggestions {
		text := r.fit(suggestMark+s, len(indent))
		if i == session.Active {
			text = r.st.Active.Render(text)
		}
		r.add(indent+text, nil)
	}
}

func (r *renderer) box(box *goquery.Selection, summary string) {
	sel := r.w.Selectors()
	title := box.Find("h1, h2, h3, h4, h5, h6, legend").First().Text()
	if strings.TrimSpace(title) == "" {
		title = box.AttrOr("data-field", "facet")
	}
	r.add(r.st.Title.Render(r.fit(strings.TrimSpace(title), 0))+r.st.Muted.Render(summary), nil)

	if input := box.Find(sel.SearchInput).First(); input.Length() > 0 {
		r.textControl(indent+"Filter: ", r.st.Muted, input)
	}

	box.Find(sel.Rows).Each(func(_ int, row *goquery.Selection) {
		if dom.Display(row) == dom.DisplayNone {
			return
		}
		r.row(row)
	})

	if button := box.Find(sel.ShowMore).First(); button.Length() > 0 && dom.Display(button) != dom.DisplayNone {
		n := dom.Node(button)
		r.add(indent+r.focused(n, r.st.Button.Render("["+dom.CollapsedText(button)+"]")), n)
	}
}

func (r *renderer) row(row *goquery.Selection) {
	sel := r.w.Selectors()
	label := row.Clone()
	label.Find(sel.PreviewToggle + ", " + sel.PreviewContainer).Remove()
	text := r.fit(rowBullet+dom.CollapsedText(label), len(indent)+12)

	toggle := row.Find(sel.PreviewToggle).First()
	if toggle.Length() == 0 {
		r.add(indent+text, nil)
		return
	}
	n := dom.Node(toggle)
	state := r.w.Preview(n)
	marker := "[preview]"
	if state.Phase != preview.Hidden {
		marker = "[hide]"
	}
	r.add(indent+text+" "+r.focused(n, r.st.Button.Render(marker)), n)

	container := row.Find(sel.PreviewContainer).First()
	if container.Length() == 0 || dom.Display(container) == dom.DisplayNone {
		return
	}
	pad := indent + indent + indent
	switch state.Phase {
	case preview.Loading:
		r.add(pad+r.spinner+" "+r.st.Muted.Render(dom.CollapsedText(container)), nil)
	case preview.Error:
		r.add(pad+r.st.Error.Render(dom.CollapsedText(container)), nil)
	default:
		for _, line := range previewLines(container) {
			r.add(pad+r.fit(line, len(pad)), nil)
		}
	}
}

// previewLines flattens preview markup to one line per block or list item.
func previewLines(container *goquery.Selection) []string {
	var out []string
	items := container.Find("li, p, h1, h2, h3, h4, h5, h6, tr")
	if items.Length() == 0 {
		if t := dom.CollapsedText(container); t != "" {
			out = append(out, t)
		}
		return out
	}
	items.Each(func(_ int, s *goquery.Selection) {
		if t := dom.CollapsedText(s); t != "" {
			out = append(out, t)
		}
	})
	return out
}

func (r *renderer) selectControl(sel *goquery.Selection) {
	n := dom.Node(sel)
	options := sel.Find("option")
	idx := options.IndexOfSelection(options.Filter("[selected]").First())
	if p, ok := r.pending(n); ok {
		idx = p
	}
	if idx < 0 {
		idx = 0
	}
	text := dom.CollapsedText(options.Eq(idx))
	value := "‹ " + text + " ›"
	if dom.Disabled(sel) {
		value += " " + r.st.Muted.Render("loading…")
	}
	r.add(r.st.Heading.Render("Refine: ")+r.focused(n, value), n)
}

// RenderSnapshot renders the widget once, without focus, for non-interactive
// output.
func RenderSnapshot(w *widget.Widget, st Styles, width int) string {
	r := &renderer{
		w:       w,
		st:      st,
		width:   width,
		spinner: "…",
		editor:  func(*html.Node) (string, bool) { return "", false },
		pending: func(*html.Node) (int, bool) { return 0, false },
	}
	lines, _ := r.render()
	return strings.Join(lines, "\n")
}
