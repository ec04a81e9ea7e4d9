// Package ui hosts a facet widget in a Bubble Tea program: it renders the
// page, turns key presses into DOM events and performs the navigations the
// widget asks for.
package ui

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/go-logr/logr"
	"golang.org/x/net/html"

	"github.com/oakwood-commons/facetview/internal/dom"
	"github.com/oakwood-commons/facetview/internal/preview"
	"github.com/oakwood-commons/facetview/internal/refine"
	"github.com/oakwood-commons/facetview/internal/widget"
)

// PageLoader fetches and parses a results page.
type PageLoader func(ctx context.Context, u *url.URL) (*dom.Document, error)

// AttachFunc attaches a widget to a freshly loaded page.
type AttachFunc func(doc *dom.Document) (*widget.Widget, error)

const footerHelp = "tab/shift+tab focus • enter activate • esc close • ←/→ choose • ctrl+o open • ctrl+y copy URL • q quit"

// widgetMsg carries a message produced by one attachment. Messages from an
// attachment that has since been replaced are dropped.
type widgetMsg struct {
	gen uint64
	msg tea.Msg
}

type pageLoadedMsg struct {
	url *url.URL
	doc *dom.Document
	err error
}

// Options configure a Model.
type Options struct {
	Context context.Context
	Widget  *widget.Widget
	Attach  AttachFunc
	Load    PageLoader
	Styles  Styles
	Logger  logr.Logger
}

// Model is the Bubble Tea model hosting one widget at a time.
type Model struct {
	ctx    context.Context
	w      *widget.Widget
	gen    uint64
	attach AttachFunc
	load   PageLoader
	log    logr.Logger

	controls []control
	focus    int
	pending  map[*html.Node]int

	editor   textinput.Model
	spin     spinner.Model
	spinning bool
	styles   Styles

	width, height int
	offset        int

	status    string
	statusErr bool
	loading   bool
	quitting  bool
}

// NewModel builds a Model around an attached widget.
func NewModel(opts Options) *Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	editor := textinput.New()
	editor.Prompt = ""
	s := spinner.New()
	s.Spinner = spinner.Dot

	m := &Model{
		ctx:     ctx,
		attach:  opts.Attach,
		load:    opts.Load,
		log:     opts.Logger,
		editor:  editor,
		spin:    s,
		styles:  opts.Styles,
		pending: map[*html.Node]int{},
	}
	m.setWidget(opts.Widget)
	return m
}

func (m *Model) setWidget(w *widget.Widget) {
	m.w = w
	m.gen++
	m.pending = map[*html.Node]int{}
	m.offset = 0
	m.focus = 0
	m.refreshControls(nil)
	m.syncEditor()
}

// Widget is the widget currently hosted.
func (m *Model) Widget() *widget.Widget { return m.w }

// Status is the last status line and whether it reports an error.
func (m *Model) Status() (string, bool) { return m.status, m.statusErr }

// Focused is the node holding focus, or nil.
func (m *Model) Focused() *html.Node {
	if m.focus < 0 || m.focus >= len(m.controls) {
		return nil
	}
	return m.controls[m.focus].node
}

// Focus moves focus to n when n is a focusable control.
func (m *Model) Focus(n *html.Node) bool {
	i := indexOf(m.controls, n)
	if i < 0 {
		return false
	}
	m.focus = i
	m.syncEditor()
	return true
}

// Init starts nothing; the spinner runs only while a preview loads.
func (m *Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.editor.SetWidth(max(10, msg.Width-12))
	case tea.KeyPressMsg:
		cmd = m.handleKey(msg)
	case widgetMsg:
		if msg.gen == m.gen {
			cmd = m.tag(m.w.Update(msg.msg))
		}
	case refine.NavigateMsg:
		cmd = m.navigate(msg.URL)
	case pageLoadedMsg:
		m.pageLoaded(msg)
	case spinner.TickMsg:
		if !m.previewLoading() {
			m.spinning = false
			return m, nil
		}
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	m.refreshControls(m.Focused())
	m.syncEditor()
	return m, tea.Batch(cmd, m.ensureSpinner())
}

func (m *Model) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	key := msg.String()
	switch key {
	case "ctrl+c":
		return m.quit()
	case "tab":
		return m.moveFocus(1)
	case "shift+tab":
		return m.moveFocus(-1)
	case "ctrl+o":
		m.platform("Opened", OpenURL)
		return nil
	case "ctrl+y":
		m.platform("Copied", CopyToClipboard)
		return nil
	}
	if m.loading {
		return nil
	}

	c, ok := m.current()
	if !ok {
		if key == "q" {
			return m.quit()
		}
		return nil
	}
	target := dom.Select(c.node)
	switch c.kind {
	case kindSuggest, kindFilter:
		return m.editKey(c, msg)
	case kindToggle:
		switch key {
		case "enter":
			return m.dispatch(dom.NewKeyEvent(target, dom.KeyEnter))
		case "space":
			return m.dispatch(dom.NewKeyEvent(target, dom.KeySpace))
		case "esc":
			return m.dispatch(dom.NewKeyEvent(target, dom.KeyEscape))
		}
	case kindShowMore:
		if key == "enter" || key == "space" {
			return m.dispatch(dom.NewEvent(dom.Click, target))
		}
	case kindSelect:
		switch key {
		case "left", "right":
			m.choose(c.node, key == "right")
			return nil
		case "enter":
			idx, ok := m.pending[c.node]
			if !ok {
				return nil
			}
			delete(m.pending, c.node)
			value := dom.OptionValue(target.Find("option").Eq(idx))
			return m.dispatch(dom.NewValueEvent(dom.Change, target, value))
		}
	}
	if key == "q" {
		return m.quit()
	}
	return nil
}

// editKey forwards a key to a text control. Navigation keys become keydown
// events; everything else edits the value and fires an input event when
// the value changed.
func (m *Model) editKey(c control, msg tea.KeyPressMsg) tea.Cmd {
	target := dom.Select(c.node)
	var cmd tea.Cmd
	switch msg.String() {
	case "up", "down", "enter", "esc":
		keys := map[string]string{"up": dom.KeyArrowUp, "down": dom.KeyArrowDown, "enter": dom.KeyEnter, "esc": dom.KeyEscape}
		ev := dom.NewKeyEvent(target, keys[msg.String()])
		cmd = m.dispatch(ev)
		if msg.String() == "enter" && c.kind == kindSuggest && !ev.DefaultPrevented() {
			cmd = tea.Batch(cmd, m.tag(m.w.Submit()))
		}
	default:
		// Blink commands are dropped; the cursor stays solid.
		before := m.editor.Value()
		m.editor, _ = m.editor.Update(msg)
		if after := m.editor.Value(); after != before {
			cmd = m.dispatch(dom.NewValueEvent(dom.Input, target, after))
		}
	}
	m.syncEditor()
	return cmd
}

func (m *Model) dispatch(ev *dom.Event) tea.Cmd {
	return m.tag(m.w.Dispatch(ev))
}

// tag marks every message cmd produces with the current attachment.
func (m *Model) tag(cmd tea.Cmd) tea.Cmd {
	return tagged(cmd, m.gen)
}

func tagged(cmd tea.Cmd, gen uint64) tea.Cmd {
	if cmd == nil {
		return nil
	}
	return func() tea.Msg {
		switch msg := cmd().(type) {
		case nil:
			return nil
		case tea.BatchMsg:
			cmds := make([]tea.Cmd, 0, len(msg))
			for _, c := range msg {
				cmds = append(cmds, tagged(c, gen))
			}
			return tea.BatchMsg(cmds)
		case refine.NavigateMsg:
			return msg
		default:
			return widgetMsg{gen: gen, msg: msg}
		}
	}
}

func (m *Model) moveFocus(delta int) tea.Cmd {
	if len(m.controls) == 0 {
		return nil
	}
	var cmd tea.Cmd
	if c, ok := m.current(); ok && c.kind == kindSuggest {
		cmd = m.dispatch(dom.NewEvent(dom.Blur, dom.Select(c.node)))
	}
	m.focus = (m.focus + delta + len(m.controls)) % len(m.controls)
	m.syncEditor()
	return cmd
}

func (m *Model) current() (control, bool) {
	if m.focus < 0 || m.focus >= len(m.controls) {
		return control{}, false
	}
	return m.controls[m.focus], true
}

// refreshControls recollects the focusable controls after the widget
// changed the page, keeping focus on keep when it is still focusable.
func (m *Model) refreshControls(keep *html.Node) {
	if m.w == nil {
		m.controls = nil
		return
	}
	m.controls = collectControls(m.w)
	if i := indexOf(m.controls, keep); i >= 0 {
		m.focus = i
		return
	}
	if m.focus >= len(m.controls) {
		m.focus = len(m.controls) - 1
	}
	if m.focus < 0 {
		m.focus = 0
	}
}

// syncEditor loads the focused text control's value into the editor.
func (m *Model) syncEditor() {
	c, ok := m.current()
	if !ok || !c.kind.editable() {
		m.editor.Blur()
		return
	}
	value := dom.Value(dom.Select(c.node))
	if m.editor.Value() != value || !m.editor.Focused() {
		m.editor.SetValue(value)
		m.editor.CursorEnd()
	}
	m.editor.Focus()
}

func (m *Model) choose(sel *html.Node, forward bool) {
	options := dom.Select(sel).Find("option")
	if options.Length() == 0 {
		return
	}
	idx, ok := m.pending[sel]
	if !ok {
		idx = max(0, options.IndexOfSelection(options.Filter("[selected]").First()))
	}
	if forward {
		idx = (idx + 1) % options.Length()
	} else {
		idx = (idx - 1 + options.Length()) % options.Length()
	}
	m.pending[sel] = idx
}

func (m *Model) navigate(u *url.URL) tea.Cmd {
	if u == nil || m.load == nil {
		return nil
	}
	m.loading = true
	m.setStatus("Loading "+u.String(), false)
	load, ctx := m.load, m.ctx
	return func() tea.Msg {
		doc, err := load(ctx, u)
		return pageLoadedMsg{url: u, doc: doc, err: err}
	}
}

func (m *Model) pageLoaded(msg pageLoadedMsg) {
	m.loading = false
	if msg.err != nil {
		m.restoreSelects()
		m.setStatus(fmt.Sprintf("load %s: %v", msg.url, msg.err), true)
		return
	}
	if m.attach == nil {
		return
	}
	next, err := m.attach(msg.doc)
	if err != nil {
		m.restoreSelects()
		m.setStatus(fmt.Sprintf("attach %s: %v", msg.url, err), true)
		return
	}
	if m.w != nil {
		m.w.Detach()
	}
	m.setWidget(next)
	m.setStatus("Loaded "+msg.url.String(), false)
}

// restoreSelects re-enables refine selects after a failed navigation.
func (m *Model) restoreSelects() {
	if m.w == nil {
		return
	}
	m.w.Root().Find(m.w.Selectors().Select).Filter("." + refine.LoadingClass).
		RemoveClass(refine.LoadingClass).
		RemoveAttr("disabled")
}

func (m *Model) platform(verb string, fn func(string) error) {
	if m.w == nil {
		return
	}
	u := m.w.Document().PageURL().String()
	if err := fn(u); err != nil {
		m.setStatus(err.Error(), true)
		return
	}
	m.setStatus(verb+" "+u, false)
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status, m.statusErr = s, isErr
	if isErr {
		m.log.Info("status", "error", s)
	}
}

func (m *Model) quit() tea.Cmd {
	m.quitting = true
	if m.w != nil {
		m.w.Detach()
	}
	return tea.Quit
}

func (m *Model) previewLoading() bool {
	if m.w == nil {
		return false
	}
	for _, n := range m.w.Root().Find(m.w.Selectors().PreviewToggle).Nodes {
		if m.w.Preview(n).Phase == preview.Loading {
			return true
		}
	}
	return false
}

func (m *Model) ensureSpinner() tea.Cmd {
	if m.spinning || !m.previewLoading() {
		return nil
	}
	m.spinning = true
	return m.spin.Tick
}

// View implements tea.Model.
func (m *Model) View() tea.View {
	if m.quitting {
		return tea.NewView("")
	}
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

func (m *Model) render() string {
	var b strings.Builder
	page := ""
	if m.w != nil {
		page = m.w.Document().PageURL().String()
	}
	b.WriteString(m.styles.Title.Render("facetview") + " " + m.styles.Muted.Render(page) + "\n\n")

	var body []string
	focusLine := -1
	if m.w != nil {
		r := &renderer{
			w:       m.w,
			st:      m.styles,
			width:   m.width,
			focus:   m.Focused(),
			spinner: m.spin.View(),
			editor: func(*html.Node) (string, bool) {
				return m.editor.View(), true
			},
			pending: func(n *html.Node) (int, bool) {
				i, ok := m.pending[n]
				return i, ok
			},
		}
		body, focusLine = r.render()
	}
	for _, line := range m.scroll(body, focusLine) {
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.loading:
		b.WriteString(m.spin.View() + " " + m.styles.Status.Render(m.status))
	case m.statusErr:
		b.WriteString(m.styles.Error.Render(m.status))
	default:
		b.WriteString(m.styles.Status.Render(m.status))
	}
	b.WriteString("\n" + m.styles.Muted.Render(footerHelp))
	return b.String()
}

// scroll keeps the focused line inside the body area.
func (m *Model) scroll(lines []string, focusLine int) []string {
	room := m.height - 5
	if m.height <= 0 || room <= 0 || len(lines) <= room {
		m.offset = 0
		return lines
	}
	if focusLine >= 0 {
		if focusLine < m.offset {
			m.offset = focusLine
		}
		if focusLine >= m.offset+room {
			m.offset = focusLine - room + 1
		}
	}
	m.offset = min(m.offset, len(lines)-room)
	return lines[m.offset : m.offset+room]
}
