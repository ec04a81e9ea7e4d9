package dom

import (
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// EventType names the DOM event a host reports.
type EventType string

const (
	Click       EventType = "click"
	KeyDown     EventType = "keydown"
	Change      EventType = "change"
	Input       EventType = "input"
	Blur        EventType = "blur"
	PointerDown EventType = "pointerdown"
)

// Key values as reported by KeyboardEvent.key.
const (
	KeyArrowDown = "ArrowDown"
	KeyArrowUp   = "ArrowUp"
	KeyEnter     = "Enter"
	KeyEscape    = "Escape"
	KeySpace     = " "
)

// Event is one user interaction on a document node.
//
// Input and Change events carry the control's new value in Value; hosts set
// it the way a browser updates the control before listeners run.
type Event struct {
	Type   EventType
	Target *html.Node
	Key    string
	Value  string

	prevented bool
}

// NewEvent builds an event targeting the first node of target.
func NewEvent(t EventType, target *goquery.Selection) *Event {
	return &Event{Type: t, Target: Node(target)}
}

// NewKeyEvent builds a keydown event.
func NewKeyEvent(target *goquery.Selection, key string) *Event {
	return &Event{Type: KeyDown, Target: Node(target), Key: key}
}

// NewValueEvent builds an input or change event carrying the new value.
func NewValueEvent(t EventType, target *goquery.Selection, value string) *Event {
	return &Event{Type: t, Target: Node(target), Value: value}
}

// PreventDefault marks the event as handled so the host skips its default
// action (form submit, focus change, navigation).
func (e *Event) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether a handler called PreventDefault.
func (e *Event) DefaultPrevented() bool { return e.prevented }
