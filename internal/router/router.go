// Package router classifies widget events. An ordered table of routes is
// checked against the closest matching ancestor of each event's target and
// the first route that matches handles the event.
package router

import (
	"errors"
	"fmt"
	"slices"

	tea "charm.land/bubbletea/v2"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/oakwood-commons/facetview/internal/dom"
)

// Scope decides where a route's matching element may live.
type Scope int

const (
	// Delegated routes only match elements inside the widget root, like a
	// listener installed on the root.
	Delegated Scope = iota
	// Direct routes match anywhere in the document, like a listener
	// installed on the element itself.
	Direct
)

// Handler receives the event and the element the route matched.
type Handler func(ev *dom.Event, el *html.Node) tea.Cmd

// Route is one entry of the table.
type Route struct {
	Name     string
	Events   []dom.EventType
	Keys     []string
	Selector string
	Scope    Scope
	Prevent  bool
	Handle   Handler

	matcher cascadia.Selector
}

// Router dispatches events through its table.
type Router struct {
	root   *html.Node
	routes []Route
}

// New compiles the table. root bounds delegated routes.
func New(root *html.Node, routes ...Route) (*Router, error) {
	if root == nil {
		return nil, errors.New("router: nil root")
	}
	compiled := make([]Route, 0, len(routes))
	for _, rt := range routes {
		if rt.Handle == nil {
			return nil, fmt.Errorf("route %q: nil handler", rt.Name)
		}
		if len(rt.Events) == 0 {
			return nil, fmt.Errorf("route %q: no events", rt.Name)
		}
		m, err := cascadia.Compile(rt.Selector)
		if err != nil {
			return nil, fmt.Errorf("route %q selector %q: %w", rt.Name, rt.Selector, err)
		}
		rt.matcher = m
		compiled = append(compiled, rt)
	}
	return &Router{root: root, routes: compiled}, nil
}

// Names lists the routes in table order.
func (r *Router) Names() []string {
	out := make([]string, len(r.routes))
	for i, rt := range r.routes {
		out[i] = rt.Name
	}
	return out
}

// Match returns the route and element that would handle ev.
func (r *Router) Match(ev *dom.Event) (Route, *html.Node, bool) {
	if ev == nil || ev.Target == nil {
		return Route{}, nil, false
	}
	for _, rt := range r.routes {
		if !slices.Contains(rt.Events, ev.Type) {
			continue
		}
		if len(rt.Keys) > 0 && !slices.Contains(rt.Keys, ev.Key) {
			continue
		}
		var bound *html.Node
		if rt.Scope == Delegated {
			bound = r.root
		}
		if el := dom.Closest(ev.Target, rt.matcher, bound); el != nil {
			return rt, el, true
		}
	}
	return Route{}, nil, false
}

// Dispatch hands ev to the first matching route. Unmatched events are
// ignored.
func (r *Router) Dispatch(ev *dom.Event) tea.Cmd {
	rt, el, ok := r.Match(ev)
	if !ok {
		return nil
	}
	if rt.Prevent {
		ev.PreventDefault()
	}
	return rt.Handle(ev, el)
}
