// Package refine hands a facet select's choice to the host as a navigation
// to the refined results page.
package refine

import (
	"errors"
	"net/url"

	tea "charm.land/bubbletea/v2"
	"github.com/go-logr/logr"
	"golang.org/x/net/html"

	"github.com/oakwood-commons/facetview/internal/dom"
	"github.com/oakwood-commons/facetview/internal/form"
)

// LoadingClass marks a select whose navigation is under way.
const LoadingClass = "loading"

// NavigateMsg asks the host to load URL in place of the current page.
type NavigateMsg struct {
	URL *url.URL
}

// RequestBuilder turns form overrides into a request URL.
type RequestBuilder interface {
	Build(set, add url.Values) (*url.URL, error)
}

// Controller builds refinement URLs.
type Controller struct {
	requests RequestBuilder
	log      logr.Logger
}

// New returns a Controller.
func New(requests RequestBuilder, log logr.Logger) *Controller {
	return &Controller{requests: requests, log: log}
}

// OnChange disables the select, marks it loading and emits a NavigateMsg
// for the form plus fq=value. An empty value does nothing.
func (c *Controller) OnChange(sel *html.Node, value string) tea.Cmd {
	if value == "" {
		return nil
	}
	s := dom.Select(sel)
	s.SetAttr("disabled", "disabled")
	s.AddClass(LoadingClass)

	u, err := c.requests.Build(nil, url.Values{"fq": {value}})
	if err != nil {
		s.RemoveAttr("disabled")
		s.RemoveClass(LoadingClass)
		if !errors.Is(err, form.ErrFormNotFound) {
			c.log.Error(err, "build refinement url", "fq", value)
		}
		return nil
	}
	c.log.V(1).Info("facet refinement", "fq", value, "url", u.String())
	return func() tea.Msg { return NavigateMsg{URL: u} }
}
