package ui

import (
	"charm.land/lipgloss/v2"

	"github.com/oakwood-commons/facetview/internal/config"
)

// Styles are the lipgloss styles the views render with.
type Styles struct {
	NoColor bool

	Title   lipgloss.Style
	Heading lipgloss.Style
	Muted   lipgloss.Style
	Focus   lipgloss.Style
	Active  lipgloss.Style
	Error   lipgloss.Style
	Hidden  lipgloss.Style
	Button  lipgloss.Style
	Status  lipgloss.Style
}

// NewStyles builds styles from a theme. With noColor every style is plain
// except for the focus marker, which falls back to reverse video.
func NewStyles(theme config.ThemeConfig, noColor bool) Styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return Styles{
			NoColor: true,
			Title:   plain.Bold(true),
			Heading: plain.Bold(true),
			Muted:   plain,
			Focus:   plain.Reverse(true),
			Active:  plain.Underline(true),
			Error:   plain,
			Hidden:  plain,
			Button:  plain,
			Status:  plain,
		}
	}
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(theme.Accent)),
		Heading: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(theme.Accent)),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted)),
		Focus:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color(theme.Focus)),
		Active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(theme.Active)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Error)),
		Hidden:  lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Hidden)),
		Button:  lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Active)),
		Status:  lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted)).Italic(true),
	}
}

// PlainStyles renders without any decoration, for snapshots.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		NoColor: true,
		Title:   plain, Heading: plain, Muted: plain, Focus: plain, Active: plain,
		Error: plain, Hidden: plain, Button: plain, Status: plain,
	}
}
