package cliui

import (
	"charm.land/lipgloss/v2"

	"github.com/papercomputeco/tracelens/pkg/groundedness"
	"github.com/papercomputeco/tracelens/pkg/observation"
)

var levelStyles = map[observation.Level]lipgloss.Style{
	observation.LevelNone:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	observation.LevelLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
	observation.LevelMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
	observation.LevelHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
}

var labelStyles = map[groundedness.Label]lipgloss.Style{
	groundedness.LabelEntailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("82")),
	groundedness.LabelNeutral:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	groundedness.LabelContradicted: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
}

// LevelBadge renders a leak level, e.g. "leak:high".
func LevelBadge(l observation.Level) string {
	style, ok := levelStyles[l]
	if !ok {
		style = levelStyles[observation.LevelNone]
	}
	return style.Render("leak:" + l.String())
}

// LabelBadge renders a groundedness label. Unknown labels render dim.
func LabelBadge(l groundedness.Label) string {
	style, ok := labelStyles[l]
	if !ok {
		style = DimStyle
	}
	return style.Render(string(l))
}
