// Package ui renders CLI output with lipgloss. Colours degrade to plain
// text when stdout is not a terminal.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/health"
)

// ===== Colors =====

var (
	colorRed    = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#eb6f92"}
	colorOrange = lipgloss.AdaptiveColor{Light: "#fe640b", Dark: "#f6c177"}
	colorYellow = lipgloss.AdaptiveColor{Light: "#df8e1d", Dark: "#f1ca93"}
	colorBlue   = lipgloss.AdaptiveColor{Light: "#1e66f5", Dark: "#9ccfd8"}
	colorGreen  = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#908caa"}
)

// ===== Styles =====

var (
	HeaderStyle = lipgloss.NewStyle().Bold(true)
	MutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	ErrorStyle  = lipgloss.NewStyle().Foreground(colorRed).Bold(true)

	severityStyles = map[health.Severity]lipgloss.Style{
		health.SeverityCritical: lipgloss.NewStyle().Foreground(colorRed).Bold(true),
		health.SeverityHigh:     lipgloss.NewStyle().Foreground(colorOrange).Bold(true),
		health.SeverityMedium:   lipgloss.NewStyle().Foreground(colorYellow),
		health.SeverityLow:      lipgloss.NewStyle().Foreground(colorBlue),
	}

	syncStatusStyles = map[document.SyncStatus]lipgloss.Style{
		document.StatusNeverSynced: MutedStyle,
		document.StatusSyncing:     lipgloss.NewStyle().Foreground(colorBlue),
		document.StatusSynced:      lipgloss.NewStyle().Foreground(colorGreen),
		document.StatusError:       ErrorStyle,
	}
)

// SeverityStyle returns the style for a finding severity.
func SeverityStyle(s health.Severity) lipgloss.Style {
	if style, ok := severityStyles[s]; ok {
		return style
	}
	return lipgloss.NewStyle()
}

// SyncStatusStyle returns the style for a project's sync status.
func SyncStatusStyle(s document.SyncStatus) lipgloss.Style {
	if style, ok := syncStatusStyles[s]; ok {
		return style
	}
	return lipgloss.NewStyle()
}

// ScoreStyle colours a health score: green from 80, yellow from 50, red below.
func ScoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 80:
		return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	case score >= 50:
		return lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	}
}
