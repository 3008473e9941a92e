// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the LocalManus TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// COLOR PALETTE
// =============================================================================

// Adaptive colors pick the variant matching the terminal background.
var (
	Cyan    = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"}
	Purple  = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	Emerald = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34D399"}
	Amber   = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	Rose    = lipgloss.AdaptiveColor{Light: "#BE123C", Dark: "#FB7185"}

	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1E293B", Dark: "#E2E8F0"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#475569", Dark: "#94A3B8"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#94A3B8", Dark: "#64748B"}
	Overlay       = lipgloss.AdaptiveColor{Light: "#CBD5E1", Dark: "#334155"}
	SurfaceDim    = lipgloss.AdaptiveColor{Light: "#F1F5F9", Dark: "#1E293B"}
)

// =============================================================================
// THEME
// =============================================================================

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// Header and status bar
	Header     lipgloss.Style
	StatusBar  lipgloss.Style
	StatusKey  lipgloss.Style
	StatusDesc lipgloss.Style
	SessionTag lipgloss.Style

	// Transcript turns
	UserLabel    lipgloss.Style
	AgentLabel   lipgloss.Style
	UserText     lipgloss.Style
	AgentText    lipgloss.Style
	ThoughtText  lipgloss.Style
	Observation  lipgloss.Style
	ToolCallText lipgloss.Style
	FailedText   lipgloss.Style
	Attachment   lipgloss.Style

	// Input area
	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style

	// Streaming indicator
	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style
}

// NewTheme creates a new theme with all styles configured.
func NewTheme() *Theme {
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Padding(0, 1)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.StatusDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.SessionTag = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.UserLabel = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.AgentLabel = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.UserText = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.AgentText = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.ThoughtText = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		PaddingLeft(2)

	t.Observation = lipgloss.NewStyle().
		Foreground(TextSecondary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Overlay).
		PaddingLeft(1)

	t.ToolCallText = lipgloss.NewStyle().
		Foreground(Amber).
		PaddingLeft(2)

	t.FailedText = lipgloss.NewStyle().
		Foreground(Rose)

	t.Attachment = lipgloss.NewStyle().
		Foreground(Cyan)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.ThinkingText = lipgloss.NewStyle().
		Foreground(TextSecondary)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}
