// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhangdahai112/LocalManus/internal/model"
	"github.com/zhangdahai112/LocalManus/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full conversation screen.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := "LocalManus"
	if m.opts.Version != "" {
		title += " " + m.opts.Version
	}
	b.WriteString(m.theme.Header.Render(title))
	b.WriteString("\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	b.WriteString(m.theme.InputContainer.Render(
		m.theme.InputPrompt.Render("> ") + m.input.View(),
	))
	b.WriteString("\n")

	b.WriteString(m.renderStatusBar())
	return b.String()
}

// renderStatusBar shows session identity, attachment count, streaming state,
// and the transient status message.
func (m *Model) renderStatusBar() string {
	parts := []string{
		m.theme.SessionTag.Render("session " + m.controller.SessionID()),
	}

	if n := len(m.controller.PendingAttachments()); n > 0 {
		parts = append(parts, m.theme.Attachment.Render(fmt.Sprintf("%d file(s) queued", n)))
	}
	if m.controller.InFlight() {
		parts = append(parts, m.spinner.View()+m.theme.ThinkingText.Render(" answering"))
	}
	if m.status != "" {
		parts = append(parts, util.TruncateWidth(m.status, m.contentWidth()/2))
	}
	parts = append(parts, m.theme.StatusDesc.Render("ctrl+n new · ctrl+c quit"))

	return m.theme.StatusBar.Render(strings.Join(parts, "  "))
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// renderTranscript renders every turn for the viewport.
func (m *Model) renderTranscript() string {
	views := m.controller.Snapshot()
	if len(views) == 0 {
		return m.theme.StatusDesc.Render("Start a conversation. Attach files with /attach <path>.")
	}

	blocks := make([]string, 0, len(views))
	for _, turn := range views {
		blocks = append(blocks, m.renderTurn(turn))
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) renderTurn(turn model.TurnView) string {
	var b strings.Builder

	switch turn.Role {
	case model.RoleUser:
		b.WriteString(m.theme.UserLabel.Render(turn.Role.DisplayName()))
		b.WriteString("\n")
		b.WriteString(m.theme.UserText.Render(turn.Content))
		return b.String()

	case model.RoleAgent:
		b.WriteString(m.theme.AgentLabel.Render(turn.Role.DisplayName()))
		b.WriteString("\n")
	}

	// Side channels can span many lines; the transcript shows a one-line
	// preview of each.
	if turn.Thought != "" {
		b.WriteString(m.theme.ThoughtText.Render(util.TruncateWidth(util.FirstLine(turn.Thought), m.contentWidth()-2)))
		b.WriteString("\n")
	}
	if turn.Call != nil {
		b.WriteString(m.theme.ToolCallText.Render(turn.Call.Skill + " → " + turn.Call.Tool))
		b.WriteString("\n")
		if params := m.highlightParams(turn.Call.Params); params != "" {
			b.WriteString(params)
			b.WriteString("\n")
		}
	}
	if turn.Observation != "" {
		b.WriteString(m.theme.Observation.Render(util.TruncateWidth(util.FirstLine(turn.Observation), m.contentWidth()-2)))
		b.WriteString("\n")
	}

	switch turn.Status {
	case model.StatusFailed:
		b.WriteString(m.theme.FailedText.Render(turn.Content))
	case model.StatusStreaming:
		b.WriteString(m.theme.AgentText.Render(turn.Content))
		b.WriteString(m.theme.ThoughtText.Render(" ▍"))
	default:
		b.WriteString(m.renderAnswer(turn.Content))
	}
	return b.String()
}

// renderAnswer renders a settled agent answer, through glamour when enabled.
// Streaming turns never go through glamour; re-rendering a growing document
// on every delta flickers and wastes cycles.
func (m *Model) renderAnswer(content string) string {
	if m.renderer == nil || content == "" {
		return m.theme.AgentText.Render(content)
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return m.theme.AgentText.Render(content)
	}
	return strings.TrimRight(out, "\n")
}

// highlightParams pretty-prints tool call parameters with syntax coloring.
func (m *Model) highlightParams(params string) string {
	params = strings.TrimSpace(params)
	if params == "" {
		return ""
	}

	var buf strings.Builder
	if err := quick.Highlight(&buf, params, "json", "terminal256", "monokai"); err != nil {
		return m.theme.StatusDesc.Render(params)
	}
	return lipgloss.NewStyle().PaddingLeft(4).Render(strings.TrimRight(buf.String(), "\n"))
}
