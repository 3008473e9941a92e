// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhangdahai112/LocalManus/internal/session"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all Bubble Tea messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.SetSize(msg.Width, msg.Height)

		headerHeight := 1
		inputHeight := 3
		statusHeight := 1
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - headerHeight - inputHeight - statusHeight
		if m.viewport.Height < 3 {
			m.viewport.Height = 3
		}
		m.input.Width = msg.Width - 6

		m.initRenderer()
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case transcriptChangedMsg:
		m.refreshTranscript()
		return m, m.waitForUpdate()

	case uploadResultMsg:
		if msg.err != nil {
			m.status = "upload failed: " + msg.err.Error()
			return m, nil
		}
		m.controller.AddAttachment(msg.file)
		m.status = "attached " + msg.file.OriginalFilename
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKey routes keyboard input.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "ctrl+n":
		return m, m.runCommand("/new")

	case "enter":
		text := m.input.Value()
		m.input.SetValue("")

		if strings.HasPrefix(strings.TrimSpace(text), "/") {
			return m, m.runCommand(strings.TrimSpace(text))
		}
		return m, m.submit(text)

	case "up", "down", "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit hands the text to the controller. Rejections surface on the status
// line; the transcript itself only changes through controller notifications.
func (m *Model) submit(text string) tea.Cmd {
	err := m.controller.Submit(context.Background(), text)
	switch {
	case errors.Is(err, session.ErrTurnInFlight):
		m.status = "still answering, wait for the turn to finish"
	case errors.Is(err, session.ErrEmptySubmission):
		m.status = "type a message or attach a file first"
	case err != nil:
		m.status = err.Error()
	default:
		m.status = ""
	}
	return nil
}

// refreshTranscript re-renders the viewport content and follows the tail.
func (m *Model) refreshTranscript() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if atBottom {
		m.viewport.GotoBottom()
	}
}
