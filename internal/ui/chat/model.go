// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the conversation view for the LocalManus TUI.
//
// The Bubble Tea model renders the transcript owned by the session
// controller and never mutates it directly; every user action goes through
// controller methods and every repaint is driven by a transcript-changed
// notification bridged into the Bubble Tea loop as a message.
package chat

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/zhangdahai112/LocalManus/internal/manus"
	"github.com/zhangdahai112/LocalManus/internal/session"
	"github.com/zhangdahai112/LocalManus/internal/storage"
	"github.com/zhangdahai112/LocalManus/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// transcriptChangedMsg signals that the controller updated the transcript.
type transcriptChangedMsg struct{}

// uploadResultMsg delivers the outcome of a background file upload.
type uploadResultMsg struct {
	file manus.UploadedFile
	err  error
}

// statusMsg replaces the transient status line.
type statusMsg string

// =============================================================================
// CHAT MODEL
// =============================================================================

// Options configures the chat model.
type Options struct {
	// Markdown enables glamour rendering of settled agent answers
	Markdown bool
	// Version is shown in the header
	Version string
}

// Model is the Bubble Tea model for the conversation view.
type Model struct {
	controller *session.Controller
	client     *manus.Client
	store      *storage.UploadStore
	logger     *slog.Logger

	theme *styles.Theme
	opts  Options

	width  int
	height int

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// renderer is nil when markdown is disabled or the terminal is too
	// narrow to initialize glamour.
	renderer *glamour.TermRenderer

	// updates carries coalesced transcript-changed notifications from the
	// controller goroutine into the Bubble Tea loop.
	updates chan struct{}

	status   string
	quitting bool
}

// New creates the conversation view. The store may be nil; uploads then skip
// the local catalog.
func New(controller *session.Controller, client *manus.Client, store *storage.UploadStore, logger *slog.Logger, opts Options) *Model {
	if logger == nil {
		logger = slog.Default()
	}

	input := textinput.New()
	input.Placeholder = "Message LocalManus, or /help for commands"
	input.CharLimit = 0
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		controller: controller,
		client:     client,
		store:      store,
		logger:     logger,
		theme:      styles.NewTheme(),
		opts:       opts,
		viewport:   viewport.New(80, 20),
		input:      input,
		spinner:    sp,
		updates:    make(chan struct{}, 1),
	}
	m.spinner.Style = m.theme.Spinner

	// A full channel already guarantees a pending repaint.
	controller.Subscribe(func() {
		select {
		case m.updates <- struct{}{}:
		default:
		}
	})

	return m
}

// Init starts the spinner and the transcript-changed listener.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForUpdate())
}

// waitForUpdate blocks on the notification channel and re-arms itself from
// Update after every delivery.
func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		<-m.updates
		return transcriptChangedMsg{}
	}
}

// uploadCmd uploads one file in the background and reports the result.
func (m *Model) uploadCmd(path string) tea.Cmd {
	return func() tea.Msg {
		file, err := m.client.Upload(context.Background(), path)
		if err != nil {
			return uploadResultMsg{err: err}
		}
		if m.store != nil {
			if err := m.store.Record(*file); err != nil {
				m.logger.Warn("upload catalog write failed", "error", err)
			}
		}
		return uploadResultMsg{file: *file}
	}
}

// initRenderer builds the markdown renderer for the current width.
func (m *Model) initRenderer() {
	if !m.opts.Markdown || m.width < 20 {
		m.renderer = nil
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(m.contentWidth()),
	)
	if err != nil {
		m.logger.Warn("markdown renderer unavailable", "error", err)
		m.renderer = nil
		return
	}
	m.renderer = r
}

// contentWidth is the usable transcript width inside the viewport.
func (m *Model) contentWidth() int {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	return w
}
