// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// repl.go - Plain-terminal chat loop for non-TTY-graphics environments.
//
// Used when the full TUI cannot run (dumb terminals, piped output, --plain).
// Streams the agent's answer incrementally to stdout as deltas arrive.
//
// Interactive Commands (during chat):
//   /new                Start a new conversation
//   /attach <path>      Upload a file for the next message
//   /files              List recent uploads
//   /help, /h           Show available commands
//   /quit, /q           Exit chat
//   Ctrl+C, Ctrl+D      Exit chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/zhangdahai112/LocalManus/internal/manus"
	"github.com/zhangdahai112/LocalManus/internal/model"
	"github.com/zhangdahai112/LocalManus/internal/session"
	"github.com/zhangdahai112/LocalManus/internal/storage"
	"github.com/zhangdahai112/LocalManus/internal/ui/styles"
	"github.com/zhangdahai112/LocalManus/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	agentStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose)

	mutedStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)
)

const replHelp = `  /new                start a new conversation
  /attach <path>      upload a file for the next message
  /files              list recent uploads
  /help, /h           show this help
  /quit, /q           exit`

// =============================================================================
// REPL
// =============================================================================

// Repl is the line-oriented chat loop.
type Repl struct {
	controller *session.Controller
	client     *manus.Client
	store      *storage.UploadStore
	logger     *slog.Logger

	updates chan struct{}

	// printed tracks how much of the streaming turn's content is already on
	// screen, so each notification prints only the new suffix.
	printed int
}

// NewRepl creates the plain chat loop. The store may be nil.
func NewRepl(controller *session.Controller, client *manus.Client, store *storage.UploadStore, logger *slog.Logger) *Repl {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repl{
		controller: controller,
		client:     client,
		store:      store,
		logger:     logger,
		updates:    make(chan struct{}, 1),
	}
	controller.Subscribe(func() {
		select {
		case r.updates <- struct{}{}:
		default:
		}
	})
	return r
}

// Run drives the loop until /quit, EOF, or context cancellation.
func (r *Repl) Run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println(agentStyle.Render("LocalManus") + mutedStyle.Render("  session "+r.controller.SessionID()))
	fmt.Println(mutedStyle.Render("Type a message, /help for commands."))

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		input, err := line.Prompt(promptStyle.Render("> "))
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(input)
		if trimmed != "" {
			line.AppendHistory(input)
		}

		if strings.HasPrefix(trimmed, "/") {
			if quit := r.runCommand(ctx, trimmed); quit {
				return nil
			}
			continue
		}

		if err := r.submitAndStream(ctx, input); err != nil {
			fmt.Println(errorStyle.Render(err.Error()))
		}
	}
}

// submitAndStream dispatches one turn and prints the answer as it arrives.
func (r *Repl) submitAndStream(ctx context.Context, text string) error {
	if err := r.controller.Submit(ctx, text); err != nil {
		return err
	}

	r.printed = 0
	fmt.Print(agentStyle.Render(model.RoleAgent.DisplayName()) + ": ")

	for r.controller.InFlight() {
		select {
		case <-ctx.Done():
			fmt.Println()
			return ctx.Err()
		case <-r.updates:
			r.printDelta()
		}
	}
	r.printDelta()
	r.printEpilogue()
	fmt.Println()
	return nil
}

// printDelta writes the not-yet-printed suffix of the last agent turn.
func (r *Repl) printDelta() {
	views := r.controller.Snapshot()
	if len(views) == 0 {
		return
	}
	last := views[len(views)-1]
	if last.Role != model.RoleAgent {
		return
	}

	content := last.Content
	if last.Status == model.StatusFailed {
		content = ""
	}
	if len(content) > r.printed {
		fmt.Print(content[r.printed:])
		r.printed = len(content)
	}
}

// printEpilogue reports failure and side-channel summaries after settlement.
func (r *Repl) printEpilogue() {
	views := r.controller.Snapshot()
	if len(views) == 0 {
		return
	}
	last := views[len(views)-1]
	if last.Role != model.RoleAgent {
		return
	}

	if last.Status == model.StatusFailed {
		fmt.Print(errorStyle.Render(last.Content))
		return
	}
	if last.Call != nil {
		line := "tool: " + last.Call.Skill + "/" + last.Call.Tool
		if params := strings.TrimSpace(last.Call.Params); params != "" {
			line += " " + util.TruncateRunes(params, 80)
		}
		fmt.Print("\n" + mutedStyle.Render(line))
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

// runCommand executes a slash command; returns true to exit.
func (r *Repl) runCommand(ctx context.Context, cmd string) bool {
	name, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		fmt.Println(replHelp)

	case "/new":
		r.controller.NewChat()
		fmt.Println(mutedStyle.Render("new conversation " + r.controller.SessionID()))

	case "/attach":
		if arg == "" {
			fmt.Println(errorStyle.Render("usage: /attach <path>"))
			return false
		}
		r.attach(ctx, arg)

	case "/files":
		r.listFiles()

	default:
		fmt.Println(errorStyle.Render("unknown command " + name))
	}
	return false
}

func (r *Repl) attach(ctx context.Context, path string) {
	file, err := r.client.Upload(ctx, path)
	if err != nil {
		fmt.Println(errorStyle.Render("upload failed: " + err.Error()))
		return
	}
	if r.store != nil {
		if err := r.store.Record(*file); err != nil {
			r.logger.Warn("upload catalog write failed", "error", err)
		}
	}
	r.controller.AddAttachment(*file)
	fmt.Println(mutedStyle.Render("attached " + filepath.Base(file.OriginalFilename)))
}

func (r *Repl) listFiles() {
	if r.store == nil {
		fmt.Println(mutedStyle.Render("upload catalog disabled"))
		return
	}
	records, err := r.store.Recent(10)
	if err != nil {
		fmt.Println(errorStyle.Render("catalog read failed: " + err.Error()))
		return
	}
	if len(records) == 0 {
		fmt.Println(mutedStyle.Render("no uploads yet"))
		return
	}
	for _, rec := range records {
		name := util.PadRight(util.TruncateWidth(rec.File.OriginalFilename, 28), 28)
		fmt.Printf("  %s  %s\n", name, rec.UploadedAt.Format("01-02 15:04"))
	}
}
