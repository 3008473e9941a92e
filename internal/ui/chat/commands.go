// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhangdahai112/LocalManus/internal/util"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const helpText = `/new              start a new conversation
/attach <path>    upload a file and queue it for the next message
/clear-files      drop queued attachments
/files            list recently uploaded files
/help             show this help
/quit             exit`

// runCommand executes one slash command line.
func (m *Model) runCommand(line string) tea.Cmd {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/new":
		m.controller.NewChat()
		m.status = "new conversation " + m.controller.SessionID()
		return nil

	case "/attach":
		if arg == "" {
			m.status = "usage: /attach <path>"
			return nil
		}
		if _, err := os.Stat(arg); err != nil {
			m.status = "cannot read " + arg
			return nil
		}
		m.status = "uploading " + arg + "..."
		return m.uploadCmd(arg)

	case "/clear-files":
		m.controller.ClearAttachments()
		m.status = "attachments cleared"
		return nil

	case "/files":
		return m.listFilesCmd()

	case "/help":
		m.status = ""
		m.viewport.SetContent(helpText)
		return nil

	case "/quit", "/exit":
		m.quitting = true
		return tea.Quit

	default:
		m.status = "unknown command " + name
		return nil
	}
}

// listFilesCmd reads the upload catalog off the UI goroutine.
func (m *Model) listFilesCmd() tea.Cmd {
	if m.store == nil {
		m.status = "upload catalog disabled"
		return nil
	}
	return func() tea.Msg {
		records, err := m.store.Recent(10)
		if err != nil {
			return statusMsg("catalog read failed: " + err.Error())
		}
		if len(records) == 0 {
			return statusMsg("no uploads yet")
		}
		var b strings.Builder
		for _, rec := range records {
			name := util.PadRight(util.TruncateWidth(rec.File.OriginalFilename, 28), 28)
			fmt.Fprintf(&b, "%s  %s\n", name, rec.UploadedAt.Format("01-02 15:04"))
		}
		return statusMsg(strings.TrimRight(b.String(), "\n"))
	}
}
