// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"

	"github.com/zhangdahai112/LocalManus/internal/manus"
)

// =============================================================================
// ATTACHMENT COMPOSITION
// =============================================================================

// Attachments never travel inside the text parameter; the wire carries the
// literal input plus a separate comma-joined file_paths value. Only the
// local transcript entry interleaves the two, so the rendered history shows
// what was actually sent.

// composeFilePaths returns the server-known paths for the wire parameter.
func composeFilePaths(files []manus.UploadedFile) []string {
	if len(files) == 0 {
		return nil
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.FilePath
	}
	return paths
}

// composeDisplay builds the user-turn transcript text: one line per
// attachment, listed by original filename, then the free text.
func composeDisplay(text string, files []manus.UploadedFile) string {
	if len(files) == 0 {
		return text
	}

	var b strings.Builder
	for i, f := range files {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("[文件: ")
		b.WriteString(f.OriginalFilename)
		b.WriteString("]")
	}
	if text != "" {
		b.WriteString("\n\n")
		b.WriteString(text)
	}
	return b.String()
}
