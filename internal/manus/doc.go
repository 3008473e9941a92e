// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package manus provides the HTTP client for the LocalManus agent backend.
//
// The backend streams each answer over a long-lived GET request whose body is
// an SSE-shaped sequence of lines. Recognized lines carry a "data: " prefix
// followed by either a JSON object or the literal "[DONE]" sentinel; every
// other line is ignored. The package splits into three layers:
//
//   - LineDecoder: incremental byte-chunk to text-line splitter. Chunks may
//     arrive in any size and may split a line, or even a single UTF-8
//     sequence, across chunk boundaries.
//   - event parsing: a recognized data line's JSON payload becomes a typed
//     StreamEvent. Malformed payloads are dropped and counted, never fatal,
//     because backends emit heartbeat and comment lines freely.
//   - Client: issues the chat request, the file upload, and the health check.
//
// A LineDecoder is single-use; the Client creates a fresh one per request.
package manus
