// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package manus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Protocol framing constants.
const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// =============================================================================
// LINE DECODER
// =============================================================================

// LineDecoder turns arbitrarily sized byte chunks into complete text lines.
//
// The transport may split a line, or a single multi-byte UTF-8 sequence,
// anywhere. Undecodable tail bytes are carried until the next chunk via the
// x/text streaming UTF-8 decoder; decoded text after the last newline is
// carried as the pending line fragment. One decoder serves exactly one
// response body.
type LineDecoder struct {
	utf8    transform.Transformer
	pending []byte // raw bytes not yet decoded (split rune tail)
	carry   string // decoded text after the last line terminator
	done    bool
}

// NewLineDecoder creates a decoder with empty carry-over state.
func NewLineDecoder() *LineDecoder {
	return &LineDecoder{
		utf8: unicode.UTF8.NewDecoder(),
	}
}

// Feed consumes one chunk and returns every line completed by it, in order.
// Zero-length chunks are valid and return nothing.
func (d *LineDecoder) Feed(chunk []byte) []string {
	if d.done || len(chunk) == 0 {
		return nil
	}
	d.pending = append(d.pending, chunk...)
	return d.split(d.decode(false))
}

// Finish flushes decoder state at end of stream and returns any remaining
// lines, including a final line that was never newline-terminated. The
// decoder is unusable afterwards.
func (d *LineDecoder) Finish() []string {
	if d.done {
		return nil
	}
	d.done = true

	lines := d.split(d.decode(true))
	if d.carry != "" {
		lines = append(lines, strings.TrimSuffix(d.carry, "\r"))
		d.carry = ""
	}
	return lines
}

// decode runs buffered bytes through the UTF-8 transformer. With atEOF false
// an incomplete trailing sequence stays buffered; with atEOF true it is
// finalized (invalid bytes become U+FFFD rather than being lost).
func (d *LineDecoder) decode(atEOF bool) string {
	if len(d.pending) == 0 {
		return ""
	}

	var out strings.Builder
	dst := make([]byte, 4096)
	for len(d.pending) > 0 {
		nDst, nSrc, err := d.utf8.Transform(dst, d.pending, atEOF)
		out.Write(dst[:nDst])
		d.pending = d.pending[nSrc:]

		if err == transform.ErrShortDst {
			continue
		}
		if err == transform.ErrShortSrc {
			// Split rune at the chunk boundary; wait for more bytes.
			break
		}
		if err != nil {
			break
		}
	}
	return out.String()
}

// split appends decoded text to the carry buffer and extracts complete lines.
// The final fragment (possibly empty) becomes the new carry buffer.
func (d *LineDecoder) split(text string) []string {
	if text == "" {
		return nil
	}

	parts := strings.Split(d.carry+text, "\n")
	d.carry = parts[len(parts)-1]

	lines := parts[:len(parts)-1]
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	return lines
}

// =============================================================================
// EVENT PARSING
// =============================================================================

// recognizeDataLine reports whether a line is a protocol data line and, if
// so, returns its trimmed payload. Empty lines, comments, and heartbeats all
// fail recognition and are silently dropped.
func recognizeDataLine(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, dataPrefix) {
		return "", false
	}
	return strings.TrimSpace(trimmed[len(dataPrefix):]), true
}

// parseEvent converts a data-line payload into a typed event. A payload that
// is not a JSON object is an error; the caller drops it and continues. A
// valid object with no known field parses as EventUnrecognized.
func parseEvent(payload string) (StreamEvent, error) {
	var frame struct {
		Content     *string   `json:"content"`
		Thought     *string   `json:"thought"`
		Observation *string   `json:"observation"`
		Call        *ToolCall `json:"call"`
	}
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return StreamEvent{}, err
	}

	switch {
	case frame.Content != nil:
		return StreamEvent{Kind: EventContent, Content: *frame.Content}, nil
	case frame.Thought != nil:
		return StreamEvent{Kind: EventThought, Thought: *frame.Thought}, nil
	case frame.Observation != nil:
		return StreamEvent{Kind: EventObservation, Observation: *frame.Observation}, nil
	case frame.Call != nil:
		return StreamEvent{Kind: EventToolCall, Call: frame.Call}, nil
	default:
		return StreamEvent{Kind: EventUnrecognized}, nil
	}
}

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader drains one response body and delivers parsed events.
type StreamReader struct {
	reader  io.Reader
	decoder *LineDecoder
	logger  *slog.Logger
	dropped int
}

// NewStreamReader creates a reader over an open response body.
func NewStreamReader(r io.Reader, logger *slog.Logger) *StreamReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamReader{
		reader:  r,
		decoder: NewLineDecoder(),
		logger:  logger,
	}
}

// Process reads until end of stream, invoking the callback for each event in
// arrival order. Event delivery for one chunk is synchronous: the next chunk
// is not read until the callback has seen every event the previous chunk
// completed. A stream that ends without the termination sentinel completes
// normally; servers are allowed to omit it.
func (s *StreamReader) Process(ctx context.Context, callback EventCallback) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := s.reader.Read(buf)
		if n > 0 {
			for _, line := range s.decoder.Feed(buf[:n]) {
				s.emit(line, callback)
			}
		}
		if err != nil {
			if err == io.EOF {
				for _, line := range s.decoder.Finish() {
					s.emit(line, callback)
				}
				return nil
			}
			return err
		}
	}
}

// emit filters one line and forwards its event, if any.
func (s *StreamReader) emit(line string, callback EventCallback) {
	payload, ok := recognizeDataLine(line)
	if !ok {
		return
	}
	if payload == doneSentinel {
		return
	}

	event, err := parseEvent(payload)
	if err != nil {
		// One malformed line is independent of all others.
		s.dropped++
		s.logger.Debug("dropped malformed stream payload",
			"error", err,
			"dropped_total", s.dropped)
		return
	}
	callback(event)
}

// Dropped returns how many malformed payloads were skipped so far.
func (s *StreamReader) Dropped() int {
	return s.dropped
}
