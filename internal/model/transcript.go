// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"github.com/zhangdahai112/LocalManus/internal/manus"
)

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript holds the ordered turn sequence of one conversation.
//
// Transcript is not internally synchronized; the session controller owns one
// instance and serializes every mutation under its own lock.
type Transcript struct {
	turns []*Turn
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{turns: make([]*Turn, 0)}
}

// =============================================================================
// TURN MANAGEMENT
// =============================================================================

// Append adds a turn to the end of the transcript.
func (tr *Transcript) Append(t *Turn) {
	tr.turns = append(tr.turns, t)
}

// Last returns the most recent turn, or nil if empty.
func (tr *Transcript) Last() *Turn {
	if len(tr.turns) == 0 {
		return nil
	}
	return tr.turns[len(tr.turns)-1]
}

// StreamingTurn returns the turn currently in streaming state, or nil.
// The controller guarantees at most one exists; it is always the last turn.
func (tr *Transcript) StreamingTurn() *Turn {
	last := tr.Last()
	if last != nil && last.IsStreaming() {
		return last
	}
	return nil
}

// Len returns the number of turns.
func (tr *Transcript) Len() int {
	return len(tr.turns)
}

// IsEmpty returns true if there are no turns.
func (tr *Transcript) IsEmpty() bool {
	return len(tr.turns) == 0
}

// =============================================================================
// EVENT REDUCTION
// =============================================================================

// Apply folds one stream event into the transcript and reports whether the
// transcript changed. Content deltas append to the streaming turn; thought,
// observation, and tool-call events fill its side channels; everything else,
// including unrecognized-but-valid payloads, is a no-op. Events arriving
// with no turn in streaming state are discarded.
func (tr *Transcript) Apply(event manus.StreamEvent) bool {
	streaming := tr.StreamingTurn()
	if streaming == nil {
		return false
	}

	switch event.Kind {
	case manus.EventContent:
		streaming.AppendDelta(event.Content)
		return true
	case manus.EventThought:
		streaming.Thought += event.Thought
		return true
	case manus.EventObservation:
		streaming.Observation += event.Observation
		return true
	case manus.EventToolCall:
		streaming.Call = event.Call
		return true
	default:
		return false
	}
}

// SettleStreaming settles the streaming turn, if any. Called at end of
// stream; an empty answer settles like any other.
func (tr *Transcript) SettleStreaming() bool {
	streaming := tr.StreamingTurn()
	if streaming == nil {
		return false
	}
	streaming.Settle()
	return true
}

// FailStreaming ends the turn on a transport error. The fixed user-facing
// message always surfaces: a streaming turn that accumulated partial content
// keeps it and the notice is appended as its own failed turn, the way the
// backend's web client reports mid-answer errors. An empty streaming turn,
// or no streaming turn at all (the request failed before the body arrived),
// yields a single failed turn carrying the message.
func (tr *Transcript) FailStreaming(message string) {
	if streaming := tr.StreamingTurn(); streaming != nil {
		hadPartial := streaming.DisplayContent() != ""
		streaming.Fail(message)
		if !hadPartial {
			return
		}
	}
	tr.Append(NewFailedTurn(message))
}

// =============================================================================
// RENDERING SNAPSHOT
// =============================================================================

// Snapshot returns value copies of every turn for rendering.
func (tr *Transcript) Snapshot() []TurnView {
	views := make([]TurnView, len(tr.turns))
	for i, t := range tr.turns {
		views[i] = t.View()
	}
	return views
}
