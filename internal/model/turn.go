// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhangdahai112/LocalManus/internal/manus"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAgent:
		return "LocalManus"
	default:
		return string(r)
	}
}

// =============================================================================
// STATUS TYPE
// =============================================================================

// Status is the lifecycle state of a turn.
type Status string

const (
	// StatusPending: created but its stream has not started.
	StatusPending Status = "pending"
	// StatusStreaming: deltas are arriving. At most one turn per session is
	// ever in this state.
	StatusStreaming Status = "streaming"
	// StatusSettled: complete. User turns settle immediately on creation.
	StatusSettled Status = "settled"
	// StatusFailed: ended by a transport error.
	StatusFailed Status = "failed"
)

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn represents a single message in a conversation.
type Turn struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content. Immutable for user turns; for agent turns this is the final
	// text, merged from streamContent when the turn settles.
	Content string `json:"content"`
	Status  Status `json:"status"`

	// Streaming accumulator. strings.Builder keeps delta appends linear.
	streamContent strings.Builder

	// Side-channel text from the agent's reasoning loop.
	Thought     string `json:"thought,omitempty"`
	Observation string `json:"observation,omitempty"`

	// Structured tool invocation, if the agent announced one.
	Call *manus.ToolCall `json:"call,omitempty"`
}

// NewUserTurn creates a settled user turn. User turns never stream.
func NewUserTurn(content string) *Turn {
	return &Turn{
		ID:        generateTurnID(),
		Role:      RoleUser,
		Content:   content,
		Status:    StatusSettled,
		Timestamp: time.Now(),
	}
}

// NewAgentTurn creates the empty streaming placeholder appended when a
// response body begins arriving.
func NewAgentTurn() *Turn {
	return &Turn{
		ID:        generateTurnID(),
		Role:      RoleAgent,
		Status:    StatusStreaming,
		Timestamp: time.Now(),
	}
}

// NewFailedTurn creates a synthetic agent turn carrying a failure notice.
func NewFailedTurn(message string) *Turn {
	return &Turn{
		ID:        generateTurnID(),
		Role:      RoleAgent,
		Content:   message,
		Status:    StatusFailed,
		Timestamp: time.Now(),
	}
}

// =============================================================================
// TURN METHODS
// =============================================================================

// AppendDelta appends a content fragment to a streaming turn.
// Fragments are suffixes; order of application is arrival order.
func (t *Turn) AppendDelta(delta string) {
	if t.Status == StatusStreaming {
		t.streamContent.WriteString(delta)
	}
}

// Settle finalizes a streaming turn. An empty answer still settles; a turn
// must never hang in streaming state after its stream ends.
func (t *Turn) Settle() {
	if t.Status != StatusStreaming {
		return
	}
	t.Content = t.streamContent.String()
	t.streamContent.Reset()
	t.Status = StatusSettled
}

// Fail ends a streaming turn on a transport error. Accumulated partial
// content is kept; the fallback message is used only when nothing arrived.
func (t *Turn) Fail(fallback string) {
	if t.Status != StatusStreaming {
		return
	}
	t.Content = t.streamContent.String()
	t.streamContent.Reset()
	if t.Content == "" {
		t.Content = fallback
	}
	t.Status = StatusFailed
}

// DisplayContent returns the content to render (streaming or final).
func (t *Turn) DisplayContent() string {
	if t.Status == StatusStreaming {
		return t.streamContent.String()
	}
	return t.Content
}

// IsStreaming reports whether deltas may still arrive for this turn.
func (t *Turn) IsStreaming() bool {
	return t.Status == StatusStreaming
}

// View returns a rendering snapshot of the turn. The copy is detached from
// further mutation, so the UI always observes a consistent state.
func (t *Turn) View() TurnView {
	var call *manus.ToolCall
	if t.Call != nil {
		c := *t.Call
		call = &c
	}
	return TurnView{
		ID:          t.ID,
		Role:        t.Role,
		Status:      t.Status,
		Content:     t.DisplayContent(),
		Thought:     t.Thought,
		Observation: t.Observation,
		Call:        call,
		Timestamp:   t.Timestamp,
	}
}

// TurnView is an immutable value copy of a turn for rendering.
type TurnView struct {
	ID          string
	Role        Role
	Status      Status
	Content     string
	Thought     string
	Observation string
	Call        *manus.ToolCall
	Timestamp   time.Time
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateTurnID creates a unique turn ID.
func generateTurnID() string {
	return "turn_" + uuid.NewString()
}
