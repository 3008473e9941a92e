// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package manus

// =============================================================================
// STREAM EVENT TYPES
// =============================================================================

// EventKind identifies what a parsed stream event carries.
type EventKind int

const (
	// EventUnrecognized is a well-formed payload with no known field.
	// It reaches the transcript layer and is a no-op there, so the wire
	// format can grow server-side metadata without breaking old clients.
	EventUnrecognized EventKind = iota

	// EventContent carries an incremental fragment of the answer text.
	// Fragments are suffix appends, never replacements.
	EventContent

	// EventThought carries reasoning side-channel text.
	EventThought

	// EventObservation carries tool-observation side-channel text.
	EventObservation

	// EventToolCall announces a structured skill/tool invocation.
	EventToolCall
)

// String returns a short name for the event kind.
func (k EventKind) String() string {
	switch k {
	case EventContent:
		return "content"
	case EventThought:
		return "thought"
	case EventObservation:
		return "observation"
	case EventToolCall:
		return "tool_call"
	default:
		return "unrecognized"
	}
}

// ToolCall describes a skill/tool invocation announced by the agent.
// Params stays serialized; this client only displays it.
type ToolCall struct {
	Skill  string `json:"skill"`
	Tool   string `json:"tool"`
	Params string `json:"params"`
}

// StreamEvent is one decoded application event from the answer stream.
type StreamEvent struct {
	Kind        EventKind
	Content     string
	Thought     string
	Observation string
	Call        *ToolCall
}

// EventCallback receives stream events in arrival order.
type EventCallback func(StreamEvent)

// =============================================================================
// UPLOAD TYPES
// =============================================================================

// UploadedFile is the backend's identity for a previously uploaded file.
// Only FilePath travels back upstream on a chat request; OriginalFilename is
// what the transcript shows.
type UploadedFile struct {
	ID               int64  `json:"id"`
	Filename         string `json:"filename"`
	OriginalFilename string `json:"original_filename"`
	FilePath         string `json:"file_path"`
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeStatus
	ErrTypeInvalidResponse
)

// ClientError represents an error from the LocalManus client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Sentinel errors for easy checking.
var (
	ErrNotRunning = &ClientError{Type: ErrTypeConnection, Message: "LocalManus backend is not reachable"}
	ErrTimeout    = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
)
