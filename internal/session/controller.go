// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/zhangdahai112/LocalManus/internal/manus"
	"github.com/zhangdahai112/LocalManus/internal/model"
)

// FailureMessage is the fixed user-facing text shown when a turn fails.
// It matches what the backend's own web client shows.
const FailureMessage = "抱歉，发生了错误。请稍后再试。"

// Submission errors. Both leave the transcript untouched.
var (
	ErrEmptySubmission = errors.New("submission has no text and no attachments")
	ErrTurnInFlight    = errors.New("a turn is already streaming")
)

// notifyPerSecond caps coalesced transcript-changed notifications during
// streaming. Settle and failure always notify immediately.
const notifyPerSecond = 30

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns one conversation and drives one streamed turn at a time.
type Controller struct {
	mu sync.Mutex

	client     *manus.Client
	logger     *slog.Logger
	sessionID  string
	transcript *model.Transcript

	// pending attachments are scoped to the next turn and consumed exactly
	// once on successful dispatch.
	pending []manus.UploadedFile

	inflight bool

	subscribers []func()
	limiter     *rate.Limiter
}

// NewController creates a controller with a fresh session identity.
// The client is explicit configuration; the controller never reads ambient
// state such as environment tokens on its own.
func NewController(client *manus.Client, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		client:     client,
		logger:     logger,
		sessionID:  newSessionID(),
		transcript: model.NewTranscript(),
		limiter:    rate.NewLimiter(rate.Limit(notifyPerSecond), 1),
	}
}

// =============================================================================
// SESSION STATE
// =============================================================================

// SessionID returns the current session identity.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// InFlight reports whether a turn is currently dispatched or streaming.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight
}

// Snapshot returns value copies of the transcript for rendering.
func (c *Controller) Snapshot() []model.TurnView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Snapshot()
}

// NewChat resets the conversation: new session id, empty transcript, cleared
// attachments. An in-flight turn is abandoned; its late-arriving events fail
// the identity check and never touch the new transcript.
func (c *Controller) NewChat() {
	c.mu.Lock()
	c.sessionID = newSessionID()
	c.transcript = model.NewTranscript()
	c.pending = nil
	c.inflight = false
	c.mu.Unlock()

	c.notify()
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// AddAttachment queues an uploaded file for the next turn.
func (c *Controller) AddAttachment(file manus.UploadedFile) {
	c.mu.Lock()
	c.pending = append(c.pending, file)
	c.mu.Unlock()

	c.notify()
}

// PendingAttachments returns a copy of the attachments queued for the next
// turn.
func (c *Controller) PendingAttachments() []manus.UploadedFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]manus.UploadedFile, len(c.pending))
	copy(out, c.pending)
	return out
}

// ClearAttachments drops all queued attachments without dispatching.
func (c *Controller) ClearAttachments() {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()

	c.notify()
}

// =============================================================================
// SUBSCRIPTION
// =============================================================================

// Subscribe registers a transcript-changed callback. Callbacks fire after
// each atomic transcript update, outside the controller lock, on whatever
// goroutine performed the update. During heavy streaming, intermediate
// notifications are coalesced; settlement and failure always notify.
func (c *Controller) Subscribe(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

func (c *Controller) notify() {
	c.mu.Lock()
	subs := make([]func(), len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// notifyCoalesced drops notifications beyond the rate cap. A dropped
// notification is always made up for by the next one or by the forced
// notify on settle/fail.
func (c *Controller) notifyCoalesced() {
	if c.limiter.Allow() {
		c.notify()
	}
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit starts one turn: it appends the user turn, consumes the pending
// attachments, and streams the answer on a background goroutine. It returns
// ErrTurnInFlight while a turn is streaming and ErrEmptySubmission when
// there is neither text nor an attachment; both leave every observable
// unchanged. The context governs the whole streamed turn.
func (c *Controller) Submit(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)

	c.mu.Lock()
	if c.inflight {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	if trimmed == "" && len(c.pending) == 0 {
		c.mu.Unlock()
		return ErrEmptySubmission
	}

	// idle → dispatched. Attachments are consumed exactly once, never
	// resent on a later turn.
	files := c.pending
	c.pending = nil
	c.inflight = true
	sessionID := c.sessionID

	params := manus.ChatParams{
		Input:     text,
		SessionID: sessionID,
		FilePaths: composeFilePaths(files),
	}
	c.transcript.Append(model.NewUserTurn(composeDisplay(text, files)))
	c.mu.Unlock()

	c.notify()

	go c.runTurn(ctx, sessionID, params)
	return nil
}

// runTurn drives one dispatched turn to settlement or failure.
func (c *Controller) runTurn(ctx context.Context, sessionID string, params manus.ChatParams) {
	stream, err := c.client.Chat(ctx, params)
	if err != nil {
		// dispatched → failed, before any byte arrived.
		c.logger.Warn("chat dispatch failed", "session", sessionID, "error", err)
		c.failTurn(sessionID)
		return
	}

	// dispatched → streaming: the body has started arriving, so the UI gets
	// its placeholder turn now.
	if !c.beginStreaming(sessionID) {
		// Session was reset between dispatch and first byte; drain nothing,
		// just drop the stale stream.
		stream.Process(ctx, func(manus.StreamEvent) {})
		return
	}

	err = stream.Process(ctx, func(event manus.StreamEvent) {
		c.applyEvent(sessionID, event)
	})
	if err != nil {
		c.logger.Warn("chat stream aborted", "session", sessionID, "error", err)
		c.failTurn(sessionID)
		return
	}
	if dropped := stream.Dropped(); dropped > 0 {
		c.logger.Info("stream finished with malformed payloads skipped",
			"session", sessionID, "dropped", dropped)
	}

	// streaming → settled. Truncation without the sentinel lands here too.
	c.settleTurn(sessionID)
}

// beginStreaming appends the placeholder agent turn. Returns false when the
// session identity went stale, in which case nothing is appended.
func (c *Controller) beginStreaming(sessionID string) bool {
	c.mu.Lock()
	if c.sessionID != sessionID {
		c.mu.Unlock()
		return false
	}
	c.transcript.Append(model.NewAgentTurn())
	c.mu.Unlock()

	c.notify()
	return true
}

// applyEvent folds one stream event into the transcript, discarding events
// whose session identity no longer matches.
func (c *Controller) applyEvent(sessionID string, event manus.StreamEvent) {
	c.mu.Lock()
	if c.sessionID != sessionID {
		c.mu.Unlock()
		return
	}
	changed := c.transcript.Apply(event)
	c.mu.Unlock()

	if changed {
		c.notifyCoalesced()
	}
}

// settleTurn finishes the streaming turn and releases the in-flight slot.
func (c *Controller) settleTurn(sessionID string) {
	c.mu.Lock()
	if c.sessionID != sessionID {
		c.mu.Unlock()
		return
	}
	c.transcript.SettleStreaming()
	c.inflight = false
	c.mu.Unlock()

	c.notify()
}

// failTurn records the fixed failure message and releases the in-flight
// slot. There is no automatic retry; the user resubmits.
func (c *Controller) failTurn(sessionID string) {
	c.mu.Lock()
	if c.sessionID != sessionID {
		c.mu.Unlock()
		return
	}
	c.transcript.FailStreaming(FailureMessage)
	c.inflight = false
	c.mu.Unlock()

	c.notify()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// newSessionID generates a short opaque base36 identifier, the same wire
// shape the backend's web client uses, from a real entropy source.
func newSessionID() string {
	var buf [8]byte
	rand.Read(buf[:])
	n := binary.BigEndian.Uint64(buf[:])
	id := strconv.FormatUint(n, 36)
	if len(id) > 9 {
		id = id[:9]
	}
	return id
}
