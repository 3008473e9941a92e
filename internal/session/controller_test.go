// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhangdahai112/LocalManus/internal/manus"
	"github.com/zhangdahai112/LocalManus/internal/model"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// waitFor polls a condition until it holds or the deadline passes.
// Streaming runs on a background goroutine, so assertions on its outcome
// need to wait for settlement.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func settled(c *Controller) func() bool {
	return func() bool {
		return !c.InFlight() && len(c.Snapshot()) > 0
	}
}

func newTestController(t *testing.T, handler http.HandlerFunc) (*Controller, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := manus.NewClientWithConfig(&manus.ClientConfig{BaseURL: server.URL})
	return NewController(client, nil), server
}

func streamHandler(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			w.Write([]byte(line + "\n"))
		}
	}
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestSubmitStreamsAndSettles(t *testing.T) {
	c, _ := newTestController(t, streamHandler(
		`data: {"content":"He"}`,
		`data: {"content":"llo"}`,
		`data: [DONE]`,
	))

	require.NoError(t, c.Submit(context.Background(), "hi there"))
	waitFor(t, settled(c))

	views := c.Snapshot()
	require.Len(t, views, 2)

	require.Equal(t, model.RoleUser, views[0].Role)
	require.Equal(t, "hi there", views[0].Content)
	require.Equal(t, model.StatusSettled, views[0].Status)

	require.Equal(t, model.RoleAgent, views[1].Role)
	require.Equal(t, "Hello", views[1].Content)
	require.Equal(t, model.StatusSettled, views[1].Status)

	require.False(t, c.InFlight())
}

func TestEmptyResponseStillSettles(t *testing.T) {
	// Zero data lines: the placeholder must settle, not hang in streaming.
	c, _ := newTestController(t, streamHandler())

	require.NoError(t, c.Submit(context.Background(), "anyone home?"))
	waitFor(t, settled(c))

	views := c.Snapshot()
	require.Len(t, views, 2)
	require.Equal(t, model.StatusSettled, views[1].Status)
	require.Equal(t, "", views[1].Content)
}

func TestMalformedLineBetweenDeltas(t *testing.T) {
	c, _ := newTestController(t, streamHandler(
		`data: {"content":"He"}`,
		`data: {not json`,
		`data: {"content":"llo"}`,
		`data: [DONE]`,
	))

	require.NoError(t, c.Submit(context.Background(), "q"))
	waitFor(t, settled(c))

	views := c.Snapshot()
	require.Equal(t, "Hello", views[len(views)-1].Content)
	require.Equal(t, model.StatusSettled, views[len(views)-1].Status)
}

// =============================================================================
// SUBMISSION GUARDS
// =============================================================================

func TestEmptySubmissionRejected(t *testing.T) {
	c, _ := newTestController(t, streamHandler())

	err := c.Submit(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptySubmission)
	require.Empty(t, c.Snapshot())
	require.False(t, c.InFlight())
}

func TestAtMostOneInFlight(t *testing.T) {
	release := make(chan struct{})
	var requests atomic.Int32

	c, _ := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"content\":\"first\"}\n"))
		w.(http.Flusher).Flush()
		<-release
	})

	require.NoError(t, c.Submit(context.Background(), "one"))
	waitFor(t, func() bool { return len(c.Snapshot()) == 2 })

	before := c.Snapshot()
	err := c.Submit(context.Background(), "two")
	require.ErrorIs(t, err, ErrTurnInFlight)

	// No new turn appended, no request issued.
	require.Len(t, c.Snapshot(), len(before))
	require.Equal(t, int32(1), requests.Load())

	close(release)
	waitFor(t, settled(c))
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

func TestAttachmentOnlySubmissionDispatches(t *testing.T) {
	var gotFilePaths atomic.Value

	c, _ := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		gotFilePaths.Store(r.URL.Query().Get("file_paths"))
		w.Write([]byte("data: [DONE]\n"))
	})

	c.AddAttachment(manus.UploadedFile{
		ID:               1,
		OriginalFilename: "report.pdf",
		FilePath:         "/srv/up/1_report.pdf",
	})

	require.NoError(t, c.Submit(context.Background(), ""))
	waitFor(t, settled(c))

	views := c.Snapshot()
	require.Contains(t, views[0].Content, "[文件: report.pdf]")
	require.NotContains(t, views[0].Content, "\n\n")
	require.Equal(t, "/srv/up/1_report.pdf", gotFilePaths.Load())

	// Consumed exactly once.
	require.Empty(t, c.PendingAttachments())
}

func TestAttachmentsNotResentOnNextTurn(t *testing.T) {
	var lastFilePaths atomic.Value

	c, _ := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		lastFilePaths.Store(r.URL.Query().Get("file_paths"))
		w.Write([]byte("data: [DONE]\n"))
	})

	c.AddAttachment(manus.UploadedFile{OriginalFilename: "a.txt", FilePath: "/srv/a"})
	require.NoError(t, c.Submit(context.Background(), "with file"))
	waitFor(t, settled(c))
	require.Equal(t, "/srv/a", lastFilePaths.Load())

	require.NoError(t, c.Submit(context.Background(), "without file"))
	waitFor(t, func() bool { return !c.InFlight() })
	require.Equal(t, "", lastFilePaths.Load())
}

// =============================================================================
// FAILURE PATHS
// =============================================================================

func TestTransportErrorBeforeAnyByte(t *testing.T) {
	server := httptest.NewServer(nil)
	url := server.URL
	server.Close() // nothing listens here anymore

	client := manus.NewClientWithConfig(&manus.ClientConfig{BaseURL: url})
	c := NewController(client, nil)

	require.NoError(t, c.Submit(context.Background(), "hello?"))
	waitFor(t, settled(c))

	views := c.Snapshot()
	require.Len(t, views, 2) // user turn + exactly one synthetic failed turn
	require.Equal(t, model.RoleAgent, views[1].Role)
	require.Equal(t, model.StatusFailed, views[1].Status)
	require.Equal(t, FailureMessage, views[1].Content)
	require.False(t, c.InFlight())
}

func TestNonSuccessStatusFailsTurn(t *testing.T) {
	c, _ := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	})

	require.NoError(t, c.Submit(context.Background(), "hi"))
	waitFor(t, settled(c))

	views := c.Snapshot()
	require.Equal(t, model.StatusFailed, views[len(views)-1].Status)
	require.Equal(t, FailureMessage, views[len(views)-1].Content)
}

func TestMidStreamErrorKeepsPartialAndSurfacesNotice(t *testing.T) {
	c, _ := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		// Promise more bytes than we send, then return: the client's read
		// fails with an unexpected EOF after the first delta.
		w.Header().Set("Content-Length", "4096")
		w.Write([]byte("data: {\"content\":\"partial\"}\n"))
	})

	require.NoError(t, c.Submit(context.Background(), "q"))
	waitFor(t, settled(c))

	// The partial answer stays, and the fixed failure message is always
	// visible as its own turn after it.
	views := c.Snapshot()
	require.Len(t, views, 3)

	partial := views[1]
	require.Equal(t, model.StatusFailed, partial.Status)
	require.Equal(t, "partial", partial.Content)

	notice := views[2]
	require.Equal(t, model.RoleAgent, notice.Role)
	require.Equal(t, model.StatusFailed, notice.Status)
	require.Equal(t, FailureMessage, notice.Content)

	require.False(t, c.InFlight())
}

// =============================================================================
// SESSION RESET
// =============================================================================

func TestNewChatGeneratesFreshIdentity(t *testing.T) {
	c, _ := newTestController(t, streamHandler())

	first := c.SessionID()
	require.NotEmpty(t, first)

	c.NewChat()
	require.NotEqual(t, first, c.SessionID())
	require.Empty(t, c.Snapshot())
	require.Empty(t, c.PendingAttachments())
}

func TestStaleStreamDiscardedAfterReset(t *testing.T) {
	firstDelta := make(chan struct{})
	release := make(chan struct{})

	c, _ := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"content\":\"early\"}\n"))
		w.(http.Flusher).Flush()
		select {
		case <-firstDelta:
		default:
			close(firstDelta)
		}
		<-release
		w.Write([]byte("data: {\"content\":\"late\"}\ndata: [DONE]\n"))
	})

	require.NoError(t, c.Submit(context.Background(), "first"))
	<-firstDelta
	waitFor(t, func() bool {
		views := c.Snapshot()
		return len(views) == 2 && views[1].Content == "early"
	})

	// Reset invalidates the in-flight turn by identity.
	c.NewChat()
	require.Empty(t, c.Snapshot())
	require.False(t, c.InFlight())

	// Let the stale stream finish; its events must never surface.
	close(release)
	time.Sleep(100 * time.Millisecond)
	require.Empty(t, c.Snapshot())
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestSubscribersNotifiedOnUpdates(t *testing.T) {
	c, _ := newTestController(t, streamHandler(
		`data: {"content":"Hello"}`,
		`data: [DONE]`,
	))

	var notifications atomic.Int32
	c.Subscribe(func() { notifications.Add(1) })

	require.NoError(t, c.Submit(context.Background(), "hi"))
	waitFor(t, settled(c))

	// At minimum: user turn append, placeholder append, final settle.
	require.GreaterOrEqual(t, notifications.Load(), int32(3))
}

func TestRejectedSubmissionDoesNotNotify(t *testing.T) {
	c, _ := newTestController(t, streamHandler())

	var notifications atomic.Int32
	c.Subscribe(func() { notifications.Add(1) })

	require.ErrorIs(t, c.Submit(context.Background(), ""), ErrEmptySubmission)
	require.Equal(t, int32(0), notifications.Load())
}
