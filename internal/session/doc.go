// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns one conversation: its identity, its transcript, and
// the set of attachments pending for the next turn.
//
// The Controller runs one turn at a time through the lifecycle
//
//	idle → dispatched → streaming → settled
//	idle → dispatched → failed
//
// Submissions while a turn is in flight are rejected outright; there is no
// queue and no cancellation of the in-flight turn. Resetting the session
// invalidates the in-flight turn by identity: every request is tagged with
// the session id current at dispatch, and events that arrive for a stale id
// are discarded without touching the new transcript.
//
// All transcript mutation happens under one mutex, and subscribers are
// notified only between atomic reducer applications, never mid-update.
package session
