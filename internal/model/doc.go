// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the transcript data structures for a conversation.
//
// A Transcript is an ordered sequence of Turns. Agent turns grow
// monotonically while streaming: content deltas are suffix appends, applied
// strictly in arrival order, and a turn settles when its stream ends even if
// no delta ever arrived. All mutation flows through the Transcript's apply
// methods; rendering code only ever sees value-copy TurnViews.
package model
