// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentsession

import (
	"time"

	"github.com/bureau-foundation/central/lib/agentwire"
)

// SessionEvent is a decoded worker event attributed to the session
// whose worker produced it.
type SessionEvent struct {
	// SessionID is the id of the worker that wrote the line. It wins
	// over any session id carried in the payload.
	SessionID string

	Event agentwire.Event

	ReceivedAt time.Time
}

// Sink receives relayed events. Deliver is called from the session's
// stdout relay goroutine, one call at a time per session and in the
// order the worker wrote the lines; calls for different sessions may
// run concurrently. A returned error is logged and otherwise ignored.
type Sink interface {
	Deliver(event SessionEvent) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(event SessionEvent) error

// Deliver calls f(event).
func (f SinkFunc) Deliver(event SessionEvent) error { return f(event) }

// ChannelSink returns a Sink that sends every event on a channel,
// blocking while the channel is full, and the channel itself.
func ChannelSink(capacity int) (Sink, <-chan SessionEvent) {
	events := make(chan SessionEvent, capacity)
	return SinkFunc(func(event SessionEvent) error {
		events <- event
		return nil
	}), events
}
