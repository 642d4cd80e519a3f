// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ptysession

import (
	"context"
	"encoding/json"
)

// TerminalEvent is one of Output, Exit, or Error.
type TerminalEvent interface {
	// Kind is the JSON "type" discriminator.
	Kind() string
	terminalEvent()
}

// Output carries bytes exactly as read from the master. Data encodes
// as base64 in JSON.
type Output struct {
	Data []byte
}

// Exit reports that the child is gone. Code is -1 when the child was
// killed by a signal.
type Exit struct {
	Code int
}

// Error reports a read failure that was not an exit.
type Error struct {
	Message string
}

func (Output) Kind() string { return "Output" }
func (Exit) Kind() string   { return "Exit" }
func (Error) Kind() string  { return "Error" }

func (Output) terminalEvent() {}
func (Exit) terminalEvent()   {}
func (Error) terminalEvent()  {}

func (event Output) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Data []byte `json:"data"`
	}{event.Kind(), event.Data})
}

func (event Exit) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Code int    `json:"code"`
	}{event.Kind(), event.Code})
}

func (event Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{event.Kind(), event.Message})
}

// isFinal reports whether event ends a terminal's stream.
func isFinal(event TerminalEvent) bool {
	switch event.(type) {
	case Exit, Error:
		return true
	}
	return false
}

// Sink receives one terminal's events from its reader goroutine, in
// read order. An error returned for an Output event detaches the sink
// until the next Attach.
//
// ctx is canceled when the terminal is closed. A Send that blocks must
// return once it is, or the reader goroutine outlives the terminal.
type Sink interface {
	Send(ctx context.Context, event TerminalEvent) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event TerminalEvent) error

// Send calls f(ctx, event).
func (f SinkFunc) Send(ctx context.Context, event TerminalEvent) error { return f(ctx, event) }

// ChannelSink returns a Sink that sends on a buffered channel, together
// with the channel. Send blocks while the channel is full until the
// terminal is closed, then fails; an event that fits is always
// delivered, even after close.
func ChannelSink(capacity int) (Sink, <-chan TerminalEvent) {
	events := make(chan TerminalEvent, capacity)
	return SinkFunc(func(ctx context.Context, event TerminalEvent) error {
		select {
		case events <- event:
			return nil
		default:
		}
		select {
		case events <- event:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}), events
}
