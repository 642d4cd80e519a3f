// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ptysession runs interactive shells on pseudo-terminals for a
// terminal view and streams their output as [TerminalEvent] values.
//
// A [Registry] maps terminal ids to live terminals. Each terminal has
// one reader goroutine that copies the PTY master into the terminal's
// [Sink] as Output events and finishes with exactly one Exit or Error
// event. Input, resize, and close are direct calls on the registry.
//
// Every output chunk is also kept in a bounded scrollback ring so that
// a view that remounts can call [Registry.Attach] and replay history
// before receiving live output.
package ptysession
