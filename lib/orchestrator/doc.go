// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator owns the agent session registry and the terminal
// registry for one application instance and tears both down on exit.
//
// An [Orchestrator] is built once at startup from a finalized
// [config.Config]. When the config names a journal path, every
// forwarded agent event and terminal event is also appended to a
// [journal.Writer] before it reaches the application's sink.
package orchestrator
