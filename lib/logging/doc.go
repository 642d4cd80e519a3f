// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the structured logger shared by the session
// registry, the terminal registry, and the central CLI.
//
// Output on stderr is human-readable text when stderr is a terminal and
// JSON otherwise. When a debug log file is configured, every record is
// also appended to that file as JSON regardless of level filtering on
// stderr, so a worker that misbehaves under a desktop shell can be
// diagnosed after the fact.
package logging
