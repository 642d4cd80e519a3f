// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentwire defines the newline-delimited JSON protocol spoken
// between the session manager and an agent worker process.
//
// The manager writes [Command] values to the worker's stdin, one JSON
// object per line. The worker writes [Event] values to its stdout the
// same way. Every object carries a snake_case "type" discriminator next
// to camelCase payload keys:
//
//	{"type":"start_session","sessionId":"s1","projectPath":"/src","prompt":"fix the build"}
//	{"type":"session_completed","sessionId":"s1","sdkSessionId":"c0ffee","totalCostUsd":0.42}
//
// Both sets are closed: each variant is a concrete struct implementing
// the sealed Command or Event interface, and [DecodeEvent] rejects any
// discriminator it does not know with a [*DecodeError]. Optional fields
// are omitted from the wire form when absent, never sent as null.
//
// The package is used from both sides of the pipe: the session registry
// encodes commands and decodes events, and the mock worker does the
// reverse.
package agentwire
