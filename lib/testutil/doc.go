// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireNoReceive], and [RequireClosed] wrap the
// select-with-timeout pattern so individual tests do not call
// time.After directly.
//
// [WorkerTree] lays out a throwaway development tree with a shell
// script standing in for the agent worker. The session registry
// resolves the script the same way it resolves the real worker, so
// tests exercise path resolution, spawning, and relaying end to end.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
