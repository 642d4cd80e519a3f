// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentsession manages one worker process per agent
// conversation.
//
// A [Registry] maps session ids to live workers. StartSession resolves
// the worker script (see [WorkerLocator]), spawns it in its own process
// group with piped stdio, starts two relay goroutines, and writes the
// StartSession command as the first NDJSON line on the worker's stdin.
// The session is registered only after that write succeeds.
//
// The stdout relay decodes each line as an agentwire.Event, stamps it
// with the worker's session id and the receive time, and hands it to
// the configured [Sink]. Malformed lines are logged and skipped; sink
// failures are ignored. The stderr relay logs lines for diagnostics and
// never decodes them.
//
// Removal (RemoveSession, AbortSession, EndSession, Shutdown) always
// ends with SIGKILL to the worker's process group followed by a reap,
// so no worker or helper it started outlives its session. A worker
// closing its stdout does not remove the session: the caller decides
// when a finished conversation is torn down.
//
// The registry lock guards only the map. Writes to a worker's stdin
// take that session's own write lock, so a stalled worker blocks
// callers addressing it and nobody else, while two writers addressing
// the same session never interleave. Teardown never waits on that
// lock: the abort or end notice is skipped or times out, and the kill
// fails any blocked writer with a broken pipe.
package agentsession
