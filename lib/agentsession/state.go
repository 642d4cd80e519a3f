// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentsession

import "time"

// State is a session's position in its lifecycle.
//
//	NotStarted → Running → {Completed, Failed, Aborted, Ended} → Removed
//
// Completed and Failed follow the worker's own terminal events.
// Aborted and Ended follow the caller's commands. Removed is set when
// the registry erases the entry.
type State string

const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateAborted    State = "aborted"
	StateEnded      State = "ended"
	StateRemoved    State = "removed"
)

// Finished reports whether the conversation has reached an outcome.
func (s State) Finished() bool {
	switch s {
	case StateCompleted, StateFailed, StateAborted, StateEnded, StateRemoved:
		return true
	default:
		return false
	}
}

// Info is a point-in-time snapshot of one session.
type Info struct {
	SessionID string
	State     State

	// PID is the worker's process id, which is also its process
	// group id.
	PID int

	StartedAt time.Time

	// StdoutClosed is set once the worker closed its stdout. The
	// session stays registered until explicitly removed.
	StdoutClosed bool

	// Exited is set once the worker process has been reaped;
	// ExitCode is then its status, or -1 if it died from a signal.
	Exited   bool
	ExitCode int

	// WorkerDigest is the BLAKE3 fingerprint of the script the worker
	// was started from, empty if it could not be read.
	WorkerDigest string
}
