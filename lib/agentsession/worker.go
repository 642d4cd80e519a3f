// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentsession

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/central/lib/agentwire"
)

// worker is one spawned worker process. It is owned by exactly one
// registry entry.
type worker struct {
	sessionID string
	command   *exec.Cmd
	pid       int
	startedAt time.Time
	digest    string

	// writeMu serializes whole lines written to stdin.
	writeMu sync.Mutex
	stdin   *os.File

	// exited is closed by the reaper goroutine once Wait returns.
	exited   chan struct{}
	exitCode int

	// removed is closed once the registry has erased the entry.
	removed chan struct{}

	// closing is guarded by Registry.mu. It is set by whichever
	// caller claims the teardown.
	closing bool

	stateMu      sync.Mutex
	state        State
	stdoutClosed bool
}

// launch describes how to start a worker.
type launch struct {
	argv []string
	dir  string
	env  []string
}

// spawnWorker starts the worker and returns it with the read ends of
// its stdout and stderr. The caller owns both read ends.
//
// All three streams are plain os.Pipe files rather than exec's
// StdinPipe/StdoutPipe: Wait never closes them under the relays, so
// the reaper and the relays run independently, and the parent's stdin
// end sits in the runtime poller so a write can carry a deadline.
func spawnWorker(sessionID string, spec launch, startedAt time.Time) (*worker, *os.File, *os.File, error) {
	var pipes []*os.File
	closeAll := func() {
		for _, file := range pipes {
			file.Close()
		}
	}
	pipe := func(name string) (*os.File, *os.File, error) {
		read, write, err := os.Pipe()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("creating %s pipe: %w", name, err)
		}
		pipes = append(pipes, read, write)
		return read, write, nil
	}
	stdinRead, stdinWrite, err := pipe("stdin")
	if err != nil {
		return nil, nil, nil, err
	}
	stdoutRead, stdoutWrite, err := pipe("stdout")
	if err != nil {
		return nil, nil, nil, err
	}
	stderrRead, stderrWrite, err := pipe("stderr")
	if err != nil {
		return nil, nil, nil, err
	}

	command := exec.Command(spec.argv[0], spec.argv[1:]...)
	command.Dir = spec.dir
	command.Env = spec.env
	command.Stdin = stdinRead
	command.Stdout = stdoutWrite
	command.Stderr = stderrWrite
	// Own process group: a kill reaches every helper the worker
	// started, not only the interpreter.
	command.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := command.Start(); err != nil {
		closeAll()
		return nil, nil, nil, fmt.Errorf("starting %s: %w", spec.argv[0], err)
	}
	// The child holds its own copies. Once it dies, writes to stdin
	// fail with EPIPE instead of filling a pipe nobody reads.
	stdinRead.Close()
	stdoutWrite.Close()
	stderrWrite.Close()

	w := &worker{
		sessionID: sessionID,
		command:   command,
		pid:       command.Process.Pid,
		startedAt: startedAt,
		stdin:     stdinWrite,
		exited:    make(chan struct{}),
		removed:   make(chan struct{}),
		state:     StateNotStarted,
	}
	go w.reap()
	return w, stdoutRead, stderrRead, nil
}

func (w *worker) reap() {
	_ = w.command.Wait()
	w.exitCode = w.command.ProcessState.ExitCode()
	w.stdin.Close()
	close(w.exited)
}

// send writes one command line to stdin. A line is never interleaved
// with another writer's line.
func (w *worker) send(command agentwire.Command) error {
	data, err := agentwire.EncodeCommand(command)
	if err != nil {
		return err
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return agentwire.WriteLine(w.stdin, data)
}

// notice writes a courtesy command ahead of a kill. It never waits on
// another writer and gives up after timeout, so a worker that stopped
// reading stdin cannot hold up its own teardown.
func (w *worker) notice(command agentwire.Command, timeout time.Duration) error {
	data, err := agentwire.EncodeCommand(command)
	if err != nil {
		return err
	}
	if !w.writeMu.TryLock() {
		return errNoticeBusy
	}
	defer w.writeMu.Unlock()
	if err := w.stdin.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	defer w.stdin.SetWriteDeadline(time.Time{})
	return agentwire.WriteLine(w.stdin, data)
}

var errNoticeBusy = errors.New("another write to the worker is in progress")

// kill sends SIGKILL to the worker's process group. A group that is
// already gone is not an error.
func (w *worker) kill() error {
	err := unix.Kill(-w.pid, unix.SIGKILL)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	// Fall back to the leader alone if the group could not be
	// signalled.
	if killErr := w.command.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
		return fmt.Errorf("killing worker %d: %w (group kill: %v)", w.pid, killErr, err)
	}
	return nil
}

// killAndReap kills the worker and blocks until it has been reaped.
func (w *worker) killAndReap() error {
	err := w.kill()
	<-w.exited
	return err
}

func (w *worker) hasExited() bool {
	select {
	case <-w.exited:
		return true
	default:
		return false
	}
}

// transition moves the session to next unless it has already reached
// an outcome. Removed always applies.
func (w *worker) transition(next State) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	if next != StateRemoved && w.state.Finished() {
		return
	}
	if next == StateRunning && w.state != StateNotStarted {
		return
	}
	w.state = next
}

func (w *worker) markStdoutClosed() {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	w.stdoutClosed = true
}

func (w *worker) info() Info {
	w.stateMu.Lock()
	info := Info{
		SessionID:    w.sessionID,
		State:        w.state,
		PID:          w.pid,
		StartedAt:    w.startedAt,
		StdoutClosed: w.stdoutClosed,
		WorkerDigest: w.digest,
	}
	w.stateMu.Unlock()

	if w.hasExited() {
		info.Exited = true
		info.ExitCode = w.exitCode
	}
	return info
}
