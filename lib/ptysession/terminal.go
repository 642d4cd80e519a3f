// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ptysession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// terminal is one PTY and the child running on it.
type terminal struct {
	id      string
	command *exec.Cmd
	pid     int
	master  *os.File
	logger  *slog.Logger

	// writeMu serializes input so concurrent writers never interleave.
	writeMu sync.Mutex

	// sizeMu orders Resize calls so the last one wins.
	sizeMu sync.Mutex

	// outputMu guards the sink, the scrollback, and finished. The
	// reader holds it across append-and-send so Attach observes a
	// consistent cut between history and live output.
	outputMu   sync.Mutex
	sink       Sink
	scrollback *scrollback
	finished   bool

	// exited is closed by the reaper once Wait returns.
	exited   chan struct{}
	exitCode int

	// ctx is passed to every Send and canceled by teardown, so a sink
	// nobody drains releases the reader.
	ctx    context.Context
	cancel context.CancelFunc

	// closed is closed once Close has torn the terminal down.
	closed chan struct{}
}

func (t *terminal) reap() {
	_ = t.command.Wait()
	t.exitCode = t.command.ProcessState.ExitCode()
	close(t.exited)
}

func (t *terminal) hasExited() bool {
	select {
	case <-t.exited:
		return true
	default:
		return false
	}
}

// kill sends SIGKILL to the child's session. The child is a session
// leader, so its pid names its process group.
func (t *terminal) kill() error {
	if t.hasExited() {
		return nil
	}
	err := unix.Kill(-t.pid, unix.SIGKILL)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	if killErr := t.command.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
		return fmt.Errorf("killing terminal child %d: %w (group kill: %v)", t.pid, killErr, err)
	}
	return nil
}

// emit delivers one event. Output is also recorded in scrollback. A
// failed Output delivery detaches the sink; nothing is delivered after
// a final event.
func (t *terminal) emit(event TerminalEvent) {
	t.outputMu.Lock()
	defer t.outputMu.Unlock()
	if t.finished {
		return
	}
	if output, ok := event.(Output); ok {
		t.scrollback.write(output.Data)
	}
	if isFinal(event) {
		t.finished = true
	}
	if t.sink == nil {
		return
	}
	if err := t.sink.Send(t.ctx, event); err != nil {
		if _, ok := event.(Output); ok {
			if t.ctx.Err() != nil {
				t.logger.Debug("terminal closed with output undelivered, detaching sink", "error", err)
			} else {
				t.logger.Warn("terminal sink failed, detaching", "error", err)
			}
			t.sink = nil
			return
		}
		t.logger.Debug("terminal sink rejected final event", "event", event.Kind(), "error", err)
	}
}

// attach swaps the sink and returns the history the new sink has not
// seen.
func (t *terminal) attach(sink Sink) []byte {
	t.outputMu.Lock()
	defer t.outputMu.Unlock()
	t.sink = sink
	return t.scrollback.snapshot()
}

// shellCommand picks the argv a terminal runs.
func shellCommand(configured []string, getenv func(string) string) []string {
	if len(configured) > 0 {
		return slices.Clone(configured)
	}
	if shell := getenv("SHELL"); shell != "" {
		return []string{shell}
	}
	return []string{"/bin/sh"}
}

// terminalEnvironment is the parent environment with TERM and
// COLORTERM replaced.
func terminalEnvironment(parent []string, term string) []string {
	env := make([]string, 0, len(parent)+2)
	for _, entry := range parent {
		if strings.HasPrefix(entry, "TERM=") || strings.HasPrefix(entry, "COLORTERM=") {
			continue
		}
		env = append(env, entry)
	}
	return append(env, "TERM="+term, "COLORTERM=truecolor")
}
