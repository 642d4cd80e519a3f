// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ptysession

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
	"sync"

	"github.com/bureau-foundation/central/lib/logging"
	"github.com/bureau-foundation/central/lib/pty"
	"github.com/bureau-foundation/central/lib/registryerror"
)

// Config configures a Registry. The zero value runs the user's shell.
type Config struct {
	// Command is the argv each terminal runs. Empty means $SHELL, or
	// /bin/sh when SHELL is unset.
	Command []string

	// Term is the TERM value. Default: xterm-256color.
	Term string

	// ReadChunkSize bounds one read from the master. Default: 4096.
	ReadChunkSize int

	// ScrollbackBytes sizes each terminal's replay ring. Zero means
	// DefaultScrollbackBytes; negative disables scrollback.
	ScrollbackBytes int

	Logger *slog.Logger
}

// Registry owns every live terminal. All methods are safe for
// concurrent use.
type Registry struct {
	config Config
	logger *slog.Logger

	mu        sync.Mutex
	terminals map[string]*terminal
	// closing holds terminals already erased from the map whose
	// teardown is still running, so Shutdown can wait for them.
	closing  map[*terminal]struct{}
	poisoned bool
}

// New creates an empty Registry.
func New(config Config) *Registry {
	if config.Term == "" {
		config.Term = "xterm-256color"
	}
	if config.ReadChunkSize <= 0 {
		config.ReadChunkSize = 4096
	}
	if config.ScrollbackBytes == 0 {
		config.ScrollbackBytes = DefaultScrollbackBytes
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Registry{
		config:    config,
		logger:    logger.With("component", "ptysession"),
		terminals: make(map[string]*terminal),
		closing:   make(map[*terminal]struct{}),
	}
}

// locked runs fn under the registry lock, poisoning the registry if fn
// panics.
func (r *Registry) locked(id string, fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.poisoned {
		return registryerror.Lock(id, "terminal registry is unusable after an earlier panic")
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			r.poisoned = true
			panic(recovered)
		}
	}()
	return fn()
}

// StartTerminal opens a PTY sized rows×cols, starts the configured
// command on it in cwd, and begins streaming its output to sink. A nil
// sink keeps output in scrollback only until Attach.
func (r *Registry) StartTerminal(id, cwd string, rows, cols uint16, sink Sink) error {
	if id == "" {
		return registryerror.Invalid("", "terminal id is empty")
	}
	if rows == 0 || cols == 0 {
		return registryerror.Invalid(id, "terminal size %dx%d has a zero dimension", rows, cols)
	}

	// The lock is held across the spawn so a duplicate id can never
	// start a second child. Spawning a PTY does not block on the child.
	var t *terminal
	err := r.locked(id, func() error {
		if _, exists := r.terminals[id]; exists {
			return registryerror.Conflict(id, "terminal %s is already running", id)
		}
		var err error
		t, err = r.spawn(id, cwd, pty.Size{Rows: rows, Cols: cols}, sink)
		if err != nil {
			return err
		}
		r.terminals[id] = t
		return nil
	})
	if err != nil {
		return err
	}

	go t.read(r.config.ReadChunkSize)
	t.logger.Info("terminal started", "pid", t.pid, "cwd", cwd, "rows", rows, "cols", cols)
	return nil
}

func (r *Registry) spawn(id, cwd string, size pty.Size, sink Sink) (*terminal, error) {
	argv := shellCommand(r.config.Command, os.Getenv)
	command := exec.Command(argv[0], argv[1:]...)
	command.Dir = cwd
	command.Env = terminalEnvironment(os.Environ(), r.config.Term)

	master, err := pty.Start(command, size)
	if err != nil {
		return nil, registryerror.SpawnFailure(id, "starting %s on a terminal: %v", argv[0], err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &terminal{
		id:         id,
		command:    command,
		pid:        command.Process.Pid,
		master:     master,
		logger:     r.logger.With("terminal_id", id),
		sink:       sink,
		scrollback: newScrollback(r.config.ScrollbackBytes),
		exited:     make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		closed:     make(chan struct{}),
	}
	go t.reap()
	return t, nil
}

func (r *Registry) lookup(id string) (*terminal, error) {
	var t *terminal
	err := r.locked(id, func() error {
		t = r.terminals[id]
		if t == nil {
			return registryerror.NotFound(id, "no terminal %s", id)
		}
		return nil
	})
	return t, err
}

// WriteInput writes data to the terminal as typed input. Writes to the
// same terminal are serialized; there is no buffering or pacing.
func (r *Registry) WriteInput(id string, data []byte) error {
	t, err := r.lookup(id)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.master.Write(data); err != nil {
		return registryerror.IO(id, "writing to terminal %s: %v", id, err)
	}
	return nil
}

// Resize changes the terminal's window size.
func (r *Registry) Resize(id string, rows, cols uint16) error {
	if rows == 0 || cols == 0 {
		return registryerror.Invalid(id, "terminal size %dx%d has a zero dimension", rows, cols)
	}
	t, err := r.lookup(id)
	if err != nil {
		return err
	}
	t.sizeMu.Lock()
	defer t.sizeMu.Unlock()
	size := pty.Size{Rows: rows, Cols: cols}
	if err := pty.SetSize(t.master, size); err != nil {
		return registryerror.IO(id, "resizing terminal %s: %v", id, err)
	}
	return nil
}

// Size returns the window size the kernel reports for the terminal.
func (r *Registry) Size(id string) (rows, cols uint16, err error) {
	t, err := r.lookup(id)
	if err != nil {
		return 0, 0, err
	}
	size, err := pty.GetSize(t.master)
	if err != nil {
		return 0, 0, registryerror.IO(id, "reading size of terminal %s: %v", id, err)
	}
	return size.Rows, size.Cols, nil
}

// Attach replaces the terminal's sink and returns its scrollback. Every
// Output after the returned history goes to the new sink; nothing is
// missed or repeated between the two.
func (r *Registry) Attach(id string, sink Sink) ([]byte, error) {
	t, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return t.attach(sink), nil
}

// IDs returns the registered terminal ids, sorted.
func (r *Registry) IDs() ([]string, error) {
	var ids []string
	err := r.locked("", func() error {
		ids = slices.Sorted(maps.Keys(r.terminals))
		return nil
	})
	return ids, err
}

// Close erases the terminal, kills its child, waits for it to exit,
// and closes the master. Closing an unknown id is a no-op.
func (r *Registry) Close(id string) error {
	var t *terminal
	err := r.locked(id, func() error {
		t = r.terminals[id]
		if t != nil {
			delete(r.terminals, id)
			r.closing[t] = struct{}{}
		}
		return nil
	})
	if err != nil || t == nil {
		return err
	}
	r.teardown(t)
	return nil
}

func (r *Registry) teardown(t *terminal) {
	t.cancel()
	if err := t.kill(); err != nil {
		t.logger.Warn("killing terminal child failed", "error", err)
	}
	<-t.exited
	// Closing the master also hangs up anything that kept the slave
	// open after the kill.
	if err := t.master.Close(); err != nil {
		t.logger.Debug("closing terminal master", "error", err)
	}

	r.mu.Lock()
	delete(r.closing, t)
	r.mu.Unlock()
	close(t.closed)

	t.logger.Info("terminal closed", "pid", t.pid, "exit_code", t.exitCode)
}

// Shutdown closes every terminal and waits for closes already in
// progress. It is safe to call from any goroutine, any number of
// times, and runs even on a poisoned registry.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	claimed := slices.Collect(maps.Values(r.terminals))
	clear(r.terminals)
	inFlight := slices.Collect(maps.Keys(r.closing))
	for _, t := range claimed {
		r.closing[t] = struct{}{}
	}
	r.mu.Unlock()

	if len(claimed) > 0 {
		r.logger.Info("shutting down terminals", "count", len(claimed))
	}
	var wg sync.WaitGroup
	for _, t := range claimed {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.teardown(t)
		}()
	}
	wg.Wait()
	for _, t := range inFlight {
		<-t.closed
	}
}
