// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentsession

import (
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/central/lib/agentwire"
	"github.com/bureau-foundation/central/lib/binhash"
	"github.com/bureau-foundation/central/lib/clock"
	"github.com/bureau-foundation/central/lib/logging"
	"github.com/bureau-foundation/central/lib/registryerror"
)

// Config configures a Registry.
type Config struct {
	// Interpreter is the argv prefix that runs the worker script, for
	// example ["node", "--import", "tsx"]. Empty runs the script
	// directly.
	Interpreter []string

	// Locator finds the worker script.
	Locator WorkerLocator

	// CACertificates is the NODE_EXTRA_CA_CERTS fallback used when the
	// parent environment does not set one.
	CACertificates string

	// EndGrace is how long EndSession lets a worker exit on its own
	// after the end notice before killing it. Zero kills immediately.
	EndGrace time.Duration

	// Sink receives relayed events. Nil drops them.
	Sink Sink

	Logger *slog.Logger
	Clock  clock.Clock
}

// noticeTimeout bounds the courtesy abort or end line written before a
// worker is killed.
const noticeTimeout = 250 * time.Millisecond

// Registry owns every live worker. Construct one with New; all methods
// are safe for concurrent use.
type Registry struct {
	config Config
	logger *slog.Logger
	clock  clock.Clock

	mu       sync.Mutex
	sessions map[string]*worker
	// pending holds ids whose worker is being spawned and has not yet
	// received its StartSession line.
	pending map[string]struct{}
	// generation advances on every Shutdown. A spawn that straddles a
	// Shutdown is torn down instead of registered.
	generation uint64
	// poisoned is set when a panic escapes a critical section.
	poisoned bool
}

// New creates an empty Registry.
func New(config Config) *Registry {
	logger := config.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Registry{
		config:   config,
		logger:   logger.With("component", "agentsession"),
		clock:    clk,
		sessions: make(map[string]*worker),
		pending:  make(map[string]struct{}),
	}
}

// locked runs fn with the registry lock held. A panic inside fn
// poisons the registry before propagating; later calls fail with a
// lock error because the map can no longer be trusted.
func (r *Registry) locked(id string, fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.poisoned {
		return registryerror.Lock(id, "session registry is unusable after an earlier panic")
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			r.poisoned = true
			panic(recovered)
		}
	}()
	return fn()
}

// StartSession spawns a worker for command.SessionID and sends it the
// command. It fails with a conflict error if the id is registered or
// being started, a spawn failure if the script cannot be found or
// executed, and an I/O error if the first line cannot be written. On
// any failure no process is left running.
func (r *Registry) StartSession(command agentwire.StartSession) error {
	sessionID := command.SessionID
	if sessionID == "" {
		return registryerror.Invalid("", "start_session requires a session id")
	}

	var generation uint64
	err := r.locked(sessionID, func() error {
		if _, exists := r.sessions[sessionID]; exists {
			return registryerror.Conflict(sessionID, "session %s is already running", sessionID)
		}
		if _, starting := r.pending[sessionID]; starting {
			return registryerror.Conflict(sessionID, "session %s is already starting", sessionID)
		}
		r.pending[sessionID] = struct{}{}
		generation = r.generation
		return nil
	})
	if err != nil {
		return err
	}

	w, err := r.spawn(sessionID, command)
	if err != nil {
		_ = r.locked(sessionID, func() error {
			delete(r.pending, sessionID)
			return nil
		})
		return err
	}

	err = r.locked(sessionID, func() error {
		delete(r.pending, sessionID)
		if r.generation != generation {
			return registryerror.SpawnFailure(sessionID, "registry shut down while session %s was starting", sessionID)
		}
		r.sessions[sessionID] = w
		return nil
	})
	if err != nil {
		if killErr := w.killAndReap(); killErr != nil {
			r.logger.Warn("killing unregistered worker failed", "session_id", sessionID, "error", killErr)
		}
		close(w.removed)
		return err
	}

	r.logger.Info("session started",
		"session_id", sessionID,
		"pid", w.pid,
		"project_path", command.ProjectPath,
	)
	return nil
}

// spawn resolves, launches, and primes one worker. The returned worker
// has received its StartSession line and has both relays running.
func (r *Registry) spawn(sessionID string, command agentwire.StartSession) (*worker, error) {
	script, err := r.config.Locator.Resolve()
	if err != nil {
		return nil, registryerror.SpawnFailure(sessionID, "%v", err)
	}

	argv := append(slices.Clone(r.config.Interpreter), script)
	logger := r.logger.With("session_id", sessionID)

	w, stdout, stderr, err := spawnWorker(sessionID, launch{
		argv: argv,
		dir:  WorkerDirectory(script),
		env:  workerEnvironment(r.config.CACertificates),
	}, r.clock.Now())
	if err != nil {
		return nil, registryerror.SpawnFailure(sessionID, "spawning worker %s: %v", script, err)
	}

	if digest, err := binhash.HashFile(script); err != nil {
		logger.Debug("worker script fingerprint unavailable", "error", err)
	} else {
		w.digest = digest.String()
	}
	logger.Debug("worker spawned",
		"pid", w.pid,
		"script", script,
		"script_blake3", w.digest,
		"argv", argv,
	)

	go r.relayStdout(w, stdout, logger)
	go func() {
		defer stderr.Close()
		drainStderr(stderr, logger.With("stream", "stderr"))
	}()

	if err := w.send(command); err != nil {
		if killErr := w.killAndReap(); killErr != nil {
			logger.Warn("killing worker after failed start failed", "error", killErr)
		}
		return nil, registryerror.IO(sessionID, "sending start_session to worker: %v", err)
	}
	w.transition(StateRunning)
	return w, nil
}

func (r *Registry) relayStdout(w *worker, stdout *os.File, logger *slog.Logger) {
	defer stdout.Close()
	relayer := relay{
		sessionID: w.sessionID,
		sink:      r.config.Sink,
		clock:     r.clock,
		logger:    logger.With("stream", "stdout"),
		observe: func(event agentwire.Event) {
			switch event.(type) {
			case agentwire.SessionCompleted:
				w.transition(StateCompleted)
			case agentwire.SessionFailed:
				w.transition(StateFailed)
			}
		},
	}
	forwarded, err := relayer.run(stdout)
	w.markStdoutClosed()
	if err != nil {
		logger.Warn("worker stdout read failed", "error", err, "events_forwarded", forwarded)
		return
	}
	logger.Debug("worker stdout closed", "events_forwarded", forwarded)
}

// SendCommand routes a command to the session it names. Commands
// without a session id (tool approval responses) must go through
// SendToSession.
func (r *Registry) SendCommand(command agentwire.Command) error {
	if command == nil {
		return registryerror.Invalid("", "nil command")
	}
	sessionID, ok := agentwire.CommandSessionID(command)
	if !ok {
		return registryerror.Invalid("", "%s carries no session id; address it with SendToSession", command.Type())
	}
	return r.SendToSession(sessionID, command)
}

// SendToSession writes one command line to the session's worker. It
// fails with a not-found error if the session is not registered and an
// I/O error if the write fails. There is no retry; a stalled worker
// blocks the caller until it reads or dies.
func (r *Registry) SendToSession(sessionID string, command agentwire.Command) error {
	if command == nil {
		return registryerror.Invalid(sessionID, "nil command")
	}
	w, err := r.lookup(sessionID)
	if err != nil {
		return err
	}
	if err := w.send(command); err != nil {
		return registryerror.IO(sessionID, "sending %s to session %s: %v", command.Type(), sessionID, err)
	}

	switch command.(type) {
	case agentwire.AbortSession, *agentwire.AbortSession:
		w.transition(StateAborted)
	case agentwire.EndSession, *agentwire.EndSession:
		w.transition(StateEnded)
	}
	return nil
}

func (r *Registry) lookup(sessionID string) (*worker, error) {
	var w *worker
	err := r.locked(sessionID, func() error {
		w = r.sessions[sessionID]
		if w == nil {
			return registryerror.NotFound(sessionID, "no session %s", sessionID)
		}
		return nil
	})
	return w, err
}

// claim marks a session for teardown. It returns the worker and
// whether this caller owns the teardown. A nil worker means the id is
// not registered.
func (r *Registry) claim(sessionID string) (*worker, bool, error) {
	var (
		w     *worker
		owner bool
	)
	err := r.locked(sessionID, func() error {
		w = r.sessions[sessionID]
		if w != nil && !w.closing {
			w.closing = true
			owner = true
		}
		return nil
	})
	return w, owner, err
}

// release kills and reaps a claimed worker, then erases its entry if
// the map still holds it.
func (r *Registry) release(w *worker) {
	if err := w.killAndReap(); err != nil {
		r.logger.Warn("killing worker failed", "session_id", w.sessionID, "error", err)
	}
	w.transition(StateRemoved)

	r.mu.Lock()
	if r.sessions[w.sessionID] == w {
		delete(r.sessions, w.sessionID)
	}
	r.mu.Unlock()
	close(w.removed)

	r.logger.Info("session removed",
		"session_id", w.sessionID,
		"pid", w.pid,
		"exit_code", w.exitCode,
	)
}

// RemoveSession sends a best-effort abort notice, kills the worker's
// process group, waits for it to exit, and erases the entry. The
// notice is dropped if another write is in progress or the worker has
// stopped reading stdin. Removing
// an unregistered id is a no-op. If another caller is already removing
// the session, RemoveSession waits for that removal to finish.
func (r *Registry) RemoveSession(sessionID string) error {
	w, owner, err := r.claim(sessionID)
	if err != nil || w == nil {
		return err
	}
	if !owner {
		<-w.removed
		return nil
	}

	if err := w.notice(agentwire.AbortSession{SessionID: sessionID}, noticeTimeout); err != nil {
		r.logger.Debug("abort notice not delivered", "session_id", sessionID, "error", err)
	}
	w.transition(StateAborted)
	r.release(w)
	return nil
}

// AbortSession aborts the conversation and removes the session.
func (r *Registry) AbortSession(sessionID string) error {
	return r.RemoveSession(sessionID)
}

// EndSession sends a best-effort end notice, gives the worker
// Config.EndGrace to exit on its own, then kills, reaps, and erases it
// as RemoveSession does. Ending an unregistered id is a no-op.
func (r *Registry) EndSession(sessionID string) error {
	w, owner, err := r.claim(sessionID)
	if err != nil || w == nil {
		return err
	}
	if !owner {
		<-w.removed
		return nil
	}

	if err := w.notice(agentwire.EndSession{SessionID: sessionID}, noticeTimeout); err != nil {
		r.logger.Debug("end notice not delivered", "session_id", sessionID, "error", err)
	}
	w.transition(StateEnded)

	if grace := r.config.EndGrace; grace > 0 {
		select {
		case <-w.exited:
		case <-r.clock.After(grace):
			r.logger.Debug("worker did not exit within grace period", "session_id", sessionID, "grace", grace)
		}
	}
	r.release(w)
	return nil
}

// ActiveSessionIDs returns the registered session ids, sorted.
// Sessions still being started are not included.
func (r *Registry) ActiveSessionIDs() ([]string, error) {
	var ids []string
	err := r.locked("", func() error {
		ids = slices.Sorted(maps.Keys(r.sessions))
		return nil
	})
	return ids, err
}

// SessionInfo returns a snapshot of one registered session.
func (r *Registry) SessionInfo(sessionID string) (Info, error) {
	w, err := r.lookup(sessionID)
	if err != nil {
		return Info{}, err
	}
	return w.info(), nil
}

// Sessions returns snapshots of every registered session, sorted by id.
func (r *Registry) Sessions() ([]Info, error) {
	var workers []*worker
	err := r.locked("", func() error {
		for _, id := range slices.Sorted(maps.Keys(r.sessions)) {
			workers = append(workers, r.sessions[id])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(workers))
	for _, w := range workers {
		infos = append(infos, w.info())
	}
	return infos, nil
}

// Shutdown force-kills every registered worker and empties the map.
// It is safe to call from any goroutine and any number of times, and
// it runs even on a poisoned registry so no worker outlives the
// application.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.generation++
	var claimed, inFlight []*worker
	for _, w := range r.sessions {
		if w.closing {
			inFlight = append(inFlight, w)
			continue
		}
		w.closing = true
		claimed = append(claimed, w)
	}
	r.mu.Unlock()

	if len(claimed) > 0 {
		r.logger.Info("shutting down sessions", "count", len(claimed))
	}

	var wg sync.WaitGroup
	for _, w := range claimed {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.release(w)
		}()
	}
	wg.Wait()
	// Removals already underway may be waiting out an end grace
	// period. Kill their workers so they finish now.
	for _, w := range inFlight {
		if err := w.kill(); err != nil {
			r.logger.Warn("killing worker failed", "session_id", w.sessionID, "error", err)
		}
	}
	for _, w := range inFlight {
		<-w.removed
	}
}
