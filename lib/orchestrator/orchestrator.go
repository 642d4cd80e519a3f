// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/bureau-foundation/central/lib/agentsession"
	"github.com/bureau-foundation/central/lib/clock"
	"github.com/bureau-foundation/central/lib/config"
	"github.com/bureau-foundation/central/lib/journal"
	"github.com/bureau-foundation/central/lib/logging"
	"github.com/bureau-foundation/central/lib/ptysession"
)

// Config configures New.
type Config struct {
	// Settings is a finalized, validated configuration.
	Settings *config.Config

	// Events receives every agent session event. Nil drops them
	// (after journaling).
	Events agentsession.Sink

	Logger *slog.Logger
	Clock  clock.Clock

	// Getwd and Executable override worker script resolution.
	Getwd      func() (string, error)
	Executable func() (string, error)
}

// Orchestrator is the process-wide owner of both registries.
type Orchestrator struct {
	Sessions  *agentsession.Registry
	Terminals *ptysession.Registry

	logger  *slog.Logger
	clock   clock.Clock
	journal *journal.Writer

	closeJournal sync.Once
}

// New builds both registries. It opens the journal if one is
// configured; nothing else touches the filesystem until a session or
// terminal starts.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Settings == nil {
		return nil, fmt.Errorf("orchestrator: no settings")
	}
	settings := cfg.Settings
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	o := &Orchestrator{logger: logger, clock: clk}

	if settings.Journal.Path != "" {
		compression, err := journal.ParseCompression(settings.Journal.Compression)
		if err != nil {
			return nil, err
		}
		writer, err := journal.OpenFile(settings.Journal.Path, journal.Options{
			Compression: compression,
			Recipients:  settings.Journal.Recipients,
		})
		if err != nil {
			return nil, err
		}
		o.journal = writer
		logger.Info("journaling events",
			"path", settings.Journal.Path,
			"compression", compression,
			"encrypted", len(settings.Journal.Recipients) > 0,
		)
	}

	o.Sessions = agentsession.New(agentsession.Config{
		Interpreter: settings.Worker.Interpreter,
		Locator: agentsession.WorkerLocator{
			RelativePath: filepath.FromSlash(settings.Worker.Script),
			Getwd:        cfg.Getwd,
			Executable:   cfg.Executable,
		},
		CACertificates: settings.Worker.CACertificates,
		EndGrace:       settings.EndGraceDuration(),
		Sink:           o.agentSink(cfg.Events),
		Logger:         logger,
		Clock:          clk,
	})
	o.Terminals = ptysession.New(ptysession.Config{
		Command:         settings.Terminal.Command,
		Term:            settings.Terminal.Term,
		ReadChunkSize:   settings.Terminal.ReadChunkSize,
		ScrollbackBytes: settings.Terminal.ScrollbackBytes,
		Logger:          logger,
	})
	return o, nil
}

// StartTerminal starts a terminal whose events are journaled before
// they reach sink.
func (o *Orchestrator) StartTerminal(id, cwd string, rows, cols uint16, sink ptysession.Sink) error {
	return o.Terminals.StartTerminal(id, cwd, rows, cols, o.terminalSink(id, sink))
}

// AttachTerminal replaces a terminal's sink, keeping the journal tee,
// and returns its scrollback.
func (o *Orchestrator) AttachTerminal(id string, sink ptysession.Sink) ([]byte, error) {
	return o.Terminals.Attach(id, o.terminalSink(id, sink))
}

// Shutdown force-terminates every worker and terminal child, then
// closes the journal. Safe from any goroutine, any number of times.
func (o *Orchestrator) Shutdown() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		o.Sessions.Shutdown()
	}()
	go func() {
		defer wg.Done()
		o.Terminals.Shutdown()
	}()
	wg.Wait()

	o.closeJournal.Do(func() {
		if o.journal == nil {
			return
		}
		if err := o.journal.Close(); err != nil {
			o.logger.Warn("closing journal", "error", err)
		}
	})
}

// ShutdownOnSignal blocks until ctx is done, then shuts down. Hosts
// typically pass a context from signal.NotifyContext.
func (o *Orchestrator) ShutdownOnSignal(ctx context.Context) {
	<-ctx.Done()
	o.logger.Info("shutting down", "cause", context.Cause(ctx))
	o.Shutdown()
}
