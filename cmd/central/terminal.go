// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/central/lib/orchestrator"
	"github.com/bureau-foundation/central/lib/ptysession"
)

type terminalOptions struct {
	common commonFlags
	cwd    string
	id     string
}

func terminalCommand() *command {
	var options terminalOptions
	return &command{
		name:    "terminal",
		summary: "Run an interactive shell through the PTY registry",
		description: `Start one PTY session sized to this terminal and connect it to stdin and
stdout in raw mode. Window size changes are forwarded. central exits
with the shell's exit status.

Log output goes only to the debug log file while the session runs.`,
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("terminal", pflag.ContinueOnError)
			options.common.addFlags(flagSet)
			flagSet.StringVar(&options.cwd, "cwd", "", "working directory for the shell (default: current directory)")
			flagSet.StringVar(&options.id, "id", "", "terminal id (default: random UUID)")
			return flagSet
		},
		run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return runTerminal(&options)
		},
	}
}

func runTerminal(options *terminalOptions) error {
	stdinFD := int(os.Stdin.Fd())
	stdoutFD := int(os.Stdout.Fd())
	if !term.IsTerminal(stdinFD) || !term.IsTerminal(stdoutFD) {
		return errors.New("central terminal needs a terminal on stdin and stdout")
	}
	cols, rows, err := term.GetSize(stdoutFD)
	if err != nil {
		return fmt.Errorf("reading terminal size: %w", err)
	}
	id := options.id
	if id == "" {
		id = uuid.NewString()
	}

	settings, err := options.common.loadSettings()
	if err != nil {
		return err
	}
	logger, err := newLogger(settings, io.Discard)
	if err != nil {
		return err
	}
	defer logger.Close()

	core, err := orchestrator.New(orchestrator.Config{Settings: settings, Logger: logger.Logger})
	if err != nil {
		return err
	}
	defer core.Shutdown()

	sink, events := ptysession.ChannelSink(256)
	if err := core.StartTerminal(id, options.cwd, uint16(rows), uint16(cols), sink); err != nil {
		return err
	}

	saved, err := term.MakeRaw(stdinFD)
	if err != nil {
		return fmt.Errorf("entering raw mode: %w", err)
	}
	defer term.Restore(stdinFD, saved)

	resized := make(chan os.Signal, 1)
	signal.Notify(resized, syscall.SIGWINCH)
	defer signal.Stop(resized)
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(hangup)

	inputFailed := make(chan error, 1)
	go func() {
		buffer := make([]byte, 1024)
		for {
			n, err := os.Stdin.Read(buffer)
			if n > 0 {
				if writeErr := core.Terminals.WriteInput(id, buffer[:n]); writeErr != nil {
					inputFailed <- writeErr
					return
				}
			}
			if err != nil {
				inputFailed <- err
				return
			}
		}
	}()

	for {
		select {
		case event := <-events:
			switch event := event.(type) {
			case ptysession.Output:
				if _, err := os.Stdout.Write(event.Data); err != nil {
					return err
				}
			case ptysession.Exit:
				logger.Info("terminal exited", "terminal_id", id, "exit_code", event.Code)
				if event.Code == 0 {
					return nil
				}
				if event.Code < 0 {
					return &exitError{code: 1}
				}
				return &exitError{code: event.Code}
			case ptysession.Error:
				return errors.New(event.Message)
			}

		case <-resized:
			cols, rows, err := term.GetSize(stdoutFD)
			if err != nil {
				logger.Debug("reading terminal size", "error", err)
				continue
			}
			if err := core.Terminals.Resize(id, uint16(rows), uint16(cols)); err != nil {
				logger.Warn("resizing terminal", "terminal_id", id, "error", err)
			}

		case err := <-inputFailed:
			if errors.Is(err, io.EOF) {
				return core.Terminals.Close(id)
			}
			return err

		case sig := <-hangup:
			logger.Info("signal received, closing terminal", "signal", sig.String())
			return core.Terminals.Close(id)
		}
	}
}
