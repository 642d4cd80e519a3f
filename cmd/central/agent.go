// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/central/lib/agentsession"
	"github.com/bureau-foundation/central/lib/agentwire"
	"github.com/bureau-foundation/central/lib/orchestrator"
)

type agentOptions struct {
	common       commonFlags
	project      string
	prompt       string
	model        string
	maxBudgetUSD float64
	resume       string
	sessionID    string
	journalPath  string
	approveTools bool
	jsonOutput   bool
}

func agentCommand() *command {
	var options agentOptions
	return &command{
		name:    "agent",
		summary: "Run one agent conversation",
		description: `Start an agent worker for one conversation and print every event it
forwards. Each line read from stdin is sent as a follow-up message.
The session ends on end of input (after the current turn finishes) or
on interrupt.`,
		usage: "central agent --prompt TEXT [flags]",
		examples: []example{
			{"Ask about the current directory", `central agent --prompt "summarize this repository"`},
			{"Resume an earlier conversation with a budget", `central agent --resume sdk-123 --max-budget-usd 0.5 --prompt "continue"`},
		},
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("agent", pflag.ContinueOnError)
			options.common.addFlags(flagSet)
			flagSet.StringVar(&options.project, "project", "", "project directory (default: current directory)")
			flagSet.StringVar(&options.prompt, "prompt", "", "initial prompt (required)")
			flagSet.StringVar(&options.model, "model", "", "model name passed to the worker")
			flagSet.Float64Var(&options.maxBudgetUSD, "max-budget-usd", 0, "spending cap in USD passed to the worker")
			flagSet.StringVar(&options.resume, "resume", "", "SDK session id to resume")
			flagSet.StringVar(&options.sessionID, "session-id", "", "session id (default: random UUID)")
			flagSet.StringVar(&options.journalPath, "journal", "", "append forwarded events to this journal (overrides config)")
			flagSet.BoolVar(&options.approveTools, "approve-tools", false, "allow every tool approval request instead of denying it")
			flagSet.BoolVar(&options.jsonOutput, "json", false, "print JSON lines even when stdout is a terminal")
			return flagSet
		},
		run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return runAgent(&options)
		},
	}
}

func runAgent(options *agentOptions) error {
	if options.prompt == "" {
		return errors.New("--prompt is required")
	}
	project := options.project
	if project == "" {
		project = "."
	}
	project, err := filepath.Abs(project)
	if err != nil {
		return fmt.Errorf("resolving project directory: %w", err)
	}
	sessionID := options.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	settings, err := options.common.loadSettings()
	if err != nil {
		return err
	}
	if options.journalPath != "" {
		settings.Journal.Path = options.journalPath
	}
	logger, err := newLogger(settings, nil)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, events := agentsession.ChannelSink(256)
	core, err := orchestrator.New(orchestrator.Config{
		Settings: settings,
		Events:   sink,
		Logger:   logger.Logger,
	})
	if err != nil {
		return err
	}
	defer core.Shutdown()

	start := agentwire.StartSession{
		SessionID:       sessionID,
		ProjectPath:     project,
		Prompt:          options.prompt,
		Model:           options.model,
		ResumeSessionID: options.resume,
	}
	if options.maxBudgetUSD > 0 {
		start.MaxBudgetUSD = &options.maxBudgetUSD
	}
	if err := core.Sessions.StartSession(start); err != nil {
		return err
	}

	stdoutTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	width, _, _ := term.GetSize(int(os.Stdout.Fd()))
	printer := newEventPrinter(os.Stdout, stdoutTerminal && !options.jsonOutput, width)

	lines := readLines(os.Stdin)
	busy := true
	inputDone := false
	exitCheck := time.NewTicker(500 * time.Millisecond)
	defer exitCheck.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("interrupted, ending session", "session_id", sessionID)
			return core.Sessions.EndSession(sessionID)

		case line, ok := <-lines:
			if !ok {
				lines = nil
				inputDone = true
				if !busy {
					return core.Sessions.EndSession(sessionID)
				}
				continue
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			busy = true
			if err := core.Sessions.SendCommand(agentwire.SendMessage{SessionID: sessionID, Message: line}); err != nil {
				return err
			}

		case event := <-events:
			if err := printer.print(event); err != nil {
				return err
			}
			if payload, ok := event.Event.(agentwire.ToolApprovalRequest); ok {
				response := agentwire.ToolApprovalResponse{RequestID: payload.RequestID, Allowed: options.approveTools}
				if !options.approveTools {
					logger.Warn("denying tool request; pass --approve-tools to allow",
						"session_id", sessionID, "tool", payload.ToolName, "request_id", payload.RequestID)
				}
				if err := core.Sessions.SendToSession(sessionID, response); err != nil {
					return err
				}
			}
			if agentwire.IsTerminal(event.Event) {
				busy = false
				if inputDone {
					return core.Sessions.EndSession(sessionID)
				}
			}

		case <-exitCheck.C:
			info, err := core.Sessions.SessionInfo(sessionID)
			if err != nil {
				return err
			}
			// Keep draining events already relayed before reporting.
			if info.Exited && info.StdoutClosed && len(events) == 0 {
				return fmt.Errorf("worker for session %s exited with code %d", sessionID, info.ExitCode)
			}
		}
	}
}

// readLines sends each stdin line on the returned channel and closes it
// at end of input.
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}
