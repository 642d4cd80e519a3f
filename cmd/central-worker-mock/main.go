// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// central-worker-mock is a stand-in agent worker. It speaks the worker
// wire protocol on stdio without contacting any model, so the session
// registry and the central CLI can be exercised end to end:
//
//	central agent --project . --prompt hi  # with worker.interpreter: [central-worker-mock]
//
// On start_session it plays a short scripted conversation: session
// started, an assistant message, one tool call with its result, and a
// completion (or a failure with --fail). send_message is echoed back.
// abort_session and end_session make it exit. Diagnostics go to
// stderr, which the registry drains into its log.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/central/lib/agentwire"
	"github.com/bureau-foundation/central/lib/process"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		process.Fatal(err)
	}
}

type mockWorker struct {
	out    io.Writer
	logger *slog.Logger
	delay  time.Duration
	fail   bool

	// sessionID is the conversation started most recently. Tool
	// approval responses carry no session id and are answered there.
	sessionID string
	started   time.Time
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var (
		delay time.Duration
		fail  bool
	)
	flagSet := pflag.NewFlagSet("central-worker-mock", pflag.ContinueOnError)
	flagSet.DurationVar(&delay, "delay", 20*time.Millisecond, "pause between scripted events")
	flagSet.BoolVar(&fail, "fail", false, "finish the scripted conversation with session_failed")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	worker := &mockWorker{
		out:    stdout,
		logger: slog.New(slog.NewTextHandler(stderr, nil)),
		delay:  delay,
		fail:   fail,
	}
	return worker.serve(stdin)
}

// serve handles commands until stdin closes or the session is ended.
func (w *mockWorker) serve(stdin io.Reader) error {
	reader := bufio.NewReader(stdin)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			done, handleErr := w.handle(line)
			if handleErr != nil {
				return handleErr
			}
			if done {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			w.logger.Info("stdin closed")
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading commands: %w", err)
		}
	}
}

func (w *mockWorker) handle(line []byte) (done bool, err error) {
	command, decodeErr := agentwire.DecodeCommand(line)
	if decodeErr != nil {
		w.logger.Warn("ignoring malformed command", "error", decodeErr)
		return false, w.emit(agentwire.ErrorEvent{Message: decodeErr.Error()})
	}
	w.logger.Info("command", "type", command.Type())

	switch command := command.(type) {
	case agentwire.StartSession:
		w.sessionID = command.SessionID
		w.started = time.Now()
		return false, w.converse(command)
	case agentwire.SendMessage:
		return false, w.emit(agentwire.Message{
			SessionID: command.SessionID,
			Role:      "assistant",
			Content:   "You said: " + command.Message,
		})
	case agentwire.ToolApprovalResponse:
		verdict := "denied"
		if command.Allowed {
			verdict = "allowed"
		}
		return false, w.emit(agentwire.Message{
			SessionID: w.sessionID,
			Role:      "assistant",
			Content:   fmt.Sprintf("Tool request %s was %s.", command.RequestID, verdict),
		})
	case agentwire.AbortSession, agentwire.EndSession:
		return true, nil
	}
	return false, nil
}

// converse plays the scripted conversation for a new session.
func (w *mockWorker) converse(start agentwire.StartSession) error {
	id := start.SessionID
	sdkSessionID := "mock-" + id
	if start.ResumeSessionID != "" {
		sdkSessionID = start.ResumeSessionID
	}
	input, _ := json.Marshal(map[string]string{"path": start.ProjectPath})

	script := []agentwire.Event{
		agentwire.SessionStarted{SessionID: id, SDKSessionID: sdkSessionID},
		agentwire.Message{SessionID: id, Role: "assistant", Content: "Looking at " + start.ProjectPath + " for: " + start.Prompt},
		agentwire.ToolUse{SessionID: id, ToolName: "ListDirectory", Input: input},
		agentwire.ToolProgress{SessionID: id, ToolName: "ListDirectory", ElapsedSeconds: 0.1},
		agentwire.ToolResult{SessionID: id, ToolName: "ListDirectory", Output: w.listing(start.ProjectPath)},
	}
	if w.fail {
		script = append(script, agentwire.SessionFailed{SessionID: id, Error: "mock failure requested"})
	} else {
		cost := 0.0
		if start.MaxBudgetUSD != nil {
			cost = min(0.001, *start.MaxBudgetUSD)
		}
		duration := time.Since(w.started).Milliseconds()
		script = append(script,
			agentwire.Message{SessionID: id, Role: "assistant", Content: "Done."},
			agentwire.SessionCompleted{SessionID: id, SDKSessionID: sdkSessionID, TotalCostUSD: &cost, DurationMS: &duration},
		)
	}

	for _, event := range script {
		if err := w.emit(event); err != nil {
			return err
		}
		time.Sleep(w.delay)
	}
	return nil
}

func (w *mockWorker) listing(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err.Error()
	}
	var listing string
	for i, entry := range entries {
		if i == 10 {
			listing += "...\n"
			break
		}
		listing += entry.Name() + "\n"
	}
	return listing
}

func (w *mockWorker) emit(event agentwire.Event) error {
	data, err := agentwire.EncodeEvent(event)
	if err != nil {
		return err
	}
	return agentwire.WriteLine(w.out, data)
}
