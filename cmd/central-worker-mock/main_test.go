// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/bureau-foundation/central/lib/agentwire"
)

func decodeAll(t *testing.T, output []byte) []agentwire.Event {
	t.Helper()
	var events []agentwire.Event
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		event, err := agentwire.DecodeEvent(scanner.Bytes())
		if err != nil {
			t.Fatalf("mock wrote an undecodable line %q: %v", scanner.Text(), err)
		}
		events = append(events, event)
	}
	return events
}

func eventTypes(events []agentwire.Event) []agentwire.EventType {
	types := make([]agentwire.EventType, len(events))
	for i, event := range events {
		types[i] = event.Type()
	}
	return types
}

func TestScriptedConversation(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`{"type":"start_session","sessionId":"s1","projectPath":"/","prompt":"look around"}`,
		`{"type":"send_message","sessionId":"s1","message":"again"}`,
		`{"type":"tool_approval_response","requestId":"r1","allowed":true}`,
		`{"type":"end_session","sessionId":"s1"}`,
		`{"type":"send_message","sessionId":"s1","message":"ignored after end"}`,
	}, "\n") + "\n"
	var stdout bytes.Buffer
	if err := run([]string{"--delay", "0"}, strings.NewReader(input), &stdout, io.Discard); err != nil {
		t.Fatalf("run: %v", err)
	}

	events := decodeAll(t, stdout.Bytes())
	want := []agentwire.EventType{
		agentwire.EventSessionStarted,
		agentwire.EventMessage,
		agentwire.EventToolUse,
		agentwire.EventToolProgress,
		agentwire.EventToolResult,
		agentwire.EventMessage,
		agentwire.EventSessionCompleted,
		agentwire.EventMessage,
		agentwire.EventMessage,
	}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("event types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
	for _, event := range events {
		if id, _ := agentwire.EventSessionID(event); id != "s1" {
			t.Errorf("%s event carries session id %q, want s1", event.Type(), id)
		}
	}
	echo := events[7].(agentwire.Message)
	if echo.Content != "You said: again" {
		t.Errorf("echo content = %q", echo.Content)
	}
	approval := events[8].(agentwire.Message)
	if !strings.Contains(approval.Content, "r1 was allowed") {
		t.Errorf("approval answer = %q", approval.Content)
	}
}

func TestFailFlag(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	input := `{"type":"start_session","sessionId":"s1","projectPath":"/nonexistent","prompt":"x"}` + "\n"
	if err := run([]string{"--delay=0", "--fail"}, strings.NewReader(input), &stdout, io.Discard); err != nil {
		t.Fatalf("run: %v", err)
	}
	events := decodeAll(t, stdout.Bytes())
	last := events[len(events)-1]
	failed, ok := last.(agentwire.SessionFailed)
	if !ok {
		t.Fatalf("last event = %T, want SessionFailed", last)
	}
	if failed.Error == "" {
		t.Error("SessionFailed has no error text")
	}
}

func TestMalformedCommandReportsError(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	if err := run([]string{"--delay=0"}, strings.NewReader("not json\n"), &stdout, io.Discard); err != nil {
		t.Fatalf("run: %v", err)
	}
	events := decodeAll(t, stdout.Bytes())
	if len(events) != 1 || events[0].Type() != agentwire.EventError {
		t.Fatalf("events = %v, want one error event", eventTypes(events))
	}
}
