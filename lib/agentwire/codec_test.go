// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"
)

// keysOf decodes a JSON object and returns its sorted top-level keys.
func keysOf(t *testing.T, data []byte) []string {
	t.Helper()
	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func TestEncodeStartSessionOmitsAbsentOptionals(t *testing.T) {
	t.Parallel()

	data, err := EncodeCommand(StartSession{
		SessionID:   "s1",
		ProjectPath: "/tmp",
		Prompt:      "x",
	})
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	if bytes.ContainsRune(data, '\n') {
		t.Errorf("encoded command contains a newline: %q", data)
	}

	got := strings.Join(keysOf(t, data), ",")
	want := "projectPath,prompt,sessionId,type"
	if got != want {
		t.Errorf("keys = %s, want %s (line: %s)", got, want, data)
	}
	if bytes.Contains(data, []byte("null")) {
		t.Errorf("encoded command contains null: %s", data)
	}
	if !bytes.HasPrefix(data, []byte(`{"type":"start_session",`)) {
		t.Errorf("discriminator not leading: %s", data)
	}
}

func TestEncodeStartSessionWithOptionals(t *testing.T) {
	t.Parallel()

	budget := 2.5
	data, err := EncodeCommand(StartSession{
		SessionID:       "s1",
		ProjectPath:     "/src",
		Prompt:          "go",
		Model:           "opus",
		MaxBudgetUSD:    &budget,
		ResumeSessionID: "sdk-9",
	})
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["model"] != "opus" {
		t.Errorf("model = %v", decoded["model"])
	}
	if decoded["maxBudgetUsd"] != 2.5 {
		t.Errorf("maxBudgetUsd = %v", decoded["maxBudgetUsd"])
	}
	if decoded["resumeSessionId"] != "sdk-9" {
		t.Errorf("resumeSessionId = %v", decoded["resumeSessionId"])
	}
}

func TestEncodeCommandsWithoutPayloadFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		command Command
		want    string
	}{
		{AbortSession{SessionID: "s1"}, `{"type":"abort_session","sessionId":"s1"}`},
		{EndSession{SessionID: "s1"}, `{"type":"end_session","sessionId":"s1"}`},
		{SendMessage{SessionID: "s1", Message: "hi"}, `{"type":"send_message","sessionId":"s1","message":"hi"}`},
		{ToolApprovalResponse{RequestID: "r1", Allowed: true}, `{"type":"tool_approval_response","requestId":"r1","allowed":true}`},
	}
	for _, test := range tests {
		data, err := EncodeCommand(test.command)
		if err != nil {
			t.Fatalf("EncodeCommand(%T): %v", test.command, err)
		}
		if string(data) != test.want {
			t.Errorf("EncodeCommand(%T) = %s, want %s", test.command, data, test.want)
		}
	}
}

func TestDecodeSessionCompletedWithoutCost(t *testing.T) {
	t.Parallel()

	event, err := DecodeEvent([]byte(`{"type":"session_completed","sessionId":"s1","sdkSessionId":"abc"}`))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	completed, ok := event.(SessionCompleted)
	if !ok {
		t.Fatalf("decoded %T, want SessionCompleted", event)
	}
	if completed.SessionID != "s1" || completed.SDKSessionID != "abc" {
		t.Errorf("completed = %+v", completed)
	}
	if completed.TotalCostUSD != nil {
		t.Errorf("TotalCostUSD = %v, want nil", *completed.TotalCostUSD)
	}
	if completed.DurationMS != nil {
		t.Errorf("DurationMS = %v, want nil", *completed.DurationMS)
	}
	if !IsTerminal(event) {
		t.Error("SessionCompleted should be terminal")
	}
}

func TestDecodeEveryEventType(t *testing.T) {
	t.Parallel()

	lines := map[EventType]string{
		EventSessionStarted:      `{"type":"session_started","sessionId":"s1","sdkSessionId":"sdk"}`,
		EventMessage:             `{"type":"message","sessionId":"s1","role":"assistant","content":"hi","usage":{"input_tokens":3}}`,
		EventToolUse:             `{"type":"tool_use","sessionId":"s1","toolName":"Read","input":{"file_path":"/a"}}`,
		EventToolResult:          `{"type":"tool_result","sessionId":"s1","toolName":"Read","output":"contents"}`,
		EventToolApprovalRequest: `{"type":"tool_approval_request","sessionId":"s1","requestId":"r1","toolName":"Bash","input":{"command":"ls"}}`,
		EventToolProgress:        `{"type":"tool_progress","sessionId":"s1","toolName":"Bash","elapsedSeconds":1.5}`,
		EventSessionCompleted:    `{"type":"session_completed","sessionId":"s1","sdkSessionId":"sdk","totalCostUsd":0.25,"durationMs":1200}`,
		EventSessionFailed:       `{"type":"session_failed","sessionId":"s1","error":"boom"}`,
		EventError:               `{"type":"error","message":"worker crashed"}`,
	}

	for eventType, line := range lines {
		event, err := DecodeEvent([]byte(line))
		if err != nil {
			t.Errorf("DecodeEvent(%s): %v", eventType, err)
			continue
		}
		if event.Type() != eventType {
			t.Errorf("DecodeEvent(%s).Type() = %s", eventType, event.Type())
		}
		sessionID, scoped := EventSessionID(event)
		if eventType == EventError {
			if scoped {
				t.Errorf("error event reported a session id %q", sessionID)
			}
		} else if sessionID != "s1" {
			t.Errorf("%s session id = %q, want s1", eventType, sessionID)
		}
	}
}

func TestDecodeEventPreservesOpaquePayloads(t *testing.T) {
	t.Parallel()

	event, err := DecodeEvent([]byte(`{"type":"tool_use","sessionId":"s1","toolName":"Edit","input":{"old":"a","new":"b"}}`))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	toolUse := event.(ToolUse)
	if string(toolUse.Input) != `{"old":"a","new":"b"}` {
		t.Errorf("Input = %s", toolUse.Input)
	}

	reencoded, err := EncodeEvent(toolUse)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	want := `{"type":"tool_use","sessionId":"s1","toolName":"Edit","input":{"old":"a","new":"b"}}`
	if string(reencoded) != want {
		t.Errorf("EncodeEvent = %s, want %s", reencoded, want)
	}
}

func TestDecodeEventRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		line        string
		wantUnknown bool
	}{
		{"not json", `this is not json`, false},
		{"truncated", `{"type":"message","sessionId":`, false},
		{"unknown type", `{"type":"ready","message":"hello"}`, true},
		{"missing type", `{"sessionId":"s1"}`, true},
		{"missing session id", `{"type":"session_failed","error":"x"}`, false},
		{"wrong field type", `{"type":"tool_progress","sessionId":"s1","toolName":"x","elapsedSeconds":"soon"}`, false},
	}
	for _, test := range tests {
		_, err := DecodeEvent([]byte(test.line))
		if err == nil {
			t.Errorf("%s: DecodeEvent succeeded, want error", test.name)
			continue
		}
		var decodeError *DecodeError
		if !errors.As(err, &decodeError) {
			t.Errorf("%s: error %v is not a *DecodeError", test.name, err)
		}
		if got := errors.Is(err, ErrUnknownType); got != test.wantUnknown {
			t.Errorf("%s: errors.Is(ErrUnknownType) = %v, want %v", test.name, got, test.wantUnknown)
		}
	}
}

func TestDecodeCommandRoundTrip(t *testing.T) {
	t.Parallel()

	data, err := EncodeCommand(ToolApprovalResponse{
		RequestID:          "r7",
		Allowed:            false,
		UpdatedPermissions: json.RawMessage(`[{"tool":"Bash"}]`),
	})
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	command, err := DecodeCommand(data)
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	response, ok := command.(ToolApprovalResponse)
	if !ok {
		t.Fatalf("decoded %T, want ToolApprovalResponse", command)
	}
	if response.RequestID != "r7" || response.Allowed {
		t.Errorf("response = %+v", response)
	}
	if string(response.UpdatedPermissions) != `[{"tool":"Bash"}]` {
		t.Errorf("UpdatedPermissions = %s", response.UpdatedPermissions)
	}
	if _, ok := CommandSessionID(command); ok {
		t.Error("ToolApprovalResponse should not report a session id")
	}
}

func TestCommandSessionID(t *testing.T) {
	t.Parallel()

	for _, command := range []Command{
		StartSession{SessionID: "a"},
		&SendMessage{SessionID: "a"},
		AbortSession{SessionID: "a"},
		EndSession{SessionID: "a"},
	} {
		sessionID, ok := CommandSessionID(command)
		if !ok || sessionID != "a" {
			t.Errorf("CommandSessionID(%T) = %q, %v", command, sessionID, ok)
		}
	}
}

type countingFlusher struct {
	bytes.Buffer
	flushes int
}

func (writer *countingFlusher) Flush() error {
	writer.flushes++
	return nil
}

func TestWriteLineAppendsNewlineAndFlushes(t *testing.T) {
	t.Parallel()

	var writer countingFlusher
	if err := WriteLine(&writer, []byte(`{"type":"end_session","sessionId":"s1"}`)); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	if writer.String() != "{\"type\":\"end_session\",\"sessionId\":\"s1\"}\n" {
		t.Errorf("written = %q", writer.String())
	}
	if writer.flushes != 1 {
		t.Errorf("flushes = %d, want 1", writer.flushes)
	}

	scanner := bufio.NewScanner(strings.NewReader(writer.String()))
	lines := 0
	for scanner.Scan() {
		lines++
	}
	if lines != 1 {
		t.Errorf("lines = %d, want 1", lines)
	}
}
