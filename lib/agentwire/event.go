// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"encoding/json"
)

// EventType is the wire discriminator of a worker → manager event.
type EventType string

const (
	EventSessionStarted      EventType = "session_started"
	EventMessage             EventType = "message"
	EventToolUse             EventType = "tool_use"
	EventToolResult          EventType = "tool_result"
	EventToolApprovalRequest EventType = "tool_approval_request"
	EventToolProgress        EventType = "tool_progress"
	EventSessionCompleted    EventType = "session_completed"
	EventSessionFailed       EventType = "session_failed"
	EventError               EventType = "error"
)

// Event is a message from a worker to the manager. The set of
// implementations is closed to this package.
type Event interface {
	// Type returns the wire discriminator.
	Type() EventType

	isEvent()
}

// SessionStarted reports that the agent SDK accepted the session.
type SessionStarted struct {
	SessionID    string `json:"sessionId"`
	SDKSessionID string `json:"sdkSessionId"`
}

// Message is one assistant or user turn.
type Message struct {
	SessionID string `json:"sessionId"`
	Role      string `json:"role"`
	Content   string `json:"content"`

	// Thinking is the model's reasoning text, when the SDK exposes it.
	Thinking string `json:"thinking,omitempty"`

	// ToolCalls and Usage are opaque SDK structures passed through to
	// the UI unchanged.
	ToolCalls json.RawMessage `json:"toolCalls,omitempty"`
	Usage     json.RawMessage `json:"usage,omitempty"`
}

// ToolUse reports that the agent invoked a tool.
type ToolUse struct {
	SessionID string          `json:"sessionId"`
	ToolName  string          `json:"toolName"`
	Input     json.RawMessage `json:"input"`
}

// ToolResult carries a tool's output back to the UI.
type ToolResult struct {
	SessionID string `json:"sessionId"`
	ToolName  string `json:"toolName"`
	Output    string `json:"output"`
}

// ToolApprovalRequest asks the user to allow or deny a tool call. The
// answer travels back as a ToolApprovalResponse with the same RequestID.
type ToolApprovalRequest struct {
	SessionID   string          `json:"sessionId"`
	RequestID   string          `json:"requestId"`
	ToolName    string          `json:"toolName"`
	Input       json.RawMessage `json:"input"`
	Suggestions json.RawMessage `json:"suggestions,omitempty"`
}

// ToolProgress is a heartbeat for a long-running tool call.
type ToolProgress struct {
	SessionID      string  `json:"sessionId"`
	ToolName       string  `json:"toolName"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

// SessionCompleted is the successful terminal event of a session.
type SessionCompleted struct {
	SessionID    string   `json:"sessionId"`
	SDKSessionID string   `json:"sdkSessionId"`
	TotalCostUSD *float64 `json:"totalCostUsd,omitempty"`
	DurationMS   *int64   `json:"durationMs,omitempty"`
}

// SessionFailed is the unsuccessful terminal event of a session.
type SessionFailed struct {
	SessionID string `json:"sessionId"`
	Error     string `json:"error"`
}

// ErrorEvent is a worker-level error not tied to any session.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (SessionStarted) Type() EventType      { return EventSessionStarted }
func (Message) Type() EventType             { return EventMessage }
func (ToolUse) Type() EventType             { return EventToolUse }
func (ToolResult) Type() EventType          { return EventToolResult }
func (ToolApprovalRequest) Type() EventType { return EventToolApprovalRequest }
func (ToolProgress) Type() EventType        { return EventToolProgress }
func (SessionCompleted) Type() EventType    { return EventSessionCompleted }
func (SessionFailed) Type() EventType       { return EventSessionFailed }
func (ErrorEvent) Type() EventType          { return EventError }

func (SessionStarted) isEvent()      {}
func (Message) isEvent()             {}
func (ToolUse) isEvent()             {}
func (ToolResult) isEvent()          {}
func (ToolApprovalRequest) isEvent() {}
func (ToolProgress) isEvent()        {}
func (SessionCompleted) isEvent()    {}
func (SessionFailed) isEvent()       {}
func (ErrorEvent) isEvent()          {}

type (
	sessionStartedPayload      SessionStarted
	messagePayload             Message
	toolUsePayload             ToolUse
	toolResultPayload          ToolResult
	toolApprovalRequestPayload ToolApprovalRequest
	toolProgressPayload        ToolProgress
	sessionCompletedPayload    SessionCompleted
	sessionFailedPayload       SessionFailed
	errorEventPayload          ErrorEvent
)

func (event SessionStarted) MarshalJSON() ([]byte, error) {
	return marshalTagged(string(EventSessionStarted), sessionStartedPayload(event))
}

func (event Message) MarshalJSON() ([]byte, error) {
	return marshalTagged(string(EventMessage), messagePayload(event))
}

func (event ToolUse) MarshalJSON() ([]byte, error) {
	return marshalTagged(string(EventToolUse), toolUsePayload(event))
}

func (event ToolResult) MarshalJSON() ([]byte, error) {
	return marshalTagged(string(EventToolResult), toolResultPayload(event))
}

func (event ToolApprovalRequest) MarshalJSON() ([]byte, error) {
	return marshalTagged(string(EventToolApprovalRequest), toolApprovalRequestPayload(event))
}

func (event ToolProgress) MarshalJSON() ([]byte, error) {
	return marshalTagged(string(EventToolProgress), toolProgressPayload(event))
}

func (event SessionCompleted) MarshalJSON() ([]byte, error) {
	return marshalTagged(string(EventSessionCompleted), sessionCompletedPayload(event))
}

func (event SessionFailed) MarshalJSON() ([]byte, error) {
	return marshalTagged(string(EventSessionFailed), sessionFailedPayload(event))
}

func (event ErrorEvent) MarshalJSON() ([]byte, error) {
	return marshalTagged(string(EventError), errorEventPayload(event))
}

// EventSessionID returns the session id carried in an event's payload.
// The global ErrorEvent carries none and reports false.
func EventSessionID(event Event) (string, bool) {
	switch typed := event.(type) {
	case SessionStarted:
		return typed.SessionID, true
	case Message:
		return typed.SessionID, true
	case ToolUse:
		return typed.SessionID, true
	case ToolResult:
		return typed.SessionID, true
	case ToolApprovalRequest:
		return typed.SessionID, true
	case ToolProgress:
		return typed.SessionID, true
	case SessionCompleted:
		return typed.SessionID, true
	case SessionFailed:
		return typed.SessionID, true
	default:
		return "", false
	}
}

// IsTerminal reports whether an event ends its session: SessionCompleted
// or SessionFailed.
func IsTerminal(event Event) bool {
	switch event.(type) {
	case SessionCompleted, SessionFailed:
		return true
	default:
		return false
	}
}
