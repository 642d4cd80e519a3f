// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"encoding/json"
)

// CommandType is the wire discriminator of a manager → worker command.
type CommandType string

const (
	CommandStartSession         CommandType = "start_session"
	CommandSendMessage          CommandType = "send_message"
	CommandAbortSession         CommandType = "abort_session"
	CommandEndSession           CommandType = "end_session"
	CommandToolApprovalResponse CommandType = "tool_approval_response"
)

// Command is a message from the manager to a worker. The set of
// implementations is closed to this package.
type Command interface {
	// Type returns the wire discriminator.
	Type() CommandType

	isCommand()
}

// StartSession is the first line every worker receives. It carries the
// project and the initial prompt for the conversation.
type StartSession struct {
	SessionID   string `json:"sessionId"`
	ProjectPath string `json:"projectPath"`
	Prompt      string `json:"prompt"`

	// Model selects the agent model. Empty means the worker's default.
	Model string `json:"model,omitempty"`

	// MaxBudgetUSD caps the session's spend. Nil means no cap.
	MaxBudgetUSD *float64 `json:"maxBudgetUsd,omitempty"`

	// ResumeSessionID names an earlier SDK session to continue.
	ResumeSessionID string `json:"resumeSessionId,omitempty"`
}

// SendMessage delivers a follow-up user message to a running session.
type SendMessage struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// AbortSession asks the worker to stop the current turn and exit.
type AbortSession struct {
	SessionID string `json:"sessionId"`
}

// EndSession asks the worker to close its follow-up queue and exit once
// the current turn finishes.
type EndSession struct {
	SessionID string `json:"sessionId"`
}

// ToolApprovalResponse answers a ToolApprovalRequest event. It carries
// no session id; the caller addresses it to a session explicitly.
type ToolApprovalResponse struct {
	RequestID string `json:"requestId"`
	Allowed   bool   `json:"allowed"`

	// UpdatedPermissions is an opaque permission update forwarded to the
	// agent SDK unchanged.
	UpdatedPermissions json.RawMessage `json:"updatedPermissions,omitempty"`
}

func (StartSession) Type() CommandType         { return CommandStartSession }
func (SendMessage) Type() CommandType          { return CommandSendMessage }
func (AbortSession) Type() CommandType         { return CommandAbortSession }
func (EndSession) Type() CommandType           { return CommandEndSession }
func (ToolApprovalResponse) Type() CommandType { return CommandToolApprovalResponse }

func (StartSession) isCommand()         {}
func (SendMessage) isCommand()          {}
func (AbortSession) isCommand()         {}
func (EndSession) isCommand()           {}
func (ToolApprovalResponse) isCommand() {}

// The payload types below drop the MarshalJSON method so the tagged
// marshalers can encode the plain fields without recursing.
type (
	startSessionPayload         StartSession
	sendMessagePayload          SendMessage
	abortSessionPayload         AbortSession
	endSessionPayload           EndSession
	toolApprovalResponsePayload ToolApprovalResponse
)

func (command StartSession) MarshalJSON() ([]byte, error) {
	return marshalTagged(string(CommandStartSession), startSessionPayload(command))
}

func (command SendMessage) MarshalJSON() ([]byte, error) {
	return marshalTagged(string(CommandSendMessage), sendMessagePayload(command))
}

func (command AbortSession) MarshalJSON() ([]byte, error) {
	return marshalTagged(string(CommandAbortSession), abortSessionPayload(command))
}

func (command EndSession) MarshalJSON() ([]byte, error) {
	return marshalTagged(string(CommandEndSession), endSessionPayload(command))
}

func (command ToolApprovalResponse) MarshalJSON() ([]byte, error) {
	return marshalTagged(string(CommandToolApprovalResponse), toolApprovalResponsePayload(command))
}

// CommandSessionID returns the session id a command is addressed to.
// ToolApprovalResponse carries none and reports false.
func CommandSessionID(command Command) (string, bool) {
	switch typed := command.(type) {
	case StartSession:
		return typed.SessionID, true
	case *StartSession:
		return typed.SessionID, true
	case SendMessage:
		return typed.SessionID, true
	case *SendMessage:
		return typed.SessionID, true
	case AbortSession:
		return typed.SessionID, true
	case *AbortSession:
		return typed.SessionID, true
	case EndSession:
		return typed.SessionID, true
	case *EndSession:
		return typed.SessionID, true
	case ToolApprovalResponse, *ToolApprovalResponse:
		return "", false
	default:
		return "", false
	}
}
