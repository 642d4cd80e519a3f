// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrUnknownType is wrapped by a DecodeError whose discriminator is
// missing or not part of the protocol.
var ErrUnknownType = errors.New("unknown message type")

// DecodeError reports a line that could not be decoded as a protocol
// message. Relays log these and keep reading.
type DecodeError struct {
	// Type is the discriminator found on the line, empty if none could
	// be read.
	Type string

	Err error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("decoding protocol line: %v", e.Err)
	}
	return fmt.Sprintf("decoding %q message: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// marshalTagged encodes payload as a JSON object and prepends the
// "type" discriminator so the wire form is flat.
func marshalTagged(tag string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("%s payload did not encode as a JSON object", tag)
	}

	var buffer bytes.Buffer
	buffer.Grow(len(body) + len(tag) + 12)
	buffer.WriteString(`{"type":`)
	buffer.WriteString(strconv.Quote(tag))
	if len(body) > 2 {
		buffer.WriteByte(',')
		buffer.Write(body[1:])
	} else {
		buffer.WriteByte('}')
	}
	return buffer.Bytes(), nil
}

// envelope reads only the discriminator of a line.
type envelope struct {
	Type string `json:"type"`
}

// EncodeCommand encodes a command as one JSON line without the trailing
// newline.
func EncodeCommand(command Command) ([]byte, error) {
	if command == nil {
		return nil, errors.New("encoding nil command")
	}
	data, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("encoding %s command: %w", command.Type(), err)
	}
	return data, nil
}

// EncodeEvent encodes an event as one JSON line without the trailing
// newline.
func EncodeEvent(event Event) ([]byte, error) {
	if event == nil {
		return nil, errors.New("encoding nil event")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", event.Type(), err)
	}
	return data, nil
}

// WriteLine writes data followed by a newline in a single Write call,
// then flushes w if it buffers. A single call keeps one line from being
// split around another writer's bytes on the same stream.
func WriteLine(w io.Writer, data []byte) error {
	line := make([]byte, 0, len(data)+1)
	line = append(line, data...)
	line = append(line, '\n')
	if _, err := w.Write(line); err != nil {
		return err
	}
	if flusher, ok := w.(interface{ Flush() error }); ok {
		if err := flusher.Flush(); err != nil {
			return fmt.Errorf("flush: %w", err)
		}
	}
	return nil
}

// DecodeEvent decodes one line of worker output. The line must be a
// JSON object with a known "type"; every event except ErrorEvent must
// carry a non-empty sessionId.
func DecodeEvent(line []byte) (Event, error) {
	var header envelope
	if err := json.Unmarshal(line, &header); err != nil {
		return nil, &DecodeError{Err: err}
	}

	var (
		event Event
		err   error
	)
	switch EventType(header.Type) {
	case EventSessionStarted:
		event, err = decodeAs[SessionStarted](line)
	case EventMessage:
		event, err = decodeAs[Message](line)
	case EventToolUse:
		event, err = decodeAs[ToolUse](line)
	case EventToolResult:
		event, err = decodeAs[ToolResult](line)
	case EventToolApprovalRequest:
		event, err = decodeAs[ToolApprovalRequest](line)
	case EventToolProgress:
		event, err = decodeAs[ToolProgress](line)
	case EventSessionCompleted:
		event, err = decodeAs[SessionCompleted](line)
	case EventSessionFailed:
		event, err = decodeAs[SessionFailed](line)
	case EventError:
		event, err = decodeAs[ErrorEvent](line)
	default:
		return nil, &DecodeError{Type: header.Type, Err: ErrUnknownType}
	}
	if err != nil {
		return nil, &DecodeError{Type: header.Type, Err: err}
	}

	if sessionID, scoped := EventSessionID(event); scoped && sessionID == "" {
		return nil, &DecodeError{Type: header.Type, Err: errors.New("missing sessionId")}
	}
	return event, nil
}

// DecodeCommand decodes one line of manager input. Used by workers.
func DecodeCommand(line []byte) (Command, error) {
	var header envelope
	if err := json.Unmarshal(line, &header); err != nil {
		return nil, &DecodeError{Err: err}
	}

	var (
		command Command
		err     error
	)
	switch CommandType(header.Type) {
	case CommandStartSession:
		command, err = decodeAs[StartSession](line)
	case CommandSendMessage:
		command, err = decodeAs[SendMessage](line)
	case CommandAbortSession:
		command, err = decodeAs[AbortSession](line)
	case CommandEndSession:
		command, err = decodeAs[EndSession](line)
	case CommandToolApprovalResponse:
		command, err = decodeAs[ToolApprovalResponse](line)
	default:
		return nil, &DecodeError{Type: header.Type, Err: ErrUnknownType}
	}
	if err != nil {
		return nil, &DecodeError{Type: header.Type, Err: err}
	}
	return command, nil
}

func decodeAs[T any](line []byte) (T, error) {
	var value T
	err := json.Unmarshal(line, &value)
	return value, err
}
