// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentsession

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"

	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/central/lib/agentwire"
	"github.com/bureau-foundation/central/lib/clock"
)

// linePreviewWidth bounds how much of an undecodable line is logged.
const linePreviewWidth = 200

// relay decodes one worker's stdout and forwards events to the sink.
type relay struct {
	sessionID string
	sink      Sink
	clock     clock.Clock
	logger    *slog.Logger

	// observe, when set, sees every forwarded event before the sink
	// does. The registry uses it to follow terminal events.
	observe func(agentwire.Event)
}

// run reads lines until end of stream or a read error. It returns the
// number of events forwarded and the read error, if any; end of
// stream is not an error.
func (r relay) run(stdout io.Reader) (int, error) {
	reader := bufio.NewReader(stdout)
	forwarded := 0
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 && r.handleLine(line) {
			forwarded++
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return forwarded, nil
			}
			return forwarded, err
		}
	}
}

// handleLine decodes and forwards a single line, reporting whether an
// event was forwarded.
func (r relay) handleLine(line []byte) bool {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return false
	}

	event, err := agentwire.DecodeEvent(line)
	if err != nil {
		r.logger.Warn("discarding undecodable worker line",
			"error", err,
			"line", preview(line),
		)
		return false
	}

	if payloadID, ok := agentwire.EventSessionID(event); ok && payloadID != r.sessionID {
		r.logger.Warn("worker event names a different session; attributing to its worker",
			"event_type", event.Type(),
			"payload_session_id", payloadID,
		)
	}

	if r.observe != nil {
		r.observe(event)
	}

	if r.sink == nil {
		return true
	}
	if err := r.sink.Deliver(SessionEvent{
		SessionID:  r.sessionID,
		Event:      event,
		ReceivedAt: r.clock.Now(),
	}); err != nil {
		r.logger.Debug("event sink rejected event", "event_type", event.Type(), "error", err)
	}
	return true
}

// drainStderr logs each stderr line until end of stream.
func drainStderr(stderr io.Reader, logger *slog.Logger) {
	reader := bufio.NewReader(stderr)
	for {
		line, err := reader.ReadBytes('\n')
		if text := bytes.TrimRight(line, "\r\n"); len(text) > 0 {
			logger.Info("worker stderr", "line", ansi.Strip(string(text)))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("worker stderr read failed", "error", err)
			}
			return
		}
	}
}

// preview renders a line for logs: escape sequences stripped and the
// result truncated.
func preview(line []byte) string {
	return ansi.Truncate(ansi.Strip(string(line)), linePreviewWidth, "…")
}
