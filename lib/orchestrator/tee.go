// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bureau-foundation/central/lib/agentsession"
	"github.com/bureau-foundation/central/lib/journal"
	"github.com/bureau-foundation/central/lib/ptysession"
)

func (o *Orchestrator) agentSink(next agentsession.Sink) agentsession.Sink {
	if o.journal == nil {
		return next
	}
	return agentsession.SinkFunc(func(event agentsession.SessionEvent) error {
		o.record(journal.SourceAgent, event.SessionID, string(event.Event.Type()), event.Event, event.ReceivedAt)
		if next == nil {
			return nil
		}
		return next.Deliver(event)
	})
}

func (o *Orchestrator) terminalSink(id string, next ptysession.Sink) ptysession.Sink {
	if o.journal == nil {
		return next
	}
	return ptysession.SinkFunc(func(ctx context.Context, event ptysession.TerminalEvent) error {
		o.record(journal.SourceTerminal, id, event.Kind(), event, o.clock.Now())
		if next == nil {
			return nil
		}
		return next.Send(ctx, event)
	})
}

// record appends one event. Journal failures never reach the sink
// chain; they are logged and the event is still delivered.
func (o *Orchestrator) record(source journal.Source, id, eventType string, payload any, receivedAt time.Time) {
	data, err := json.Marshal(payload)
	if err != nil {
		o.logger.Warn("journal: encoding event", "source", source, "id", id, "error", err)
		return
	}
	err = o.journal.Append(journal.Record{
		Source:     source,
		ID:         id,
		Type:       eventType,
		ReceivedAt: receivedAt,
		Payload:    data,
	})
	if err != nil {
		o.logger.Warn("journal: append failed", "source", source, "id", id, "error", err)
	}
}
