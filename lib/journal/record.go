// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Source identifies which registry produced a record.
type Source string

const (
	SourceAgent    Source = "agent"
	SourceTerminal Source = "terminal"
)

// Record is one journaled event.
type Record struct {
	Source Source `cbor:"source"`

	// ID is the session id or terminal id.
	ID string `cbor:"id"`

	// Type is the event discriminator ("message", "Output", ...).
	Type string `cbor:"type"`

	ReceivedAt time.Time `cbor:"received_at"`

	// Payload is the event in its JSON wire form.
	Payload []byte `cbor:"payload"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("journal: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("journal: CBOR decoder initialization failed: " + err.Error())
	}
}
