// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"filippo.io/age"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/central/lib/journal"
	"github.com/bureau-foundation/central/lib/secret"
)

type journalOptions struct {
	identityPath string
	source       string
	id           string
}

func journalCommand() *command {
	var options journalOptions
	return &command{
		name:    "journal",
		summary: "Dump an event journal as JSON lines",
		description: `Print every record of a journal written by the agent or terminal
subcommands (or an embedding application) as one JSON object per line.
Encrypted journals need the age identity file matching one of the
configured recipients.`,
		usage: "central journal PATH [flags]",
		examples: []example{
			{"Dump a plain journal", "central journal ~/.cache/central/events.cjnl"},
			{"Only one session, from an encrypted journal", "central journal events.cjnl --identity key.txt --id 3f0c..."},
		},
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("journal", pflag.ContinueOnError)
			flagSet.StringVar(&options.identityPath, "identity", "", "age identity file for encrypted journals")
			flagSet.StringVar(&options.source, "source", "", "only records from this source: agent or terminal")
			flagSet.StringVar(&options.id, "id", "", "only records for this session or terminal id")
			return flagSet
		},
		run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("usage: central journal PATH [flags]")
			}
			return runJournal(args[0], &options, os.Stdout, os.Stderr)
		},
	}
}

// journalLine is the JSON form of one record. Payload is the event's
// wire JSON, embedded as is.
type journalLine struct {
	Source     journal.Source  `json:"source"`
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	ReceivedAt time.Time       `json:"receivedAt"`
	Payload    json.RawMessage `json:"payload"`
}

func runJournal(path string, options *journalOptions, stdout, stderr io.Writer) error {
	var identities []age.Identity
	if options.identityPath != "" {
		key, err := secret.ReadFile(options.identityPath)
		if err != nil {
			return fmt.Errorf("reading identity file: %w", err)
		}
		identities, err = journal.ParseIdentities(bytes.NewReader(key.Bytes()))
		key.Close()
		if err != nil {
			return err
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader, err := journal.NewReader(file, identities...)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(stdout)
	var printed int
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, journal.ErrTruncated) {
			// A writer killed mid-append leaves a partial final frame.
			fmt.Fprintf(stderr, "warning: %s ends with a truncated record after %d records\n", path, printed)
			return nil
		}
		if err != nil {
			return err
		}
		if options.source != "" && string(record.Source) != options.source {
			continue
		}
		if options.id != "" && record.ID != options.id {
			continue
		}
		if err := encoder.Encode(journalLine{
			Source:     record.Source,
			ID:         record.ID,
			Type:       record.Type,
			ReceivedAt: record.ReceivedAt,
			Payload:    record.Payload,
		}); err != nil {
			return err
		}
		printed++
	}
}
