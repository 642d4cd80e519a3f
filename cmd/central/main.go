// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// central hosts the orchestration core from a terminal. It runs one
// agent conversation, one interactive PTY session, or dumps an event
// journal, using the same registries an application embeds.
package main

import (
	"os"

	"github.com/bureau-foundation/central/lib/process"
	"github.com/bureau-foundation/central/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			process.Exit(coder.ExitCode())
		}
		process.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) > 0 && args[0] == "--version" {
		version.Print("central")
		return nil
	}
	return root().execute(args)
}

func root() *command {
	return &command{
		name:    "central",
		summary: "Run agent workers and terminal sessions",
		description: `central runs agent conversations and interactive terminals through the
orchestration core. Configuration comes from the file named by --config
or CENTRAL_CONFIG; without either, built-in development defaults apply.`,
		subcommands: []*command{
			agentCommand(),
			terminalCommand(),
			journalCommand(),
		},
	}
}
