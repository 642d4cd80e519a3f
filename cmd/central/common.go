// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/central/lib/config"
	"github.com/bureau-foundation/central/lib/logging"
)

// commonFlags are accepted by every subcommand that starts the core.
type commonFlags struct {
	configPath string
	logLevel   string
	logFile    string
}

func (f *commonFlags) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "config file (default: $"+config.ConfigEnvVar+", else built-in defaults)")
	flagSet.StringVar(&f.logLevel, "log-level", "", "stderr log level: debug, info, warn, error (overrides config)")
	flagSet.StringVar(&f.logFile, "log-file", "", "debug log file (overrides config; \"-\" disables)")
}

// loadSettings reads, finalizes, and validates the configuration.
func (f *commonFlags) loadSettings() (*config.Config, error) {
	path := f.configPath
	if path == "" {
		path = os.Getenv(config.ConfigEnvVar)
	}

	var settings *config.Config
	if path == "" {
		settings = config.Default().Finalize()
	} else {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		settings = loaded
	}

	if f.logLevel != "" {
		settings.Logging.Level = f.logLevel
	}
	switch f.logFile {
	case "":
	case "-":
		settings.Logging.File = ""
	default:
		settings.Logging.File = f.logFile
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return settings, nil
}

// newLogger builds the process logger. Output nil means stderr.
func newLogger(settings *config.Config, output io.Writer) (*logging.Logger, error) {
	return logging.New(logging.Options{
		Level:  settings.Logging.Level,
		Output: output,
		File:   settings.Logging.File,
	})
}
