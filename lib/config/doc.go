// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the central configuration file.
//
// The file is named by the CENTRAL_CONFIG environment variable (via
// [Load]) or a --config flag (via [LoadFile]). Without either, hosts
// use [Default], which describes a development checkout: the worker
// script at sidecar/src/session-worker.ts run by node with the tsx
// loader, the user's shell for terminals, and info-level logging.
//
// Files ending in .json or .jsonc are accepted alongside YAML; comments
// and trailing commas are stripped before parsing.
//
// The file may contain development and production sections that
// override base values when [Config].Environment matches. Production
// defaults drop the debug log file.
//
// ${HOME}, ${CENTRAL_ROOT}, and ${VAR:-default} patterns are expanded
// in path fields after loading. No other environment variables
// override config values.
//
// This package depends on no other central packages.
package config
