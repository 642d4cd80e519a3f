// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package registryerror defines the error taxonomy shared by the agent
// session registry and the PTY session registry.
//
// Every registry operation returns either nil or an [*Error] carrying a
// [Kind]. Callers branch on the kind (via [Is] or errors.Is against the
// Err* sentinels) to decide what to show the user, without parsing
// message text. The wrapped error keeps the full chain for logging.
//
// This package depends on no other Central packages.
package registryerror
