// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash fingerprints worker entry points with BLAKE3.
//
// The session registry logs the digest of the resolved worker script
// each time it spawns a worker, so a log file shows exactly which
// build of the worker produced a given session's events even when the
// development tree changes underneath a running application.
package binhash
