// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the central binaries.
// Fatal is the one place raw output reaches stderr before or after the
// structured logger exists.
package process
