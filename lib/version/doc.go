// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for central binaries.
//
// [GitCommit], [GitDirty], [BuildTime], and [Version] are injected with
// -ldflags -X. When a binary was built without them, [Info] falls back
// to the VCS stamp the Go toolchain embeds in the build info.
package version
