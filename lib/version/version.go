// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/bureau-foundation/central/lib/version.GitCommit=...".
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// build is the commit, dirty flag, and time, preferring injected values
// over the toolchain's VCS stamp.
func build(info *debug.BuildInfo) (commit string, dirty bool, at string) {
	commit, dirty, at = GitCommit, GitDirty == "true", BuildTime
	if info == nil || commit != "unknown" {
		return commit, dirty, at
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
			if len(commit) > 12 {
				commit = commit[:12]
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		case "vcs.time":
			if at == "unknown" {
				at = setting.Value
			}
		}
	}
	return commit, dirty, at
}

// Info returns "0.1.0-dev (abc1234, 2026-02-10T...)" for --version.
func Info() string {
	info, _ := debug.ReadBuildInfo()
	return format(info)
}

func format(info *debug.BuildInfo) string {
	commit, dirty, at := build(info)
	suffix := ""
	if dirty {
		suffix = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, commit, suffix, at)
}

// Full is Info plus the Go version and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Print writes "binary Full()" to stdout.
func Print(binary string) {
	Fprint(os.Stdout, binary)
}

// Fprint writes "binary Full()" to w.
func Fprint(w io.Writer, binary string) {
	fmt.Fprintf(w, "%s %s\n", binary, Full())
}
