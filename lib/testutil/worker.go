// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WorkerScriptPath is the relative location of the agent worker script
// used by tests, mirroring the production layout of a built worker.
const WorkerScriptPath = "worker/dist/index.js"

// WorkerTree creates a temporary development tree containing an agent
// worker script at root/WorkerScriptPath and returns root. The script
// body is executed by /bin/sh, so tests stand in for the real worker
// with a few lines of shell that read NDJSON commands on stdin and
// print NDJSON events on stdout.
//
//	root := testutil.WorkerTree(t, `read line; echo '{"type":"error","message":"x"}'`)
func WorkerTree(t *testing.T, body string) string {
	t.Helper()

	root := t.TempDir()
	script := filepath.Join(root, WorkerScriptPath)
	if err := os.MkdirAll(filepath.Dir(script), 0o755); err != nil {
		t.Fatalf("creating worker directory: %v", err)
	}
	if err := os.WriteFile(script, []byte(body+"\n"), 0o644); err != nil {
		t.Fatalf("writing worker script: %v", err)
	}
	return root
}
