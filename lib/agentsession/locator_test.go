// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentsession

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeScript(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte("// worker\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLocatorPrefersDevelopmentTree(t *testing.T) {
	t.Parallel()

	checkout := t.TempDir()
	install := t.TempDir()
	relative := filepath.Join("sidecar", "src", "session-worker.ts")
	writeScript(t, filepath.Join(checkout, relative))
	writeScript(t, filepath.Join(install, relative))

	locator := WorkerLocator{
		RelativePath: relative,
		Getwd:        func() (string, error) { return filepath.Join(checkout, "src-tauri"), nil },
		Executable:   func() (string, error) { return filepath.Join(install, "central"), nil },
	}
	got, err := locator.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := filepath.Join(checkout, relative); got != want {
		t.Errorf("Resolve = %s, want %s", got, want)
	}
	if dir := WorkerDirectory(got); dir != filepath.Join(checkout, "sidecar") {
		t.Errorf("WorkerDirectory = %s, want %s", dir, filepath.Join(checkout, "sidecar"))
	}
}

func TestLocatorFallsBackToExecutable(t *testing.T) {
	t.Parallel()

	install := t.TempDir()
	relative := "sidecar/dist/index.js"
	writeScript(t, filepath.Join(install, relative))

	locator := WorkerLocator{
		RelativePath: relative,
		Getwd:        func() (string, error) { return "", errors.New("cwd deleted") },
		Executable:   func() (string, error) { return filepath.Join(install, "central"), nil },
	}
	got, err := locator.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := filepath.Join(install, relative); got != want {
		t.Errorf("Resolve = %s, want %s", got, want)
	}
}

func TestLocatorIgnoresDirectories(t *testing.T) {
	t.Parallel()

	checkout := t.TempDir()
	if err := os.MkdirAll(filepath.Join(checkout, "sidecar", "worker.js"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	locator := WorkerLocator{
		RelativePath: "sidecar/worker.js",
		Getwd:        func() (string, error) { return filepath.Join(checkout, "app"), nil },
		Executable:   func() (string, error) { return "/nonexistent/central", nil },
	}
	if _, err := locator.Resolve(); err == nil {
		t.Error("Resolve accepted a directory")
	}
}

func TestLocatorErrorNamesBothPaths(t *testing.T) {
	t.Parallel()

	locator := WorkerLocator{
		RelativePath: "w.js",
		Getwd:        func() (string, error) { return "/a/b", nil },
		Executable:   func() (string, error) { return "/c/d/central", nil },
	}
	_, err := locator.Resolve()
	if err == nil {
		t.Fatal("Resolve succeeded")
	}
	if !strings.Contains(err.Error(), "/a/w.js") || !strings.Contains(err.Error(), "/c/d/w.js") {
		t.Errorf("error %q does not name both candidates", err)
	}

	if _, err := (WorkerLocator{}).Resolve(); err == nil {
		t.Error("Resolve with no relative path succeeded")
	}
}

func TestCACertificates(t *testing.T) {
	t.Parallel()

	noEnv := func(string) (string, bool) { return "", false }
	existing := func(paths ...string) func(string) bool {
		return func(path string) bool {
			for _, candidate := range paths {
				if candidate == path {
					return true
				}
			}
			return false
		}
	}

	tests := []struct {
		name       string
		configured string
		lookupEnv  func(string) (string, bool)
		exists     func(string) bool
		want       string
	}{
		{
			name:      "parent environment wins",
			lookupEnv: func(string) (string, bool) { return "/parent/ca.pem", true },
			exists:    existing("/etc/ssl/cert.pem"),
			want:      "",
		},
		{
			name:       "configured bundle",
			configured: "/opt/corp/ca.pem",
			lookupEnv:  noEnv,
			exists:     existing("/etc/ssl/cert.pem"),
			want:       "/opt/corp/ca.pem",
		},
		{
			name:      "first existing system bundle",
			lookupEnv: noEnv,
			exists:    existing("/etc/ssl/certs/ca-certificates.crt", "/etc/pki/tls/certs/ca-bundle.crt"),
			want:      "/etc/ssl/certs/ca-certificates.crt",
		},
		{
			name:      "empty parent value does not count",
			lookupEnv: func(string) (string, bool) { return "", true },
			exists:    existing("/etc/pki/tls/certs/ca-bundle.crt"),
			want:      "/etc/pki/tls/certs/ca-bundle.crt",
		},
		{
			name:      "nothing available",
			lookupEnv: noEnv,
			exists:    existing(),
			want:      "",
		},
	}
	for _, test := range tests {
		if got := caCertificates(test.configured, test.lookupEnv, test.exists); got != test.want {
			t.Errorf("%s: caCertificates = %q, want %q", test.name, got, test.want)
		}
	}
}
