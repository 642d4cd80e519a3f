// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agentsession

import (
	"fmt"
	"os"
	"path/filepath"
)

// WorkerLocator finds the worker script on disk.
//
// Two locations are tried in order: the development tree, which is the
// parent of the current working directory joined with RelativePath
// (the desktop shell runs from a subdirectory of the checkout), and
// the directory holding the running executable joined with
// RelativePath (an installed bundle ships the worker beside the
// binary).
type WorkerLocator struct {
	// RelativePath is the script location below either root, for
	// example "sidecar/src/session-worker.ts".
	RelativePath string

	// Getwd and Executable default to os.Getwd and os.Executable.
	Getwd      func() (string, error)
	Executable func() (string, error)
}

// Candidates returns the development and installed paths in the order
// Resolve tries them. A path that cannot be computed is returned as a
// description of why.
func (l WorkerLocator) Candidates() (development, installed string) {
	getwd := l.Getwd
	if getwd == nil {
		getwd = os.Getwd
	}
	executable := l.Executable
	if executable == nil {
		executable = os.Executable
	}

	if cwd, err := getwd(); err != nil {
		development = fmt.Sprintf("<working directory unavailable: %v>", err)
	} else {
		development = filepath.Join(filepath.Dir(cwd), l.RelativePath)
	}
	if exe, err := executable(); err != nil {
		installed = fmt.Sprintf("<executable path unavailable: %v>", err)
	} else {
		installed = filepath.Join(filepath.Dir(exe), l.RelativePath)
	}
	return development, installed
}

// Resolve returns the first candidate that exists as a regular file.
// The error names both attempted paths.
func (l WorkerLocator) Resolve() (string, error) {
	if l.RelativePath == "" {
		return "", fmt.Errorf("worker script path is not configured")
	}
	development, installed := l.Candidates()
	for _, candidate := range []string{development, installed} {
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("worker script not found at %s or %s", development, installed)
}

// WorkerDirectory returns the directory a worker runs in: two levels
// above the script, which is the worker package root for the
// <package>/src/<script> layout.
func WorkerDirectory(script string) string {
	return filepath.Dir(filepath.Dir(script))
}

// caCertificateEnv is how Node-based workers learn about extra trust
// anchors.
const caCertificateEnv = "NODE_EXTRA_CA_CERTS"

// systemCABundles are probed in order when no bundle is configured.
var systemCABundles = []string{
	"/etc/ssl/cert.pem",
	"/etc/ssl/certs/ca-certificates.crt",
	"/etc/pki/tls/certs/ca-bundle.crt",
}

// caCertificates decides the NODE_EXTRA_CA_CERTS value to add to the
// worker environment. An existing value in the parent environment
// wins and nothing is added. Otherwise the configured bundle is used
// if set, then the first system bundle that exists.
func caCertificates(configured string, lookupEnv func(string) (string, bool), exists func(string) bool) string {
	if value, ok := lookupEnv(caCertificateEnv); ok && value != "" {
		return ""
	}
	if configured != "" {
		return configured
	}
	for _, candidate := range systemCABundles {
		if exists(candidate) {
			return candidate
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// workerEnvironment is the parent environment plus the CA bundle, if
// one applies.
func workerEnvironment(configuredCA string) []string {
	env := os.Environ()
	if bundle := caCertificates(configuredCA, os.LookupEnv, fileExists); bundle != "" {
		env = append(env, caCertificateEnv+"="+bundle)
	}
	return env
}
