// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pty allocates Linux pseudo-terminals through /dev/ptmx and
// starts commands on them.
//
// The master is kept in the runtime poller: ioctls go through
// SyscallConn rather than Fd, so closing the master from one goroutine
// unblocks a Read pending in another.
package pty
