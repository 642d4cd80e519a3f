// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction.
//
// The session and terminal registries stamp relayed events with
// Clock.Now and the shutdown coordinator bounds its grace period with
// Clock.After. Production wiring passes Real(); tests pass Fake() and
// drive time explicitly:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	coordinator := orchestrator.New(orchestrator.Config{Clock: c, ...})
//	c.WaitForTimers(1)
//	c.Advance(5 * time.Second)
package clock
