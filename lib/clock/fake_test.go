// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"

	"github.com/bureau-foundation/central/lib/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNowStandsStill(t *testing.T) {
	t.Parallel()

	clock := Fake(epoch)
	if !clock.Now().Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", clock.Now(), epoch)
	}
	clock.Advance(3 * time.Second)
	if got := clock.Now(); !got.Equal(epoch.Add(3 * time.Second)) {
		t.Errorf("after Advance, Now() = %v", got)
	}
}

func TestFakeAfterFiresOnDeadline(t *testing.T) {
	t.Parallel()

	clock := Fake(epoch)
	channel := clock.After(5 * time.Second)

	clock.Advance(4 * time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	clock.Advance(time.Second)
	fired := testutil.RequireReceive(t, channel, 5*time.Second, "waiting for fake After")
	if !fired.Equal(epoch.Add(5 * time.Second)) {
		t.Errorf("fired at %v", fired)
	}
	if clock.PendingTimers() != 0 {
		t.Errorf("PendingTimers() = %d after firing", clock.PendingTimers())
	}
}

func TestFakeAfterNonPositiveIsImmediate(t *testing.T) {
	t.Parallel()

	clock := Fake(epoch)
	select {
	case <-clock.After(0):
	default:
		t.Fatal("After(0) was not ready immediately")
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	t.Parallel()

	clock := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-clock.After(time.Minute)
		close(done)
	}()

	clock.WaitForTimers(1)
	clock.Set(epoch.Add(2 * time.Minute))
	testutil.RequireClosed(t, done, 5*time.Second, "goroutine blocked on fake After")
}
