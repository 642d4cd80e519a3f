// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registryerror

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorMatchesSentinelOfSameKind(t *testing.T) {
	t.Parallel()

	err := NotFound("s1", "no worker for session %s", "s1")
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFound error should match ErrNotFound")
	}
	if errors.Is(err, ErrConflict) {
		t.Error("NotFound error should not match ErrConflict")
	}
	if err.ID != "s1" {
		t.Errorf("ID = %q, want %q", err.ID, "s1")
	}
	if err.Error() != "no worker for session s1" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestErrorWrapping(t *testing.T) {
	t.Parallel()

	err := IO("t1", "write to pty: %w", io.ErrClosedPipe)
	wrapped := fmt.Errorf("write_input: %w", err)

	if !errors.Is(wrapped, io.ErrClosedPipe) {
		t.Error("underlying cause should survive classification")
	}
	if !errors.Is(wrapped, ErrIO) {
		t.Error("wrapped error should still match ErrIO")
	}
	if KindOf(wrapped) != KindIO {
		t.Errorf("KindOf = %q, want %q", KindOf(wrapped), KindIO)
	}
	if !Is(wrapped, KindIO) {
		t.Error("Is(wrapped, KindIO) = false")
	}
}

func TestKindOfUnclassified(t *testing.T) {
	t.Parallel()

	if kind := KindOf(io.EOF); kind != "" {
		t.Errorf("KindOf(io.EOF) = %q, want empty", kind)
	}
	if Is(nil, KindNotFound) {
		t.Error("Is(nil, ...) should be false")
	}
}
