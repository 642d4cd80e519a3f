// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ptysession

import (
	"bytes"
	"testing"
)

func TestScrollback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		capacity    int
		writes      []string
		want        string
		wantDropped uint64
	}{
		{name: "empty", capacity: 8, want: ""},
		{name: "under capacity", capacity: 16, writes: []string{"hello", " world"}, want: "hello world"},
		{name: "exactly full", capacity: 5, writes: []string{"abc", "de"}, want: "abcde"},
		{name: "wraps", capacity: 10, writes: []string{"abcdefgh", "ijklmno"}, want: "fghijklmno", wantDropped: 5},
		{name: "single write larger than capacity", capacity: 4, writes: []string{"abcdefgh"}, want: "efgh", wantDropped: 4},
		{name: "many small writes", capacity: 3, writes: []string{"a", "b", "c", "d", "e"}, want: "cde", wantDropped: 2},
		{name: "disabled", capacity: 0, writes: []string{"abc"}, want: "", wantDropped: 3},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			ring := newScrollback(test.capacity)
			for _, write := range test.writes {
				ring.write([]byte(write))
			}
			if got := ring.snapshot(); !bytes.Equal(got, []byte(test.want)) {
				t.Errorf("snapshot = %q, want %q", got, test.want)
			}
			if got := ring.dropped(); got != test.wantDropped {
				t.Errorf("dropped = %d, want %d", got, test.wantDropped)
			}
		})
	}
}

func TestScrollbackSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	ring := newScrollback(8)
	ring.write([]byte("abcd"))
	snapshot := ring.snapshot()
	ring.write([]byte("efghij"))
	if string(snapshot) != "abcd" {
		t.Errorf("snapshot changed after write: %q", snapshot)
	}
}
