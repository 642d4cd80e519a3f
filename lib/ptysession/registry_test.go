// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ptysession

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/central/lib/registryerror"
	"github.com/bureau-foundation/central/lib/testutil"
)

const eventTimeout = 10 * time.Second

func newTestRegistry(t *testing.T, command ...string) *Registry {
	t.Helper()
	registry := New(Config{Command: command})
	t.Cleanup(registry.Shutdown)
	return registry
}

// readUntil consumes Output events until their concatenation contains
// want, and returns everything read.
func readUntil(t *testing.T, events <-chan TerminalEvent, want string) string {
	t.Helper()
	var output strings.Builder
	for !strings.Contains(output.String(), want) {
		event := testutil.RequireReceive(t, events, eventTimeout, fmt.Sprintf("waiting for %q in output %q", want, output.String()))
		chunk, ok := event.(Output)
		if !ok {
			t.Fatalf("got %#v before %q appeared in output %q", event, want, output.String())
		}
		output.Write(chunk.Data)
	}
	return output.String()
}

// readToEnd consumes events until the final one and returns the output
// seen along the way with the final event.
func readToEnd(t *testing.T, events <-chan TerminalEvent) (string, TerminalEvent) {
	t.Helper()
	var output strings.Builder
	for {
		event := testutil.RequireReceive(t, events, eventTimeout, "waiting for terminal to finish")
		if chunk, ok := event.(Output); ok {
			output.Write(chunk.Data)
			continue
		}
		return output.String(), event
	}
}

func processGone(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	fields := strings.Fields(string(data[strings.LastIndexByte(string(data), ')')+1:]))
	return len(fields) > 0 && fields[0] == "Z"
}

func terminalPID(t *testing.T, registry *Registry, id string) int {
	t.Helper()
	term, err := registry.lookup(id)
	if err != nil {
		t.Fatalf("lookup(%s): %v", id, err)
	}
	return term.pid
}

func ids(t *testing.T, registry *Registry) []string {
	t.Helper()
	got, err := registry.IDs()
	if err != nil {
		t.Fatalf("IDs: %v", err)
	}
	return got
}

func TestTerminalOutputThenExitCode(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, "/bin/sh", "-c", "echo hello from pty; exit 3")
	sink, events := ChannelSink(64)
	if err := registry.StartTerminal("t1", "", 24, 80, sink); err != nil {
		t.Fatalf("StartTerminal: %v", err)
	}

	output, final := readToEnd(t, events)
	if !strings.Contains(output, "hello from pty") {
		t.Errorf("output %q missing command output", output)
	}
	if exit, ok := final.(Exit); !ok || exit.Code != 3 {
		t.Errorf("final event = %#v, want Exit{Code: 3}", final)
	}
	testutil.RequireNoReceive(t, events, 50*time.Millisecond, "event after Exit")

	// The reader never erases the entry.
	if got := ids(t, registry); !slices.Equal(got, []string{"t1"}) {
		t.Errorf("IDs after exit = %v, want [t1]", got)
	}
	if err := registry.Close("t1"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := ids(t, registry); len(got) != 0 {
		t.Errorf("IDs after Close = %v, want none", got)
	}
}

func TestTerminalInputIsEchoed(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, "/bin/cat")
	sink, events := ChannelSink(64)
	if err := registry.StartTerminal("t1", "", 24, 80, sink); err != nil {
		t.Fatalf("StartTerminal: %v", err)
	}
	if err := registry.WriteInput("t1", []byte("ping\n")); err != nil {
		t.Fatalf("WriteInput: %v", err)
	}
	readUntil(t, events, "ping")

	pid := terminalPID(t, registry, "t1")
	if err := registry.Close("t1"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !processGone(pid) {
		t.Errorf("terminal child %d still running after Close", pid)
	}
	_, final := readToEnd(t, events)
	if exit, ok := final.(Exit); !ok || exit.Code != -1 {
		t.Errorf("final event after Close = %#v, want Exit{Code: -1}", final)
	}
}

func TestTerminalCwdAndEnvironment(t *testing.T) {
	t.Parallel()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	registry := New(Config{
		Command: []string{"/bin/sh", "-c", `printf '%s|%s|%s\n' "$(pwd)" "$TERM" "$COLORTERM"`},
		Term:    "screen-256color",
	})
	t.Cleanup(registry.Shutdown)
	sink, events := ChannelSink(64)
	if err := registry.StartTerminal("t1", dir, 24, 80, sink); err != nil {
		t.Fatalf("StartTerminal: %v", err)
	}
	output, _ := readToEnd(t, events)
	if want := dir + "|screen-256color|truecolor"; !strings.Contains(output, want) {
		t.Errorf("output %q does not contain %q", output, want)
	}
}

func TestStartTerminalConflict(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, "/bin/cat")
	if err := registry.StartTerminal("t1", "", 24, 80, nil); err != nil {
		t.Fatalf("StartTerminal: %v", err)
	}
	pid := terminalPID(t, registry, "t1")

	err := registry.StartTerminal("t1", "", 24, 80, nil)
	if !errors.Is(err, registryerror.ErrConflict) {
		t.Fatalf("second StartTerminal error = %v, want conflict", err)
	}
	if got := terminalPID(t, registry, "t1"); got != pid {
		t.Errorf("conflicting start replaced the terminal: pid %d, want %d", got, pid)
	}
}

func TestStartTerminalRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, "/bin/cat")
	for _, test := range []struct {
		id         string
		rows, cols uint16
	}{
		{"", 24, 80},
		{"t1", 0, 80},
		{"t1", 24, 0},
	} {
		err := registry.StartTerminal(test.id, "", test.rows, test.cols, nil)
		if !errors.Is(err, registryerror.ErrInvalid) {
			t.Errorf("StartTerminal(%q, %d, %d) error = %v, want invalid", test.id, test.rows, test.cols, err)
		}
	}
	if got := ids(t, registry); len(got) != 0 {
		t.Errorf("IDs = %v, want none", got)
	}
}

func TestStartTerminalSpawnFailure(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, "/nonexistent/shell")
	err := registry.StartTerminal("t1", "", 24, 80, nil)
	if !errors.Is(err, registryerror.ErrSpawnFailure) {
		t.Fatalf("StartTerminal error = %v, want spawn failure", err)
	}
	if !strings.Contains(err.Error(), "/nonexistent/shell") {
		t.Errorf("error %q does not name the command", err)
	}
	if got := ids(t, registry); len(got) != 0 {
		t.Errorf("IDs = %v, want none", got)
	}
}

func TestUnknownTerminal(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, "/bin/cat")

	check := func(stage string) {
		t.Helper()
		if err := registry.WriteInput("t1", []byte("x")); !errors.Is(err, registryerror.ErrNotFound) {
			t.Errorf("%s: WriteInput error = %v, want not found", stage, err)
		}
		if err := registry.Resize("t1", 10, 10); !errors.Is(err, registryerror.ErrNotFound) {
			t.Errorf("%s: Resize error = %v, want not found", stage, err)
		}
		if _, _, err := registry.Size("t1"); !errors.Is(err, registryerror.ErrNotFound) {
			t.Errorf("%s: Size error = %v, want not found", stage, err)
		}
		if _, err := registry.Attach("t1", nil); !errors.Is(err, registryerror.ErrNotFound) {
			t.Errorf("%s: Attach error = %v, want not found", stage, err)
		}
		if err := registry.Close("t1"); err != nil {
			t.Errorf("%s: Close error = %v, want nil", stage, err)
		}
	}

	check("before start")
	if err := registry.StartTerminal("t1", "", 24, 80, nil); err != nil {
		t.Fatalf("StartTerminal: %v", err)
	}
	if err := registry.Close("t1"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	check("after close")
}

func TestTerminalIDReusableAfterClose(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, "/bin/cat")
	if err := registry.StartTerminal("t1", "", 24, 80, nil); err != nil {
		t.Fatalf("first StartTerminal: %v", err)
	}
	first := terminalPID(t, registry, "t1")
	if err := registry.Close("t1"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := registry.StartTerminal("t1", "", 24, 80, nil); err != nil {
		t.Fatalf("second StartTerminal: %v", err)
	}
	if second := terminalPID(t, registry, "t1"); second == first {
		t.Errorf("reused id kept pid %d", first)
	}
}

func TestResize(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, "/bin/sh", "-c", "IFS= read -r line; stty size")
	sink, events := ChannelSink(64)
	if err := registry.StartTerminal("t1", "", 24, 80, sink); err != nil {
		t.Fatalf("StartTerminal: %v", err)
	}
	if rows, cols, err := registry.Size("t1"); err != nil || rows != 24 || cols != 80 {
		t.Errorf("initial Size = %dx%d, %v, want 24x80", rows, cols, err)
	}
	if err := registry.Resize("t1", 40, 120); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	rows, cols, err := registry.Size("t1")
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if rows != 40 || cols != 120 {
		t.Errorf("Size = %dx%d, want 40x120", rows, cols)
	}
	if err := registry.Resize("t1", 0, 120); !errors.Is(err, registryerror.ErrInvalid) {
		t.Errorf("Resize to zero rows error = %v, want invalid", err)
	}

	if err := registry.WriteInput("t1", []byte("\n")); err != nil {
		t.Fatalf("WriteInput: %v", err)
	}
	output, final := readToEnd(t, events)
	if !strings.Contains(output, "40 120") {
		t.Errorf("output %q does not report the new size", output)
	}
	if exit, ok := final.(Exit); !ok || exit.Code != 0 {
		t.Errorf("final event = %#v, want Exit{Code: 0}", final)
	}
}

func TestAttachReplaysScrollback(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, "/bin/sh", "-c", "echo first; IFS= read -r line; echo second; IFS= read -r line")
	original, originalEvents := ChannelSink(64)
	if err := registry.StartTerminal("t1", "", 24, 80, original); err != nil {
		t.Fatalf("StartTerminal: %v", err)
	}
	readUntil(t, originalEvents, "first")

	replacement, replacementEvents := ChannelSink(64)
	history, err := registry.Attach("t1", replacement)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if !strings.Contains(string(history), "first") {
		t.Errorf("history %q missing earlier output", history)
	}

	if err := registry.WriteInput("t1", []byte("\n")); err != nil {
		t.Fatalf("WriteInput: %v", err)
	}
	live := readUntil(t, replacementEvents, "second")
	if strings.Contains(live, "first") {
		t.Errorf("live output %q repeats history", live)
	}
drain:
	for {
		select {
		case event := <-originalEvents:
			if output, ok := event.(Output); ok && strings.Contains(string(output.Data), "second") {
				t.Errorf("detached sink received live output %q", output.Data)
			}
		default:
			break drain
		}
	}
}

func TestConcurrentWritesAreNotInterleaved(t *testing.T) {
	t.Parallel()

	// Raw mode so the line discipline does not cap or edit the input.
	registry := newTestRegistry(t, "/bin/sh", "-c", "stty raw -echo; head -c 8000")
	sink, events := ChannelSink(1024)
	if err := registry.StartTerminal("t1", "", 24, 80, sink); err != nil {
		t.Fatalf("StartTerminal: %v", err)
	}
	// Let stty run before input arrives.
	time.Sleep(200 * time.Millisecond)

	const writers, size = 4, 2000
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			block := strings.Repeat(string(rune('a'+i)), size)
			if err := registry.WriteInput("t1", []byte(block)); err != nil {
				t.Errorf("WriteInput: %v", err)
			}
		}()
	}
	wg.Wait()

	output, _ := readToEnd(t, events)
	if len(output) < writers*size {
		t.Fatalf("read %d bytes, want %d", len(output), writers*size)
	}
	for offset := 0; offset < writers*size; offset += size {
		block := output[offset : offset+size]
		if strings.Count(block, block[:1]) != size {
			t.Fatalf("block at %d is interleaved: %q", offset, block[:40])
		}
	}
}

func TestShutdownClosesEverything(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, "/bin/cat")
	var pids []int
	for _, id := range []string{"a", "b", "c"} {
		if err := registry.StartTerminal(id, "", 24, 80, nil); err != nil {
			t.Fatalf("StartTerminal(%s): %v", id, err)
		}
		pids = append(pids, terminalPID(t, registry, id))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		registry.Shutdown()
	}()
	testutil.RequireClosed(t, done, eventTimeout, "Shutdown from another goroutine")
	registry.Shutdown()

	if got := ids(t, registry); len(got) != 0 {
		t.Errorf("IDs after Shutdown = %v, want none", got)
	}
	for _, pid := range pids {
		if !processGone(pid) {
			t.Errorf("terminal child %d still running after Shutdown", pid)
		}
	}
}

func TestShellScenario(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, "/bin/sh")
	sink, events := ChannelSink(256)
	if err := registry.StartTerminal("t1", "/tmp", 24, 80, sink); err != nil {
		t.Fatalf("StartTerminal: %v", err)
	}
	if err := registry.WriteInput("t1", []byte("ls\n")); err != nil {
		t.Fatalf("WriteInput: %v", err)
	}
	readUntil(t, events, "ls")

	if err := registry.Close("t1"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := registry.WriteInput("t1", []byte("ls\n")); !errors.Is(err, registryerror.ErrNotFound) {
		t.Errorf("WriteInput after Close = %v, want not found", err)
	}
}
