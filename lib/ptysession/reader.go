// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ptysession

import (
	"github.com/bureau-foundation/central/lib/pty"
)

// read copies the master into the terminal's sink until the child side
// goes away, then emits one Exit or Error. It never removes the
// registry entry.
func (t *terminal) read(chunkSize int) {
	buffer := make([]byte, chunkSize)
	var forwarded int
	for {
		n, err := t.master.Read(buffer)
		if n > 0 {
			forwarded += n
			t.emit(Output{Data: append([]byte(nil), buffer[:n]...)})
		}
		if err == nil {
			continue
		}
		if pty.IsExitError(err) {
			<-t.exited
			t.logger.Debug("terminal exited", "exit_code", t.exitCode, "bytes_forwarded", forwarded)
			t.emit(Exit{Code: t.exitCode})
			return
		}
		t.logger.Warn("terminal read failed", "error", err, "bytes_forwarded", forwarded)
		t.emit(Error{Message: err.Error()})
		return
	}
}
