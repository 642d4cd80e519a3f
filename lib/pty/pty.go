// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pty

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Size is a terminal's dimensions in character cells.
type Size struct {
	Rows uint16
	Cols uint16
}

// Open allocates a master/slave pair. The caller owns both files.
func Open() (master, slave *os.File, err error) {
	master, err = os.OpenFile("/dev/ptmx", os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("open /dev/ptmx: %w", err)
	}

	var ptyNumber int
	err = control(master, func(fd int) error {
		var ioctlErr error
		ptyNumber, ioctlErr = unix.IoctlGetInt(fd, unix.TIOCGPTN)
		if ioctlErr != nil {
			return fmt.Errorf("get PTY number (TIOCGPTN): %w", ioctlErr)
		}
		if ioctlErr = unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0); ioctlErr != nil {
			return fmt.Errorf("unlock PTY slave (TIOCSPTLCK): %w", ioctlErr)
		}
		return nil
	})
	if err != nil {
		master.Close()
		return nil, nil, err
	}

	slavePath := fmt.Sprintf("/dev/pts/%d", ptyNumber)
	slave, err = os.OpenFile(slavePath, os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		master.Close()
		return nil, nil, fmt.Errorf("open PTY slave %s: %w", slavePath, err)
	}
	return master, slave, nil
}

// SetSize applies size with TIOCSWINSZ. The kernel delivers SIGWINCH to
// the slave's foreground process group.
func SetSize(file *os.File, size Size) error {
	return control(file, func(fd int) error {
		return unix.IoctlSetWinsize(fd, unix.TIOCSWINSZ, &unix.Winsize{Row: size.Rows, Col: size.Cols})
	})
}

// GetSize reads the current window size.
func GetSize(file *os.File) (Size, error) {
	var size Size
	err := control(file, func(fd int) error {
		winsize, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
		if err != nil {
			return err
		}
		size = Size{Rows: winsize.Row, Cols: winsize.Col}
		return nil
	})
	return size, err
}

// Start allocates a PTY sized to size and starts command as a session
// leader with the slave as its controlling terminal and its stdio.
// The parent's copy of the slave is closed before Start returns; the
// returned master is the only handle the caller needs.
func Start(command *exec.Cmd, size Size) (*os.File, error) {
	master, slave, err := Open()
	if err != nil {
		return nil, err
	}
	if err := SetSize(master, size); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("set PTY size: %w", err)
	}

	command.Stdin = slave
	command.Stdout = slave
	command.Stderr = slave
	if command.SysProcAttr == nil {
		command.SysProcAttr = &syscall.SysProcAttr{}
	}
	command.SysProcAttr.Setsid = true
	command.SysProcAttr.Setctty = true
	command.SysProcAttr.Ctty = 0 // fd 0 in the child is the slave

	if err := command.Start(); err != nil {
		master.Close()
		slave.Close()
		return nil, err
	}
	slave.Close()
	return master, nil
}

// IsExitError reports whether a master read error means the child side
// is gone rather than a fault: end of file, EIO (Linux reports a hung
// up slave this way), or a master closed underneath the reader.
func IsExitError(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)
}

func control(file *os.File, fn func(fd int) error) error {
	raw, err := file.SyscallConn()
	if err != nil {
		return err
	}
	var fnErr error
	if err := raw.Control(func(fd uintptr) { fnErr = fn(int(fd)) }); err != nil {
		return err
	}
	return fnErr
}
