// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// MaxFileSize bounds ReadFile. Identity files are a few hundred bytes.
const MaxFileSize = 64 << 10

// Buffer is locked, unswappable memory holding one secret.
type Buffer struct {
	mu     sync.Mutex
	region []byte
	length int
}

func allocate(size int) (*Buffer, error) {
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap: %w", err)
	}
	if err := unix.Mlock(region); err != nil {
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: mlock: %w", err)
	}
	if err := unix.Madvise(region, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(region)
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP): %w", err)
	}
	return &Buffer{region: region}, nil
}

// ReadFile reads the file at path into a new Buffer. Files larger than
// MaxFileSize and empty files are rejected.
func ReadFile(path string) (*Buffer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Read(file, MaxFileSize)
}

// Read copies at most limit bytes from r straight into locked memory.
// Reading more than limit bytes is an error.
func Read(r io.Reader, limit int) (*Buffer, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("secret: limit must be positive, got %d", limit)
	}
	// One spare byte detects input beyond the limit.
	buffer, err := allocate(limit + 1)
	if err != nil {
		return nil, err
	}
	n, err := io.ReadFull(r, buffer.region)
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
	case err != nil:
		buffer.Close()
		return nil, fmt.Errorf("secret: reading: %w", err)
	default:
		buffer.Close()
		return nil, fmt.Errorf("secret: input exceeds %d bytes", limit)
	}
	if n == 0 {
		buffer.Close()
		return nil, errors.New("secret: input is empty")
	}
	buffer.length = n
	return buffer, nil
}

// Bytes returns the secret. The slice aliases locked memory and is
// invalid after Close. Bytes panics on a closed Buffer.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.region == nil {
		panic("secret: read from closed buffer")
	}
	return b.region[:b.length]
}

// Close zeroes and releases the memory. Later calls are no-ops.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.region == nil {
		return nil
	}
	clear(b.region)
	err := errors.Join(unix.Munlock(b.region), unix.Munmap(b.region))
	b.region = nil
	b.length = 0
	if err != nil {
		return fmt.Errorf("secret: releasing buffer: %w", err)
	}
	return nil
}
