// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ptysession

// DefaultScrollbackBytes holds several thousand screens of typical
// shell output.
const DefaultScrollbackBytes = 1 << 20

// scrollback keeps the most recent output of one terminal, escape
// sequences included. Older bytes are overwritten once it is full. It
// is not safe for concurrent use; the owning terminal guards it.
type scrollback struct {
	buffer []byte
	// next is where the next byte lands.
	next int
	// wrapped is set once the buffer has been filled at least once;
	// from then on the oldest byte sits at next.
	wrapped bool
	total   uint64
}

func newScrollback(capacity int) *scrollback {
	if capacity < 0 {
		capacity = 0
	}
	return &scrollback{buffer: make([]byte, capacity)}
}

func (s *scrollback) write(data []byte) {
	s.total += uint64(len(data))
	capacity := len(s.buffer)
	if capacity == 0 || len(data) == 0 {
		return
	}
	if len(data) >= capacity {
		copy(s.buffer, data[len(data)-capacity:])
		s.next = 0
		s.wrapped = true
		return
	}
	end := s.next + len(data)
	copied := copy(s.buffer[s.next:], data)
	copy(s.buffer, data[copied:])
	if end >= capacity {
		s.wrapped = true
	}
	s.next = end % capacity
}

// snapshot returns a copy of the retained bytes, oldest first.
func (s *scrollback) snapshot() []byte {
	if !s.wrapped {
		return append([]byte(nil), s.buffer[:s.next]...)
	}
	out := make([]byte, 0, len(s.buffer))
	out = append(out, s.buffer[s.next:]...)
	return append(out, s.buffer[:s.next]...)
}

// dropped is how many bytes have been overwritten.
func (s *scrollback) dropped() uint64 {
	retained := uint64(s.next)
	if s.wrapped {
		retained = uint64(len(s.buffer))
	}
	return s.total - retained
}
