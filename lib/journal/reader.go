// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
)

// ErrTruncated reports a final frame cut short, typically by a crash
// during Append. Records before it are intact.
var ErrTruncated = errors.New("journal: truncated final frame")

// ErrEncrypted reports an encrypted journal opened without identities.
var ErrEncrypted = errors.New("journal: file is encrypted and no identity was provided")

// maxFrameSize bounds a single frame so a corrupt length prefix cannot
// trigger a huge allocation.
const maxFrameSize = 64 << 20

// Reader iterates over the records of a journal.
type Reader struct {
	in         *bufio.Reader
	encrypted  bool
	identities []age.Identity
}

// NewReader validates the journal header. identities are required
// only for encrypted journals.
func NewReader(in io.Reader, identities ...age.Identity) (*Reader, error) {
	buffered := bufio.NewReader(in)
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(buffered, header); err != nil {
		return nil, fmt.Errorf("reading journal header: %w", err)
	}
	flags, err := parseHeader(header)
	if err != nil {
		return nil, err
	}
	encrypted := flags&flagEncrypted != 0
	if encrypted && len(identities) == 0 {
		return nil, ErrEncrypted
	}
	return &Reader{in: buffered, encrypted: encrypted, identities: identities}, nil
}

// Encrypted reports whether the journal's frames are age-encrypted.
func (r *Reader) Encrypted() bool { return r.encrypted }

// Next returns the next record, io.EOF after the last complete frame,
// or ErrTruncated if the file ends inside a frame.
func (r *Reader) Next() (Record, error) {
	length, err := binary.ReadUvarint(r.in)
	if errors.Is(err, io.EOF) {
		return Record{}, io.EOF
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return Record{}, ErrTruncated
	}
	if err != nil {
		return Record{}, fmt.Errorf("reading frame length: %w", err)
	}
	if length > maxFrameSize {
		return Record{}, fmt.Errorf("journal frame of %d bytes exceeds limit", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r.in, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, ErrTruncated
		}
		return Record{}, fmt.Errorf("reading frame body: %w", err)
	}

	if r.encrypted {
		plaintext, err := age.Decrypt(bytes.NewReader(body), r.identities...)
		if err != nil {
			return Record{}, fmt.Errorf("decrypting frame: %w", err)
		}
		body, err = io.ReadAll(plaintext)
		if err != nil {
			return Record{}, fmt.Errorf("reading decrypted frame: %w", err)
		}
	}

	if len(body) < 2 {
		return Record{}, fmt.Errorf("journal frame of %d bytes is too short", len(body))
	}
	algorithm := Compression(body[0])
	size, sizeLength := binary.Uvarint(body[1:])
	if sizeLength <= 0 || size > maxFrameSize {
		return Record{}, fmt.Errorf("invalid uncompressed size in frame")
	}
	encoded, err := decompress(body[1+sizeLength:], algorithm, int(size))
	if err != nil {
		return Record{}, err
	}

	var record Record
	if err := decMode.Unmarshal(encoded, &record); err != nil {
		return Record{}, fmt.Errorf("decoding journal record: %w", err)
	}
	return record, nil
}

// ReadAll returns every record. A truncated tail is reported alongside
// the records that preceded it.
func (r *Reader) ReadAll() ([]Record, error) {
	var records []Record
	for {
		record, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
}

// ParseIdentities reads age identities (AGE-SECRET-KEY-1... lines) from
// an identity file.
func ParseIdentities(in io.Reader) ([]age.Identity, error) {
	identities, err := age.ParseIdentities(in)
	if err != nil {
		return nil, fmt.Errorf("parsing age identities: %w", err)
	}
	return identities, nil
}

func parseHeader(header []byte) (byte, error) {
	if len(header) < headerSize || !bytes.Equal(header[:len(magic)], magic[:]) {
		return 0, errors.New("not a central journal (bad magic)")
	}
	return header[len(magic)], nil
}
