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
	"os"
	"sync"

	"filippo.io/age"
)

var magic = [5]byte{'C', 'J', 'N', 'L', 1}

const flagEncrypted byte = 1 << 0

// headerSize is the magic plus the flags byte.
const headerSize = len(magic) + 1

// Options configures a Writer.
type Options struct {
	Compression Compression

	// Recipients are age public keys (age1...). When non-empty every
	// frame is encrypted to all of them.
	Recipients []string
}

// Writer appends records to a journal. Safe for concurrent use: the
// session relay goroutines and terminal readers all append through
// one Writer.
type Writer struct {
	mu          sync.Mutex
	out         io.Writer
	closer      io.Closer
	compression Compression
	recipients  []age.Recipient
	closed      bool
}

// NewWriter writes a journal header to out and returns a Writer that
// appends frames after it.
func NewWriter(out io.Writer, options Options) (*Writer, error) {
	writer, err := newWriter(out, options)
	if err != nil {
		return nil, err
	}
	if _, err := out.Write(writer.header()); err != nil {
		return nil, fmt.Errorf("writing journal header: %w", err)
	}
	return writer, nil
}

// OpenFile opens the journal at path for appending, creating it with
// a header if it does not exist. An existing journal must agree with
// options about encryption. A final frame cut short by a crash is
// removed first, so new frames follow the last complete one.
func OpenFile(path string, options Options) (*Writer, error) {
	writer, err := newWriter(nil, options)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	if err := writer.prepare(file); err != nil {
		file.Close()
		return nil, fmt.Errorf("journal %s: %w", path, err)
	}

	writer.out = file
	writer.closer = file
	return writer, nil
}

// prepare validates or writes the header of file and truncates any
// incomplete final frame.
func (w *Writer) prepare(file *os.File) error {
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	// A header cut short is a journal that never held a record.
	if size := info.Size(); size < int64(headerSize) {
		existing := make([]byte, size)
		if _, err := file.ReadAt(existing, 0); err != nil {
			return fmt.Errorf("reading header: %w", err)
		}
		if !bytes.HasPrefix(w.header(), existing[:min(len(existing), len(magic))]) {
			return errors.New("not a central journal (bad magic)")
		}
		if err := file.Truncate(0); err != nil {
			return fmt.Errorf("discarding partial header: %w", err)
		}
		if _, err := file.Write(w.header()); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
		return nil
	}

	existing := make([]byte, headerSize)
	if _, err := file.ReadAt(existing, 0); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	flags, err := parseHeader(existing)
	if err != nil {
		return err
	}
	if (flags&flagEncrypted != 0) != (len(w.recipients) > 0) {
		return errors.New("encryption setting does not match existing file")
	}

	end, err := completeFrames(io.NewSectionReader(file, int64(headerSize), info.Size()-int64(headerSize)))
	if err != nil {
		return err
	}
	if complete := int64(headerSize) + end; complete < info.Size() {
		if err := file.Truncate(complete); err != nil {
			return fmt.Errorf("discarding truncated final frame: %w", err)
		}
	}
	return nil
}

// completeFrames walks the frames in in and returns the offset just
// past the last one that is fully present.
func completeFrames(in io.Reader) (int64, error) {
	counted := &countingReader{in: bufio.NewReader(in)}
	var end int64
	for {
		length, err := binary.ReadUvarint(counted)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return end, nil
		}
		if err != nil {
			return 0, fmt.Errorf("reading frame length at offset %d: %w", int64(headerSize)+end, err)
		}
		if length > maxFrameSize {
			return 0, fmt.Errorf("frame at offset %d claims %d bytes", int64(headerSize)+end, length)
		}
		if _, err := io.CopyN(io.Discard, counted, int64(length)); err != nil {
			if errors.Is(err, io.EOF) {
				return end, nil
			}
			return 0, fmt.Errorf("reading frame at offset %d: %w", int64(headerSize)+end, err)
		}
		end = counted.count
	}
}

type countingReader struct {
	in    *bufio.Reader
	count int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.in.Read(p)
	r.count += int64(n)
	return n, err
}

func (r *countingReader) ReadByte() (byte, error) {
	b, err := r.in.ReadByte()
	if err == nil {
		r.count++
	}
	return b, err
}

func newWriter(out io.Writer, options Options) (*Writer, error) {
	if _, _, err := compress(nil, options.Compression); err != nil {
		return nil, err
	}
	recipients := make([]age.Recipient, 0, len(options.Recipients))
	for _, key := range options.Recipients {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return &Writer{
		out:         out,
		compression: options.Compression,
		recipients:  recipients,
	}, nil
}

func (w *Writer) header() []byte {
	header := make([]byte, 0, headerSize)
	header = append(header, magic[:]...)
	var flags byte
	if len(w.recipients) > 0 {
		flags |= flagEncrypted
	}
	return append(header, flags)
}

// Append encodes, compresses, optionally encrypts, and writes one
// record as a single Write call.
func (w *Writer) Append(record Record) error {
	encoded, err := encMode.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding journal record: %w", err)
	}
	payload, algorithm, err := compress(encoded, w.compression)
	if err != nil {
		return err
	}

	body := make([]byte, 0, 1+binary.MaxVarintLen64+len(payload))
	body = append(body, byte(algorithm))
	body = binary.AppendUvarint(body, uint64(len(encoded)))
	body = append(body, payload...)

	if len(w.recipients) > 0 {
		body, err = seal(body, w.recipients)
		if err != nil {
			return err
		}
	}

	frame := binary.AppendUvarint(make([]byte, 0, binary.MaxVarintLen64+len(body)), uint64(len(body)))
	frame = append(frame, body...)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("journal writer is closed")
	}
	if _, err := w.out.Write(frame); err != nil {
		return fmt.Errorf("writing journal frame: %w", err)
	}
	return nil
}

// Close closes the underlying file when the Writer was opened with
// OpenFile. Further appends fail.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

func seal(plaintext []byte, recipients []age.Recipient) ([]byte, error) {
	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}
