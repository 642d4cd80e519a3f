// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package binhash

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 keyed hash of a worker entry point.
type Digest [32]byte

// workerDomainKey separates worker fingerprints from any other BLAKE3
// use of the same bytes. ASCII, zero-padded to 32 bytes.
var workerDomainKey = [32]byte{
	'c', 'e', 'n', 't', 'r', 'a', 'l', '.', 'w', 'o', 'r', 'k', 'e', 'r', '.',
	's', 'c', 'r', 'i', 'p', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// HashReader streams r through the worker-domain keyed hash.
func HashReader(r io.Reader) (Digest, error) {
	hasher, err := blake3.NewKeyed(workerDomainKey[:])
	if err != nil {
		return Digest{}, fmt.Errorf("initializing BLAKE3: %w", err)
	}
	if _, err := io.Copy(hasher, r); err != nil {
		return Digest{}, err
	}

	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// HashFile computes the digest of the file at path with constant
// memory usage regardless of file size.
func HashFile(path string) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	digest, err := HashReader(file)
	if err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	return digest, nil
}

// String returns the hex encoding, the form used in log output.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex characters, enough to tell two
// worker builds apart in a log line.
func (d Digest) Short() string {
	return d.String()[:12]
}

// ParseDigest parses a hex-encoded digest.
func ParseDigest(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing worker digest: %w", err)
	}
	if len(decoded) != len(digest) {
		return digest, fmt.Errorf("worker digest is %d bytes, want %d", len(decoded), len(digest))
	}
	copy(digest[:], decoded)
	return digest, nil
}
