// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal records forwarded agent and terminal events to an
// append-only file for later inspection with "central journal".
//
// A journal file starts with a five-byte magic ("CJNL" plus a version
// byte) and one flags byte. Each record follows as an independent
// frame:
//
//	uvarint(len(body)) body
//
// where body is, after age decryption when the encrypted flag is set:
//
//	compression tag (1 byte) | uvarint(uncompressed size) | payload
//
// and the decompressed payload is one CBOR-encoded [Record]. Framing
// each record independently means a crash mid-write loses at most the
// final record; [Reader.Next] reports such a tail as [ErrTruncated].
//
// Compression falls back to none per frame when a record does not
// shrink. Encryption uses age X25519 recipients.
package journal
