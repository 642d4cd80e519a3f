// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds key material, such as age identity files for
// encrypted journals, outside the Go heap.
//
// A [Buffer] is an anonymous mmap that is mlocked (never swapped) and
// marked MADV_DONTDUMP (absent from core dumps). Close zeroes and
// unmaps it.
package secret
