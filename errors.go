// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import "errors"

// Sentinel errors. Use errors.Is in callers.
var (
	// Structural rejection: the container itself is malformed. The registry
	// logs and skips the offending container; these never panic.
	ErrBadMagic             = errors.New("container: bad magic")
	ErrUnsupportedLayout     = errors.New("container: unsupported index layout")
	ErrTruncatedIndex        = errors.New("container: truncated index")
	ErrUnknownTrailerSize    = errors.New("pak: no known trailer size matched")
	ErrUnknownCompression    = errors.New("container: entry references unknown compression method index")
	ErrMissingDataFile       = errors.New("iostore: no matching .ucas for .utoc")
	ErrDuplicateChunkID      = errors.New("iostore: duplicate chunk id in toc")

	// Configuration errors: fatal to the read that triggered them.
	ErrIndexEncryptedNoKey  = errors.New("container: index is encrypted but no AES key configured")
	ErrMethodNotRegistered  = errors.New("codec: compression method not registered")
	ErrBlockEncryptedNoKey  = errors.New("container: block is encrypted but no AES key configured")

	// I/O errors: fatal for the current read only.
	ErrShortRead = errors.New("container: short read from backing file")
	ErrMountRoot = errors.New("registry: mount root directory is missing")

	// Lookup errors.
	ErrEntryNotFound      = errors.New("registry: entry not found")
	ErrContainerNotFound  = errors.New("registry: mounted container not found")

	// String/primitive decode sanity limits (spec C1).
	ErrStringTooLong = errors.New("cursor: length-prefixed string exceeds sanity limit")
)

// Programming-error panics (spec §7). A caller that seeks out of range,
// reads or seeks a disposed AssetStream, or double-releases a pool buffer
// has a bug, not a recoverable failure: these conditions panic rather than
// return an error, matching Go idiom for caller-contract violations. They
// are plain strings, not error values, since they are never meant to be
// inspected with errors.Is by calling code — only ever to surface the bug.
const (
	panicSeekNegative        = "uread2: negative seek position"
	panicSeekPastEnd         = "uread2: seek position past entry size"
	panicReadClosedStream    = "uread2: read on a closed asset stream"
	panicSeekClosedStream    = "uread2: seek on a closed asset stream"
	panicDoubleBufferRelease = "uread2: pooled buffer released twice"
)
