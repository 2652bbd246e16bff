// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf16"

	"github.com/google/uuid"
)

// maxStringBytes bounds a single length-prefixed string decode (spec §4.1
// "sanity limit: |L_bytes| <= 1 MiB").
const maxStringBytes = 1 << 20

// Cursor is a bounds-checked little-endian primitive reader over a
// random-access byte source. Every multi-byte "Try*" read restores the
// cursor's position on failure; "Must*" reads return an error and leave
// the position wherever the last successful read left it. Try forms are
// the only forms permitted inside index decoders (spec §4.1, §9): a
// partially truncated or invalid container must be rejected by a
// returned bool/error, never by exception-style control flow.
type Cursor struct {
	src    io.ReaderAt
	pos    int64
	length int64
}

// NewCursor wraps src, which must report length valid bytes starting at
// offset 0.
func NewCursor(src io.ReaderAt, length int64) *Cursor {
	return &Cursor{src: src, length: length}
}

// Position returns the current cursor offset.
func (c *Cursor) Position() int64 { return c.pos }

// Len returns the total addressable length of the underlying source.
func (c *Cursor) Len() int64 { return c.length }

// SeekWhence mirrors io.Seeker's whence constants for Seek.
type SeekWhence int

const (
	SeekAbsolute SeekWhence = iota
	SeekRelative
	SeekFromEnd
)

// Seek repositions the cursor. It does not perform any I/O.
func (c *Cursor) Seek(offset int64, whence SeekWhence) error {
	var target int64
	switch whence {
	case SeekAbsolute:
		target = offset
	case SeekRelative:
		target = c.pos + offset
	case SeekFromEnd:
		target = c.length + offset
	default:
		return fmt.Errorf("cursor: unknown seek whence %d", whence)
	}

	if target < 0 || target > c.length {
		return fmt.Errorf("cursor: seek target %d out of bounds [0,%d]", target, c.length)
	}

	c.pos = target
	return nil
}

// tryRead reads exactly n bytes at the current position, advancing the
// cursor only on success.
func (c *Cursor) tryRead(n int) ([]byte, bool) {
	if n < 0 || c.pos < 0 || c.pos+int64(n) > c.length {
		return nil, false
	}

	buf := make([]byte, n)
	read, err := c.src.ReadAt(buf, c.pos)
	if err != nil && err != io.EOF {
		return nil, false
	}
	if read != n {
		return nil, false
	}

	c.pos += int64(n)
	return buf, true
}

func (c *Cursor) mustRead(n int) ([]byte, error) {
	start := c.pos
	b, ok := c.tryRead(n)
	if !ok {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d (source len %d)", ErrShortRead, n, start, c.length)
	}

	return b, nil
}

// Primitive try-readers. Each restores position on failure.

func (c *Cursor) TryU8() (uint8, bool) {
	b, ok := c.tryRead(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (c *Cursor) TryI8() (int8, bool) {
	v, ok := c.TryU8()
	return int8(v), ok
}

func (c *Cursor) TryU16() (uint16, bool) {
	b, ok := c.tryRead(2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

func (c *Cursor) TryI16() (int16, bool) {
	v, ok := c.TryU16()
	return int16(v), ok
}

func (c *Cursor) TryU32() (uint32, bool) {
	b, ok := c.tryRead(4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (c *Cursor) TryI32() (int32, bool) {
	v, ok := c.TryU32()
	return int32(v), ok
}

func (c *Cursor) TryU64() (uint64, bool) {
	b, ok := c.tryRead(8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

func (c *Cursor) TryI64() (int64, bool) {
	v, ok := c.TryU64()
	return int64(v), ok
}

func (c *Cursor) TryF32() (float32, bool) {
	v, ok := c.TryU32()
	if !ok {
		return 0, false
	}
	return math.Float32frombits(v), true
}

func (c *Cursor) TryF64() (float64, bool) {
	v, ok := c.TryU64()
	if !ok {
		return 0, false
	}
	return math.Float64frombits(v), true
}

// TryGUID reads a 16-byte GUID. UE GUIDs are four little-endian uint32
// words; callers that need RFC4122 semantics should not assume any
// particular variant/version bit layout, this is an opaque 16-byte key.
func (c *Cursor) TryGUID() (uuid.UUID, bool) {
	b, ok := c.tryRead(16)
	if !ok {
		return uuid.UUID{}, false
	}

	id, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.UUID{}, false
	}

	return id, true
}

// Must* wrappers. Permitted outside index decoders, where an error return
// is already the natural control-flow (e.g. top-level Open helpers).

func (c *Cursor) MustU8() (uint8, error)   { return mustWrap(c.TryU8()) }
func (c *Cursor) MustI8() (int8, error)    { return mustWrap(c.TryI8()) }
func (c *Cursor) MustU16() (uint16, error) { return mustWrap(c.TryU16()) }
func (c *Cursor) MustI16() (int16, error)  { return mustWrap(c.TryI16()) }
func (c *Cursor) MustU32() (uint32, error) { return mustWrap(c.TryU32()) }
func (c *Cursor) MustI32() (int32, error)  { return mustWrap(c.TryI32()) }
func (c *Cursor) MustU64() (uint64, error) { return mustWrap(c.TryU64()) }
func (c *Cursor) MustI64() (int64, error)  { return mustWrap(c.TryI64()) }

func mustWrap[T any](v T, ok bool) (T, error) {
	if !ok {
		var zero T
		return zero, ErrShortRead
	}
	return v, nil
}

// TryReadString decodes a length-prefixed string per spec §4.1: a 32-bit
// signed length L followed by character data and a terminating null.
// L > 0 means L bytes of UTF-8 (the logical string stops at the first
// null found within those L bytes). L < 0 means |L| UTF-16 code units,
// little-endian, null-terminated. L == 0 is the empty string. On any
// failure (including the 1 MiB sanity limit), the cursor position is
// fully restored, including the already-consumed length field.
func (c *Cursor) TryReadString() (string, bool) {
	start := c.pos

	l, ok := c.TryI32()
	if !ok {
		return "", false
	}

	if l == 0 {
		return "", true
	}

	if l > 0 {
		n := int(l)
		if n > maxStringBytes {
			c.pos = start
			return "", false
		}

		raw, ok := c.tryRead(n)
		if !ok {
			c.pos = start
			return "", false
		}

		end := n
		for i, b := range raw {
			if b == 0 {
				end = i
				break
			}
		}

		return string(raw[:end]), true
	}

	units := int(-l)
	if units*2 > maxStringBytes {
		c.pos = start
		return "", false
	}

	raw, ok := c.tryRead(units * 2)
	if !ok {
		c.pos = start
		return "", false
	}

	codeUnits := make([]uint16, units)
	for i := 0; i < units; i++ {
		codeUnits[i] = binary.LittleEndian.Uint16(raw[i*2 : i*2+2])
	}

	end := units
	for i, u := range codeUnits {
		if u == 0 {
			end = i
			break
		}
	}

	return string(utf16.Decode(codeUnits[:end])), true
}

// MustReadString is the error-returning counterpart of TryReadString.
func (c *Cursor) MustReadString() (string, error) {
	s, ok := c.TryReadString()
	if !ok {
		return "", fmt.Errorf("%w: invalid or oversized length-prefixed string", ErrTruncatedIndex)
	}
	return s, nil
}
