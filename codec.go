// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import (
	"bytes"
	"fmt"
	"io"

	kzlib "github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Decompressor fills dst exactly from src using the named method. It must
// either fill dst completely or return an error (spec §6).
type Decompressor interface {
	Decompress(dst, src []byte, method Method) error
}

// CodecRegistry is the default Decompressor: a small, explicit table of
// decode functions keyed by exact ASCII method name, matching the
// pack's near-universal use of klauspost/compress for zlib/zstd decoding.
type CodecRegistry struct {
	codecs map[Method]func(dst, src []byte) error
}

// NewCodecRegistry returns a registry with None, Zlib, and Zstd wired in.
// Oodle has no redistributable pure-Go implementation anywhere in the
// ecosystem (it is Epic/RAD proprietary); RegisterOodle lets a caller
// plug in a native decoder, and decompressing with an unregistered Oodle
// method fails with ErrMethodNotRegistered rather than silently no-op'ing.
func NewCodecRegistry() *CodecRegistry {
	r := &CodecRegistry{codecs: make(map[Method]func(dst, src []byte) error, 4)}

	r.codecs[MethodNone] = decodeStoredCopy
	r.codecs[MethodZlib] = decodeZlib
	r.codecs[MethodZstd] = decodeZstd

	return r
}

// RegisterOodle installs an externally supplied Oodle decoder. fn must
// fill dst exactly from src or return an error.
func (r *CodecRegistry) RegisterOodle(fn func(dst, src []byte) error) {
	r.codecs[MethodOodle] = fn
}

// Register installs or overrides the decoder for an arbitrary method
// name, for game-specific codecs not named in the core set.
func (r *CodecRegistry) Register(method Method, fn func(dst, src []byte) error) {
	r.codecs[method] = fn
}

// Decompress implements Decompressor.
func (r *CodecRegistry) Decompress(dst, src []byte, method Method) error {
	fn, ok := r.codecs[method]
	if !ok {
		return fmt.Errorf("%w: %q", ErrMethodNotRegistered, method)
	}

	return fn(dst, src)
}

func decodeStoredCopy(dst, src []byte) error {
	if len(dst) != len(src) {
		return fmt.Errorf("stored copy: dst len %d != src len %d", len(dst), len(src))
	}

	copy(dst, src)
	return nil
}

func decodeZlib(dst, src []byte) error {
	zr, err := kzlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return fmt.Errorf("zlib: %w", err)
	}
	defer func() { _ = zr.Close() }()

	return readExact(zr, dst)
}

func decodeZstd(dst, src []byte) error {
	zr, err := zstd.NewReader(bytes.NewReader(src))
	if err != nil {
		return fmt.Errorf("zstd: %w", err)
	}
	defer zr.Close()

	return readExact(zr, dst)
}

// readExact fills dst completely from r, failing if r produces more or
// fewer bytes than len(dst).
func readExact(r io.Reader, dst []byte) error {
	n, err := io.ReadFull(r, dst)
	if err != nil {
		return fmt.Errorf("decompress: short output (%d of %d bytes): %w", n, len(dst), err)
	}

	var probe [1]byte
	if extra, _ := r.Read(probe[:]); extra > 0 {
		return fmt.Errorf("decompress: output longer than expected %d bytes", len(dst))
	}

	return nil
}
