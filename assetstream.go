// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import (
	"fmt"
	"io"
	"sort"
)

// AssetStream is a seekable, read-only view of one logical entry's
// decompressed bytes, backed by an IBlockProvider. It loads at most one
// decoded compression block at a time into pooled scratch buffers,
// decrypting and decompressing lazily as reads cross block boundaries
// (spec §4.5/§4.6). AssetStream implements io.ReadSeeker; Write is
// intentionally not implemented, matching the read-only nature of a
// packaged container.
type AssetStream struct {
	provider IBlockProvider
	profile  *Profile
	size     int64
	pos      int64

	cachedBlockIndex int // -1 when nothing is cached
	cachedRaw        *pooledBuffer
	cachedDecoded    *pooledBuffer
	cachedBlock      CompressionBlock

	closed bool
}

// NewAssetStream returns a stream positioned at offset 0 over provider.
func NewAssetStream(provider IBlockProvider, profile *Profile) *AssetStream {
	return &AssetStream{
		provider:         provider,
		profile:          profile,
		size:             int64(provider.UncompressedSize()), //nolint:gosec // entries bounded well under 2^63
		cachedBlockIndex: -1,
	}
}

// Read implements io.Reader. Reading a stream after Close is a caller
// bug, not a recoverable condition (spec §7 "reading a disposed stream"
// is panic-class), so it panics rather than transparently re-fetching a
// block through a container that may already be gone.
func (s *AssetStream) Read(p []byte) (int, error) {
	if s.closed {
		panic(panicReadClosedStream)
	}

	if s.pos >= s.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	total := 0
	for total < len(p) && s.pos < s.size {
		blockIndex, block, err := s.resolveBlock(s.pos)
		if err != nil {
			return total, err
		}

		if err := s.ensureBlockLoaded(blockIndex, block); err != nil {
			return total, err
		}

		offsetInBlock := s.pos - int64(block.UncompressedOffset)
		if blockIndex == 0 {
			offsetInBlock += int64(s.provider.FirstBlockOffset())
		}

		decoded := s.cachedDecoded.buf
		available := int64(len(decoded)) - offsetInBlock
		if available <= 0 {
			return total, fmt.Errorf("asset stream: block %d exhausted at logical position %d", blockIndex, s.pos)
		}

		want := int64(len(p) - total)
		if want > available {
			want = available
		}

		n := copy(p[total:total+int(want)], decoded[offsetInBlock:offsetInBlock+want])
		total += n
		s.pos += int64(n)
	}

	return total, nil
}

// resolveBlock finds the compression block containing logical position
// pos. It first tries the fast-path division pos/BlockSize() (correct
// for every block except possibly the first, which may be shortened by
// FirstBlockOffset, and the last, which may be shortened by the entry's
// total size); a boundary check verifies the guess, falling back to a
// binary search over the provider's blocks, which are strictly ordered
// by uncompressed offset (spec §4.6 step "binary/linear search fallback").
func (s *AssetStream) resolveBlock(pos int64) (int, CompressionBlock, error) {
	count := s.provider.BlockCount()
	if count == 0 {
		return 0, CompressionBlock{}, fmt.Errorf("%w: entry has no compression blocks", ErrUnsupportedLayout)
	}

	if blockSize := s.provider.BlockSize(); blockSize > 0 {
		guess := int(pos / int64(blockSize))
		if guess >= count {
			guess = count - 1
		}
		if guess >= 0 {
			block := s.provider.GetBlock(guess)
			if blockContains(block, pos) {
				return guess, block, nil
			}
		}
	}

	idx := sort.Search(count, func(i int) bool {
		b := s.provider.GetBlock(i)
		return int64(b.UncompressedOffset)+int64(b.UncompressedSize) > pos
	})
	if idx >= count {
		return 0, CompressionBlock{}, fmt.Errorf("asset stream: position %d past end of entry", pos)
	}

	return idx, s.provider.GetBlock(idx), nil
}

func blockContains(b CompressionBlock, pos int64) bool {
	start := int64(b.UncompressedOffset)
	end := start + int64(b.UncompressedSize)
	return pos >= start && pos < end
}

// ensureBlockLoaded decodes block index i into s.cachedDecoded if it
// isn't already cached, releasing any previously cached buffers back to
// the pool first.
func (s *AssetStream) ensureBlockLoaded(i int, block CompressionBlock) error {
	if s.cachedBlockIndex == i {
		return nil
	}

	s.releaseCached()

	readSize := s.provider.GetBlockReadSize(i)
	rawBuf := sharedBufferPool.get(int(readSize))

	if err := s.provider.ReadBlockRaw(i, rawBuf.buf); err != nil {
		sharedBufferPool.release(rawBuf)
		return fmt.Errorf("asset stream: read block %d: %w", i, err)
	}

	if s.provider.IsEncrypted() {
		if s.profile == nil || s.profile.AESKey == nil {
			sharedBufferPool.release(rawBuf)
			return ErrBlockEncryptedNoKey
		}
		if err := s.profile.Decryptor.DecryptInPlace(rawBuf.buf, *s.profile.AESKey); err != nil {
			sharedBufferPool.release(rawBuf)
			return fmt.Errorf("asset stream: decrypt block %d: %w", i, err)
		}
	}

	method := s.provider.GetBlockCompressionMethod(i)

	if method == MethodNone {
		s.cachedRaw = rawBuf
		s.cachedDecoded = &pooledBuffer{buf: rawBuf.buf[:block.CompressedSize], class: -1}
		s.cachedBlockIndex = i
		s.cachedBlock = block
		return nil
	}

	decodedBuf := sharedBufferPool.get(int(block.UncompressedSize)) //nolint:gosec // blocks are bounded well under 4 GiB
	if s.profile == nil || s.profile.Decompressor == nil {
		sharedBufferPool.release(rawBuf)
		sharedBufferPool.release(decodedBuf)
		return fmt.Errorf("%w: no decompressor configured", ErrMethodNotRegistered)
	}

	if err := s.profile.Decompressor.Decompress(decodedBuf.buf, rawBuf.buf[:block.CompressedSize], method); err != nil {
		sharedBufferPool.release(rawBuf)
		sharedBufferPool.release(decodedBuf)
		return fmt.Errorf("asset stream: decompress block %d: %w", i, err)
	}

	sharedBufferPool.release(rawBuf)
	s.cachedRaw = nil
	s.cachedDecoded = decodedBuf
	s.cachedBlockIndex = i
	s.cachedBlock = block

	return nil
}

func (s *AssetStream) releaseCached() {
	if s.cachedRaw != nil {
		sharedBufferPool.release(s.cachedRaw)
		s.cachedRaw = nil
	}
	if s.cachedDecoded != nil && s.cachedDecoded.class >= 0 {
		sharedBufferPool.release(s.cachedDecoded)
	}
	s.cachedDecoded = nil
	s.cachedBlockIndex = -1
}

// Seek implements io.Seeker. Seeking only moves the logical read
// position; it never truncates, extends, or otherwise mutates the
// underlying entry (spec §4.6 "seek is position-only"). A negative
// resulting position or one past the end of the entry is a caller bug
// (spec §7 "out-of-range seek" is panic-class), not a recoverable error,
// so both panic rather than silently clamping or accepting an
// out-of-bounds position.
func (s *AssetStream) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		panic(panicSeekClosedStream)
	}

	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = s.pos + offset
	case io.SeekEnd:
		newPos = s.size + offset
	default:
		return 0, fmt.Errorf("asset stream: invalid whence %d", whence)
	}

	if newPos < 0 {
		panic(fmt.Sprintf("%s %d", panicSeekNegative, newPos))
	}
	if newPos > s.size {
		panic(fmt.Sprintf("%s: %d > %d", panicSeekPastEnd, newPos, s.size))
	}

	s.pos = newPos
	return s.pos, nil
}

// Size returns the entry's total uncompressed length.
func (s *AssetStream) Size() int64 { return s.size }

// Close releases the stream's cached scratch buffers back to the shared
// pool. It does not close the underlying container.
func (s *AssetStream) Close() error {
	s.releaseCached()
	s.closed = true
	return nil
}

var _ io.ReadSeeker = (*AssetStream)(nil)
