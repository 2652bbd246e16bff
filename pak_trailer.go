// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import (
	"fmt"
	"io"
)

// magicFieldOffset is the magic's byte offset within any candidate
// trailer, regardless of the trailer's total size (spec §4.3): the
// 16-byte encryption-key GUID and 1-byte encrypted-index flag always
// precede it.
const magicFieldOffset = 17

// parseStandardPakTrailer probes every known trailer size in order,
// selecting the first whose magic matches (spec §4.3). Trailer sizes
// shorter than the full 5-method layout correspond to older PAK versions
// that shipped with fewer (or no) named compression-method slots; this
// is derived from the fixed fields preceding and following the magic,
// not hardcoded per size.
func parseStandardPakTrailer(ra io.ReaderAt, size int64) (*PakInfo, error) {
	for _, candidate := range trailerCandidateSizes {
		if int64(candidate) > size {
			continue
		}

		start := size - int64(candidate)
		magicOffset := start + magicFieldOffset

		var magicBuf [4]byte
		if _, err := ra.ReadAt(magicBuf[:], magicOffset); err != nil {
			continue
		}

		magic := uint32(magicBuf[0]) | uint32(magicBuf[1])<<8 | uint32(magicBuf[2])<<16 | uint32(magicBuf[3])<<24
		if magic != pakMagic {
			continue
		}

		return decodePakTrailerFields(ra, start, int64(candidate), magic)
	}

	return nil, ErrUnknownTrailerSize
}

// decodePakTrailerFields decodes the trailer body once its start offset
// and magic have been confirmed.
func decodePakTrailerFields(ra io.ReaderAt, start int64, trailerSize int64, magic uint32) (*PakInfo, error) {
	trailer := io.NewSectionReader(ra, start, trailerSize)
	cur := NewCursor(trailer, trailerSize)

	guid, ok := cur.TryGUID()
	if !ok {
		return nil, fmt.Errorf("%w: trailer guid", ErrTruncatedIndex)
	}

	encryptedByte, ok := cur.TryU8()
	if !ok {
		return nil, fmt.Errorf("%w: trailer encrypted flag", ErrTruncatedIndex)
	}

	gotMagic, ok := cur.TryU32()
	if !ok || gotMagic != magic {
		return nil, fmt.Errorf("%w: trailer magic mismatch on re-read", ErrBadMagic)
	}

	remaining := trailerSize - cur.Position()

	info := &PakInfo{
		Magic:            magic,
		EncryptionKeyGUID: guid,
		IsIndexEncrypted: encryptedByte != 0,
	}

	// Oldest variant (61 bytes): version + offsets + hash, no method table.
	if remaining < 4+8+8+20+32 {
		version, ok := cur.TryU32()
		if !ok {
			return nil, fmt.Errorf("%w: trailer version", ErrTruncatedIndex)
		}
		info.Version = version

		if err := decodePakTrailerOffsetsAndHash(cur, info); err != nil {
			return nil, err
		}

		return info, nil
	}

	version, ok := cur.TryU32()
	if !ok {
		return nil, fmt.Errorf("%w: trailer version", ErrTruncatedIndex)
	}
	info.Version = version

	if err := decodePakTrailerOffsetsAndHash(cur, info); err != nil {
		return nil, err
	}

	methodSlots := int((trailerSize - cur.Position()) / 32)
	if methodSlots > 5 {
		methodSlots = 5
	}

	for i := 0; i < methodSlots; i++ {
		name, ok := cur.tryRead(32)
		if !ok {
			return nil, fmt.Errorf("%w: trailer compression method %d", ErrTruncatedIndex, i)
		}

		info.CompressionMethods[i] = Method(nullTerminatedASCII(name))
	}

	return info, nil
}

func decodePakTrailerOffsetsAndHash(cur *Cursor, info *PakInfo) error {
	indexOffset, ok := cur.TryU64()
	if !ok {
		return fmt.Errorf("%w: trailer index offset", ErrTruncatedIndex)
	}
	info.IndexOffset = indexOffset

	indexSize, ok := cur.TryU64()
	if !ok {
		return fmt.Errorf("%w: trailer index size", ErrTruncatedIndex)
	}
	info.IndexSize = indexSize

	hash, ok := cur.tryRead(20)
	if !ok {
		return fmt.Errorf("%w: trailer index hash", ErrTruncatedIndex)
	}
	copy(info.IndexHash[:], hash)

	return nil
}

// nullTerminatedASCII returns the leading run of b up to (not including)
// the first NUL byte.
func nullTerminatedASCII(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// DuneAwakeningTrailerParser recognizes the Dune: Awakening custom PAK
// trailer (spec §8 scenario 5): a trailer at -261 bytes beginning with
// magic 0xA590ED1E whose offset/size fields must be read from that
// custom location rather than the corrupted standard -221 fields.
type DuneAwakeningTrailerParser struct{}

const (
	duneAwakeningTrailerSize   = 261
	duneAwakeningTrailerMagic  = 0xA590ED1E
)

// ParseTrailer implements PakTrailerParser.
func (DuneAwakeningTrailerParser) ParseTrailer(ra io.ReaderAt, size int64) (*PakInfo, bool, error) {
	if size < duneAwakeningTrailerSize {
		return nil, false, nil
	}

	start := size - duneAwakeningTrailerSize

	var magicBuf [4]byte
	if _, err := ra.ReadAt(magicBuf[:], start); err != nil {
		return nil, false, nil
	}

	magic := uint32(magicBuf[0]) | uint32(magicBuf[1])<<8 | uint32(magicBuf[2])<<16 | uint32(magicBuf[3])<<24
	if magic != duneAwakeningTrailerMagic {
		return nil, false, nil
	}

	trailer := io.NewSectionReader(ra, start+4, duneAwakeningTrailerSize-4)
	cur := NewCursor(trailer, duneAwakeningTrailerSize-4)

	guid, ok := cur.TryGUID()
	if !ok {
		return nil, true, fmt.Errorf("%w: dune awakening trailer guid", ErrTruncatedIndex)
	}

	encryptedByte, ok := cur.TryU8()
	if !ok {
		return nil, true, fmt.Errorf("%w: dune awakening trailer encrypted flag", ErrTruncatedIndex)
	}

	info := &PakInfo{
		Magic:             magic,
		EncryptionKeyGUID: guid,
		IsIndexEncrypted:  encryptedByte != 0,
	}

	version, ok := cur.TryU32()
	if !ok {
		return nil, true, fmt.Errorf("%w: dune awakening trailer version", ErrTruncatedIndex)
	}
	info.Version = version

	if err := decodePakTrailerOffsetsAndHash(cur, info); err != nil {
		return nil, true, err
	}

	methodSlots := int((cur.Len() - cur.Position()) / 32)
	if methodSlots > 5 {
		methodSlots = 5
	}

	for i := 0; i < methodSlots; i++ {
		name, ok := cur.tryRead(32)
		if !ok {
			return nil, true, fmt.Errorf("%w: dune awakening trailer compression method %d", ErrTruncatedIndex, i)
		}

		info.CompressionMethods[i] = Method(nullTerminatedASCII(name))
	}

	return info, true, nil
}
