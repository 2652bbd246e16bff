// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// pakEntryHeaderSize is the fixed per-entry struct prepended on disk
// before a PAK entry's payload (spec §4.3).
const pakEntryHeaderSize = 53

// DecodePakIndex decodes a PAK container's index into entries. It never
// panics on malformed input: truncated or partially invalid containers
// are rejected with a returned error, never by exception propagation
// (spec §7 "Index decoders never throw").
func DecodePakIndex(ra io.ReaderAt, size int64, containerPath string, profile *Profile) ([]*PakEntry, error) {
	info, err := profile.parsePakTrailer(ra, size)
	if err != nil {
		return nil, err
	}

	indexPayload, err := readPakIndexPayload(ra, info, profile)
	if err != nil {
		return nil, err
	}

	idxCur := NewCursor(bytes.NewReader(indexPayload), int64(len(indexPayload)))

	mountPoint, ok := idxCur.TryReadString()
	if !ok {
		return nil, fmt.Errorf("%w: pak mount point", ErrTruncatedIndex)
	}
	mountPoint = strings.TrimPrefix(mountPoint, "../../../")

	if _, ok := idxCur.TryI32(); !ok { // entry count: informational only
		return nil, fmt.Errorf("%w: pak entry count", ErrTruncatedIndex)
	}

	if !idxCur.tryAdvance(8) { // path-hash seed
		return nil, fmt.Errorf("%w: pak path-hash seed", ErrTruncatedIndex)
	}

	hasPathHashIndex, ok := idxCur.TryI32()
	if !ok {
		return nil, fmt.Errorf("%w: pak has_path_hash_index", ErrTruncatedIndex)
	}
	if hasPathHashIndex != 0 {
		if !idxCur.tryAdvance(8 + 8 + 20) {
			return nil, fmt.Errorf("%w: pak path-hash index metadata", ErrTruncatedIndex)
		}
	}

	hasFullDirectoryIndex, ok := idxCur.TryI32()
	if !ok {
		return nil, fmt.Errorf("%w: pak has_full_directory_index", ErrTruncatedIndex)
	}
	if hasFullDirectoryIndex == 0 {
		return nil, fmt.Errorf("%w: pak has no full directory index", ErrUnsupportedLayout)
	}

	directoryIndexOffset, ok := idxCur.TryI64()
	if !ok {
		return nil, fmt.Errorf("%w: pak directory index offset", ErrTruncatedIndex)
	}
	directoryIndexSize, ok := idxCur.TryI64()
	if !ok {
		return nil, fmt.Errorf("%w: pak directory index size", ErrTruncatedIndex)
	}
	if !idxCur.tryAdvance(20) { // directory index hash
		return nil, fmt.Errorf("%w: pak directory index hash", ErrTruncatedIndex)
	}

	encodedEntriesSize, ok := idxCur.TryI32()
	if !ok || encodedEntriesSize < 0 {
		return nil, fmt.Errorf("%w: pak encoded entries size", ErrTruncatedIndex)
	}
	encodedEntries, ok := idxCur.tryRead(int(encodedEntriesSize))
	if !ok {
		return nil, fmt.Errorf("%w: pak encoded entries block", ErrTruncatedIndex)
	}

	dirIndexPayload, err := readPakDirectoryIndexPayload(ra, info, profile, directoryIndexOffset, directoryIndexSize)
	if err != nil {
		return nil, err
	}

	records, err := decodePakDirectoryIndex(dirIndexPayload, mountPoint)
	if err != nil {
		return nil, err
	}

	entries := make([]*PakEntry, 0, len(records))
	encCur := NewCursor(bytes.NewReader(encodedEntries), int64(len(encodedEntries)))
	for _, rec := range records {
		if err := encCur.Seek(int64(rec.recordOffset), SeekAbsolute); err != nil {
			continue // malformed single record: skip, keep the rest of the archive readable
		}

		fields, err := decodePakEntryFields(encCur, info.CompressionMethods)
		if err != nil {
			continue
		}

		entries = append(entries, buildPakEntry(rec.path, containerPath, fields))
	}

	return entries, nil
}

// tryAdvance skips n bytes, restoring position on failure.
func (c *Cursor) tryAdvance(n int) bool {
	_, ok := c.tryRead(n)
	return ok
}

// readPakIndexPayload reads and, if necessary, decrypts the index
// payload, returning exactly IndexSize plaintext bytes (spec §4.3).
func readPakIndexPayload(ra io.ReaderAt, info *PakInfo, profile *Profile) ([]byte, error) {
	return readPossiblyEncryptedRegion(ra, int64(info.IndexOffset), info.IndexSize, info.IsIndexEncrypted, profile)
}

// readPakDirectoryIndexPayload reads the directory index, independently
// encrypted when the pak uses index encryption (spec §4.3).
func readPakDirectoryIndexPayload(ra io.ReaderAt, info *PakInfo, profile *Profile, offset, size int64) ([]byte, error) {
	if offset < 0 || size < 0 {
		return nil, fmt.Errorf("%w: negative directory index bounds", ErrTruncatedIndex)
	}

	return readPossiblyEncryptedRegion(ra, offset, uint64(size), info.IsIndexEncrypted, profile)
}

// readPossiblyEncryptedRegion reads plainSize meaningful bytes starting
// at offset, transparently decrypting the 16-byte-aligned ceiling region
// when encrypted is set.
func readPossiblyEncryptedRegion(ra io.ReaderAt, offset int64, plainSize uint64, encrypted bool, profile *Profile) ([]byte, error) {
	readSize := plainSize
	if encrypted {
		readSize = align16(plainSize)
	}

	buf := make([]byte, readSize)
	if _, err := ra.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("%w: read region at %d (%d bytes): %v", ErrShortRead, offset, readSize, err)
	}

	if encrypted {
		if profile.AESKey == nil {
			return nil, ErrIndexEncryptedNoKey
		}
		if err := profile.Decryptor.DecryptInPlace(buf, *profile.AESKey); err != nil {
			return nil, fmt.Errorf("decrypt index region: %w", err)
		}
	}

	return buf[:plainSize], nil
}

// pakDirectoryRecord is one (path, encoded-entry-record-offset) pair
// resolved by walking the directory index.
type pakDirectoryRecord struct {
	path         string
	recordOffset int32
}

// decodePakDirectoryIndex walks the flat directory->filename->offset map
// (spec §4.3 "Directory index").
func decodePakDirectoryIndex(payload []byte, mountPoint string) ([]pakDirectoryRecord, error) {
	cur := NewCursor(bytes.NewReader(payload), int64(len(payload)))

	dirCount, ok := cur.TryI32()
	if !ok || dirCount < 0 {
		return nil, fmt.Errorf("%w: directory index count", ErrTruncatedIndex)
	}

	var out []pakDirectoryRecord
	for d := int32(0); d < dirCount; d++ {
		dirName, ok := cur.TryReadString()
		if !ok {
			return nil, fmt.Errorf("%w: directory name %d", ErrTruncatedIndex, d)
		}

		fileCount, ok := cur.TryI32()
		if !ok || fileCount < 0 {
			return nil, fmt.Errorf("%w: directory file count %d", ErrTruncatedIndex, d)
		}

		for f := int32(0); f < fileCount; f++ {
			fileName, ok := cur.TryReadString()
			if !ok {
				return nil, fmt.Errorf("%w: file name in directory %q", ErrTruncatedIndex, dirName)
			}

			recordOffset, ok := cur.TryI32()
			if !ok {
				return nil, fmt.Errorf("%w: record offset for %q", ErrTruncatedIndex, fileName)
			}

			out = append(out, pakDirectoryRecord{
				path:         joinPakPath(mountPoint, dirName, fileName),
				recordOffset: recordOffset,
			})
		}
	}

	return out, nil
}

// joinPakPath builds a virtual entry path from the mount point, the
// directory name, and the filename, all slash-separated.
func joinPakPath(mountPoint, dirName, fileName string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{mountPoint, dirName, fileName} {
		p = strings.Trim(strings.ReplaceAll(p, `\`, "/"), "/")
		if p != "" {
			parts = append(parts, p)
		}
	}

	return strings.Join(parts, "/")
}

// pakEntryFields is the decoded 32-bit-flag-word entry record (spec
// §4.3 "Entry record decoding").
type pakEntryFields struct {
	offset               uint64
	uncompressedSize     uint64
	compressedSize       uint64
	compressionMethod    Method
	isEncrypted          bool
	compressionBlockSize uint32
	blockSizes           []uint32 // only populated in the general (case C) layout
}

func decodePakEntryFields(cur *Cursor, methods [5]Method) (*pakEntryFields, error) {
	flags, ok := cur.TryU32()
	if !ok {
		return nil, fmt.Errorf("%w: entry flag word", ErrTruncatedIndex)
	}

	is32Offset := flags&(1<<31) != 0
	is32Uncompressed := flags&(1<<30) != 0
	is32Compressed := flags&(1<<29) != 0
	methodIndex := (flags >> 23) & 0x3F
	isEncrypted := flags&(1<<22) != 0
	blockCount := (flags >> 6) & 0xFFFF
	blockSizeField := flags & 0x3F

	var blockSize uint32
	if blockSizeField == 0x3F {
		v, ok := cur.TryU32()
		if !ok {
			return nil, fmt.Errorf("%w: entry explicit block size", ErrTruncatedIndex)
		}
		blockSize = v
	} else {
		blockSize = blockSizeField << 11
	}

	offset, err := readSizedField(cur, is32Offset)
	if err != nil {
		return nil, fmt.Errorf("entry offset: %w", err)
	}

	uncompressedSize, err := readSizedField(cur, is32Uncompressed)
	if err != nil {
		return nil, fmt.Errorf("entry uncompressed size: %w", err)
	}

	var method Method
	var compressedSize uint64
	if methodIndex == 0 {
		method = MethodNone
		compressedSize = uncompressedSize
	} else if int(methodIndex-1) < len(methods) {
		method = methods[methodIndex-1]
		compressedSize, err = readSizedField(cur, is32Compressed)
		if err != nil {
			return nil, fmt.Errorf("entry compressed size: %w", err)
		}
	} else {
		return nil, fmt.Errorf("%w: method index %d", ErrUnknownCompression, methodIndex)
	}

	if blockCount == 1 && blockSize == 0 {
		blockSize = uint32(uncompressedSize) //nolint:gosec // single-block entries are bounded well under 4 GiB
	}

	fields := &pakEntryFields{
		offset:               offset,
		uncompressedSize:     uncompressedSize,
		compressedSize:       compressedSize,
		compressionMethod:    method,
		isEncrypted:          isEncrypted,
		compressionBlockSize: blockSize,
	}

	// Entry struct byte itself (flags, sizes just read) always precedes
	// payload; per-block size list is only present for the general case:
	// more than one block, or a single encrypted block (whose physical
	// read length differs from its logical size and must be recorded).
	if method != MethodNone && (blockCount > 1 || isEncrypted) {
		sizes := make([]uint32, blockCount)
		for i := range sizes {
			v, ok := cur.TryU32()
			if !ok {
				return nil, fmt.Errorf("%w: entry block size %d", ErrTruncatedIndex, i)
			}
			sizes[i] = v
		}
		fields.blockSizes = sizes
	}

	return fields, nil
}

func readSizedField(cur *Cursor, is32 bool) (uint64, error) {
	if is32 {
		v, ok := cur.TryU32()
		if !ok {
			return 0, ErrTruncatedIndex
		}
		return uint64(v), nil
	}

	v, ok := cur.TryI64()
	if !ok {
		return 0, ErrTruncatedIndex
	}
	return uint64(v), nil
}

// buildPakEntry assembles the final PakEntry, deriving the compression
// block range list per spec §4.3 "Compression-block list construction".
func buildPakEntry(path, containerPath string, f *pakEntryFields) *PakEntry {
	entry := &PakEntry{
		entryBase: entryBase{
			path:          path,
			containerPath: containerPath,
			offset:        f.offset,
			size:          f.uncompressedSize,
		},
		CompressedSize:       f.compressedSize,
		IsEncrypted:          f.isEncrypted,
		CompressionMethod:    f.compressionMethod,
		CompressionBlockSize: f.compressionBlockSize,
	}

	if f.compressionMethod == MethodNone {
		return entry // blocks derived directly by the block provider
	}

	if len(f.blockSizes) == 0 {
		return entry // single unencrypted block, derived directly too
	}

	headerSize := uint64(pakEntryHeaderSize) + 4 + 16*uint64(len(f.blockSizes))
	blocks := make([]PakBlockRange, len(f.blockSizes))
	cursorOffset := headerSize
	for i, size := range f.blockSizes {
		blocks[i] = PakBlockRange{Start: uint32(cursorOffset), End: uint32(cursorOffset) + size} //nolint:gosec // pak entries bounded under 4 GiB
		step := uint64(size)
		if f.isEncrypted {
			step = align16(step)
		}
		cursorOffset += step
	}
	entry.CompressionBlocks = blocks

	return entry
}
