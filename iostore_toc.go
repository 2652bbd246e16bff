// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import (
	"bytes"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// ioStoreTocMagic is the fixed 16-byte identifier at the start of every
// .utoc file.
var ioStoreTocMagic = [16]byte{
	0x2D, 0x3D, 0x3D, 0x2D, 0x2D, 0x3D, 0x3D, 0x2D,
	0x2D, 0x3D, 0x3D, 0x2D, 0x2D, 0x3D, 0x3D, 0x2D,
}

// ioStoreTocVersion enumerates the .utoc header revisions this decoder
// recognizes. The offset/length table's on-disk width switches on this
// value (spec §9 open question: "does the 40-bit packed offset/length
// format apply to every IO Store version, or only some?" — resolved
// here by version-gating explicitly rather than guessing from size).
type ioStoreTocVersion uint8

const (
	ioStoreTocVersionLegacy        ioStoreTocVersion = 1
	ioStoreTocVersionDirectoryIndex ioStoreTocVersion = 2
	ioStoreTocVersionPartitionSize ioStoreTocVersion = 3
	ioStoreTocVersionPerfectHash   ioStoreTocVersion = 4
	// ioStoreTocVersionWideOffsets is the first revision this decoder
	// treats as using 64-bit-wide offset/length fields instead of the
	// packed 40-bit format. Earlier revisions all use the packed form.
	ioStoreTocVersionWideOffsets ioStoreTocVersion = 5
)

// ioStoreCompressionBlockEntry is one row of the TOC's global
// compression-block table (spec §4.4): a 40-bit compressed offset,
// 24-bit wide compressed size, 24-bit wide uncompressed size, and an
// 8-bit compression-method index into the method-name table.
type ioStoreCompressionBlockEntry struct {
	CompressedOffset uint64
	CompressedSize   uint32
	UncompressedSize uint32
	MethodIndex      uint8
}

// IoStoreToc is a decoded .utoc index: the chunk id table, the
// offset/length table, the global compression-block table, the
// method-name table, and (when present) the directory index and
// per-container encryption key GUID (spec §4.4).
type IoStoreToc struct {
	Version              ioStoreTocVersion
	ContainerID           uint64
	EncryptionKeyGUID     uuid.UUID
	IsEncrypted           bool
	CompressionBlockSize  uint32
	CompressionMethods    []Method
	CompressionBlocks     []ioStoreCompressionBlockEntry

	chunkIDs         [][12]byte
	chunkOffsets     []ioStoreChunkOffset
	directoryRecords []ioStoreDirectoryRecord
}

// ioStoreChunkOffset is one chunk's offset/length table row, normalized
// regardless of whether the on-disk encoding was the packed 40-bit form
// or the wide 64-bit form.
type ioStoreChunkOffset struct {
	Offset uint64
	Length uint64
}

// methodName resolves a compression-block method index to its name.
// Index 0 always means uncompressed, matching the IO Store convention
// that the method table itself never lists "None" explicitly.
func (t *IoStoreToc) methodName(index uint8) Method {
	if index == 0 {
		return MethodNone
	}
	i := int(index) - 1
	if i < 0 || i >= len(t.CompressionMethods) {
		return MethodNone
	}
	return t.CompressionMethods[i]
}

const (
	ioStoreTocHeaderSize      = 144
	ioStoreCompressionMethodNameLen = 32
	ioStoreChunkIDSize        = 12
)

// DecodeIoStoreToc decodes a .utoc file's header and tables (spec §4.4).
// It never panics on malformed input; truncated or inconsistent tables
// are rejected with a returned error.
func DecodeIoStoreToc(ra io.ReaderAt, size int64, profile *Profile) (*IoStoreToc, error) {
	header := make([]byte, ioStoreTocHeaderSize)
	if _, err := ra.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("%w: iostore toc header: %v", ErrTruncatedIndex, err)
	}

	if !bytes.Equal(header[:16], ioStoreTocMagic[:]) {
		return nil, ErrBadMagic
	}

	cur := NewCursor(bytes.NewReader(header[16:]), int64(len(header)-16))

	version, ok := cur.TryU8()
	if !ok {
		return nil, fmt.Errorf("%w: iostore toc version", ErrTruncatedIndex)
	}
	if !cur.tryAdvance(3) { // reserved/padding
		return nil, fmt.Errorf("%w: iostore toc header padding", ErrTruncatedIndex)
	}

	headerSize, ok := cur.TryU32()
	if !ok {
		return nil, fmt.Errorf("%w: iostore toc header size", ErrTruncatedIndex)
	}
	_ = headerSize

	entryCount, ok := cur.TryU32()
	if !ok {
		return nil, fmt.Errorf("%w: iostore toc entry count", ErrTruncatedIndex)
	}
	compressedBlockEntryCount, ok := cur.TryU32()
	if !ok {
		return nil, fmt.Errorf("%w: iostore toc compression block entry count", ErrTruncatedIndex)
	}
	compressionMethodCount, ok := cur.TryU32()
	if !ok {
		return nil, fmt.Errorf("%w: iostore toc compression method count", ErrTruncatedIndex)
	}
	compressionBlockSize, ok := cur.TryU32()
	if !ok {
		return nil, fmt.Errorf("%w: iostore toc compression block size", ErrTruncatedIndex)
	}
	directoryIndexSize, ok := cur.TryU32()
	if !ok {
		return nil, fmt.Errorf("%w: iostore toc directory index size", ErrTruncatedIndex)
	}
	_, ok = cur.TryU32() // partition count / reserved, version-dependent
	if !ok {
		return nil, fmt.Errorf("%w: iostore toc partition field", ErrTruncatedIndex)
	}

	containerID, ok := cur.TryU64()
	if !ok {
		return nil, fmt.Errorf("%w: iostore toc container id", ErrTruncatedIndex)
	}

	guid, ok := cur.TryGUID()
	if !ok {
		return nil, fmt.Errorf("%w: iostore toc encryption key guid", ErrTruncatedIndex)
	}

	containerFlags, ok := cur.TryU32()
	if !ok {
		return nil, fmt.Errorf("%w: iostore toc container flags", ErrTruncatedIndex)
	}
	const tocFlagEncrypted = 1 << 2

	toc := &IoStoreToc{
		Version:              ioStoreTocVersion(version),
		ContainerID:          containerID,
		EncryptionKeyGUID:    guid,
		IsEncrypted:          containerFlags&tocFlagEncrypted != 0,
		CompressionBlockSize: compressionBlockSize,
	}

	cursorPos := int64(ioStoreTocHeaderSize)

	chunkIDs, n, err := decodeIoStoreChunkIDTable(ra, cursorPos, int(entryCount))
	if err != nil {
		return nil, err
	}
	if err := checkChunkIDsUnique(chunkIDs); err != nil {
		return nil, err
	}
	toc.chunkIDs = chunkIDs
	cursorPos += n

	offsets, n, err := decodeIoStoreOffsetTable(ra, cursorPos, int(entryCount), toc.Version)
	if err != nil {
		return nil, err
	}
	toc.chunkOffsets = offsets
	cursorPos += n

	blocks, n, err := decodeIoStoreCompressionBlockTable(ra, cursorPos, int(compressedBlockEntryCount))
	if err != nil {
		return nil, err
	}
	toc.CompressionBlocks = blocks
	cursorPos += n

	methods, n, err := decodeIoStoreCompressionMethods(ra, cursorPos, int(compressionMethodCount))
	if err != nil {
		return nil, err
	}
	toc.CompressionMethods = methods
	cursorPos += n

	if directoryIndexSize > 0 {
		if err := attachIoStoreDirectoryIndex(ra, cursorPos, int64(directoryIndexSize), toc, profile); err != nil {
			return nil, err
		}
	}

	return toc, nil
}

// checkChunkIDsUnique enforces the TOC invariant that every chunk id is
// unique within the container (spec §3 IoStoreToc invariant); a duplicate
// means the TOC itself is malformed, not a condition a caller can recover
// from past this point.
func checkChunkIDsUnique(ids [][12]byte) error {
	seen := make(map[[12]byte]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %x", ErrDuplicateChunkID, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func decodeIoStoreChunkIDTable(ra io.ReaderAt, offset int64, count int) ([][12]byte, int64, error) {
	buf := make([]byte, count*ioStoreChunkIDSize)
	if len(buf) > 0 {
		if _, err := ra.ReadAt(buf, offset); err != nil {
			return nil, 0, fmt.Errorf("%w: iostore chunk id table: %v", ErrTruncatedIndex, err)
		}
	}

	ids := make([][12]byte, count)
	for i := range ids {
		copy(ids[i][:], buf[i*ioStoreChunkIDSize:(i+1)*ioStoreChunkIDSize])
	}

	return ids, int64(len(buf)), nil
}

// decodeIoStoreOffsetTable decodes the per-chunk offset/length table.
// Versions before ioStoreTocVersionWideOffsets pack {offset:40,
// length:40} into 10 bytes per entry (spec §9 open question, resolved
// by explicit version gate); later versions use two 8-byte fields.
func decodeIoStoreOffsetTable(ra io.ReaderAt, offset int64, count int, version ioStoreTocVersion) ([]ioStoreChunkOffset, int64, error) {
	wide := version >= ioStoreTocVersionWideOffsets
	entrySize := 10
	if wide {
		entrySize = 16
	}

	buf := make([]byte, count*entrySize)
	if len(buf) > 0 {
		if _, err := ra.ReadAt(buf, offset); err != nil {
			return nil, 0, fmt.Errorf("%w: iostore offset table: %v", ErrTruncatedIndex, err)
		}
	}

	out := make([]ioStoreChunkOffset, count)
	for i := 0; i < count; i++ {
		rec := buf[i*entrySize : (i+1)*entrySize]
		if wide {
			out[i] = ioStoreChunkOffset{
				Offset: leU64(rec[0:8]),
				Length: leU64(rec[8:16]),
			}
			continue
		}

		// Packed form: 5 bytes offset (40 bits) followed by 5 bytes
		// length (40 bits), both little-endian.
		var offVal, lenVal uint64
		for b := 0; b < 5; b++ {
			offVal |= uint64(rec[b]) << (8 * b)
			lenVal |= uint64(rec[5+b]) << (8 * b)
		}
		out[i] = ioStoreChunkOffset{Offset: offVal, Length: lenVal}
	}

	return out, int64(len(buf)), nil
}

const ioStoreCompressionBlockEntrySize = 12

// decodeIoStoreCompressionBlockTable decodes the global compression
// block table: 5-byte (40-bit) compressed offset, 3-byte (24-bit)
// compressed size, 3-byte (24-bit) uncompressed size, 1-byte method
// index, 12 bytes total per entry (spec §4.4).
func decodeIoStoreCompressionBlockTable(ra io.ReaderAt, offset int64, count int) ([]ioStoreCompressionBlockEntry, int64, error) {
	buf := make([]byte, count*ioStoreCompressionBlockEntrySize)
	if len(buf) > 0 {
		if _, err := ra.ReadAt(buf, offset); err != nil {
			return nil, 0, fmt.Errorf("%w: iostore compression block table: %v", ErrTruncatedIndex, err)
		}
	}

	out := make([]ioStoreCompressionBlockEntry, count)
	for i := 0; i < count; i++ {
		rec := buf[i*ioStoreCompressionBlockEntrySize : (i+1)*ioStoreCompressionBlockEntrySize]

		var compOffset uint64
		for b := 0; b < 5; b++ {
			compOffset |= uint64(rec[b]) << (8 * b)
		}

		compSize := uint32(rec[5]) | uint32(rec[6])<<8 | uint32(rec[7])<<16
		uncompSize := uint32(rec[8]) | uint32(rec[9])<<8 | uint32(rec[10])<<16
		methodIndex := rec[11]

		out[i] = ioStoreCompressionBlockEntry{
			CompressedOffset: compOffset,
			CompressedSize:   compSize,
			UncompressedSize: uncompSize,
			MethodIndex:      methodIndex,
		}
	}

	return out, int64(len(buf)), nil
}

func decodeIoStoreCompressionMethods(ra io.ReaderAt, offset int64, count int) ([]Method, int64, error) {
	buf := make([]byte, count*ioStoreCompressionMethodNameLen)
	if len(buf) > 0 {
		if _, err := ra.ReadAt(buf, offset); err != nil {
			return nil, 0, fmt.Errorf("%w: iostore compression method table: %v", ErrTruncatedIndex, err)
		}
	}

	out := make([]Method, count)
	for i := range out {
		name := buf[i*ioStoreCompressionMethodNameLen : (i+1)*ioStoreCompressionMethodNameLen]
		out[i] = Method(nullTerminatedASCII(name))
	}

	return out, int64(len(buf)), nil
}

func leU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

// ioStoreDirectoryRecord is one resolved (path, chunk index) pair
// produced by walking the directory index.
type ioStoreDirectoryRecord struct {
	path       string
	chunkIndex int32
}

// attachIoStoreDirectoryIndex reads, optionally decrypts, and walks the
// directory index, storing the resolved path table on the TOC for
// EntriesFromToc to consume.
func attachIoStoreDirectoryIndex(ra io.ReaderAt, offset int64, size int64, toc *IoStoreToc, profile *Profile) error {
	payload, err := readPossiblyEncryptedRegion(ra, offset, uint64(size), toc.IsEncrypted, profile)
	if err != nil {
		return fmt.Errorf("iostore directory index: %w", err)
	}

	records, err := decodeIoStoreDirectoryIndex(payload)
	if err != nil {
		return err
	}

	toc.directoryRecords = records

	return nil
}

// decodeIoStoreDirectoryIndex walks the mount point string followed by a
// recursive directory tree: each directory node has a first-child
// directory index, a next-sibling directory index, and a linked list of
// file entries each carrying a name and a chunk (toc entry) index. The
// tree shape mirrors the PAK directory index's flat path construction
// but is itself hierarchical on disk (spec §4.4 "Directory index").
func decodeIoStoreDirectoryIndex(payload []byte) ([]ioStoreDirectoryRecord, error) {
	cur := NewCursor(bytes.NewReader(payload), int64(len(payload)))

	mountPoint, ok := cur.TryReadString()
	if !ok {
		return nil, fmt.Errorf("%w: iostore directory index mount point", ErrTruncatedIndex)
	}

	dirCount, ok := cur.TryU32()
	if !ok {
		return nil, fmt.Errorf("%w: iostore directory index dir count", ErrTruncatedIndex)
	}

	type dirNode struct {
		name        string
		firstChild  int32
		nextSibling int32
		firstFile   int32
	}

	dirs := make([]dirNode, dirCount)
	for i := range dirs {
		name, ok := cur.TryReadString()
		if !ok {
			return nil, fmt.Errorf("%w: iostore directory node %d name", ErrTruncatedIndex, i)
		}
		firstChild, ok := cur.TryI32()
		if !ok {
			return nil, fmt.Errorf("%w: iostore directory node %d first child", ErrTruncatedIndex, i)
		}
		nextSibling, ok := cur.TryI32()
		if !ok {
			return nil, fmt.Errorf("%w: iostore directory node %d next sibling", ErrTruncatedIndex, i)
		}
		firstFile, ok := cur.TryI32()
		if !ok {
			return nil, fmt.Errorf("%w: iostore directory node %d first file", ErrTruncatedIndex, i)
		}
		dirs[i] = dirNode{name: name, firstChild: firstChild, nextSibling: nextSibling, firstFile: firstFile}
	}

	fileCount, ok := cur.TryU32()
	if !ok {
		return nil, fmt.Errorf("%w: iostore directory index file count", ErrTruncatedIndex)
	}

	type fileNode struct {
		name       string
		nextFile   int32
		chunkIndex int32
	}

	files := make([]fileNode, fileCount)
	for i := range files {
		name, ok := cur.TryReadString()
		if !ok {
			return nil, fmt.Errorf("%w: iostore file node %d name", ErrTruncatedIndex, i)
		}
		nextFile, ok := cur.TryI32()
		if !ok {
			return nil, fmt.Errorf("%w: iostore file node %d next file", ErrTruncatedIndex, i)
		}
		chunkIndex, ok := cur.TryI32()
		if !ok {
			return nil, fmt.Errorf("%w: iostore file node %d chunk index", ErrTruncatedIndex, i)
		}
		files[i] = fileNode{name: name, nextFile: nextFile, chunkIndex: chunkIndex}
	}

	if len(dirs) == 0 {
		return nil, nil
	}

	var out []ioStoreDirectoryRecord
	var walk func(dirIndex int32, prefix string)
	walk = func(dirIndex int32, prefix string) {
		const invalidIndex = -1
		for dirIndex != invalidIndex {
			d := dirs[dirIndex]
			path := joinPakPath(prefix, d.name, "")

			for fi := d.firstFile; fi != invalidIndex; fi = files[fi].nextFile {
				f := files[fi]
				out = append(out, ioStoreDirectoryRecord{
					path:       joinPakPath(path, "", f.name),
					chunkIndex: f.chunkIndex,
				})
			}

			if d.firstChild != invalidIndex {
				walk(d.firstChild, path)
			}

			dirIndex = d.nextSibling
		}
	}
	walk(0, mountPoint)

	return out, nil
}
