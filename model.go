// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import "github.com/google/uuid"

// Method identifies a compression codec by its exact on-disk ASCII name
// ("Zlib", "Oodle", "Zstd", or any other name a container declares).
// MethodNone is the empty string: index 0 in a PAK compression-method
// table, or an explicit "no compression" marker in an IO Store block.
type Method string

// Well-known compression methods. The decompressor is responsible for
// recognizing any other ASCII name a container supplies.
const (
	MethodNone Method = ""
	MethodZlib Method = "Zlib"
	MethodZstd Method = "Zstd"
	MethodOodle Method = "Oodle"
)

// EntryKind discriminates the one-level AssetEntry variant (spec §9:
// "one level of variant is sufficient").
type EntryKind uint8

const (
	EntryKindPak EntryKind = iota
	EntryKindIoStore
)

// String implements fmt.Stringer for diagnostic output.
func (k EntryKind) String() string {
	switch k {
	case EntryKindPak:
		return "pak"
	case EntryKindIoStore:
		return "iostore"
	default:
		return "unknown"
	}
}

// IAssetEntry is the common, immutable projection shared by PakEntry and
// IoStoreEntry. It identifies one logical file inside one mounted
// container.
type IAssetEntry interface {
	// Path is the virtual, slash-separated path of the entry.
	Path() string
	// ContainerPath is the absolute path of the backing data file
	// (the .pak, or the .ucas paired with an IO Store .utoc).
	ContainerPath() string
	// Offset is the absolute byte position of the entry's region inside
	// the container file.
	Offset() uint64
	// Size is the uncompressed length of the entry in bytes.
	Size() uint64
	// Kind reports which concrete variant this entry is.
	Kind() EntryKind
}

// entryBase is the common base projection embedded by both entry variants.
type entryBase struct {
	path          string
	containerPath string
	offset        uint64
	size          uint64
}

func (e entryBase) Path() string          { return e.path }
func (e entryBase) ContainerPath() string  { return e.containerPath }
func (e entryBase) Offset() uint64        { return e.offset }
func (e entryBase) Size() uint64          { return e.size }

// PakBlockRange is one entry's compression-block byte range, stored
// relative to the entry's on-disk region (spec §3 PakEntry.compression_blocks).
type PakBlockRange struct {
	Start uint32
	End   uint32
}

// PakEntry is an AssetEntry backed by a legacy PAK archive.
type PakEntry struct {
	entryBase

	CompressedSize         uint64
	IsEncrypted            bool
	CompressionMethod      Method
	CompressionBlockSize   uint32
	CompressionBlocks      []PakBlockRange
}

// Kind implements IAssetEntry.
func (PakEntry) Kind() EntryKind { return EntryKindPak }

// IsCompressed reports whether the entry has a non-trivial compression method.
func (e *PakEntry) IsCompressed() bool { return e.CompressionMethod != MethodNone }

// IoStoreEntry is an AssetEntry backed by an IO Store TOC/data pair.
// It holds a reference into its owning TOC's global compression-block
// table rather than duplicating block data per entry (spec §3
// "reference to the containing TOC's global compression-block table").
type IoStoreEntry struct {
	entryBase

	toc        *IoStoreToc
	blockStart uint32
	blockCount uint32

	// firstBlockOffset is where this chunk's data begins inside its first
	// compression block; nonzero only when the chunk is not block-aligned
	// (spec §4.5 first_block_offset).
	firstBlockOffset uint32
}

// Kind implements IAssetEntry.
func (IoStoreEntry) Kind() EntryKind { return EntryKindIoStore }

// PakInfo is the decoded PAK trailer (container header).
type PakInfo struct {
	// Magic is the validated trailer magic (0x5A6F12E1 for the standard
	// footer, or a game-specific value for a custom trailer variant).
	Magic uint32
	// Version is the PAK format version.
	Version uint32
	// EncryptionKeyGUID identifies which key decrypts this container's
	// encrypted index and blocks.
	EncryptionKeyGUID uuid.UUID
	// IsIndexEncrypted reports whether the index payload is AES-encrypted.
	IsIndexEncrypted bool
	// IndexOffset is the absolute offset of the index payload.
	IndexOffset uint64
	// IndexSize is the plaintext length of the index payload.
	IndexSize uint64
	// IndexHash is the 20-byte index hash from the trailer (unchecked).
	IndexHash [20]byte
	// CompressionMethods holds up to 5 method names; empty slots are "".
	// Index 0 (implicit, not stored here) always means MethodNone; index
	// k (1-based) in an entry's flag word maps to CompressionMethods[k-1].
	CompressionMethods [5]Method
}

// trailerCandidateSizes are the known PAK trailer lengths, probed in
// order (spec §4.3). A future game version may add a new size; an
// unrecognized size causes the container to be rejected, not silently
// mis-parsed.
var trailerCandidateSizes = []int{222, 221, 189, 61}

// pakMagic is the standard PAK trailer magic.
const pakMagic = 0x5A6F12E1
