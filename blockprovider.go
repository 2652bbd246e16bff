// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import "fmt"

// CompressionBlock is a single compression block resolved against its
// entry, in the entry's own logical coordinate space (spec §3).
type CompressionBlock struct {
	CompressedOffset   uint64
	CompressedSize     uint64
	UncompressedOffset uint64
	UncompressedSize   uint64
	Method             Method
}

// IBlockProvider maps an entry's logical positions to physical
// compression blocks and knows how to read each block's raw bytes from
// its mounted container (spec §4.5). PAK, IO Store, and Mock (test-only)
// variants implement it.
type IBlockProvider interface {
	UncompressedSize() uint64
	BlockCount() int
	BlockSize() uint32
	CompressionMethod() Method
	IsEncrypted() bool
	FirstBlockOffset() uint32
	GetBlock(i int) CompressionBlock
	GetBlockReadSize(i int) uint32
	GetBlockCompressionMethod(i int) Method
	ReadBlockRaw(i int, dst []byte) error
}

// pakBlockProvider implements IBlockProvider over a PakEntry. Its block
// list is fully precomputed at construction time from the three cases in
// spec §4.3 (uncompressed, single unencrypted block, general list).
type pakBlockProvider struct {
	entry     *PakEntry
	container *MountedContainer
	blocks    []CompressionBlock
}

// NewPakBlockProvider builds the block provider for one PAK entry.
func NewPakBlockProvider(entry *PakEntry, container *MountedContainer) IBlockProvider {
	return &pakBlockProvider{
		entry:     entry,
		container: container,
		blocks:    derivePakBlocks(entry),
	}
}

func derivePakBlocks(entry *PakEntry) []CompressionBlock {
	if entry.CompressionMethod == MethodNone {
		return []CompressionBlock{{
			CompressedOffset:   entry.Offset() + pakEntryHeaderSize,
			CompressedSize:     entry.Size(),
			UncompressedOffset: 0,
			UncompressedSize:   entry.Size(),
			Method:             MethodNone,
		}}
	}

	if len(entry.CompressionBlocks) == 0 {
		// The on-disk per-entry header still reserves a single block-size
		// list slot (4 + 16*1 bytes) even though the index record omits it
		// (spec §4.3 "single unencrypted compressed block"); the compressed
		// payload starts after that reserved space, not right after the
		// bare 53-byte header.
		headerSize := uint64(pakEntryHeaderSize) + 4 + 16
		return []CompressionBlock{{
			CompressedOffset:   entry.Offset() + headerSize,
			CompressedSize:     entry.CompressedSize,
			UncompressedOffset: 0,
			UncompressedSize:   entry.Size(),
			Method:             entry.CompressionMethod,
		}}
	}

	blocks := make([]CompressionBlock, len(entry.CompressionBlocks))
	var uncOffset uint64
	for i, raw := range entry.CompressionBlocks {
		uncSize := uint64(entry.CompressionBlockSize)
		if i == len(entry.CompressionBlocks)-1 {
			uncSize = entry.Size() - uncOffset
		}

		blocks[i] = CompressionBlock{
			CompressedOffset:   entry.Offset() + uint64(raw.Start),
			CompressedSize:     uint64(raw.End - raw.Start),
			UncompressedOffset: uncOffset,
			UncompressedSize:   uncSize,
			Method:             entry.CompressionMethod,
		}

		uncOffset += uncSize
	}

	return blocks
}

func (p *pakBlockProvider) UncompressedSize() uint64     { return p.entry.Size() }
func (p *pakBlockProvider) BlockCount() int               { return len(p.blocks) }
func (p *pakBlockProvider) BlockSize() uint32             { return p.entry.CompressionBlockSize }
func (p *pakBlockProvider) CompressionMethod() Method     { return p.entry.CompressionMethod }
func (p *pakBlockProvider) IsEncrypted() bool             { return p.entry.IsEncrypted }
func (p *pakBlockProvider) FirstBlockOffset() uint32      { return 0 }
func (p *pakBlockProvider) GetBlock(i int) CompressionBlock { return p.blocks[i] }

func (p *pakBlockProvider) GetBlockReadSize(i int) uint32 {
	size := p.blocks[i].CompressedSize
	if p.entry.IsEncrypted {
		size = align16(size)
	}
	return uint32(size) //nolint:gosec // pak blocks bounded under 4 GiB
}

func (p *pakBlockProvider) GetBlockCompressionMethod(i int) Method {
	return p.blocks[i].Method
}

func (p *pakBlockProvider) ReadBlockRaw(i int, dst []byte) error {
	b := p.blocks[i]
	readSize := p.GetBlockReadSize(i)
	if uint32(len(dst)) < readSize {
		return fmt.Errorf("pak block %d: destination buffer too small (%d < %d)", i, len(dst), readSize)
	}

	return p.container.Read(int64(b.CompressedOffset), dst[:readSize])
}

// ioStoreBlockProvider implements IBlockProvider over an IoStoreEntry.
// Its block list is precomputed from the chunk's slice of the TOC's
// global compression-block table (spec §4.4).
type ioStoreBlockProvider struct {
	entry     *IoStoreEntry
	container *MountedContainer
	blocks    []CompressionBlock
}

// NewIoStoreBlockProvider builds the block provider for one IO Store chunk.
func NewIoStoreBlockProvider(entry *IoStoreEntry, container *MountedContainer) IBlockProvider {
	return &ioStoreBlockProvider{
		entry:     entry,
		container: container,
		blocks:    deriveIoStoreBlocks(entry),
	}
}

func deriveIoStoreBlocks(entry *IoStoreEntry) []CompressionBlock {
	toc := entry.toc
	blocks := make([]CompressionBlock, entry.blockCount)

	var uncOffset uint64
	for i := uint32(0); i < entry.blockCount; i++ {
		global := toc.CompressionBlocks[entry.blockStart+i]

		uncSize := uint64(toc.CompressionBlockSize)
		if i == 0 {
			uncSize -= uint64(entry.firstBlockOffset)
		}
		if i == entry.blockCount-1 {
			uncSize = entry.Size() - uncOffset
		}

		blocks[i] = CompressionBlock{
			CompressedOffset:   global.CompressedOffset,
			CompressedSize:     uint64(global.CompressedSize),
			UncompressedOffset: uncOffset,
			UncompressedSize:   uncSize,
			Method:             toc.methodName(global.MethodIndex),
		}

		uncOffset += uncSize
	}

	return blocks
}

func (p *ioStoreBlockProvider) UncompressedSize() uint64 { return p.entry.Size() }
func (p *ioStoreBlockProvider) BlockCount() int           { return len(p.blocks) }
func (p *ioStoreBlockProvider) BlockSize() uint32         { return p.entry.toc.CompressionBlockSize }

func (p *ioStoreBlockProvider) CompressionMethod() Method {
	if len(p.blocks) == 0 {
		return MethodNone
	}
	return p.blocks[0].Method
}

func (p *ioStoreBlockProvider) IsEncrypted() bool        { return p.entry.toc.IsEncrypted }
func (p *ioStoreBlockProvider) FirstBlockOffset() uint32 { return p.entry.firstBlockOffset }

func (p *ioStoreBlockProvider) GetBlock(i int) CompressionBlock { return p.blocks[i] }

func (p *ioStoreBlockProvider) GetBlockReadSize(i int) uint32 {
	size := p.blocks[i].CompressedSize
	if p.entry.toc.IsEncrypted {
		size = align16(size)
	}
	return uint32(size) //nolint:gosec // iostore blocks bounded under 4 GiB
}

func (p *ioStoreBlockProvider) GetBlockCompressionMethod(i int) Method {
	return p.blocks[i].Method
}

func (p *ioStoreBlockProvider) ReadBlockRaw(i int, dst []byte) error {
	b := p.blocks[i]
	readSize := p.GetBlockReadSize(i)
	if uint32(len(dst)) < readSize {
		return fmt.Errorf("iostore block %d: destination buffer too small (%d < %d)", i, len(dst), readSize)
	}

	return p.container.Read(int64(b.CompressedOffset), dst[:readSize])
}

// mockBlockProvider is a synthetic, in-memory IBlockProvider used by
// tests to exercise AssetStream without a real container (spec §4.5
// names Mock explicitly as a third variant).
type mockBlockProvider struct {
	blocks       []CompressionBlock
	raw          [][]byte // raw (possibly encrypted/compressed) bytes per block
	method       Method
	encrypted    bool
	blockSize    uint32
	firstOffset  uint32
}

// NewMockBlockProvider builds a provider directly from precomputed
// blocks and their raw bytes; encrypted is whether ReadBlockRaw's output
// still needs the profile's decryptor applied.
func NewMockBlockProvider(blocks []CompressionBlock, raw [][]byte, method Method, encrypted bool, blockSize uint32, firstOffset uint32) IBlockProvider {
	return &mockBlockProvider{
		blocks:      blocks,
		raw:         raw,
		method:      method,
		encrypted:   encrypted,
		blockSize:   blockSize,
		firstOffset: firstOffset,
	}
}

func (m *mockBlockProvider) UncompressedSize() uint64 {
	if len(m.blocks) == 0 {
		return 0
	}
	last := m.blocks[len(m.blocks)-1]
	return last.UncompressedOffset + last.UncompressedSize
}

func (m *mockBlockProvider) BlockCount() int               { return len(m.blocks) }
func (m *mockBlockProvider) BlockSize() uint32             { return m.blockSize }
func (m *mockBlockProvider) CompressionMethod() Method     { return m.method }
func (m *mockBlockProvider) IsEncrypted() bool             { return m.encrypted }
func (m *mockBlockProvider) FirstBlockOffset() uint32      { return m.firstOffset }
func (m *mockBlockProvider) GetBlock(i int) CompressionBlock { return m.blocks[i] }

func (m *mockBlockProvider) GetBlockReadSize(i int) uint32 {
	size := m.blocks[i].CompressedSize
	if m.encrypted {
		size = align16(size)
	}
	return uint32(size) //nolint:gosec // mock blocks are test-sized
}

func (m *mockBlockProvider) GetBlockCompressionMethod(i int) Method { return m.blocks[i].Method }

func (m *mockBlockProvider) ReadBlockRaw(i int, dst []byte) error {
	src := m.raw[i]
	if len(dst) < len(src) {
		return fmt.Errorf("mock block %d: destination buffer too small (%d < %d)", i, len(dst), len(src))
	}
	copy(dst, src)
	return nil
}
