// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	kzlib "github.com/klauspost/compress/zlib"
)

func writeTestString(buf *bytes.Buffer, s string) {
	if s == "" {
		_ = binary.Write(buf, binary.LittleEndian, int32(0))
		return
	}
	_ = binary.Write(buf, binary.LittleEndian, int32(len(s)+1))
	buf.WriteString(s)
	buf.WriteByte(0)
}

// buildSyntheticPak assembles a minimal, hand-crafted PAK container: one
// uncompressed entry and one zlib-compressed entry, a directory index,
// a compact encoded-entries block, and a standard 221-byte trailer
// (full 5-slot compression-method table). It mirrors the on-disk layout
// decodePakEntryFields / decodePakDirectoryIndex / parseStandardPakTrailer
// expect, without depending on any of them to construct itself.
func buildSyntheticPak(t *testing.T) (data []byte, plainEntry1 []byte) {
	t.Helper()

	var file bytes.Buffer

	uncompressedData := []byte("Hello, uread2!")
	entry0Offset := int64(file.Len())
	file.Write(make([]byte, pakEntryHeaderSize)) // dummy on-disk per-entry header
	file.Write(uncompressedData)

	plain := []byte("the quick brown fox jumps over the lazy dog, the quick brown fox jumps again")
	var compressed bytes.Buffer
	zw := kzlib.NewWriter(&compressed)
	_, _ = zw.Write(plain)
	_ = zw.Close()

	entry1Offset := int64(file.Len())
	// The on-disk header for a single-unencrypted-compressed-block entry
	// still reserves a one-slot block-size list (4 + 16 bytes) even though
	// the index record omits it; the compressed payload starts after that
	// reserved space (spec §4.3), not right after the bare 53-byte header.
	file.Write(make([]byte, pakEntryHeaderSize+4+16))
	file.Write(compressed.Bytes())

	// Compact encoded-entries block.
	var encoded bytes.Buffer
	rec0Offset := int32(encoded.Len())
	flags0 := uint32(0xE0000000) | (1 << 6) // all-32bit offsets, method index 0, block count 1
	_ = binary.Write(&encoded, binary.LittleEndian, flags0)
	_ = binary.Write(&encoded, binary.LittleEndian, uint32(entry0Offset))
	_ = binary.Write(&encoded, binary.LittleEndian, uint32(len(uncompressedData)))

	rec1Offset := int32(encoded.Len())
	flags1 := uint32(0xE0000000) | (uint32(1) << 23) | (1 << 6) // method index 1 (Zlib)
	_ = binary.Write(&encoded, binary.LittleEndian, flags1)
	_ = binary.Write(&encoded, binary.LittleEndian, uint32(entry1Offset))
	_ = binary.Write(&encoded, binary.LittleEndian, uint32(len(plain)))
	_ = binary.Write(&encoded, binary.LittleEndian, uint32(compressed.Len()))

	// Directory index.
	var dirIndex bytes.Buffer
	_ = binary.Write(&dirIndex, binary.LittleEndian, int32(1)) // dirCount
	writeTestString(&dirIndex, "")                             // root directory name
	_ = binary.Write(&dirIndex, binary.LittleEndian, int32(2)) // fileCount
	writeTestString(&dirIndex, "hello.txt")
	_ = binary.Write(&dirIndex, binary.LittleEndian, rec0Offset)
	writeTestString(&dirIndex, "data.bin")
	_ = binary.Write(&dirIndex, binary.LittleEndian, rec1Offset)

	dirIndexOffset := int64(file.Len())
	file.Write(dirIndex.Bytes())
	dirIndexSize := int64(dirIndex.Len())

	// Main index payload.
	var index bytes.Buffer
	writeTestString(&index, "")                                // mount point
	_ = binary.Write(&index, binary.LittleEndian, int32(2))    // entry count
	index.Write(make([]byte, 8))                               // path hash seed
	_ = binary.Write(&index, binary.LittleEndian, int32(0))    // has_path_hash_index
	_ = binary.Write(&index, binary.LittleEndian, int32(1))    // has_full_directory_index
	_ = binary.Write(&index, binary.LittleEndian, dirIndexOffset)
	_ = binary.Write(&index, binary.LittleEndian, dirIndexSize)
	index.Write(make([]byte, 20))                               // directory index hash
	_ = binary.Write(&index, binary.LittleEndian, int32(encoded.Len()))
	index.Write(encoded.Bytes())

	indexOffset := int64(file.Len())
	file.Write(index.Bytes())
	indexSize := int64(index.Len())

	// Trailer (221 bytes: guid + encrypted byte + magic + version + offsets + hash + 5 method slots).
	var trailer bytes.Buffer
	trailer.Write(make([]byte, 16)) // guid
	trailer.WriteByte(0)            // not encrypted
	_ = binary.Write(&trailer, binary.LittleEndian, uint32(pakMagic))
	_ = binary.Write(&trailer, binary.LittleEndian, uint32(8)) // version
	_ = binary.Write(&trailer, binary.LittleEndian, indexOffset)
	_ = binary.Write(&trailer, binary.LittleEndian, indexSize)
	trailer.Write(make([]byte, 20)) // index hash

	methodNames := [5]string{"Zlib", "", "", "", ""}
	for _, name := range methodNames {
		slot := make([]byte, 32)
		copy(slot, name)
		trailer.Write(slot)
	}

	if trailer.Len() != 221 {
		t.Fatalf("constructed trailer is %d bytes, want 221", trailer.Len())
	}

	file.Write(trailer.Bytes())

	return file.Bytes(), plain
}

type byteReaderAt struct{ b []byte }

func (r byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.b)) {
		return 0, io.EOF
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func TestDecodePakIndexAndReadEntries(t *testing.T) {
	data, plain := buildSyntheticPak(t)
	ra := byteReaderAt{data}

	profile := DefaultProfile(nil)
	entries, err := DecodePakIndex(ra, int64(len(data)), "/test.pak", profile)
	if err != nil {
		t.Fatalf("DecodePakIndex: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	byPath := map[string]*PakEntry{}
	for _, e := range entries {
		byPath[e.Path()] = e
	}

	helloEntry, ok := byPath["hello.txt"]
	if !ok {
		t.Fatalf("missing hello.txt entry")
	}
	if helloEntry.CompressionMethod != MethodNone {
		t.Fatalf("hello.txt method = %q, want none", helloEntry.CompressionMethod)
	}

	dataEntry, ok := byPath["data.bin"]
	if !ok {
		t.Fatalf("missing data.bin entry")
	}
	if dataEntry.CompressionMethod != MethodZlib {
		t.Fatalf("data.bin method = %q, want Zlib", dataEntry.CompressionMethod)
	}

	// Exercise the block provider + asset stream directly against the
	// in-memory container bytes via a minimal io.ReaderAt shim.
	readerContainer := &memoryContainer{data: data}

	got := make([]byte, helloEntry.Size())
	if err := readAtEntry(readerContainer, helloEntry, got); err != nil {
		t.Fatalf("read hello.txt: %v", err)
	}
	if string(got) != "Hello, uread2!" {
		t.Fatalf("hello.txt content = %q", got)
	}

	got2 := make([]byte, dataEntry.Size())
	if err := readAtEntry(readerContainer, dataEntry, got2); err != nil {
		t.Fatalf("read data.bin: %v", err)
	}
	if !bytes.Equal(got2, plain) {
		t.Fatalf("data.bin content mismatch")
	}
}

// memoryContainer adapts a byte slice to the io.ReaderAt surface
// pakBlockProvider reads through, without requiring a real *os.File.
type memoryContainer struct {
	data []byte
}

func (m *memoryContainer) ReadAt(p []byte, off int64) (int, error) {
	return byteReaderAt{m.data}.ReadAt(p, off)
}

func (m *memoryContainer) Read(offset int64, buf []byte) error {
	n, err := m.ReadAt(buf, offset)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return ErrShortRead
	}
	return nil
}

func readAtEntry(mc *memoryContainer, entry *PakEntry, dst []byte) error {
	blocks := derivePakBlocks(entry)
	provider := &pakReaderAtProvider{blocks: blocks, mc: mc, entry: entry}
	stream := NewAssetStream(provider, DefaultProfile(nil))
	_, err := io.ReadFull(stream, dst)
	return err
}

// pakReaderAtProvider is a test-only IBlockProvider that reads raw block
// bytes from a plain memoryContainer (no *MountedContainer required).
type pakReaderAtProvider struct {
	blocks []CompressionBlock
	mc     *memoryContainer
	entry  *PakEntry
}

func (p *pakReaderAtProvider) UncompressedSize() uint64 { return p.entry.Size() }
func (p *pakReaderAtProvider) BlockCount() int           { return len(p.blocks) }
func (p *pakReaderAtProvider) BlockSize() uint32         { return p.entry.CompressionBlockSize }
func (p *pakReaderAtProvider) CompressionMethod() Method { return p.entry.CompressionMethod }
func (p *pakReaderAtProvider) IsEncrypted() bool         { return p.entry.IsEncrypted }
func (p *pakReaderAtProvider) FirstBlockOffset() uint32  { return 0 }
func (p *pakReaderAtProvider) GetBlock(i int) CompressionBlock { return p.blocks[i] }
func (p *pakReaderAtProvider) GetBlockReadSize(i int) uint32 {
	return uint32(p.blocks[i].CompressedSize) //nolint:gosec // test fixture sizes are tiny
}
func (p *pakReaderAtProvider) GetBlockCompressionMethod(i int) Method { return p.blocks[i].Method }
func (p *pakReaderAtProvider) ReadBlockRaw(i int, dst []byte) error {
	b := p.blocks[i]
	return p.mc.Read(int64(b.CompressedOffset), dst[:p.GetBlockReadSize(i)])
}
