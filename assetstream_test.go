// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import (
	"bytes"
	"io"
	"testing"
)

func TestAssetStreamReadsAcrossBlockBoundary(t *testing.T) {
	blockSize := uint32(8)
	block0 := []byte("ABCDEFGH")
	block1 := []byte("IJKLMNOP")

	blocks := []CompressionBlock{
		{CompressedOffset: 0, CompressedSize: 8, UncompressedOffset: 0, UncompressedSize: 8, Method: MethodNone},
		{CompressedOffset: 8, CompressedSize: 8, UncompressedOffset: 8, UncompressedSize: 8, Method: MethodNone},
	}
	provider := NewMockBlockProvider(blocks, [][]byte{block0, block1}, MethodNone, false, blockSize, 0)
	stream := NewAssetStream(provider, DefaultProfile(nil))

	got := make([]byte, 10)
	n, err := io.ReadFull(stream, got)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 10 {
		t.Fatalf("n = %d, want 10", n)
	}

	want := []byte("ABCDEFGHIJ")
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAssetStreamFirstBlockOffset(t *testing.T) {
	blockSize := uint32(16)
	rawBlock0 := []byte("0123456789ABCDEF") // 16 raw bytes; logical data starts at byte 8
	rawBlock1 := []byte("ghijklmnopqrstuv")

	blocks := []CompressionBlock{
		{CompressedOffset: 0, CompressedSize: 16, UncompressedOffset: 0, UncompressedSize: 8, Method: MethodNone},
		{CompressedOffset: 16, CompressedSize: 16, UncompressedOffset: 8, UncompressedSize: 16, Method: MethodNone},
	}
	provider := NewMockBlockProvider(blocks, [][]byte{rawBlock0, rawBlock1}, MethodNone, false, blockSize, 8)
	stream := NewAssetStream(provider, DefaultProfile(nil))

	got := make([]byte, 12)
	if _, err := io.ReadFull(stream, got); err != nil {
		t.Fatalf("read: %v", err)
	}

	want := []byte("89ABCDEFghij")
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAssetStreamSeekIsPositionOnly(t *testing.T) {
	block0 := []byte("hello world!!!!!") // 16 bytes
	blocks := []CompressionBlock{
		{CompressedOffset: 0, CompressedSize: 16, UncompressedOffset: 0, UncompressedSize: 16, Method: MethodNone},
	}
	provider := NewMockBlockProvider(blocks, [][]byte{block0}, MethodNone, false, 16, 0)
	stream := NewAssetStream(provider, DefaultProfile(nil))

	if _, err := stream.Seek(6, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}

	got := make([]byte, 5)
	if _, err := io.ReadFull(stream, got); err != nil {
		t.Fatalf("read after seek: %v", err)
	}
	if string(got) != "world" {
		t.Fatalf("got %q, want %q", got, "world")
	}

	if stream.Size() != 16 {
		t.Fatalf("Size() = %d, want 16 (seek must not resize the stream)", stream.Size())
	}

	if _, err := stream.Seek(0, io.SeekEnd); err != nil {
		t.Fatalf("seek end: %v", err)
	}
	n, err := stream.Read(make([]byte, 1))
	if n != 0 || err != io.EOF {
		t.Fatalf("read at end: n=%d err=%v, want 0, io.EOF", n, err)
	}
}

func TestAssetStreamSeekPastEndPanics(t *testing.T) {
	block0 := []byte("hello world!!!!!") // 16 bytes
	blocks := []CompressionBlock{
		{CompressedOffset: 0, CompressedSize: 16, UncompressedOffset: 0, UncompressedSize: 16, Method: MethodNone},
	}
	provider := NewMockBlockProvider(blocks, [][]byte{block0}, MethodNone, false, 16, 0)
	stream := NewAssetStream(provider, DefaultProfile(nil))

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected a panic seeking past the entry's size")
		}
	}()
	_, _ = stream.Seek(17, io.SeekStart)
}

func TestAssetStreamSeekNegativePanics(t *testing.T) {
	block0 := []byte("hello world!!!!!")
	blocks := []CompressionBlock{
		{CompressedOffset: 0, CompressedSize: 16, UncompressedOffset: 0, UncompressedSize: 16, Method: MethodNone},
	}
	provider := NewMockBlockProvider(blocks, [][]byte{block0}, MethodNone, false, 16, 0)
	stream := NewAssetStream(provider, DefaultProfile(nil))

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected a panic seeking to a negative position")
		}
	}()
	_, _ = stream.Seek(-1, io.SeekStart)
}

func TestAssetStreamReadAfterClosePanics(t *testing.T) {
	block0 := []byte("hello world!!!!!")
	blocks := []CompressionBlock{
		{CompressedOffset: 0, CompressedSize: 16, UncompressedOffset: 0, UncompressedSize: 16, Method: MethodNone},
	}
	provider := NewMockBlockProvider(blocks, [][]byte{block0}, MethodNone, false, 16, 0)
	stream := NewAssetStream(provider, DefaultProfile(nil))

	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected a panic reading a closed asset stream")
		}
	}()
	_, _ = stream.Read(make([]byte, 1))
}

func TestAssetStreamSeekAfterClosePanics(t *testing.T) {
	block0 := []byte("hello world!!!!!")
	blocks := []CompressionBlock{
		{CompressedOffset: 0, CompressedSize: 16, UncompressedOffset: 0, UncompressedSize: 16, Method: MethodNone},
	}
	provider := NewMockBlockProvider(blocks, [][]byte{block0}, MethodNone, false, 16, 0)
	stream := NewAssetStream(provider, DefaultProfile(nil))

	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected a panic seeking a closed asset stream")
		}
	}()
	_, _ = stream.Seek(0, io.SeekStart)
}

func TestAssetStreamDecompressesZlibBlock(t *testing.T) {
	plain := []byte("the quick brown fox jumps over the lazy dog")

	var compressed bytes.Buffer
	zw := newZlibWriterForTest(&compressed)
	_, _ = zw.Write(plain)
	_ = zw.Close()

	blocks := []CompressionBlock{
		{CompressedOffset: 0, CompressedSize: uint64(compressed.Len()), UncompressedOffset: 0, UncompressedSize: uint64(len(plain)), Method: MethodZlib},
	}
	provider := NewMockBlockProvider(blocks, [][]byte{compressed.Bytes()}, MethodZlib, false, uint32(len(plain)), 0)
	stream := NewAssetStream(provider, DefaultProfile(nil))

	got := make([]byte, len(plain))
	if _, err := io.ReadFull(stream, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("got %q, want %q", got, plain)
	}
}
