// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import (
	"bytes"
	"fmt"
	"io"
)

// ScriptObjectEntry is one row of the global script-object index carried
// in the engine's global.utoc container (spec §4.7 item 4): a stable,
// cross-container name-to-object-index mapping used to resolve imports
// that reference engine or plugin script objects rather than a
// packaged asset.
type ScriptObjectEntry struct {
	Name       string
	GlobalIndex int32
	OuterIndex  int32
	CDOIndex    int32
}

// DecodeScriptObjects reads the script-object name map and index table
// out of a global.utoc's container-header chunk. It is a best-effort
// reader: a mount that has no global.utoc, or one whose script-object
// chunk is absent, simply has no script-object index (spec §6 "global
// script object index is attached on a best-effort basis").
func DecodeScriptObjects(data []byte) ([]ScriptObjectEntry, error) {
	cur := NewCursor(bytes.NewReader(data), int64(len(data)))

	nameCount, ok := cur.TryU32()
	if !ok {
		return nil, fmt.Errorf("%w: script object name count", ErrTruncatedIndex)
	}

	names := make([]string, nameCount)
	for i := range names {
		name, ok := cur.TryReadString()
		if !ok {
			return nil, fmt.Errorf("%w: script object name %d", ErrTruncatedIndex, i)
		}
		names[i] = name
	}

	entryCount, ok := cur.TryU32()
	if !ok {
		return nil, fmt.Errorf("%w: script object entry count", ErrTruncatedIndex)
	}

	entries := make([]ScriptObjectEntry, 0, entryCount)
	for i := uint32(0); i < entryCount; i++ {
		nameIndex, ok := cur.TryI32()
		if !ok {
			return nil, fmt.Errorf("%w: script object entry %d name index", ErrTruncatedIndex, i)
		}
		globalIndex, ok := cur.TryI32()
		if !ok {
			return nil, fmt.Errorf("%w: script object entry %d global index", ErrTruncatedIndex, i)
		}
		outerIndex, ok := cur.TryI32()
		if !ok {
			return nil, fmt.Errorf("%w: script object entry %d outer index", ErrTruncatedIndex, i)
		}
		cdoIndex, ok := cur.TryI32()
		if !ok {
			return nil, fmt.Errorf("%w: script object entry %d cdo index", ErrTruncatedIndex, i)
		}

		if nameIndex < 0 || int(nameIndex) >= len(names) {
			continue // malformed single record: skip, keep the rest readable
		}

		entries = append(entries, ScriptObjectEntry{
			Name:        names[nameIndex],
			GlobalIndex: globalIndex,
			OuterIndex:  outerIndex,
			CDOIndex:    cdoIndex,
		})
	}

	return entries, nil
}

// ReadGlobalScriptObjects opens a global.utoc/.ucas pair and decodes its
// script-object index. A global.utoc carries no directory index of its
// own (it has no packaged files, only engine-wide metadata chunks), so
// this reads the container header chunk directly rather than going
// through EntriesFromToc.
func ReadGlobalScriptObjects(tocPath, casPath string, profile *Profile) ([]ScriptObjectEntry, error) {
	tocContainer, err := OpenMountedContainer(tocPath)
	if err != nil {
		return nil, err
	}
	defer tocContainer.Close()

	toc, err := DecodeIoStoreToc(tocContainer, tocContainer.Size(), profile)
	if err != nil {
		return nil, fmt.Errorf("global script object toc: %w", err)
	}

	if len(toc.CompressionBlocks) == 0 {
		return nil, fmt.Errorf("%w: global.utoc has no chunks", ErrUnsupportedLayout)
	}

	casContainer, err := OpenMountedContainer(casPath)
	if err != nil {
		return nil, err
	}
	defer casContainer.Close()

	// The script-object chunk is conventionally the first chunk in
	// global.utoc; decode it the same way any other single-chunk,
	// block-aligned region would be read.
	block := toc.CompressionBlocks[0]
	raw := make([]byte, block.CompressedSize)
	if err := casContainer.Read(int64(block.CompressedOffset), raw); err != nil {
		return nil, fmt.Errorf("global script object chunk: %w", err)
	}

	if toc.IsEncrypted {
		if profile.AESKey == nil {
			return nil, ErrBlockEncryptedNoKey
		}
		if err := profile.Decryptor.DecryptInPlace(raw, *profile.AESKey); err != nil {
			return nil, fmt.Errorf("decrypt global script object chunk: %w", err)
		}
	}

	method := toc.methodName(block.MethodIndex)
	decoded := make([]byte, block.UncompressedSize)
	if err := profile.Decompressor.Decompress(decoded, raw, method); err != nil {
		return nil, fmt.Errorf("decompress global script object chunk: %w", err)
	}

	return DecodeScriptObjects(decoded)
}

var _ io.ReaderAt = (*MountedContainer)(nil)
