// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import "fmt"

// EntriesFromToc resolves a decoded TOC's directory index into concrete
// IoStoreEntry values, computing each chunk's block range from its
// logical offset/length and the TOC's uniform compression block size
// (spec §4.4 final paragraph: "Directory index walk produces
// (container_path, path, offset, size) tuples").
func EntriesFromToc(toc *IoStoreToc, containerPath string) ([]*IoStoreEntry, error) {
	if toc.CompressionBlockSize == 0 {
		return nil, fmt.Errorf("%w: iostore toc has zero compression block size", ErrUnsupportedLayout)
	}

	entries := make([]*IoStoreEntry, 0, len(toc.directoryRecords))
	for _, rec := range toc.directoryRecords {
		if rec.chunkIndex < 0 || int(rec.chunkIndex) >= len(toc.chunkOffsets) {
			continue // malformed single record: skip, keep the rest readable
		}

		co := toc.chunkOffsets[rec.chunkIndex]
		if co.Length == 0 {
			entries = append(entries, &IoStoreEntry{
				entryBase: entryBase{
					path:          rec.path,
					containerPath: containerPath,
					offset:        0,
					size:          0,
				},
				toc:              toc,
				blockStart:       0,
				blockCount:       0,
				firstBlockOffset: 0,
			})
			continue
		}

		blockSize := uint64(toc.CompressionBlockSize)
		blockStart := co.Offset / blockSize
		firstBlockOffset := co.Offset % blockSize
		spanned := firstBlockOffset + co.Length
		blockCount := (spanned + blockSize - 1) / blockSize

		if blockStart+blockCount > uint64(len(toc.CompressionBlocks)) {
			continue // chunk references blocks past the global table: skip
		}

		entries = append(entries, &IoStoreEntry{
			entryBase: entryBase{
				path:          rec.path,
				containerPath: containerPath,
				offset:        co.Offset,
				size:          co.Length,
			},
			toc:              toc,
			blockStart:       uint32(blockStart), //nolint:gosec // chunk tables bounded well under 4G entries
			blockCount:       uint32(blockCount), //nolint:gosec // ditto
			firstBlockOffset: uint32(firstBlockOffset), //nolint:gosec // bounded by block size
		})
	}

	return entries, nil
}
