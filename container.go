// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import (
	"fmt"
	"io"
	"os"
	"sync"

	mmap "github.com/edsrzf/mmap-go"
)

// MountedContainer owns one backing data file as a shared, read-only,
// random-access byte source. It is memory-mapped when the platform
// supports it; containers are expected to be gigabytes, easily exceeding
// what should be held resident via plain reads (spec §4.2). Read is a
// pure positional operation with no shared mutable cursor, so it is safe
// to call concurrently from many AssetStreams.
type MountedContainer struct {
	path string
	file *os.File
	mm   mmap.MMap
	size int64

	closeOnce sync.Once
	closeErr  error
}

// OpenMountedContainer opens path and maps it into memory when possible.
// On platforms or filesystems where mmap is unavailable, it transparently
// falls back to positional os.File reads.
func OpenMountedContainer(path string) (*MountedContainer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open container %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat container %s: %w", path, err)
	}

	mc := &MountedContainer{path: path, file: f, size: info.Size()}

	if info.Size() > 0 {
		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err == nil {
			mc.mm = m
		}
		// mmap is a best-effort optimization (spec §4.2 "prefer... when the
		// platform supports it"); a failure here is not fatal, reads fall
		// back to the open file handle.
	}

	return mc, nil
}

// Path returns the absolute path of the backing data file.
func (mc *MountedContainer) Path() string { return mc.path }

// Size returns the total size of the backing data file in bytes.
func (mc *MountedContainer) Size() int64 { return mc.size }

// ReadAt implements io.ReaderAt, satisfying the positioned slice reads
// used by Cursor and the block providers.
func (mc *MountedContainer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > mc.size {
		return 0, fmt.Errorf("%w: offset %d out of bounds [0,%d]", ErrShortRead, off, mc.size)
	}

	if mc.mm != nil {
		end := off + int64(len(p))
		if end > mc.size {
			end = mc.size
		}

		n := copy(p, mc.mm[off:end])
		if n < len(p) {
			return n, io.EOF
		}

		return n, nil
	}

	return mc.file.ReadAt(p, off)
}

// Read copies exactly len(buf) bytes starting at offset, matching spec
// §4.2's `read(offset, buffer)` contract.
func (mc *MountedContainer) Read(offset int64, buf []byte) error {
	n, err := mc.ReadAt(buf, offset)
	if err != nil {
		return fmt.Errorf("read container %s at %d (%d bytes): %w", mc.path, offset, len(buf), err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: got %d of %d bytes at offset %d in %s", ErrShortRead, n, len(buf), offset, mc.path)
	}

	return nil
}

// Close unmaps and closes the backing file exactly once. The registry
// owns the lifetime of every MountedContainer; dropping one while an
// AssetStream still references it is a programming error the caller must
// avoid (spec §4.2).
func (mc *MountedContainer) Close() error {
	mc.closeOnce.Do(func() {
		if mc.mm != nil {
			if err := mc.mm.Unmap(); err != nil {
				mc.closeErr = err
			}
		}

		if err := mc.file.Close(); err != nil && mc.closeErr == nil {
			mc.closeErr = err
		}
	})

	return mc.closeErr
}
