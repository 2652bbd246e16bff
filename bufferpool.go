// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import "sync"

// bufferClasses are the power-of-two capacity buckets scratch buffers
// are pooled in. Containers typically declare a compression block size
// in the tens-to-hundreds of KiB; bucketing by power of two keeps the
// pool from accumulating one distinctly-sized slice per container while
// still avoiding gross over-allocation (spec §4.5 "reuse a pooled
// scratch buffer large enough for the nominal block size").
var bufferClasses = []int{
	16 * 1024,
	64 * 1024,
	256 * 1024,
	1024 * 1024,
	4 * 1024 * 1024,
	16 * 1024 * 1024,
}

// bufferPool is a process-wide set of sync.Pool instances, one per
// capacity class, shared by every AssetStream (spec §4.5/§4.6 "a single
// process-wide buffer pool, not one per stream").
type bufferPool struct {
	pools []sync.Pool
}

var sharedBufferPool = newBufferPool()

func newBufferPool() *bufferPool {
	bp := &bufferPool{pools: make([]sync.Pool, len(bufferClasses))}
	for i, class := range bufferClasses {
		capacity := class
		bp.pools[i].New = func() any {
			buf := make([]byte, capacity)
			return &buf
		}
	}
	return bp
}

// classFor returns the index of the smallest bucket whose capacity is at
// least n, or -1 when n exceeds every bucket (callers then allocate
// directly rather than pooling an oversized one-off buffer).
func (bp *bufferPool) classFor(n int) int {
	for i, class := range bufferClasses {
		if class >= n {
			return i
		}
	}
	return -1
}

// pooledBuffer is a scratch buffer checked out from the pool, or a plain
// heap allocation when the request exceeded every pooled class.
type pooledBuffer struct {
	buf    []byte
	class  int // -1 when not pool-owned
}

// get checks out a buffer with at least n bytes of capacity, sliced to
// exactly n bytes.
func (bp *bufferPool) get(n int) *pooledBuffer {
	class := bp.classFor(n)
	if class < 0 {
		return &pooledBuffer{buf: make([]byte, n), class: -1}
	}

	ptr, _ := bp.pools[class].Get().(*[]byte)
	return &pooledBuffer{buf: (*ptr)[:n], class: class}
}

// release returns a checked-out buffer to its pool. Calling release twice
// on the same pooledBuffer is a caller bug, not a recoverable condition
// (spec §7 "double-dispose of a stream's pool buffer" is panic-class): it
// would otherwise corrupt the pool with a double-put entry, so it panics
// instead of silently no-op'ing.
func (bp *bufferPool) release(pb *pooledBuffer) {
	if pb == nil || pb.class < 0 {
		return
	}
	if pb.buf == nil {
		panic(panicDoubleBufferRelease)
	}

	full := pb.buf[:cap(pb.buf)]
	bp.pools[pb.class].Put(&full)
	pb.buf = nil
}
