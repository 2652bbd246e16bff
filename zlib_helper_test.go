// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import (
	"io"

	kzlib "github.com/klauspost/compress/zlib"
)

func newZlibWriterForTest(w io.Writer) *kzlib.Writer {
	return kzlib.NewWriter(w)
}
