// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func buildStandardTrailer(t *testing.T, methodNames [5]string) []byte {
	t.Helper()

	var trailer bytes.Buffer
	trailer.Write(make([]byte, 16)) // guid
	trailer.WriteByte(0)            // not encrypted
	_ = binary.Write(&trailer, binary.LittleEndian, uint32(pakMagic))
	_ = binary.Write(&trailer, binary.LittleEndian, uint32(8)) // version
	_ = binary.Write(&trailer, binary.LittleEndian, int64(1000)) // index offset
	_ = binary.Write(&trailer, binary.LittleEndian, int64(200))  // index size
	trailer.Write(make([]byte, 20))                              // index hash

	for _, name := range methodNames {
		slot := make([]byte, 32)
		copy(slot, name)
		trailer.Write(slot)
	}

	if trailer.Len() != 221 {
		t.Fatalf("constructed trailer is %d bytes, want 221", trailer.Len())
	}
	return trailer.Bytes()
}

func TestParseStandardPakTrailerFindsMagicAndFields(t *testing.T) {
	trailer := buildStandardTrailer(t, [5]string{"Zlib", "Oodle", "", "", ""})

	// Pad the front of the file so the trailer sits at the very end.
	data := append(make([]byte, 64), trailer...)

	info, err := parseStandardPakTrailer(byteReaderAt{data}, int64(len(data)))
	if err != nil {
		t.Fatalf("parseStandardPakTrailer: %v", err)
	}
	if info.IndexOffset != 1000 || info.IndexSize != 200 {
		t.Fatalf("IndexOffset/IndexSize = %d/%d, want 1000/200", info.IndexOffset, info.IndexSize)
	}
	if info.CompressionMethods[0] != MethodZlib {
		t.Fatalf("CompressionMethods[0] = %q, want Zlib", info.CompressionMethods[0])
	}
	if info.CompressionMethods[1] != MethodOodle {
		t.Fatalf("CompressionMethods[1] = %q, want Oodle", info.CompressionMethods[1])
	}
	if info.IsIndexEncrypted {
		t.Fatalf("IsIndexEncrypted = true, want false")
	}
}

func TestParseStandardPakTrailerRejectsUnknownTrailer(t *testing.T) {
	data := make([]byte, 300)
	_, err := parseStandardPakTrailer(byteReaderAt{data}, int64(len(data)))
	if err == nil {
		t.Fatalf("expected an error for a trailer with no matching magic")
	}
}

func buildDuneAwakeningTrailer(t *testing.T) []byte {
	t.Helper()

	var body bytes.Buffer
	body.Write(make([]byte, 16)) // guid
	body.WriteByte(1)            // encrypted
	_ = binary.Write(&body, binary.LittleEndian, uint32(9)) // version
	_ = binary.Write(&body, binary.LittleEndian, int64(5000))
	_ = binary.Write(&body, binary.LittleEndian, int64(777))
	body.Write(make([]byte, 20))

	methodNames := [5]string{"Oodle", "", "", "", ""}
	for _, name := range methodNames {
		slot := make([]byte, 32)
		copy(slot, name)
		body.Write(slot)
	}

	var trailer bytes.Buffer
	_ = binary.Write(&trailer, binary.LittleEndian, uint32(duneAwakeningTrailerMagic))
	trailer.Write(body.Bytes())

	for trailer.Len() < duneAwakeningTrailerSize {
		trailer.WriteByte(0)
	}
	if trailer.Len() != duneAwakeningTrailerSize {
		t.Fatalf("constructed dune trailer is %d bytes, want %d", trailer.Len(), duneAwakeningTrailerSize)
	}
	return trailer.Bytes()
}

func TestDuneAwakeningTrailerParserRecognizesCustomMagic(t *testing.T) {
	trailer := buildDuneAwakeningTrailer(t)
	data := append(make([]byte, 32), trailer...)

	parser := DuneAwakeningTrailerParser{}
	info, ok, err := parser.ParseTrailer(byteReaderAt{data}, int64(len(data)))
	if err != nil {
		t.Fatalf("ParseTrailer: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true for a matching dune awakening trailer")
	}
	if info.IndexOffset != 5000 || info.IndexSize != 777 {
		t.Fatalf("IndexOffset/IndexSize = %d/%d, want 5000/777", info.IndexOffset, info.IndexSize)
	}
	if !info.IsIndexEncrypted {
		t.Fatalf("IsIndexEncrypted = false, want true")
	}
	if info.CompressionMethods[0] != MethodOodle {
		t.Fatalf("CompressionMethods[0] = %q, want Oodle", info.CompressionMethods[0])
	}
}

func TestDuneAwakeningTrailerParserFallsThroughOnMismatch(t *testing.T) {
	data := make([]byte, duneAwakeningTrailerSize+32)

	parser := DuneAwakeningTrailerParser{}
	info, ok, err := parser.ParseTrailer(byteReaderAt{data}, int64(len(data)))
	if err != nil {
		t.Fatalf("ParseTrailer: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false when the magic does not match")
	}
	if info != nil {
		t.Fatalf("expected a nil PakInfo on fallthrough")
	}
}

func TestProfileParsePakTrailerPrefersRegisteredParser(t *testing.T) {
	trailer := buildDuneAwakeningTrailer(t)
	data := append(make([]byte, 32), trailer...)

	profile := DefaultProfile(nil)
	profile.RegisterTrailerParser(DuneAwakeningTrailerParser{})

	info, err := profile.parsePakTrailer(byteReaderAt{data}, int64(len(data)))
	if err != nil {
		t.Fatalf("parsePakTrailer: %v", err)
	}
	if info.IndexOffset != 5000 {
		t.Fatalf("IndexOffset = %d, want 5000 (dune parser should have won)", info.IndexOffset)
	}
}
