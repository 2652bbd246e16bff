// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import "io"

// PakTrailerParser decodes a PakInfo from a PAK file's trailer. It
// reports ok=false (with a nil error) when the trailer does not match its
// expected layout, letting the caller fall back to the next parser in
// the chain (spec §9 "Game-specific trailer variants... implement as an
// explicit trait/interface, not by sub-classing").
type PakTrailerParser interface {
	ParseTrailer(ra io.ReaderAt, size int64) (*PakInfo, bool, error)
}

// Profile supplies the AES key, the decompressor/decryptor
// implementations, and the PAK trailer parser chain the PAK and IO Store
// decoders run through (spec §6 "Container-file enumerator / profile").
type Profile struct {
	// AESKey is used for encrypted indices and encrypted blocks. A nil key
	// means encrypted containers are rejected with ErrIndexEncryptedNoKey /
	// ErrBlockEncryptedNoKey.
	AESKey *[32]byte

	Decompressor Decompressor
	Decryptor    Decryptor

	// trailerParsers runs in order before the standard parser; the first
	// one to report ok=true wins.
	trailerParsers []PakTrailerParser
}

// DefaultProfile returns a Profile wired with the stock codec registry
// and AES-ECB decryptor, keyed with the given AES key (nil for
// unencrypted-only content).
func DefaultProfile(aesKey *[32]byte) *Profile {
	return &Profile{
		AESKey:       aesKey,
		Decompressor: NewCodecRegistry(),
		Decryptor:    NewAESDecryptor(),
	}
}

// RegisterTrailerParser appends a game-specific trailer parser to the
// front of the chain: later registrations are tried first, so the most
// specific override wins.
func (p *Profile) RegisterTrailerParser(parser PakTrailerParser) {
	p.trailerParsers = append([]PakTrailerParser{parser}, p.trailerParsers...)
}

// parsePakTrailer runs the registered parsers in order, then falls back
// to the standard trailer layout.
func (p *Profile) parsePakTrailer(ra io.ReaderAt, size int64) (*PakInfo, error) {
	for _, parser := range p.trailerParsers {
		info, ok, err := parser.ParseTrailer(ra, size)
		if err != nil {
			return nil, err
		}
		if ok {
			return info, nil
		}
	}

	return parseStandardPakTrailer(ra, size)
}
