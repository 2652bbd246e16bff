// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

/*
Package uread2 is the core data-access engine for reading Unreal Engine
packaged game content. It mounts PAK archives and IO Store (.utoc/.ucas)
container pairs, decodes their indices, and exposes every logical file
inside them ("entry") as a random-access, seekable stream of uncompressed
plaintext bytes.

Package parsing, property trees, and schema resolution live above this
package; this package is the only layer permitted to touch the
compressed/encrypted on-disk representation.

# Mounting

	reg := uread2.NewContainerRegistry("/path/to/Paks", uread2.RegistryOptions{
	    Profile: uread2.DefaultProfile(&aesKey),
	})
	if err := reg.Mount(ctx); err != nil {
	    return err
	}
	defer reg.Close()

	for _, e := range reg.Entries() {
	    rs, err := reg.OpenAssetStream(e)
	    if err != nil {
	        continue
	    }
	    data, _ := io.ReadAll(rs)
	    _ = rs.Close()
	    _ = data
	}

# Filtering

	matching, err := reg.EntriesMatching(pathrules.Rule{
	    Action:  pathrules.ActionInclude,
	    Pattern: "*.uasset",
	})

# Streaming

AssetStream implements io.ReadSeeker over exactly one decoded compression
block at a time, reusing pooled scratch buffers across reads:

	rs, err := reg.OpenAssetStream(entry)
	if err != nil {
	    return err
	}
	defer rs.Close()

	if _, err := rs.Seek(1024, io.SeekStart); err != nil {
	    return err
	}
	buf := make([]byte, 4096)
	n, err := rs.Read(buf)
	_, _ = n, err

# Profiles

A Profile supplies the AES key, the registered decompressors (Zlib, Zstd,
Oodle via an external hook, None), and an optional chain of game-specific
PAK trailer parsers:

	profile := uread2.DefaultProfile(&aesKey)
	profile.RegisterTrailerParser(uread2.DuneAwakeningTrailerParser{})
*/
package uread2
