// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/woozymasta/pathrules"
)

// mountedEntry pairs a decoded entry with the container it was decoded
// from, so EntriesMatching and OpenAssetStream never need a second
// lookup back into the registry's container map.
type mountedEntry struct {
	entry     IAssetEntry
	container *MountedContainer
}

// ContainerRegistry discovers and mounts every .pak and .utoc/.ucas pair
// under a root directory, exposing their combined entries as one flat
// namespace (spec §4.7 "Container enumerator / registry"). A failure to
// mount one container is logged and skipped; it never aborts the mount
// of the rest of the tree.
type ContainerRegistry struct {
	root    string
	profile *Profile
	logger  *slog.Logger

	mu         sync.Mutex
	mounted    bool
	containers map[string]*MountedContainer
	entries    []mountedEntry
	byPath     map[string]*mountedEntry

	ScriptObjects []ScriptObjectEntry
}

// RegistryOptions configures a ContainerRegistry, the same
// options-struct-plus-applyDefaults shape the teacher uses for its own
// PackOptions/ReaderOptions: passed by value into the constructor, never
// held as a package-level global.
type RegistryOptions struct {
	// Profile supplies trailer parsing, decompression, and decryption. A
	// nil Profile defaults to DefaultProfile(nil) (unencrypted content only).
	Profile *Profile
	// Logger receives per-container mount warnings. A nil Logger defaults
	// to slog.Default().
	Logger *slog.Logger
}

// applyDefaults fills zero-valued registry options with defaults.
func (opts *RegistryOptions) applyDefaults() {
	if opts.Profile == nil {
		opts.Profile = DefaultProfile(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
}

// NewContainerRegistry returns a registry rooted at root, configured by
// opts.
func NewContainerRegistry(root string, opts RegistryOptions) *ContainerRegistry {
	opts.applyDefaults()

	return &ContainerRegistry{
		root:       root,
		profile:    opts.Profile,
		logger:     opts.Logger,
		containers: make(map[string]*MountedContainer),
		byPath:     make(map[string]*mountedEntry),
	}
}

// Mount recursively enumerates root, mounting every .pak and every
// .utoc/.ucas pair it finds. It is idempotent: a second call is a no-op
// (spec §8 "mounting the same root twice yields the same entry set").
func (r *ContainerRegistry) Mount(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mounted {
		return nil
	}

	if info, err := os.Stat(r.root); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrMountRoot, r.root)
	}

	utocPaths := make(map[string]struct{})

	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			r.logger.Warn("walk error", "path", path, "error", walkErr)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".pak":
			r.mountPak(path)
		case ".utoc":
			if strings.EqualFold(filepath.Base(path), "global.utoc") {
				r.mountGlobalScriptObjects(path)
				return nil
			}
			utocPaths[path] = struct{}{}
		}

		return nil
	})
	if err != nil {
		return err
	}

	for utocPath := range utocPaths {
		r.mountIoStore(utocPath)
	}

	r.mounted = true
	return nil
}

func (r *ContainerRegistry) mountPak(path string) {
	container, err := OpenMountedContainer(path)
	if err != nil {
		r.logger.Warn("mount pak failed", "container_path", path, "error", err)
		return
	}

	pakEntries, err := DecodePakIndex(container, container.Size(), path, r.profile)
	if err != nil {
		r.logger.Warn("decode pak index failed", "container_path", path, "error", err)
		_ = container.Close()
		return
	}

	r.containers[path] = container
	for _, e := range pakEntries {
		me := mountedEntry{entry: e, container: container}
		r.entries = append(r.entries, me)
		r.byPath[e.Path()] = &r.entries[len(r.entries)-1]
	}
}

func (r *ContainerRegistry) mountIoStore(utocPath string) {
	casPath := strings.TrimSuffix(utocPath, filepath.Ext(utocPath)) + ".ucas"
	if _, err := os.Stat(casPath); err != nil {
		r.logger.Warn("mount iostore failed", "container_path", utocPath, "error", ErrMissingDataFile)
		return
	}

	tocContainer, err := OpenMountedContainer(utocPath)
	if err != nil {
		r.logger.Warn("mount iostore toc failed", "container_path", utocPath, "error", err)
		return
	}

	toc, err := DecodeIoStoreToc(tocContainer, tocContainer.Size(), r.profile)
	_ = tocContainer.Close() // the .utoc file itself is never read again after decode
	if err != nil {
		r.logger.Warn("decode iostore toc failed", "container_path", utocPath, "error", err)
		return
	}

	casContainer, err := OpenMountedContainer(casPath)
	if err != nil {
		r.logger.Warn("mount iostore cas failed", "container_path", casPath, "error", err)
		return
	}

	iostoreEntries, err := EntriesFromToc(toc, casPath)
	if err != nil {
		r.logger.Warn("resolve iostore entries failed", "container_path", utocPath, "error", err)
		_ = casContainer.Close()
		return
	}

	r.containers[casPath] = casContainer
	for _, e := range iostoreEntries {
		me := mountedEntry{entry: e, container: casContainer}
		r.entries = append(r.entries, me)
		r.byPath[e.Path()] = &r.entries[len(r.entries)-1]
	}
}

func (r *ContainerRegistry) mountGlobalScriptObjects(utocPath string) {
	casPath := strings.TrimSuffix(utocPath, filepath.Ext(utocPath)) + ".ucas"
	objects, err := ReadGlobalScriptObjects(utocPath, casPath, r.profile)
	if err != nil {
		// Best-effort: a missing or unreadable global script object index
		// never blocks the mount of packaged content (spec §6).
		r.logger.Warn("read global script objects failed", "container_path", utocPath, "error", err)
		return
	}

	r.ScriptObjects = append(r.ScriptObjects, objects...)
}

// Entries returns every mounted entry across every container.
func (r *ContainerRegistry) Entries() []IAssetEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]IAssetEntry, len(r.entries))
	for i, me := range r.entries {
		out[i] = me.entry
	}
	return out
}

// EntriesMatching returns every mounted entry whose virtual path is
// included by rules, compiled with pathrules (spec §4.7 "path-based entry
// selection"). An empty rule set matches nothing.
func (r *ContainerRegistry) EntriesMatching(rules ...pathrules.Rule) ([]IAssetEntry, error) {
	matcher, err := pathrules.NewMatcher(rules, pathrules.MatcherOptions{
		DefaultAction: pathrules.ActionExclude,
	})
	if err != nil {
		return nil, fmt.Errorf("compile entry match rules: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []IAssetEntry
	for _, me := range r.entries {
		if matcher.Included(me.entry.Path(), false) {
			out = append(out, me.entry)
		}
	}
	return out, nil
}

// OpenAssetStream opens a seekable stream over the given entry's
// decompressed bytes.
func (r *ContainerRegistry) OpenAssetStream(entry IAssetEntry) (*AssetStream, error) {
	r.mu.Lock()
	me, ok := r.byPath[entry.Path()]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entry.Path())
	}

	var provider IBlockProvider
	switch e := me.entry.(type) {
	case *PakEntry:
		provider = NewPakBlockProvider(e, me.container)
	case *IoStoreEntry:
		provider = NewIoStoreBlockProvider(e, me.container)
	default:
		return nil, fmt.Errorf("asset stream: unsupported entry kind %v", me.entry.Kind())
	}

	return NewAssetStream(provider, r.profile), nil
}

// MountedContainerFor returns the MountedContainer backing dataPath
// (the absolute .pak path, or the .ucas path for an IO Store pair).
func (r *ContainerRegistry) MountedContainerFor(dataPath string) (*MountedContainer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.containers[dataPath]
	return c, ok
}

// Close unmounts every container the registry opened.
func (r *ContainerRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, c := range r.containers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
