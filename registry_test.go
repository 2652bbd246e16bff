// SPDX-License-Identifier: MIT
// Copyright (c) 2026 uread2 contributors

package uread2

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestContainerRegistryMountsPakAndIsIdempotent(t *testing.T) {
	data, _ := buildSyntheticPak(t)

	dir := t.TempDir()
	pakPath := filepath.Join(dir, "assets", "content.pak")
	if err := os.MkdirAll(filepath.Dir(pakPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(pakPath, data, 0o644); err != nil {
		t.Fatalf("write pak: %v", err)
	}

	reg := NewContainerRegistry(dir, RegistryOptions{Profile: DefaultProfile(nil)})
	defer func() { _ = reg.Close() }()

	if err := reg.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	entries := reg.Entries()
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	if err := reg.Mount(context.Background()); err != nil {
		t.Fatalf("second Mount: %v", err)
	}
	if got := len(reg.Entries()); got != 2 {
		t.Fatalf("entries after second Mount = %d, want 2 (idempotent)", got)
	}
}

func TestContainerRegistryMountMissingRootFails(t *testing.T) {
	reg := NewContainerRegistry(filepath.Join(t.TempDir(), "does-not-exist"), RegistryOptions{Profile: DefaultProfile(nil)})
	if err := reg.Mount(context.Background()); err == nil {
		t.Fatalf("expected error mounting a missing root")
	}
}

func TestContainerRegistryOpenAssetStreamReadsEntry(t *testing.T) {
	data, _ := buildSyntheticPak(t)

	dir := t.TempDir()
	pakPath := filepath.Join(dir, "content.pak")
	if err := os.WriteFile(pakPath, data, 0o644); err != nil {
		t.Fatalf("write pak: %v", err)
	}

	reg := NewContainerRegistry(dir, RegistryOptions{Profile: DefaultProfile(nil)})
	defer func() { _ = reg.Close() }()

	if err := reg.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	var target IAssetEntry
	for _, e := range reg.Entries() {
		if e.Path() == "hello.txt" {
			target = e
		}
	}
	if target == nil {
		t.Fatalf("hello.txt not found among mounted entries")
	}

	stream, err := reg.OpenAssetStream(target)
	if err != nil {
		t.Fatalf("OpenAssetStream: %v", err)
	}

	got := make([]byte, target.Size())
	if _, err := stream.Read(got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "Hello, uread2!" {
		t.Fatalf("content = %q", got)
	}
}
