// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

package bundle

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverFiltersNonBundles(t *testing.T) {
	root := t.TempDir()

	mk := func(name string, isDirWithConfig bool) {
		p := filepath.Join(root, name)
		if err := os.MkdirAll(p, 0o755); err != nil {
			t.Fatal(err)
		}
		if isDirWithConfig {
			if err := os.WriteFile(filepath.Join(p, "config.toml"), []byte("name=\"x\"\n"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}

	mk("Good.lnx", true)
	mk("NoConfig.lnx", false)
	mk("NotABundle", true)

	if err := os.WriteFile(filepath.Join(root, "notadir.lnx"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	nested := filepath.Join(root, "Outer.lnx", "Inner.lnx")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "config.toml"), []byte("name=\"x\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{filepath.Join(root, "Good.lnx")}
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("Discover = %v, want %v", got, want)
	}
}

func TestDiscoverEmptyRoot(t *testing.T) {
	root := t.TempDir()
	got, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no bundles, got %v", got)
	}
}

func TestDiscoverFollowsOneLevelSymlink(t *testing.T) {
	root := t.TempDir()
	real := filepath.Join(root, "real")
	if err := os.MkdirAll(real, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(real, "config.toml"), []byte("name=\"x\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(root, "Linked.lnx")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	got, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 1 || got[0] != link {
		t.Fatalf("Discover = %v, want [%s]", got, link)
	}
}

func TestDiscoverSortedLexicographically(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"Zeta.lnx", "Alpha.lnx", "Mu.lnx"} {
		p := filepath.Join(root, name)
		if err := os.MkdirAll(p, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(p, "config.toml"), []byte("name=\"x\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{
		filepath.Join(root, "Alpha.lnx"),
		filepath.Join(root, "Mu.lnx"),
		filepath.Join(root, "Zeta.lnx"),
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Discover[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
