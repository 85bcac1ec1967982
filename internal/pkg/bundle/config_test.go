// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

package bundle

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nivekxyz/dotlnx/internal/pkg/runreport"
)

func writeBundle(t *testing.T, dir, configToml string) string {
	t.Helper()
	root := filepath.Join(dir, "Test.lnx")
	if err := os.MkdirAll(filepath.Join(root, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "config.toml"), []byte(configToml), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "bin", "t"), []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestParseConfigMinimal(t *testing.T) {
	root := writeBundle(t, t.TempDir(), `
name = "Test"
executable = "bin/t"
`)
	cfg, err := ParseConfig(root)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Name != "Test" || cfg.Executable != "bin/t" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.Confine() {
		t.Fatalf("expected confine=true by default")
	}
}

func TestParseConfigInvalidName(t *testing.T) {
	root := writeBundle(t, t.TempDir(), `
name = "A;B"
executable = "bin/t"
`)
	_, err := ParseConfig(root)
	var rerr *runreport.Error
	if !errors.As(err, &rerr) || rerr.Kind != runreport.KindConfigInvalid || rerr.Sub != runreport.SubInvalidName {
		t.Fatalf("expected ConfigInvalid/InvalidName, got %v", err)
	}
}

func TestParseConfigConfineFalse(t *testing.T) {
	root := writeBundle(t, t.TempDir(), `
name = "Test"
executable = "bin/t"

[security]
confine = false
`)
	cfg, err := ParseConfig(root)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Confine() {
		t.Fatalf("expected confine=false")
	}
}

func TestParseConfigExecutableNotFound(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "Test.lnx")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "config.toml"), []byte(`
name = "Test"
executable = "bin/missing"
`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := ParseConfig(root)
	var rerr *runreport.Error
	if !errors.As(err, &rerr) || rerr.Sub != runreport.SubExecutableNotFound {
		t.Fatalf("expected ExecutableNotFound, got %v", err)
	}
}

func TestParseConfigBadEnvKey(t *testing.T) {
	root := writeBundle(t, t.TempDir(), `
name = "Test"
executable = "bin/t"
env = ["9BAD=1"]
`)
	_, err := ParseConfig(root)
	var rerr *runreport.Error
	if !errors.As(err, &rerr) || rerr.Sub != runreport.SubInvalidEnv {
		t.Fatalf("expected InvalidEnv, got %v", err)
	}
}

func TestParseConfigSyntaxError(t *testing.T) {
	root := writeBundle(t, t.TempDir(), `this is not = valid [ toml`)
	_, err := ParseConfig(root)
	var rerr *runreport.Error
	if !errors.As(err, &rerr) || rerr.Kind != runreport.KindConfigParse {
		t.Fatalf("expected ConfigParse, got %v", err)
	}
}

func TestParseConfigInvalidAbsolutePath(t *testing.T) {
	root := writeBundle(t, t.TempDir(), `
name = "Test"
executable = "bin/t"

[security]
read_paths = ["relative/path"]
`)
	_, err := ParseConfig(root)
	var rerr *runreport.Error
	if !errors.As(err, &rerr) || rerr.Sub != runreport.SubInvalidAbsolutePath {
		t.Fatalf("expected InvalidAbsolutePath, got %v", err)
	}
}
