// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

package artifact

import (
	"strings"
	"testing"

	"github.com/nivekxyz/dotlnx/internal/pkg/bundle"
)

func TestGenerateProfileBasic(t *testing.T) {
	app := testApp(t)
	data, err := GenerateProfile(app)
	if err != nil {
		t.Fatalf("GenerateProfile: %v", err)
	}
	s := string(data)

	mustContain := []string{
		"#include <tunables/global>",
		`profile dotlnx-alice-Test "/home/alice/Applications/Test.lnx/bin/t" {`,
		`"/home/alice/Applications/Test.lnx"/ r,`,
		`"/home/alice/Applications/Test.lnx"/** r,`,
		`"/home/alice/Applications/Test.lnx/bin/t" rix,`,
		`deny "/home/alice/Applications/Test.lnx"/** w,`,
	}
	for _, want := range mustContain {
		if !strings.Contains(s, want) {
			t.Errorf("profile missing %q; got:\n%s", want, s)
		}
	}
}

func TestGenerateProfileReadWritePaths(t *testing.T) {
	app := testApp(t)
	app.Config.Security = &bundle.SecurityConfig{
		ReadPaths:  []string{"/data/config", "/data/shared/"},
		WritePaths: []string{"/var/log/app.log"},
		Network:    true,
	}
	data, err := GenerateProfile(app)
	if err != nil {
		t.Fatalf("GenerateProfile: %v", err)
	}
	s := string(data)

	mustContain := []string{
		`"/data/config" r,`,
		`"/data/shared"/ r,`,
		`"/data/shared"/** r,`,
		`"/var/log/app.log" rw,`,
		"network inet stream,",
		"network inet6 stream,",
	}
	for _, want := range mustContain {
		if !strings.Contains(s, want) {
			t.Errorf("profile missing %q; got:\n%s", want, s)
		}
	}
}

func TestGenerateProfileDeterministic(t *testing.T) {
	app := testApp(t)
	a, err := GenerateProfile(app)
	if err != nil {
		t.Fatalf("GenerateProfile: %v", err)
	}
	b, err := GenerateProfile(app)
	if err != nil {
		t.Fatalf("GenerateProfile: %v", err)
	}
	if string(a) != string(b) {
		t.Errorf("GenerateProfile is not deterministic")
	}
}

func TestGenerateProfileEscapesSpecialChars(t *testing.T) {
	app := testApp(t)
	app.Config.Security = &bundle.SecurityConfig{
		ReadPaths: []string{`/data/weird[1]`},
	}
	data, err := GenerateProfile(app)
	if err != nil {
		t.Fatalf("GenerateProfile: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `/data/weird\[1\]`) {
		t.Errorf("expected escaped bracket in profile, got:\n%s", s)
	}
}
