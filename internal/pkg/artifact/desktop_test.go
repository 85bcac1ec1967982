// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

package artifact

import (
	"strings"
	"testing"

	"github.com/nivekxyz/dotlnx/internal/pkg/bundle"
)

func testApp(t *testing.T) *bundle.ResolvedApp {
	t.Helper()
	return &bundle.ResolvedApp{
		Path: "/home/alice/Applications/Test.lnx",
		Tier: bundle.Tier{Kind: bundle.User, Username: "alice"},
		Config: &bundle.Config{
			Name:       "Test",
			Executable: "bin/t",
			Args:       []string{"--flag", "value with space"},
			Categories: []string{"Utility", "Development"},
		},
	}
}

func TestGenerateDesktopUnconfined(t *testing.T) {
	app := testApp(t)
	data, err := GenerateDesktop(app, false)
	if err != nil {
		t.Fatalf("GenerateDesktop: %v", err)
	}
	s := string(data)

	mustContain := []string{
		"[Desktop Entry]",
		"Type=Application",
		"Name=Test",
		"Exec=/home/alice/Applications/Test.lnx/bin/t --flag 'value with space'",
		"Terminal=false",
		"Categories=Utility;Development;",
		"X-DotLnx-Managed=true",
		"X-DotLnx-Bundle=/home/alice/Applications/Test.lnx",
	}
	for _, want := range mustContain {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q; got:\n%s", want, s)
		}
	}
	if strings.Contains(s, "aa-exec") {
		t.Errorf("unconfined Exec should not invoke aa-exec: %s", s)
	}
}

func TestGenerateDesktopConfined(t *testing.T) {
	app := testApp(t)
	data, err := GenerateDesktop(app, true)
	if err != nil {
		t.Fatalf("GenerateDesktop: %v", err)
	}
	want := "Exec=aa-exec -p dotlnx-alice-Test -- /home/alice/Applications/Test.lnx/bin/t --flag 'value with space'"
	if !strings.Contains(string(data), want) {
		t.Errorf("output missing %q; got:\n%s", want, data)
	}
}

func TestGenerateDesktopWithEnv(t *testing.T) {
	app := testApp(t)
	app.Config.Env = []string{"FOO=bar", "BAZ=qux"}
	data, err := GenerateDesktop(app, false)
	if err != nil {
		t.Fatalf("GenerateDesktop: %v", err)
	}
	want := "Exec=env FOO=bar BAZ=qux -- /home/alice/Applications/Test.lnx/bin/t --flag 'value with space'"
	if !strings.Contains(string(data), want) {
		t.Errorf("output missing %q; got:\n%s", want, data)
	}
}

func TestGenerateDesktopDeterministic(t *testing.T) {
	app := testApp(t)
	a, err := GenerateDesktop(app, false)
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateDesktop(app, false)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("GenerateDesktop is not deterministic")
	}
}

func TestEscapeValueLeadingSpace(t *testing.T) {
	got := escapeValue(" leading")
	if got != "\\ leading" {
		t.Errorf("escapeValue(%q) = %q", " leading", got)
	}
}

func TestEscapeValueControlChars(t *testing.T) {
	got := escapeValue("a\\b\nc\td\re")
	want := `a\\b\nc\td\re`
	if got != want {
		t.Errorf("escapeValue = %q, want %q", got, want)
	}
}
