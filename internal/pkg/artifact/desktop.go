// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

// Package artifact renders the two kinds of on-disk artifact a
// reconciliation produces from a validated bundle: a freedesktop .desktop
// entry and, when confinement is requested, an AppArmor profile. Both
// generators are pure functions of their inputs: the same ResolvedApp (and,
// for the desktop entry, the same confinement decision) always produces the
// same bytes.
package artifact

import (
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/nivekxyz/dotlnx/internal/pkg/bundle"
)

// ManagedKey is the desktop entry key that marks a file as owned by dotlnx.
const ManagedKey = "X-DotLnx-Managed"

// BundleKey records the originating bundle path on a managed desktop file.
const BundleKey = "X-DotLnx-Bundle"

// GenerateDesktop renders the .desktop file for app. confinedAndLoaded
// selects the Exec= form: when true, the command runs through "aa-exec -p
// <profile> --" ahead of the executable; otherwise it invokes the
// executable directly. The caller (the reconciler) decides confinedAndLoaded
// from the bundle's confine flag together with host AppArmor support, since
// aa-exec only works once the named profile is actually loaded.
func GenerateDesktop(app *bundle.ResolvedApp, confinedAndLoaded bool) ([]byte, error) {
	exec, err := buildExec(app, confinedAndLoaded)
	if err != nil {
		return nil, err
	}
	workingDir, err := app.WorkingDirAbsolute()
	if err != nil {
		return nil, err
	}

	cfg := app.Config
	var b strings.Builder
	fmt.Fprintln(&b, "[Desktop Entry]")
	fmt.Fprintln(&b, "Type=Application")
	fmt.Fprintf(&b, "Name=%s\n", escapeValue(cfg.Name))
	if cfg.Comment != "" {
		fmt.Fprintf(&b, "Comment=%s\n", escapeValue(cfg.Comment))
	}
	fmt.Fprintf(&b, "Exec=%s\n", exec)
	if cfg.Icon != "" {
		fmt.Fprintf(&b, "Icon=%s\n", escapeValue(cfg.Icon))
	}
	fmt.Fprintf(&b, "Path=%s\n", escapeValue(workingDir))
	fmt.Fprintf(&b, "Terminal=%s\n", boolString(cfg.Terminal))
	if len(cfg.Categories) > 0 {
		fmt.Fprintf(&b, "Categories=%s;\n", escapeValue(strings.Join(cfg.Categories, ";")))
	}
	fmt.Fprintf(&b, "%s=true\n", ManagedKey)
	fmt.Fprintf(&b, "%s=%s\n", BundleKey, escapeValue(app.Path))

	return []byte(b.String()), nil
}

// buildExec assembles the Exec= command line: an optional "env K=V ... --"
// prefix, an optional "aa-exec -p <profile> --" confinement prefix, the
// absolute executable path, then its arguments, all shell-quoted together
// so the result is safe regardless of spaces or special characters in any
// component.
func buildExec(app *bundle.ResolvedApp, confinedAndLoaded bool) (string, error) {
	cfg := app.Config

	execAbs, err := app.ExecutableAbsolute()
	if err != nil {
		return "", err
	}

	argv := make([]string, 0, len(cfg.Args)+1)
	argv = append(argv, execAbs)
	argv = append(argv, cfg.Args...)

	if confinedAndLoaded {
		confined := make([]string, 0, len(argv)+3)
		confined = append(confined, "aa-exec", "-p", app.ProfileName(), "--")
		argv = append(confined, argv...)
	}

	if len(cfg.Env) > 0 {
		withEnv := make([]string, 0, len(cfg.Env)+len(argv)+2)
		withEnv = append(withEnv, "env")
		withEnv = append(withEnv, cfg.Env...)
		withEnv = append(withEnv, "--")
		argv = append(withEnv, argv...)
	}

	return shellquote.Join(argv...), nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// escapeValue escapes a desktop entry string value: backslashes and the
// control characters \n, \t, \r become their two-character escapes, and a
// leading space is escaped so parsers do not trim it.
func escapeValue(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case ' ':
			if i == 0 {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
