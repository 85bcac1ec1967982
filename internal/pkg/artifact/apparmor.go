// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

package artifact

import (
	"fmt"
	"strings"

	"github.com/nivekxyz/dotlnx/internal/pkg/bundle"
	"github.com/nivekxyz/dotlnx/internal/pkg/identity"
)

// GenerateProfile renders the AppArmor profile text for a confined app. The
// caller should not call this for an app whose Config.Confine() is false;
// such apps have no profile file by invariant.
//
// rix on the executable subtree matters: aa-exec transitions the process to
// the named profile before execve, so the profile must permit executing
// itself.
func GenerateProfile(app *bundle.ResolvedApp) ([]byte, error) {
	cfg := app.Config
	root := strings.TrimRight(app.Path, "/")
	execPath, err := app.ExecutableAbsolute()
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintln(&b, "#include <tunables/global>")
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "profile %s %s {\n", app.ProfileName(), quotePath(execPath))
	fmt.Fprintln(&b, "  include <tunables/global>")
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "  %s/ r,\n", quotePath(root))
	fmt.Fprintf(&b, "  %s/** r,\n", quotePath(root))
	fmt.Fprintf(&b, "  %s rix,\n", quotePath(execPath))

	sec := nilSafe(cfg.Security)

	if len(sec.ReadPaths) > 0 {
		fmt.Fprintln(&b)
		for _, p := range sec.ReadPaths {
			writePathRule(&b, p, "r")
		}
	}

	if len(sec.WritePaths) > 0 {
		fmt.Fprintln(&b)
		for _, p := range sec.WritePaths {
			writePathRule(&b, p, "rw")
		}
	}

	if sec.Network {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "  network inet stream,")
		fmt.Fprintln(&b, "  network inet6 stream,")
	}

	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "  deny %s/** w,\n", quotePath(root))
	fmt.Fprintln(&b, "}")

	return []byte(b.String()), nil
}

func writePathRule(b *strings.Builder, p, mode string) {
	if strings.HasSuffix(p, "/") {
		trimmed := strings.TrimRight(p, "/")
		fmt.Fprintf(b, "  %s/ %s,\n", quotePath(trimmed), mode)
		fmt.Fprintf(b, "  %s/** %s,\n", quotePath(trimmed), mode)
		return
	}
	fmt.Fprintf(b, "  %s %s,\n", quotePath(p), mode)
}

// quotePath wraps a path literal in double quotes after escaping the
// characters special to the AppArmor profile grammar. ValidateAbsolutePath
// already rejects '#', '..' and newlines in read_paths and write_paths
// entries; the bundle root and executable path are not checked by it.
func quotePath(p string) string {
	return `"` + identity.EscapeAppArmor(p) + `"`
}

// nilSafe lets GenerateProfile read Security fields whether or not the
// bundle declared a [security] table.
func nilSafe(s *bundle.SecurityConfig) *bundle.SecurityConfig {
	if s == nil {
		return &bundle.SecurityConfig{}
	}
	return s
}
