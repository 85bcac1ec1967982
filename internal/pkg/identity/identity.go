// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

// Package identity holds the pure validation predicates that every name and
// path crossing a bundle boundary must satisfy before it is trusted to
// generate a desktop entry or an AppArmor profile. Every rejected form here
// either breaks the generated profile grammar, is a lexical '..' escape
// attempt from the bundle root, or breaks .desktop file parsing; see the
// package tests for the concrete failure each rule heads off. These checks
// are lexical only and do not follow symlinks — bundle.ResolvedApp joins
// relative paths against the bundle root with securejoin.SecureJoin, which
// closes the remaining case of an intermediate symlink leading outside the
// root.
package identity

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateName checks a bundle name used both as the desktop display name
// and as the suffix of the generated AppArmor profile name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if strings.ContainsAny(name, "/\\;") {
		return fmt.Errorf("name %q must not contain '/', '\\' or ';'", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("name %q must not contain '..'", name)
	}
	if i := firstControlRune(name); i >= 0 {
		return fmt.Errorf("name %q contains a control character at byte %d", name, i)
	}
	return nil
}

// ValidateRelativePath checks a path that must resolve inside the bundle
// root, such as executable, working_dir.
func ValidateRelativePath(p string) error {
	if p == "" {
		return fmt.Errorf("relative path must not be empty")
	}
	if path.IsAbs(p) || strings.HasPrefix(p, "/") {
		return fmt.Errorf("relative path %q must not be absolute", p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return fmt.Errorf("relative path %q must not contain '..' segments", p)
		}
	}
	return nil
}

// ValidateAbsolutePath checks a path given to AppArmor as a read_paths or
// write_paths entry. AppArmor profile grammar uses '#' to start a comment
// and is line oriented, so both must be excluded from path literals.
func ValidateAbsolutePath(p string) error {
	if p == "" {
		return fmt.Errorf("absolute path must not be empty")
	}
	if !path.IsAbs(p) {
		return fmt.Errorf("path %q must be absolute", p)
	}
	if strings.ContainsAny(p, "#\n") {
		return fmt.Errorf("path %q must not contain '#' or a newline", p)
	}
	if strings.Contains(p, "..") {
		return fmt.Errorf("path %q must not contain '..'", p)
	}
	return nil
}

// ValidateEnvKey checks the KEY half of an env entry (KEY=VALUE).
func ValidateEnvKey(key string) error {
	if !envKeyPattern.MatchString(key) {
		return fmt.Errorf("env key %q must match [A-Za-z_][A-Za-z0-9_]*", key)
	}
	return nil
}

// EscapeAppArmor escapes the characters that are special to the AppArmor
// profile grammar inside a path literal: '[', ']', '{', '}', '^', '"'.
// ValidateAbsolutePath already rejects '#', '..' and newlines, so those are
// not handled here.
func EscapeAppArmor(p string) string {
	var b strings.Builder
	for _, r := range p {
		switch r {
		case '[', ']', '{', '}', '^', '"':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func firstControlRune(s string) int {
	for i, r := range s {
		if r < 0x20 || r == 0x7F {
			return i
		}
	}
	return -1
}
