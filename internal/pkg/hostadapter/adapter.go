// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

// Package hostadapter isolates every side effect the reconciler performs:
// writing and removing desktop entries and AppArmor profiles, and
// loading/unloading profiles through apparmor_parser. It exists so the
// reconciler's diff-and-apply logic can be exercised by tests without root
// and without AppArmor, mirroring the port/adapter split used for the
// filesystem and logger in dotfile managers of this shape.
package hostadapter

import (
	"context"

	"github.com/nivekxyz/dotlnx/internal/pkg/bundle"
)

// ProfileDir is the managed AppArmor profile namespace. It is owned
// exclusively by dotlnx; nothing outside it is ever read or written.
const ProfileDir = "/etc/apparmor.d/dotlnx.d"

// Adapter is every side effect the reconciler can perform.
type Adapter interface {
	// ListInstalledDesktop returns the basenames of every desktop file in
	// tier's menu directory whose name carries tier's profile prefix and
	// whose X-DotLnx-Managed key is "true".
	ListInstalledDesktop(tier bundle.Tier) ([]string, error)
	// ReadDesktop returns the current bytes of a managed desktop file, for
	// the reconciler's byte-for-byte comparison against the desired state.
	ReadDesktop(tier bundle.Tier, basename string) ([]byte, error)
	// WriteDesktop atomically replaces basename's content in tier's menu
	// directory (temp file + rename), mode 0644.
	WriteDesktop(tier bundle.Tier, basename string, content []byte) error
	// RemoveDesktop deletes basename from tier's menu directory.
	RemoveDesktop(tier bundle.Tier, basename string) error

	// ListInstalledProfiles returns the filenames in ProfileDir carrying
	// tier's profile prefix.
	ListInstalledProfiles(tier bundle.Tier) ([]string, error)
	// ReadProfile returns the current bytes of a managed profile file.
	ReadProfile(filename string) ([]byte, error)
	// WriteProfile atomically replaces filename's content in ProfileDir
	// (temp file + rename), mode 0644, creating ProfileDir if missing.
	WriteProfile(filename string, content []byte) error
	// RemoveProfile deletes filename from ProfileDir.
	RemoveProfile(filename string) error

	// LoadProfile invokes apparmor_parser -r on the given profile filename,
	// already present in ProfileDir. A 30s timeout is enforced via ctx.
	LoadProfile(ctx context.Context, filename string) error
	// UnloadProfile invokes apparmor_parser -R on the given profile
	// filename, which must still be present in ProfileDir.
	UnloadProfile(ctx context.Context, filename string) error

	// HaveApparmor reports whether the host kernel has AppArmor enabled
	// and the apparmor_parser tool is available.
	HaveApparmor() bool
	// IsRoot reports whether the process has root privilege.
	IsRoot() bool
}
