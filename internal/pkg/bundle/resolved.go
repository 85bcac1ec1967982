// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

package bundle

import (
	securejoin "github.com/cyphar/filepath-securejoin"
)

// ResolvedApp pairs a validated Config with the bundle path and tier it was
// discovered at, plus the names derived from them.
type ResolvedApp struct {
	Config *Config
	Path   string // absolute path to the bundle directory
	Tier   Tier
}

// ExecutableAbsolute returns the bundle root joined with the configured
// executable. The join is securejoin.SecureJoin, not filepath.Join: it
// resolves symlinks as it descends and clamps the result to stay under
// a.Path, so a bundle cannot point its executable at a path outside its own
// root via an intermediate symlink.
func (a *ResolvedApp) ExecutableAbsolute() (string, error) {
	return securejoin.SecureJoin(a.Path, a.Config.Executable)
}

// WorkingDirAbsolute returns the bundle root joined with the configured
// working_dir (via securejoin.SecureJoin, for the same reason as
// ExecutableAbsolute), or the bundle root itself when working_dir is unset.
func (a *ResolvedApp) WorkingDirAbsolute() (string, error) {
	if a.Config.WorkingDir == "" {
		return a.Path, nil
	}
	return securejoin.SecureJoin(a.Path, a.Config.WorkingDir)
}

// ProfileName is the tier's profile prefix plus the bundle's name, used as
// both the AppArmor profile name and the desktop basename stem.
func (a *ResolvedApp) ProfileName() string {
	return a.Tier.ProfilePrefix() + a.Config.Name
}

// DesktopBasename is ProfileName with ".desktop" appended.
func (a *ResolvedApp) DesktopBasename() string {
	return a.ProfileName() + ".desktop"
}

// ProfileFilename is the AppArmor profile filename: ProfileName with no
// extension.
func (a *ResolvedApp) ProfileFilename() string {
	return a.ProfileName()
}
