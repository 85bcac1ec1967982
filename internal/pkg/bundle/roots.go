// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

package bundle

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

const (
	// EnvUserApplications overrides a user tier's applications directory.
	// cmd/internal/cli binds this to the --applications flag.
	EnvUserApplications = "DOTLNX_APPLICATIONS"
	// EnvSystemApplications overrides the system tier's applications
	// directory. cmd/internal/cli binds this to the --system-applications
	// flag.
	EnvSystemApplications = "DOTLNX_SYSTEM_APPLICATIONS"
	envSudoUser           = "SUDO_USER"

	defaultSystemApplications = "/Applications"
	defaultSystemMenuDir      = "/usr/share/applications"
)

// SystemTier returns the single, always-present system tier.
func SystemTier() Tier {
	appsDir := os.Getenv(EnvSystemApplications)
	if appsDir == "" {
		appsDir = defaultSystemApplications
	}
	return Tier{
		Kind:            System,
		ApplicationsDir: appsDir,
		MenuDir:         defaultSystemMenuDir,
	}
}

// userTier builds a User tier for the given home directory and username,
// honoring the DOTLNX_APPLICATIONS override.
func userTier(username, home string, uid int) Tier {
	appsDir := os.Getenv(EnvUserApplications)
	if appsDir == "" {
		appsDir = filepath.Join(home, "Applications")
	}
	return Tier{
		Kind:            User,
		UID:             uid,
		Username:        username,
		HomeDir:         home,
		ApplicationsDir: appsDir,
		MenuDir:         filepath.Join(home, ".local", "share", "applications"),
	}
}

// ResolveTiers returns every tier that must be reconciled in this run: the
// system tier, plus one or more user tiers resolved per §4.3:
//   - Not running as root (or running as root with SUDO_USER set): a single
//     user tier for the current (or sudo-invoking) user.
//   - Running as root with no SUDO_USER: one tier per home directory under
//     /home (plus /root) whose applications directory exists.
func ResolveTiers() ([]Tier, error) {
	tiers := make([]Tier, 0, 2)

	if os.Geteuid() == 0 {
		if sudoUser := os.Getenv(envSudoUser); sudoUser != "" {
			if t, ok := userTierFromUsername(sudoUser); ok {
				tiers = append(tiers, t)
			}
		} else {
			homeTiers, err := discoverHomeTiers()
			if err != nil {
				return nil, err
			}
			tiers = append(tiers, homeTiers...)
		}
	} else if t, ok := currentUserTier(); ok {
		tiers = append(tiers, t)
	}

	tiers = append(tiers, SystemTier())
	return tiers, nil
}

func currentUserTier() (Tier, bool) {
	u, err := user.Current()
	if err != nil {
		return Tier{}, false
	}
	uid, _ := strconv.Atoi(u.Uid)
	return userTier(u.Username, u.HomeDir, uid), true
}

func userTierFromUsername(username string) (Tier, bool) {
	u, err := user.Lookup(username)
	if err != nil {
		return Tier{}, false
	}
	uid, _ := strconv.Atoi(u.Uid)
	return userTier(u.Username, u.HomeDir, uid), true
}

// discoverHomeTiers returns a user tier for /root plus every directory under
// /home whose resolved applications directory exists.
func discoverHomeTiers() ([]Tier, error) {
	candidates := []string{"/root"}

	entries, err := os.ReadDir("/home")
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				candidates = append(candidates, filepath.Join("/home", e.Name()))
			}
		}
	}

	var tiers []Tier
	for _, home := range candidates {
		username := filepath.Base(home)
		uid := -1
		if u, err := user.Lookup(username); err == nil {
			if n, err := strconv.Atoi(u.Uid); err == nil {
				uid = n
			}
		}
		t := userTier(username, home, uid)
		if info, err := os.Stat(t.ApplicationsDir); err == nil && info.IsDir() {
			tiers = append(tiers, t)
		}
	}
	return tiers, nil
}
