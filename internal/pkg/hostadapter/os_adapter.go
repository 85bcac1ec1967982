// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

package hostadapter

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/nivekxyz/dotlnx/internal/pkg/bundle"
	"github.com/nivekxyz/dotlnx/internal/pkg/runreport"
	"github.com/nivekxyz/dotlnx/internal/pkg/sylog"
)

// ProfileToolTimeout bounds every apparmor_parser invocation, per spec.
const ProfileToolTimeout = 30 * time.Second

// OSAdapter is the real Adapter backed by the local filesystem and
// apparmor_parser.
type OSAdapter struct {
	// ProfileDir overrides the package-level ProfileDir constant; tests set
	// this to a temp directory, production code leaves it empty.
	ProfileDir string
}

// New returns an OSAdapter writing into the default, system-wide
// ProfileDir.
func New() *OSAdapter {
	return &OSAdapter{}
}

var _ Adapter = (*OSAdapter)(nil)

func (a *OSAdapter) profileDir() string {
	if a.ProfileDir != "" {
		return a.ProfileDir
	}
	return ProfileDir
}

func (a *OSAdapter) ListInstalledDesktop(tier bundle.Tier) ([]string, error) {
	entries, err := os.ReadDir(tier.MenuDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, ioErr(tier.MenuDir, "cannot read menu directory", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, tier.ProfilePrefix()) || !strings.HasSuffix(name, ".desktop") {
			continue
		}
		full := filepath.Join(tier.MenuDir, name)
		managed, err := isManagedDesktop(full)
		if err != nil {
			sylog.Warningf("skipping unreadable desktop file %s: %v", full, err)
			continue
		}
		if managed {
			names = append(names, name)
		}
	}
	return names, nil
}

func isManagedDesktop(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "X-DotLnx-Managed=true" {
			return true, nil
		}
	}
	return false, scanner.Err()
}

func (a *OSAdapter) ReadDesktop(tier bundle.Tier, basename string) ([]byte, error) {
	return os.ReadFile(filepath.Join(tier.MenuDir, basename))
}

func (a *OSAdapter) WriteDesktop(tier bundle.Tier, basename string, content []byte) error {
	if err := ensureOwnedDir(tier.MenuDir, tier); err != nil {
		return err
	}
	path := filepath.Join(tier.MenuDir, basename)
	if err := atomicWrite(path, content, 0o644); err != nil {
		return ioErr(path, "cannot write desktop file", err)
	}
	chownToTier(path, tier)
	return nil
}

func (a *OSAdapter) RemoveDesktop(tier bundle.Tier, basename string) error {
	path := filepath.Join(tier.MenuDir, basename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return ioErr(path, "cannot remove desktop file", err)
	}
	return nil
}

func (a *OSAdapter) ListInstalledProfiles(tier bundle.Tier) ([]string, error) {
	entries, err := os.ReadDir(a.profileDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, ioErr(a.profileDir(), "cannot read profile directory", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tier.ProfilePrefix()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (a *OSAdapter) ReadProfile(filename string) ([]byte, error) {
	return os.ReadFile(filepath.Join(a.profileDir(), filename))
}

func (a *OSAdapter) WriteProfile(filename string, content []byte) error {
	if err := os.MkdirAll(a.profileDir(), 0o755); err != nil {
		return ioErr(a.profileDir(), "cannot create profile directory", err)
	}
	path := filepath.Join(a.profileDir(), filename)
	if err := atomicWrite(path, content, 0o644); err != nil {
		return ioErr(path, "cannot write profile", err)
	}
	return nil
}

func (a *OSAdapter) RemoveProfile(filename string) error {
	path := filepath.Join(a.profileDir(), filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return ioErr(path, "cannot remove profile", err)
	}
	return nil
}

func (a *OSAdapter) LoadProfile(ctx context.Context, filename string) error {
	return a.runParser(ctx, "-r", filename)
}

func (a *OSAdapter) UnloadProfile(ctx context.Context, filename string) error {
	return a.runParser(ctx, "-R", filename)
}

func (a *OSAdapter) runParser(ctx context.Context, flag, filename string) error {
	ctx, cancel := context.WithTimeout(ctx, ProfileToolTimeout)
	defer cancel()

	path := filepath.Join(a.profileDir(), filename)
	cmd := exec.CommandContext(ctx, "apparmor_parser", flag, path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &runreport.Error{
			Kind: runreport.KindProfileTool, Path: path,
			Detail: fmt.Sprintf("apparmor_parser %s failed: %s", flag, strings.TrimSpace(string(out))),
			Err:    err,
		}
	}
	return nil
}

func (a *OSAdapter) HaveApparmor() bool {
	data, err := os.ReadFile("/sys/module/apparmor/parameters/enabled")
	if err != nil || len(data) == 0 || data[0] != 'Y' {
		return false
	}
	if _, err := exec.LookPath("apparmor_parser"); err != nil {
		return false
	}
	return true
}

func (a *OSAdapter) IsRoot() bool {
	return os.Geteuid() == 0
}

// atomicWrite writes content to a sibling temp file and renames it over
// path, so readers always see either the previous content or the new
// content in full.
func atomicWrite(path string, content []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// ensureOwnedDir creates dir and any missing parents below the tier's home,
// chowning newly created directories to the tier's user. The watcher and
// reconciler run as root when managing user-tier menus, so new directories
// must not end up root-owned inside a user's home.
func ensureOwnedDir(dir string, tier bundle.Tier) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	var created []string
	for d := dir; d != tier.HomeDir && d != filepath.Dir(d); d = filepath.Dir(d) {
		if _, err := os.Stat(d); err == nil {
			break
		}
		created = append(created, d)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioErr(dir, "cannot create menu directory", err)
	}
	if tier.Kind == bundle.User {
		for _, d := range created {
			chownToTier(d, tier)
		}
	}
	return nil
}

func chownToTier(path string, tier bundle.Tier) {
	if tier.Kind != bundle.User || tier.UID <= 0 || os.Geteuid() != 0 {
		return
	}
	if err := os.Chown(path, tier.UID, tier.UID); err != nil {
		sylog.Debugf("chown %s to uid %d failed: %v", path, tier.UID, err)
	}
}

func ioErr(path, detail string, err error) error {
	return &runreport.Error{Kind: runreport.KindIo, Path: path, Detail: detail, Err: err}
}
