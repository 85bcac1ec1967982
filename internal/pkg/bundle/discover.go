// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

package bundle

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nivekxyz/dotlnx/internal/pkg/runreport"
)

const bundleSuffix = ".lnx"

// Discover enumerates the immediate children of root that are bundles:
// directories (following at most one level of symbolic link) whose name
// ends in .lnx and which contain a readable config.toml at their root.
// Children that are not directories, lack the suffix, are nested deeper,
// or cannot be read are silently ignored, per spec. Results are absolute
// paths sorted lexicographically, matching the reconciler's per-tier
// processing order.
func Discover(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &runreport.Error{Kind: runreport.KindIo, Path: root, Detail: "cannot read applications directory", Err: err}
	}

	var bundles []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, bundleSuffix) {
			continue
		}
		full := filepath.Join(root, name)

		isDir, ok := resolveOneSymlinkIsDir(full, entry)
		if !ok || !isDir {
			continue
		}

		configPath := filepath.Join(full, "config.toml")
		if info, err := os.Stat(configPath); err != nil || !info.Mode().IsRegular() {
			continue
		}

		bundles = append(bundles, full)
	}

	sort.Strings(bundles)
	return bundles, nil
}

// resolveOneSymlinkIsDir reports whether full names a directory, following
// at most one level of symbolic link. The second return value is false if
// the entry (or, for a symlink, its target) could not be statted.
func resolveOneSymlinkIsDir(full string, entry os.DirEntry) (bool, bool) {
	if entry.Type()&os.ModeSymlink == 0 {
		return entry.IsDir(), true
	}
	target, err := os.Readlink(full)
	if err != nil {
		return false, false
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(full), target)
	}
	info, err := os.Lstat(target) // a link pointing at another link is not followed
	if err != nil {
		return false, false
	}
	return info.IsDir(), true
}
