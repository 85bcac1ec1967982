// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

// Package lock provides the advisory filesystem lock that serializes
// reconciliations on one host, grounded on the teacher's direct use of
// golang.org/x/sys/unix for a syscall the standard library does not expose
// (internal/pkg/security/apparmor/apparmor_supported.go).
package lock

import (
	"fmt"
	"os"

	"github.com/nivekxyz/dotlnx/internal/pkg/runreport"
	"golang.org/x/sys/unix"
)

const (
	systemLockPath = "/run/dotlnx.lock"
	userLockEnv    = "XDG_RUNTIME_DIR"
	userLockName   = "dotlnx.lock"
)

// Lock is a held advisory lock; call Close to release it.
type Lock struct {
	f    *os.File
	path string
}

// Path returns the path the lock was acquired against.
func (l *Lock) Path() string { return l.path }

// Close releases the lock and closes the underlying file.
func (l *Lock) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}

// Acquire takes the best-effort advisory lock at /run/dotlnx.lock, falling
// back to $XDG_RUNTIME_DIR/dotlnx.lock when /run is not writable (the
// unprivileged, user-tier-only invocation case). Failure to acquire is
// fatal for the caller's run, per spec §5.
func Acquire() (*Lock, error) {
	path := systemLockPath
	f, err := openLockFile(path)
	if err != nil {
		if runtimeDir := os.Getenv(userLockEnv); runtimeDir != "" {
			path = runtimeDir + "/" + userLockName
			f, err = openLockFile(path)
		}
	}
	if err != nil {
		return nil, &runreport.Error{
			Kind: runreport.KindPermissionDenied, Path: path,
			Detail: "cannot open advisory lock file", Err: err,
		}
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, &runreport.Error{
			Kind: runreport.KindPermissionDenied, Path: path,
			Detail: fmt.Sprintf("another dotlnx run holds %s", path), Err: err,
		}
	}

	return &Lock{f: f, path: path}, nil
}

func openLockFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
}
