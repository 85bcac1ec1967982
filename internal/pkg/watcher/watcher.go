// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

// Package watcher implements the event-driven scheduler described in the
// core as C7: it watches every applications root and the directories under
// it that exist at startup (plus the parent of each user home directory,
// such as /home), coalesces bursts of filesystem activity into a
// single reconciliation, and guarantees at most one reconciliation runs at
// a time.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nivekxyz/dotlnx/internal/pkg/bundle"
	"github.com/nivekxyz/dotlnx/internal/pkg/reconciler"
	"github.com/nivekxyz/dotlnx/internal/pkg/runreport"
	"github.com/nivekxyz/dotlnx/internal/pkg/sylog"
)

const (
	// DefaultDebounceWindow is how long the watcher waits after the last
	// observed event before triggering a reconciliation.
	DefaultDebounceWindow = 500 * time.Millisecond
	// DefaultMaxWindow bounds how long a continuous burst of events can
	// delay a reconciliation past the first observed event.
	DefaultMaxWindow = 2 * time.Second
)

// Watcher runs the coalescing event loop in front of a Reconciler.
type Watcher struct {
	Reconciler     *reconciler.Reconciler
	Tiers          func() ([]bundle.Tier, error)
	DebounceWindow time.Duration
	MaxWindow      time.Duration
	// OnReport is called after every reconciliation, including the startup
	// one. Defaults to logging a summary via sylog.
	OnReport func(*runreport.Report)
}

// New returns a Watcher driving r, using the real tier-resolution rules.
func New(r *reconciler.Reconciler) *Watcher {
	return &Watcher{
		Reconciler:     r,
		Tiers:          bundle.ResolveTiers,
		DebounceWindow: DefaultDebounceWindow,
		MaxWindow:      DefaultMaxWindow,
	}
}

// Watch registers filesystem watches on every applications root and runs
// sync(false) at startup, then on every coalesced burst of events, until
// ctx is cancelled or SIGTERM/SIGINT is received. If once is true it
// returns immediately after the startup sync.
func (w *Watcher) Watch(ctx context.Context, once bool) error {
	watchDirs, err := w.watchDirs()
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return &runreport.Error{Kind: runreport.KindWatchSetup, Detail: "cannot create filesystem watcher", Err: err}
	}
	defer fsw.Close()

	for _, dir := range watchDirs {
		if err := fsw.Add(dir); err != nil {
			sylog.Warningf("cannot watch %s: %v", dir, err)
		}
	}

	w.runSync(ctx)
	if once {
		return nil
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	syncing := false
	dirty := false
	done := make(chan struct{}, 1)

	startSync := func() {
		syncing = true
		go func() {
			w.runSync(ctx)
			done <- struct{}{}
		}()
	}

	for {
		select {
		case <-sigCh:
			if syncing {
				<-done
			}
			return nil
		case <-ctx.Done():
			if syncing {
				<-done
			}
			return nil
		case _, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if syncing {
				dirty = true
				continue
			}
			w.coalesce(fsw)
			startSync()
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			sylog.Warningf("watch error: %v", err)
		case <-done:
			syncing = false
			if dirty {
				dirty = false
				startSync()
			}
		}
	}
}

// coalesce drains events for DebounceWindow after the most recent one,
// never extending the window past MaxWindow measured from the first event
// observed here.
func (w *Watcher) coalesce(fsw *fsnotify.Watcher) {
	start := time.Now()
	timer := time.NewTimer(w.DebounceWindow)
	defer timer.Stop()

	for {
		select {
		case _, ok := <-fsw.Events:
			if !ok {
				return
			}
			elapsed := time.Since(start)
			if elapsed >= w.MaxWindow {
				return
			}
			remaining := w.DebounceWindow
			if elapsed+remaining > w.MaxWindow {
				remaining = w.MaxWindow - elapsed
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(remaining)
		case <-fsw.Errors:
			// ignore transient watch errors during coalescing
		case <-timer.C:
			return
		}
	}
}

func (w *Watcher) runSync(ctx context.Context) {
	report := w.Reconciler.Sync(ctx, false)
	if w.OnReport != nil {
		w.OnReport(report)
		return
	}
	if report.Failed() {
		sylog.Warningf("sync completed with errors:\n%s", report.Summary())
	} else {
		sylog.Infof("sync complete: %s", report.Summary())
	}
}

// watchDirs returns every directory that is registered with fsnotify: each
// applications root together with every directory under it that exists at
// this point, the parent of any applications root that does not exist yet,
// and the parent of each user tier's home directory (usually /home).
// The list is built once, when Watch starts; a directory created later
// (such as a new bundle) is not added to the watch, so changes inside it
// trigger a sync only through an event in a directory that is watched.
func (w *Watcher) watchDirs() ([]string, error) {
	tiers, err := w.Tiers()
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var dirs []string
	add := func(d string) {
		if d == "" || seen[d] {
			return
		}
		seen[d] = true
		dirs = append(dirs, d)
	}

	for _, tier := range tiers {
		if info, err := os.Stat(tier.ApplicationsDir); err == nil && info.IsDir() {
			addRecursive(tier.ApplicationsDir, add)
		} else {
			add(filepath.Dir(tier.ApplicationsDir))
		}
		if tier.Kind == bundle.User && tier.HomeDir != "" {
			add(filepath.Dir(tier.HomeDir))
		}
	}

	return dirs, nil
}

// addRecursive walks root and registers every directory under it that
// exists at the time of the walk (root/*.lnx/**). fsnotify watches are not
// recursive, and directories created after the walk are not registered.
func addRecursive(root string, add func(string)) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable subtrees, do not abort the walk
		}
		if d.IsDir() {
			add(path)
		}
		return nil
	})
}
