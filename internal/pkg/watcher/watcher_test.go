// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nivekxyz/dotlnx/internal/pkg/bundle"
	"github.com/nivekxyz/dotlnx/internal/pkg/hostadapter"
	"github.com/nivekxyz/dotlnx/internal/pkg/reconciler"
	"github.com/nivekxyz/dotlnx/internal/pkg/runreport"
)

func newTestWatcher(t *testing.T, appsDir string) (*Watcher, *hostadapter.FakeAdapter) {
	t.Helper()
	tier := bundle.Tier{
		Kind:            bundle.User,
		Username:        "alice",
		HomeDir:         t.TempDir(),
		ApplicationsDir: appsDir,
		MenuDir:         filepath.Join(t.TempDir(), "applications"),
	}
	fa := hostadapter.NewFake()
	r := &reconciler.Reconciler{
		Adapter: fa,
		Tiers:   func() ([]bundle.Tier, error) { return []bundle.Tier{tier}, nil },
	}
	w := &Watcher{
		Reconciler:     r,
		Tiers:          r.Tiers,
		DebounceWindow: 20 * time.Millisecond,
		MaxWindow:      100 * time.Millisecond,
	}
	return w, fa
}

func TestWatchOnceRunsExactlyOneSync(t *testing.T) {
	appsDir := t.TempDir()
	w, _ := newTestWatcher(t, appsDir)

	var reports []*runreport.Report
	w.OnReport = func(r *runreport.Report) { reports = append(reports, r) }

	if err := w.Watch(context.Background(), true); err != nil {
		t.Fatalf("Watch(once): %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected exactly one sync, got %d", len(reports))
	}
}

func TestWatchTriggersOnFileEvent(t *testing.T) {
	appsDir := t.TempDir()
	w, _ := newTestWatcher(t, appsDir)

	reportCh := make(chan *runreport.Report, 8)
	w.OnReport = func(r *runreport.Report) { reportCh <- r }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, false) }()

	// consume the startup sync
	select {
	case <-reportCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for startup sync")
	}

	bundleDir := filepath.Join(appsDir, "Test.lnx")
	if err := os.MkdirAll(filepath.Join(bundleDir, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bundleDir, "bin", "run"), []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bundleDir, "config.toml"), []byte("name=\"Test\"\nexecutable=\"bin/run\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reportCh:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for triggered sync")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after context cancellation")
	}
}

func TestCoalesceStopsAtDebounceWindow(t *testing.T) {
	w := &Watcher{DebounceWindow: 20 * time.Millisecond, MaxWindow: 200 * time.Millisecond}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	defer fsw.Close()

	start := time.Now()
	w.coalesce(fsw)
	if elapsed := time.Since(start); elapsed < w.DebounceWindow || elapsed > w.MaxWindow {
		t.Fatalf("coalesce took %v, want within [%v, %v]", elapsed, w.DebounceWindow, w.MaxWindow)
	}
}

func TestCoalesceNeverExceedsMaxWindow(t *testing.T) {
	w := &Watcher{DebounceWindow: 30 * time.Millisecond, MaxWindow: 80 * time.Millisecond}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	defer fsw.Close()

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				select {
				case fsw.Events <- fsnotify.Event{Name: "x", Op: fsnotify.Write}:
				default:
				}
			}
		}
	}()
	defer close(stop)

	start := time.Now()
	w.coalesce(fsw)
	if elapsed := time.Since(start); elapsed > w.MaxWindow+50*time.Millisecond {
		t.Fatalf("coalesce exceeded MaxWindow: %v > %v", elapsed, w.MaxWindow)
	}
}
