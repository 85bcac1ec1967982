// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

package hostadapter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nivekxyz/dotlnx/internal/pkg/bundle"
)

// FakeAdapter is an in-memory Adapter used by the reconciler's test suite,
// so every invariant in the spec can be exercised without root and without
// AppArmor.
type FakeAdapter struct {
	mu sync.Mutex

	// desktop[tier.MenuDir][basename] = content
	desktop map[string]map[string][]byte
	// profiles[filename] = content
	profiles map[string][]byte
	// loaded is the set of currently loaded profile filenames
	loaded map[string]bool

	HaveApparmorVal bool
	IsRootVal       bool

	// LoadErr/UnloadErr, when set, are returned by every LoadProfile /
	// UnloadProfile call instead of succeeding.
	LoadErr   error
	UnloadErr error

	// Writes/Removes/Loads/Unloads count mutating calls, so idempotence
	// tests can assert a second sync makes zero of them.
	Writes, Removes, Loads, Unloads int
}

// NewFake returns a FakeAdapter with AppArmor support and root both enabled,
// the common case for exercising confinement in tests.
func NewFake() *FakeAdapter {
	return &FakeAdapter{
		desktop:         map[string]map[string][]byte{},
		profiles:        map[string][]byte{},
		loaded:          map[string]bool{},
		HaveApparmorVal: true,
		IsRootVal:       true,
	}
}

func (f *FakeAdapter) ListInstalledDesktop(tier bundle.Tier) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name, content := range f.desktop[tier.MenuDir] {
		if strings.HasPrefix(name, tier.ProfilePrefix()) && strings.Contains(string(content), "X-DotLnx-Managed=true") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *FakeAdapter) ReadDesktop(tier bundle.Tier, basename string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.desktop[tier.MenuDir][basename]
	if !ok {
		return nil, fmt.Errorf("no such desktop file: %s", basename)
	}
	return content, nil
}

func (f *FakeAdapter) WriteDesktop(tier bundle.Tier, basename string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.desktop[tier.MenuDir] == nil {
		f.desktop[tier.MenuDir] = map[string][]byte{}
	}
	f.desktop[tier.MenuDir][basename] = append([]byte(nil), content...)
	f.Writes++
	return nil
}

func (f *FakeAdapter) RemoveDesktop(tier bundle.Tier, basename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.desktop[tier.MenuDir], basename)
	f.Removes++
	return nil
}

func (f *FakeAdapter) ListInstalledProfiles(tier bundle.Tier) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name := range f.profiles {
		if strings.HasPrefix(name, tier.ProfilePrefix()) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *FakeAdapter) ReadProfile(filename string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.profiles[filename]
	if !ok {
		return nil, fmt.Errorf("no such profile: %s", filename)
	}
	return content, nil
}

func (f *FakeAdapter) WriteProfile(filename string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[filename] = append([]byte(nil), content...)
	f.Writes++
	return nil
}

func (f *FakeAdapter) RemoveProfile(filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.profiles, filename)
	f.Removes++
	return nil
}

func (f *FakeAdapter) LoadProfile(ctx context.Context, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Loads++
	if f.LoadErr != nil {
		return f.LoadErr
	}
	f.loaded[filename] = true
	return nil
}

func (f *FakeAdapter) UnloadProfile(ctx context.Context, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Unloads++
	if f.UnloadErr != nil {
		return f.UnloadErr
	}
	delete(f.loaded, filename)
	return nil
}

func (f *FakeAdapter) HaveApparmor() bool { return f.HaveApparmorVal }
func (f *FakeAdapter) IsRoot() bool       { return f.IsRootVal }

// IsLoaded reports whether filename is currently loaded, for test
// assertions.
func (f *FakeAdapter) IsLoaded(filename string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded[filename]
}

// ResetCounters zeroes the mutating-call counters, used between two
// reconciliations in idempotence tests.
func (f *FakeAdapter) ResetCounters() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes, f.Removes, f.Loads, f.Unloads = 0, 0, 0, 0
}

var _ Adapter = (*FakeAdapter)(nil)
