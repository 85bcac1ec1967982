// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

// Package reconciler implements the diff-and-apply core described as THE
// CORE of dotlnx: observe every bundle across every tier, render the
// desktop entry and (when confined) AppArmor profile each one wants, and
// make the host's managed artifact set match by calling into a
// hostadapter.Adapter. A reconciliation never mutates bundle contents and
// never touches an artifact outside the managed namespace.
package reconciler

import (
	"bytes"
	"context"
	"sort"

	"github.com/nivekxyz/dotlnx/internal/pkg/artifact"
	"github.com/nivekxyz/dotlnx/internal/pkg/bundle"
	"github.com/nivekxyz/dotlnx/internal/pkg/hostadapter"
	"github.com/nivekxyz/dotlnx/internal/pkg/runreport"
	"github.com/nivekxyz/dotlnx/internal/pkg/sylog"
)

// Reconciler owns one hostadapter.Adapter and performs reconciliations
// against it.
type Reconciler struct {
	Adapter hostadapter.Adapter
	// Tiers resolves the set of tiers to reconcile. Defaults to
	// bundle.ResolveTiers; tests override it to avoid touching /home.
	Tiers func() ([]bundle.Tier, error)
}

// New returns a Reconciler using the real tier-resolution rules.
func New(adapter hostadapter.Adapter) *Reconciler {
	return &Reconciler{Adapter: adapter, Tiers: bundle.ResolveTiers}
}

// Sync performs one full reconciliation: enumerate every tier and its
// bundles, compute the desired artifact set, and apply the diff against the
// adapter. When dryRun is true, every mutating adapter call is skipped but
// reads still happen and the returned report still describes what would
// have changed.
func (r *Reconciler) Sync(ctx context.Context, dryRun bool) *runreport.Report {
	report := runreport.New(dryRun)

	tiers, err := r.Tiers()
	if err != nil {
		report.RecordError(&runreport.Error{Kind: runreport.KindIo, Detail: "cannot resolve tiers", Err: err})
		return report
	}

	// User tiers first, to minimize the window where a user-tier app
	// referring to a shared resource lacks its profile.
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].Kind == bundle.User && tiers[j].Kind == bundle.System
	})

	apparmorActive := r.Adapter.HaveApparmor() && r.Adapter.IsRoot()

	for _, tier := range tiers {
		r.syncTier(ctx, tier, apparmorActive, dryRun, report)
	}

	return report
}

func (r *Reconciler) syncTier(ctx context.Context, tier bundle.Tier, apparmorActive, dryRun bool, report *runreport.Report) {
	paths, err := bundle.Discover(tier.ApplicationsDir)
	if err != nil {
		sylog.Errorf("skipping root %s: %v", tier.ApplicationsDir, err)
		if rerr, ok := err.(*runreport.Error); ok {
			report.RecordError(rerr)
		}
		return
	}

	apps := r.resolveApps(paths, tier, report)

	desiredDesktop := map[string][]byte{}
	desiredProfiles := map[string][]byte{}
	profileShouldLoad := map[string]bool{}

	for _, app := range apps {
		confinedAndLoaded := app.Config.Confine() && apparmorActive
		data, err := artifact.GenerateDesktop(app, confinedAndLoaded)
		if err != nil {
			report.RecordError(&runreport.Error{Kind: runreport.KindIo, Path: app.Path, Detail: "cannot render desktop entry", Err: err})
			continue
		}
		desiredDesktop[app.DesktopBasename()] = data

		if app.Config.Confine() {
			profile, err := artifact.GenerateProfile(app)
			if err != nil {
				report.RecordError(&runreport.Error{Kind: runreport.KindIo, Path: app.Path, Detail: "cannot render AppArmor profile", Err: err})
				continue
			}
			desiredProfiles[app.ProfileFilename()] = profile
			profileShouldLoad[app.ProfileFilename()] = apparmorActive
		}
	}

	r.applyDesktop(tier, desiredDesktop, dryRun, report)
	if apparmorActive {
		r.applyProfiles(ctx, tier, desiredProfiles, profileShouldLoad, dryRun, report)
	}
}

// resolveApps parses and validates every bundle path, skipping duplicates
// within the tier (keeping the lexicographically first, i.e. first in
// paths since Discover returns a sorted slice) and recording an error for
// every bundle that fails validation or loses a duplicate-name race.
func (r *Reconciler) resolveApps(paths []string, tier bundle.Tier, report *runreport.Report) []*bundle.ResolvedApp {
	seen := map[string]string{} // name -> first bundle path
	var apps []*bundle.ResolvedApp

	for _, p := range paths {
		cfg, err := bundle.ParseConfig(p)
		if err != nil {
			if rerr, ok := err.(*runreport.Error); ok {
				report.RecordError(rerr)
			} else {
				report.RecordError(&runreport.Error{Kind: runreport.KindConfigInvalid, Path: p, Err: err})
			}
			continue
		}

		if first, dup := seen[cfg.Name]; dup {
			report.RecordError(&runreport.Error{
				Kind: runreport.KindDuplicateName, Path: p,
				Detail: "duplicate name " + cfg.Name + ", keeping " + first,
			})
			continue
		}
		seen[cfg.Name] = p

		apps = append(apps, &bundle.ResolvedApp{Config: cfg, Path: p, Tier: tier})
		report.Record(runreport.Outcome{Path: p, Kind: runreport.OutcomeUnchanged, Detail: "validated"})
	}
	return apps
}

func (r *Reconciler) applyDesktop(tier bundle.Tier, desired map[string][]byte, dryRun bool, report *runreport.Report) {
	installed, err := r.Adapter.ListInstalledDesktop(tier)
	if err != nil {
		report.RecordError(asIoErr(tier.MenuDir, "cannot list installed desktop files", err))
		return
	}
	installedSet := map[string]bool{}
	for _, name := range installed {
		installedSet[name] = true
	}

	for basename, content := range desired {
		current, readErr := r.Adapter.ReadDesktop(tier, basename)
		switch {
		case readErr == nil && !installedSet[basename]:
			// An existing file without the X-DotLnx-Managed marker is never overwritten.
			sylog.Warningf("not overwriting unmanaged desktop file %s in %s", basename, tier.MenuDir)
			report.Record(runreport.Outcome{Path: basename, Kind: runreport.OutcomeSkipped, Detail: "existing desktop file is not managed by dotlnx"})
		case readErr != nil:
			if !dryRun {
				if err := r.Adapter.WriteDesktop(tier, basename, content); err != nil {
					report.RecordError(asIoErr(basename, "cannot write desktop file", err))
					continue
				}
			}
			report.Record(runreport.Outcome{Path: basename, Kind: runreport.OutcomeInstalled})
		case !bytes.Equal(current, content):
			if !dryRun {
				if err := r.Adapter.WriteDesktop(tier, basename, content); err != nil {
					report.RecordError(asIoErr(basename, "cannot update desktop file", err))
					continue
				}
			}
			report.Record(runreport.Outcome{Path: basename, Kind: runreport.OutcomeUpdated})
		default:
			report.Record(runreport.Outcome{Path: basename, Kind: runreport.OutcomeUnchanged})
		}
	}

	for name := range installedSet {
		if _, ok := desired[name]; ok {
			continue
		}
		if !dryRun {
			if err := r.Adapter.RemoveDesktop(tier, name); err != nil {
				report.RecordError(asIoErr(name, "cannot remove desktop file", err))
				continue
			}
		}
		report.Record(runreport.Outcome{Path: name, Kind: runreport.OutcomeRemoved})
	}
}

func (r *Reconciler) applyProfiles(ctx context.Context, tier bundle.Tier, desired map[string][]byte, shouldLoad map[string]bool, dryRun bool, report *runreport.Report) {
	installed, err := r.Adapter.ListInstalledProfiles(tier)
	if err != nil {
		report.RecordError(asIoErr(hostadapter.ProfileDir, "cannot list installed profiles", err))
		return
	}
	installedSet := map[string]bool{}
	for _, name := range installed {
		installedSet[name] = true
	}

	for filename, content := range desired {
		current, readErr := r.Adapter.ReadProfile(filename)
		changed := readErr != nil || !bytes.Equal(current, content)
		if !changed {
			report.Record(runreport.Outcome{Path: filename, Kind: runreport.OutcomeUnchanged})
			continue
		}

		kind := runreport.OutcomeUpdated
		if readErr != nil {
			kind = runreport.OutcomeInstalled
		}

		if !dryRun {
			if err := r.Adapter.WriteProfile(filename, content); err != nil {
				report.RecordError(asIoErr(filename, "cannot write profile", err))
				continue
			}
			if shouldLoad[filename] {
				if err := r.Adapter.LoadProfile(ctx, filename); err != nil {
					// A load failure never rolls back the desktop entry; the
					// app stays installed but unconfined.
					sylog.Warningf("profile %s failed to load, app remains unconfined: %v", filename, err)
					if rerr, ok := err.(*runreport.Error); ok {
						report.RecordError(rerr)
					}
				}
			}
		}
		report.Record(runreport.Outcome{Path: filename, Kind: kind})
	}

	for name := range installedSet {
		if _, ok := desired[name]; ok {
			continue
		}
		if !dryRun {
			if err := r.Adapter.UnloadProfile(ctx, name); err != nil {
				sylog.Warningf("profile %s failed to unload cleanly: %v", name, err)
			}
			if err := r.Adapter.RemoveProfile(name); err != nil {
				report.RecordError(asIoErr(name, "cannot remove profile", err))
				continue
			}
		}
		report.Record(runreport.Outcome{Path: name, Kind: runreport.OutcomeRemoved})
	}
}

func asIoErr(path, detail string, err error) *runreport.Error {
	if rerr, ok := err.(*runreport.Error); ok {
		return rerr
	}
	return &runreport.Error{Kind: runreport.KindIo, Path: path, Detail: detail, Err: err}
}
