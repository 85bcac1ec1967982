// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

// Package runreport carries the error taxonomy and per-run outcome report
// shared by the bundle parser, the reconciler and the watcher. Errors here
// are collected, never raised out of band: a bundle-level or artifact-level
// failure is recorded against its path and the run continues, per the
// propagation policy dotlnx documents for its reconciliation loop.
package runreport

import (
	"fmt"
	"sync"
)

// Kind is the coarse error taxonomy surfaced to callers and logs.
type Kind string

const (
	KindConfigParse      Kind = "config_parse"
	KindConfigInvalid    Kind = "config_invalid"
	KindBundleLayout     Kind = "bundle_layout"
	KindDuplicateName    Kind = "duplicate_name"
	KindIo               Kind = "io"
	KindProfileTool      Kind = "profile_tool"
	KindPermissionDenied Kind = "permission_denied"
	KindWatchSetup       Kind = "watch_setup"
)

// SubKind refines a ConfigParse/ConfigInvalid error to the specific rule
// that rejected the bundle.
type SubKind string

const (
	SubSyntax              SubKind = "syntax"
	SubMissingField        SubKind = "missing_field"
	SubInvalidName         SubKind = "invalid_name"
	SubInvalidRelativePath SubKind = "invalid_relative_path"
	SubInvalidAbsolutePath SubKind = "invalid_absolute_path"
	SubExecutableNotFound  SubKind = "executable_not_found"
	SubInvalidEnv          SubKind = "invalid_env"
)

// Error is the single error type used across dotlnx's core packages. It
// carries the offending path so a report can group failures by bundle or
// artifact, and wraps the underlying cause for errors.Unwrap/errors.Is.
type Error struct {
	Kind   Kind
	Sub    SubKind
	Path   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Sub != "" {
		msg = fmt.Sprintf("%s(%s)", msg, e.Sub)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && (t.Sub == "" || t.Sub == e.Sub)
}

// OutcomeKind is what happened to one app during a reconciliation.
type OutcomeKind string

const (
	OutcomeInstalled OutcomeKind = "installed"
	OutcomeUpdated   OutcomeKind = "updated"
	OutcomeRemoved   OutcomeKind = "removed"
	OutcomeUnchanged OutcomeKind = "unchanged"
	OutcomeSkipped   OutcomeKind = "skipped"
	OutcomeError     OutcomeKind = "error"
)

// Outcome records one artifact- or bundle-level result.
type Outcome struct {
	Path   string
	Kind   OutcomeKind
	Detail string
}

// Report accumulates outcomes and errors across one reconciliation. It is
// safe for concurrent use, though the reconciler itself is single-threaded
// per spec; the watcher reads a finished Report from its own goroutine.
type Report struct {
	mu       sync.Mutex
	Outcomes []Outcome
	Errors   []*Error
	DryRun   bool
}

// New returns an empty report.
func New(dryRun bool) *Report {
	return &Report{DryRun: dryRun}
}

// Record appends an outcome.
func (r *Report) Record(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outcomes = append(r.Outcomes, o)
}

// RecordError appends an error and its corresponding error outcome.
func (r *Report) RecordError(err *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, err)
	r.Outcomes = append(r.Outcomes, Outcome{Path: err.Path, Kind: OutcomeError, Detail: err.Error()})
}

// Failed reports whether any error was recorded during the run.
func (r *Report) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Errors) > 0
}

// Merge folds another report's outcomes and errors into r.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outcomes = append(r.Outcomes, other.Outcomes...)
	r.Errors = append(r.Errors, other.Errors...)
}

// Summary renders a human-readable one-shot summary: counts per outcome
// kind followed by one line per error.
func (r *Report) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[OutcomeKind]int{}
	for _, o := range r.Outcomes {
		counts[o.Kind]++
	}
	s := fmt.Sprintf(
		"installed=%d updated=%d removed=%d unchanged=%d skipped=%d errors=%d",
		counts[OutcomeInstalled], counts[OutcomeUpdated], counts[OutcomeRemoved],
		counts[OutcomeUnchanged], counts[OutcomeSkipped], counts[OutcomeError],
	)
	for _, e := range r.Errors {
		s += "\n  " + e.Error()
	}
	return s
}
