// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

// Package cli wires the dotlnx subcommands onto a cobra root command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nivekxyz/dotlnx/internal/pkg/bundle"
	"github.com/nivekxyz/dotlnx/internal/pkg/sylog"
	"github.com/spf13/cobra"
)

// dotlnx command flags
var (
	debug   bool
	verbose bool
	quiet   bool

	applicationsDir       string
	systemApplicationsDir string
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "print debugging information (highest verbosity)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print additional information")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress normal output")
	rootCmd.PersistentFlags().StringVar(&applicationsDir, "applications", "",
		fmt.Sprintf("override the user tier's applications directory (sets %s)", bundle.EnvUserApplications))
	rootCmd.PersistentFlags().StringVar(&systemApplicationsDir, "system-applications", "",
		fmt.Sprintf("override the system tier's applications directory (sets %s)", bundle.EnvSystemApplications))
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		switch {
		case debug:
			sylog.SetLevel(int(sylog.DebugLevel))
		case verbose:
			sylog.SetLevel(int(sylog.VerboseLevel))
		case quiet:
			sylog.SetLevel(int(sylog.WarnLevel))
		}

		// Flags win over any already-set environment variable, matching
		// the teacher's flag-plus-env convention where an explicit flag
		// always takes precedence.
		if applicationsDir != "" {
			os.Setenv(bundle.EnvUserApplications, applicationsDir)
		}
		if systemApplicationsDir != "" {
			os.Setenv(bundle.EnvSystemApplications, systemApplicationsDir)
		}
	}
}

// rootCmd is the base command when dotlnx is called without a subcommand.
var rootCmd = &cobra.Command{
	Use:           "dotlnx",
	Short:         "Reconcile .lnx application bundles with the desktop menu and AppArmor",
	Long:          `dotlnx discovers .lnx application bundles under one or more Applications directories and keeps each one's freedesktop .desktop entry and AppArmor confinement profile in sync with the bundle's config.toml.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// RootCmd returns the root dotlnx cobra command.
func RootCmd() *cobra.Command {
	return rootCmd
}

// errSilentFailure signals that a subcommand already reported its own
// errors via sylog and Execute should only set the exit code.
var errSilentFailure = errors.New("dotlnx: completed with errors")

// Execute runs the root command to completion, returning the process exit
// code. A SIGTERM or SIGINT cancels the context passed down to every
// subcommand so an in-flight sync or watch loop can shut down cleanly.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errSilentFailure) {
			sylog.Errorf("%v", err)
		}
		return 1
	}
	return 0
}
