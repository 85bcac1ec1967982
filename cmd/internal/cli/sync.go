// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

package cli

import (
	"fmt"
	"os"

	"github.com/nivekxyz/dotlnx/internal/pkg/hostadapter"
	"github.com/nivekxyz/dotlnx/internal/pkg/lock"
	"github.com/nivekxyz/dotlnx/internal/pkg/reconciler"
	"github.com/nivekxyz/dotlnx/internal/pkg/sylog"
	"github.com/spf13/cobra"
)

var syncDryRun bool

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "report what would change without writing or loading anything")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile every discovered bundle once and exit",
	Long:  `sync performs a single reconciliation pass: it discovers bundles under every applications root, validates each one, and brings the desktop entries and AppArmor profiles in line with what the bundles declare.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		heldLock, err := lock.Acquire()
		if err != nil {
			return err
		}
		defer heldLock.Close()

		r := reconciler.New(hostadapter.New())
		report := r.Sync(cmd.Context(), syncDryRun)

		fmt.Fprintln(os.Stdout, report.Summary())
		if report.Failed() {
			sylog.Errorf("sync completed with errors")
			return errSilentFailure
		}
		return nil
	},
}
