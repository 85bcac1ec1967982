// Copyright (c) dotlnx contributors.
// Licensed under the Apache License, Version 2.0.

package cli

import (
	"github.com/nivekxyz/dotlnx/internal/pkg/hostadapter"
	"github.com/nivekxyz/dotlnx/internal/pkg/lock"
	"github.com/nivekxyz/dotlnx/internal/pkg/reconciler"
	"github.com/nivekxyz/dotlnx/internal/pkg/sylog"
	"github.com/nivekxyz/dotlnx/internal/pkg/watcher"
	"github.com/spf13/cobra"
)

var watchOnce bool

func init() {
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "perform the startup sync and exit, without watching for further changes")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sync at startup, then keep reconciling as bundles change",
	Long:  `watch performs a startup sync and then watches every applications root for filesystem activity, coalescing bursts of changes into additional sync passes until it receives SIGINT or SIGTERM.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		heldLock, err := lock.Acquire()
		if err != nil {
			return err
		}
		defer heldLock.Close()

		r := reconciler.New(hostadapter.New())
		w := watcher.New(r)

		if err := w.Watch(cmd.Context(), watchOnce); err != nil {
			sylog.Errorf("watch: %v", err)
			return errSilentFailure
		}
		return nil
	},
}
