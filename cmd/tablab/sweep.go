package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hanzhu/tablab/internal/retention"
)

var sweepFlags struct {
	dir string
	ttl time.Duration
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove result directories older than the TTL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if sweepFlags.ttl <= 0 {
			return fmt.Errorf("--ttl must be positive")
		}
		removed := retention.Sweep(sweepFlags.dir, sweepFlags.ttl)
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired result directories\n", removed)
		return nil
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepFlags.dir, "dir", "out", "results directory")
	sweepCmd.Flags().DurationVar(&sweepFlags.ttl, "ttl", 24*time.Hour, "age after which results are removed")
	rootCmd.AddCommand(sweepCmd)
}
