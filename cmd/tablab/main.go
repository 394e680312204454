// Package main is the tablab command line tool: offline analysis, model
// training, and retention sweeps against the same engine the server uses.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "tablab",
	Short:        "Tabular analysis toolkit",
	Long:         "Analyze tabular files for anomalies, train isolation forest models, and manage result retention.",
	SilenceUsage: true,
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
