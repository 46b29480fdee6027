// Command marocco-map runs the neuromorphic mapping pipeline end to end:
// it loads a bio graph and a resource manifest, runs every placement and
// routing stage against a Configuration, and persists the resulting
// Results container.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var rootCmd = &cobra.Command{
	Use:   "marocco-map",
	Short: "Map a biological network onto a wafer-scale neuromorphic substrate",
	Long: `marocco-map places biological neurons and projections onto a fixed
wafer of analog neuromorphic chips, routes the resulting events across the
on-wafer L1 network, and translates biological parameters into hardware
register values.`,
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := rootCmd.Execute(); err != nil {
		slog.Error("marocco-map: command failed", slog.String("error", err.Error()))
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
