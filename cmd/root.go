package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/neuropipe/broker/cmd/gen"
)

var RootCmd = &cobra.Command{
	Use:   "neuropipe",
	Short: "NeuroPipe topic broker",
	Long: `NeuroPipe is a lightweight topic-based publish/subscribe message
broker that speaks a small line-delimited TCP protocol.

Usage
	neuropipe start
`,
}

func init() {
	RootCmd.AddCommand(StartCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

// Execute runs the root command, printing any returned error and exiting
// with a non-zero status on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
