// Command clickcore runs a packet-processing router built from a
// textual, YAML, or archive configuration, standalone or as a member
// of a Raft-replicated agent cluster.
package main

import (
	"fmt"
	"os"

	"github.com/cuemby/clickcore/pkg/log"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "clickcore",
	Short: "clickcore - modular packet-processing router",
	Long: `clickcore builds a packet-processing graph from a declarative
configuration (textual, YAML, or archive) and drives it with a
stride-scheduled, multi-threaded task runner.

A single node runs standalone with "clickcore run"; a fleet of nodes
replicates its configuration and roster through Raft with
"clickcore cluster".`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"clickcore version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(controlCmd)
	rootCmd.AddCommand(clusterCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
