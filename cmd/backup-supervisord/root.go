// Package main is the backup-supervisord binary: a cobra root command
// wiring the Job Supervisor Core (C1-C8) behind the host-ward HTTP surface.
package main

import (
	"fmt"
	"os"

	"github.com/molotovsingh/personal-backup-tool/internal/config"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "backup-supervisord",
	Short: "Backup orchestration service: job supervisor core",
	Long: "backup-supervisord supervises concurrent local-copy and cloud-copy " +
		"transfer processes, persists job definitions and run-state, and " +
		"exposes live progress to subscribers over the host-ward JSON/SSE API.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Init(cfgFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.toml)")
	config.BindFlags(rootCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
