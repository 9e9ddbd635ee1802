// Package cmd provides the CLI commands for Aegis Guard.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aegis-Guard/Aegisguard/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "aegis-guard",
	Short: "Aegis Guard - runtime policy enforcement for agent workflows",
	Long: `Aegis Guard enforces natural-language safety policies on multi-agent
workflows at runtime. Policies are distilled into boolean predicates and
propositional rules; every inter-agent message and tool call is checked
against the active rule set before it goes through.

Quick start:
  1. Extract a policy document: aegis-guard extract policy.md
  2. Check the result compiles:  aegis-guard validate policy.md.cache.json
  3. Replay a recorded run:      aegis-guard replay transcript.json --policy policy.md.cache.json

Configuration:
  Config is loaded from aegis-guard.yaml in the current directory,
  $HOME/.aegis-guard/, or /etc/aegis-guard/.

  Environment variables can override config values with the AEGISGUARD_ prefix.
  Example: AEGISGUARD_ORACLES_JUDGE_MODEL=claude-sonnet-4-5

Commands:
  extract     Extract predicates and rules from a policy document
  validate    Parse and compile a policy list, reporting per-rule errors
  replay      Drive a recorded transcript through the guard pipeline
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./aegis-guard.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
