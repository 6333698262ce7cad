package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/biodoia/agentmesh/cmd/coordinator/commands"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "agentmesh",
		Short: "AgentMesh - Agent Coordination Service",
		Long: `AgentMesh - Enterprise Agent Coordination Service

A coordination layer that routes requests across specialized agents
with client-aware context, health tracking, and graceful degradation.

Features:
  • Intent-based routing with per-agent circuit breakers
  • Client knowledge tree with TTL cache and single-flight fetch
  • Exposure policies filtering client data per agent type
  • Concurrent dispatch with bounded retry and deadlines
  • Deterministic response synthesis with brand-tone alignment
  • Prometheus metrics and quality/performance reporting`,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")

	// Add all commands
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.DoctorCmd)
	rootCmd.AddCommand(commands.ConfigCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("AgentMesh version %s\n", version)
			fmt.Printf("Commit: %s\n", commit)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
