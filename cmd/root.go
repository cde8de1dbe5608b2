// Package cmd wires the CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "targetline",
	Short: "Conversational SQL assistant for the list-management database",
	Long: `Targetline answers natural-language questions about the list
management database. It classifies each message, generates a read-only
SQL query when one is needed, executes it with guardrails, and
summarizes the results while keeping per-session conversational memory.

Run "targetline serve" to start the HTTP API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
