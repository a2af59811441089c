package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "valuecell",
	Short: "Multi-agent financial analysis coordinator",
	Long: `ValueCell coordinates a team of remote financial analyst agents.

A user turn is planned by an LLM into an execution plan, dispatched to
analyst agents over their streaming protocol, and relayed back as a
typed response stream. Recurring requests (hourly monitoring, daily
summaries) run on a schedule after explicit confirmation.

With no arguments, launches the interactive chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
