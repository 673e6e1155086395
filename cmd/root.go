/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mythbuster",
	Short: "WhatsApp bot that fact-checks claims with an LLM",
	Long: `Myth-Buster answers chat messages: greetings and help requests get canned
replies, claims get an LLM fact-check with a confidence score and the sources
it cites.

Run "mythbuster serve" for the WhatsApp webhook gateway, "mythbuster check" to
try one message, or "mythbuster chat" for a terminal simulator.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
