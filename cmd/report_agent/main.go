// Package main provides the entry point for the sectional report service and its client.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "report_agent",
	Short: "Sectional Report Service",
	Long: `Generates assessment reports section by section in the background and serves their progress
and final artifact over a REST API. Client commands trigger and follow a generation from the terminal.`,
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
