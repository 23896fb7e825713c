package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tokengate",
	Short: "Token holder indexer for token gating",
	Long:  "Classifies token contracts from their bytecode, ingests their transfer history from block explorers and keeps wallet balances up to date",
	// usage output on runtime errors hides the actual error message
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the config file, if empty string defaults will be used")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
