package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is the release version stamped at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "firstwallet",
	Short: "firstwallet is a local Ethereum key-custody daemon",
	Long: `A local key-custody daemon holding one encrypted Ethereum wallet.
It exposes a loopback HTTP surface: a JSON-RPC relay for page-originated
requests and privileged endpoints for the wallet UI.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
