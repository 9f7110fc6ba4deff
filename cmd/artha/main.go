// artha - a paper-trading portfolio ledger for Indian equities
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configDir string
	gameID    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "artha",
		Short: "Paper-trading portfolio ledger",
		Long: `artha runs a paper-trading game: buy and sell shares against virtual cash,
value the portfolio at simulated market prices and checkpoint it to the database.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", "./configs", "Directory containing config.yml")
	rootCmd.PersistentFlags().StringVarP(&gameID, "game", "g", "", "Portfolio id (defaults to the most recent game)")

	rootCmd.AddCommand(newCmd())
	rootCmd.AddCommand(tradeCmd("buy"))
	rootCmd.AddCommand(tradeCmd("sell"))
	rootCmd.AddCommand(valueCmd())
	rootCmd.AddCommand(insightsCmd())
	rootCmd.AddCommand(advanceCmd())
	rootCmd.AddCommand(checkpointCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
