package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cardflip",
	Short: "A CLI for the card flip decision engine services",
	Long: `Card flip engine watches a second-hand marketplace for trading cards,
values each listing against recent sales, scores risk and profit, and walks
promising items through manual review, paper trading and repricing.

Binaries:
  engine-service  serve | scan-once | monitor-once | analyze-open | reprice | enqueue-analysis
  migrate         up | down`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI '%s'", err)
		os.Exit(1)
	}
}
