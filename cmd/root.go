package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tg-payments",
	Short: "Telegram payment-link bot",
	Long:  "A Telegram bot that creates Instamojo payment links on /pay and tracks their status through gateway callbacks.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
