package main

import (
	"os"

	"github.com/spf13/cobra"
)

// @title Clinic Scheduler API
// @version 1.0.0
// @description Provider availability, slot ranking, conflict-free booking and schedule optimization.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	rootCmd := &cobra.Command{
		Use:           "clinic-scheduler",
		Short:         "Provider appointment scheduling service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(optimizeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
