package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/myelectricaldata/importer/internal/version"

	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	var monitoringAddr string
	var usagePointID string

	var rootCmd = &cobra.Command{
		Use:     "importer",
		Short:   "MyElectricalData import job",
		Version: version.Version,
	}

	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled import job",
		Run: func(cmd *cobra.Command, args []string) {
			startImportService(monitoringAddr)
		},
	}
	serveCmd.Flags().StringVarP(&monitoringAddr, "monitoring", "m", "", "monitoring listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)

	var importCmd = &cobra.Command{
		Use:   "import",
		Short: "Run a single import and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), usagePointID)
		},
	}
	importCmd.Flags().StringVarP(&usagePointID, "usage-point", "u", "", "only import this usage point")
	rootCmd.AddCommand(importCmd)

	var accountStatusCmd = &cobra.Command{
		Use:   "account-status <usage_point_id>",
		Short: "Query the account status of a usage point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printAccountStatus(cmd.Context(), args[0], cmd.OutOrStdout())
		},
	}
	rootCmd.AddCommand(accountStatusCmd)

	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd := NewRootCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
