// Command boardsync runs board reconciliation and webhook maintenance from the
// command line against the configured database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tometh04/vibook-services-sub001/internal/bootstrap"
)

func main() {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "boardsync",
		Short:         "Reconcile board cards into leads",
		Version:       bootstrap.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config.toml")
	rootCmd.PersistentFlags().StringVar(&opts.tenant, "tenant", "", "Tenant ID (defaults to board.seed_tenant_id)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log.level")

	rootCmd.AddCommand(reconcileCmd(opts))
	rootCmd.AddCommand(resetCmd(opts))
	rootCmd.AddCommand(syncCardCmd(opts))
	rootCmd.AddCommand(webhookCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
