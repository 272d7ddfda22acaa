// Package commands implements the ledgerline CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/buildinfo"
	"github.com/ledgerline/ledgerline/internal/config"
)

// globals are the persistent flags shared by every command.
type globals struct {
	configPath string
	logLevel   string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:     "ledgerline",
		Short:   "Sync bank transactions into a local ledger without duplicates",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", config.FileName, "path to ledgerline.yaml")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(
		newInitCommand(),
		newAccountsCommand(g),
		newSyncCommand(g),
		newImportCommand(g),
		newTransactionsCommand(g),
		newSplitCommand(g),
		newBalanceCommand(g),
		newStatusCommand(g),
		newSimpleFINCommand(g),
	)

	return rootCmd
}
