package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/accounts"
	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/store/sqlite"
)

func newInitCommand() *cobra.Command {
	var withDemo bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new ledgerline project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, absDir, withDemo)
		},
	}

	cmd.Flags().BoolVar(&withDemo, "demo", false, "create demo accounts linked to the demo integration")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, withDemo bool) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	cfg := config.Default()
	dirs := []string{
		"logs",
		cfg.ImportDir,
		filepath.Join(cfg.ImportDir, "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Secrets and the database stay out of version control.
	gitignore := "*.db\n*.db-shm\n*.db-wal\n.env\n" + cfg.ImportDir + "/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	ctx := context.Background()
	s, err := sqlite.Open(ctx, filepath.Join(dir, cfg.Database))
	if err != nil {
		return err
	}
	defer s.Close()

	if withDemo {
		svc := accounts.NewService(s, time.Now)
		for _, a := range accounts.DemoAccounts(config.KindDemo) {
			if _, err := svc.Save(ctx, a); err != nil {
				return fmt.Errorf("creating demo accounts: %w", err)
			}
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized ledgerline project at %s\n", dir)
	return nil
}
