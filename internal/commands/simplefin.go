package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/source/simplefin"
)

func newSimpleFINCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simplefin",
		Short: "Connect and inspect SimpleFIN integrations",
	}
	cmd.AddCommand(
		newSimpleFINClaimCommand(g),
		newSimpleFINAccountsCommand(g),
	)
	return cmd
}

func newSimpleFINClaimCommand(g *globals) *cobra.Command {
	var integration string

	cmd := &cobra.Command{
		Use:   "claim <setup-token>",
		Short: "Exchange a setup token for an access URL and store it in .env",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(g.configPath)
			if err != nil {
				return err
			}
			if _, ok := cfg.Integration(integration); !ok {
				cfg.Integrations = append(cfg.Integrations, config.Integration{
					Name: integration,
					Kind: config.KindSimpleFIN,
				})
				if err := cfg.Validate(); err != nil {
					return err
				}
				if err := config.Save(g.configPath, cfg); err != nil {
					return err
				}
			}

			access, err := simplefin.New().Claim(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			envPath := filepath.Join(cfg.Root, ".env")
			env, err := godotenv.Read(envPath)
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("reading .env: %w", err)
				}
				env = map[string]string{}
			}
			env[config.AccessURLEnv(integration)] = access
			if err := godotenv.Write(env, envPath); err != nil {
				return fmt.Errorf("writing .env: %w", err)
			}
			if err := os.Chmod(envPath, 0o600); err != nil {
				return fmt.Errorf("securing .env: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored access URL for %s in %s\n", integration, envPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&integration, "integration", config.KindSimpleFIN, "integration to store the access URL for")

	return cmd
}

func newSimpleFINAccountsCommand(g *globals) *cobra.Command {
	var integration string

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List the accounts an access URL can see and which local account each is linked to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			in, ok := a.cfg.Integration(integration)
			if !ok || in.Kind != config.KindSimpleFIN {
				return fmt.Errorf("integration %q is not a simplefin integration", integration)
			}
			remote, err := simplefin.New().Accounts(ctx, in.Settings[simplefin.SettingAccessURL])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EXTERNAL ID\tNAME\tINSTITUTION\tBALANCE\tLINKED TO")
			for _, r := range remote {
				linked := "-"
				acct, err := a.accounts.ByExternalID(ctx, integration, r.ID)
				switch {
				case err == nil:
					linked = acct.Name
				case !errors.Is(err, model.ErrNotFound):
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\n", r.ID, r.Name, r.Institution, r.Balance, r.Currency, linked)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&integration, "integration", config.KindSimpleFIN, "simplefin integration name")

	return cmd
}
