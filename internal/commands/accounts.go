package commands

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/id"
	"github.com/ledgerline/ledgerline/internal/model"
)

func newAccountsCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage accounts",
	}
	cmd.AddCommand(
		newAccountsListCommand(g),
		newAccountsAddCommand(g),
		newAccountsLoadCommand(g),
		newAccountsExportCommand(g),
	)
	return cmd
}

func newAccountsListCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			all, err := a.accounts.All(ctx)
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No accounts.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tCURRENCY\tLINKS")
			for _, acct := range all {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", id.Short(acct.ID), acct.Name, acct.Type, acct.Currency, links(acct))
			}
			return tw.Flush()
		},
	}
}

func links(a model.Account) string {
	if len(a.ExternalIDs) == 0 {
		return "-"
	}
	pairs := make([]string, 0, len(a.ExternalIDs))
	for k, v := range a.ExternalIDs {
		pairs = append(pairs, k+"="+v)
	}
	slices.Sort(pairs)
	return strings.Join(pairs, " ")
}

func newAccountsAddCommand(g *globals) *cobra.Command {
	var acct model.Account
	var accountType string
	var link []string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct.Name = args[0]
			acct.Type = model.AccountType(accountType)
			ext, err := parseLinks(link)
			if err != nil {
				return err
			}
			acct.ExternalIDs = ext

			a, ctx, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			saved, err := a.accounts.Save(ctx, acct)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created account %s (%s)\n", saved.Name, id.Short(saved.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&acct.Institution, "institution", "", "bank or card issuer")
	cmd.Flags().StringVar(&acct.Currency, "currency", "", "ISO currency code (default USD)")
	cmd.Flags().StringVar(&accountType, "type", string(model.AccountTypeChecking), "checking, savings, credit, investment, loan or other")
	cmd.Flags().StringArrayVar(&link, "link", nil, "integration=external-id, repeatable")

	return cmd
}

func parseLinks(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("--link %q: expected integration=external-id", p)
		}
		out[k] = v
	}
	return out, nil
}

func newAccountsLoadCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "load <accounts.csv>",
		Short: "Create or update accounts from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening accounts file: %w", err)
			}
			defer f.Close()

			a, ctx, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			saved, err := a.accounts.Load(ctx, f)
			if err != nil {
				return fmt.Errorf("loading %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d accounts\n", len(saved))
			return nil
		},
	}
}

func newAccountsExportCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write all accounts as CSV to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.accounts.Export(ctx, cmd.OutOrStdout())
		},
	}
}
