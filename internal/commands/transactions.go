package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/accounts"
	"github.com/ledgerline/ledgerline/internal/id"
	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/split"
)

func newTransactionsCommand(g *globals) *cobra.Command {
	var account string
	var includeDeleted bool

	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List an account's transactions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			acct, err := a.accounts.Resolve(ctx, account)
			if err != nil {
				return err
			}
			txns, err := a.store.ListTransactions(ctx, acct.ID, includeDeleted)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tAMOUNT\tDESCRIPTION\tTAGS\tSTATE")
			for _, t := range txns {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					id.Short(t.ID),
					t.TransactionDate.Format(model.DateFormat),
					t.Amount.StringFixed(2),
					t.Description,
					strings.Join(t.Tags, ","),
					state(t))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account name or ID (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().BoolVar(&includeDeleted, "all", false, "include deleted and split parents")

	return cmd
}

func state(t model.Transaction) string {
	switch {
	case t.IsDeleted():
		return "split"
	case t.IsSplitChild():
		return "part of " + id.Short(*t.ParentTransactionID)
	case t.PostedDate == nil:
		return "pending"
	}
	return "posted"
}

func newSplitCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <transaction-id> <amount:description[:tag,tag]>...",
		Short: "Split a transaction into parts",
		Long: `Split a transaction into parts whose amounts add up to the original.

The original stays in the database marked deleted and later syncs keep
matching it, so the parts are never duplicated by a re-sync.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parts := make([]split.Part, 0, len(args)-1)
			for _, s := range args[1:] {
				p, err := split.ParsePart(s)
				if err != nil {
					return err
				}
				parts = append(parts, p)
			}

			a, ctx, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			parent, err := a.resolveTransaction(ctx, args[0])
			if err != nil {
				return err
			}
			children, err := split.NewService(a.store, time.Now, nil).Split(ctx, parent.ID, parts)
			if err != nil {
				return err
			}
			for _, c := range children {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", id.Short(c.ID), c.Amount.StringFixed(2), c.Description)
			}
			return nil
		},
	}
	return cmd
}

// resolveTransaction finds a transaction by full ID or by ID prefix across
// all accounts.
func (a *app) resolveTransaction(ctx context.Context, ref string) (model.Transaction, error) {
	if u, err := uuid.Parse(ref); err == nil {
		return a.store.GetTransaction(ctx, u)
	}
	if !id.IsPrefix(ref) {
		return model.Transaction{}, fmt.Errorf("transaction %q: not an ID", ref)
	}
	all, err := a.accounts.All(ctx)
	if err != nil {
		return model.Transaction{}, err
	}
	var matches []model.Transaction
	for _, acct := range all {
		txns, err := a.store.ListTransactions(ctx, acct.ID, true)
		if err != nil {
			return model.Transaction{}, err
		}
		for _, t := range txns {
			if id.MatchPrefix(t.ID, ref) {
				matches = append(matches, t)
			}
		}
	}
	switch len(matches) {
	case 0:
		return model.Transaction{}, fmt.Errorf("transaction %q: %w", ref, model.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return model.Transaction{}, fmt.Errorf("transaction %q matches %d transactions: %w", ref, len(matches), accounts.ErrAmbiguous)
	}
}
