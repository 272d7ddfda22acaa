package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/balances"
	"github.com/ledgerline/ledgerline/internal/model"
)

func newBalanceCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Record and reconstruct account balances",
	}
	cmd.AddCommand(
		newBalanceAddCommand(g),
		newBalanceListCommand(g),
		newBalanceBackfillCommand(g),
	)
	return cmd
}

func newBalanceAddCommand(g *globals) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "add <account> <amount>",
		Short: "Record a balance read off a statement",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("parsing amount %q: %w", args[1], err)
			}
			day, err := parseDate("date", date)
			if err != nil {
				return err
			}
			var at time.Time
			if day != nil {
				at = day.Add(24*time.Hour - time.Second)
			}

			a, ctx, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			acct, err := a.accounts.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			snap, err := balances.NewService(a.store, a.now, nil).AddManual(ctx, acct.ID, amount, at)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s balance %s on %s\n",
				acct.Name, snap.Balance.StringFixed(2), snap.SnapshotTime.Format(model.DateFormat))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "statement date (YYYY-MM-DD, default now)")

	return cmd
}

func newBalanceListCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list <account>",
		Short: "List balance snapshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			acct, err := a.accounts.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			snaps, err := a.store.ListBalanceSnapshots(ctx, acct.ID, nil)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tBALANCE\tSOURCE")
			for _, s := range snaps {
				src := string(s.Source)
				if src == "" {
					src = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.SnapshotTime.Format(time.RFC3339), s.Balance.StringFixed(2), src)
			}
			return tw.Flush()
		},
	}
}

func newBalanceBackfillCommand(g *globals) *cobra.Command {
	var days int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "backfill <account>...",
		Short: "Estimate past daily balances from transactions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			svc := balances.NewService(a.store, a.now, nil)
			for _, ref := range args {
				acct, err := a.accounts.Resolve(ctx, ref)
				if err != nil {
					return err
				}
				res, err := svc.Backfill(ctx, acct.ID, days, dryRun)
				if err != nil {
					return fmt.Errorf("%s: %w", acct.Name, err)
				}
				verb := "created"
				if dryRun {
					verb = "would create"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %d snapshots before %s, %d days already had one\n",
					acct.Name, verb, len(res.Created), res.AnchorDay.Format(model.DateFormat), res.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 90, "how many days back to estimate")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute without saving")

	return cmd
}
