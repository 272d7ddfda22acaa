package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/model"
)

func newStatusCommand(g *globals) *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database totals and recent syncs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.store.Stats(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Accounts:     %d\n", st.Accounts)
			fmt.Fprintf(w, "Transactions: %d\n", st.Transactions)
			fmt.Fprintf(w, "Snapshots:    %d\n", st.Snapshots)
			if st.Earliest != nil && st.Latest != nil {
				fmt.Fprintf(w, "Date range:   %s to %s\n",
					st.Earliest.Format(model.DateFormat), st.Latest.Format(model.DateFormat))
			}

			entries, err := a.runs.Read()
			if err != nil {
				return err
			}
			if len(entries) == 0 || recent <= 0 {
				return nil
			}
			if len(entries) > recent {
				entries = entries[len(entries)-recent:]
			}
			fmt.Fprintln(w, "\nRecent syncs:")
			for _, e := range entries {
				outcome := fmt.Sprintf("%d new, %d updated, %d skipped", e.New, e.Updated, e.Skipped)
				if e.Error != "" {
					outcome = "failed: " + e.Error
				}
				fmt.Fprintf(w, "  %s  %-10s %s\n", e.Timestamp.Local().Format(time.DateTime), e.Integration, outcome)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 5, "number of recent syncs to show")

	return cmd
}
