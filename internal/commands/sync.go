package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/source/csvsource"
	"github.com/ledgerline/ledgerline/internal/syncer"
)

type syncFlags struct {
	account     string
	integration string
	start       string
	end         string
	dryRun      bool
}

func newSyncCommand(g *globals) *cobra.Command {
	var f syncFlags

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch new transactions and balances",
		Long: `Fetch new transactions and balances from the configured integrations.

With no flags every account is synced against every integration it is
linked to. --account and --integration narrow the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, g, f)
		},
	}

	cmd.Flags().StringVar(&f.account, "account", "", "account name or ID")
	cmd.Flags().StringVar(&f.integration, "integration", "", "integration name")
	cmd.Flags().StringVar(&f.start, "start", "", "first date to fetch (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "last date to fetch (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "classify without writing anything")

	return cmd
}

func runSync(cmd *cobra.Command, g *globals, f syncFlags) error {
	start, err := parseDate("start", f.start)
	if err != nil {
		return err
	}
	end, err := parseDate("end", f.end)
	if err != nil {
		return err
	}

	a, ctx, err := openApp(cmd.Context(), g)
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := a.engine()
	if err != nil {
		return err
	}

	var results []*syncer.SyncResult
	if f.account == "" && f.integration == "" && start == nil && end == nil {
		results, err = engine.SyncAll(ctx, syncer.SyncAllRequest{DryRun: f.dryRun})
		if err != nil {
			return err
		}
	} else {
		reqs, err := a.syncRequests(ctx, engine, f.account, f.integration)
		if err != nil {
			return err
		}
		for _, req := range reqs {
			req.Start, req.End, req.DryRun = start, end, f.dryRun
			res, _ := engine.Sync(ctx, req)
			results = append(results, res)
		}
	}
	return a.report(ctx, cmd.OutOrStdout(), results)
}

// syncRequests expands the account and integration filters into pairs.
func (a *app) syncRequests(ctx context.Context, engine *syncer.Engine, accountRef, integration string) ([]syncer.SyncRequest, error) {
	var accts []model.Account
	if accountRef != "" {
		acct, err := a.accounts.Resolve(ctx, accountRef)
		if err != nil {
			return nil, err
		}
		accts = []model.Account{acct}
	} else {
		all, err := a.accounts.All(ctx)
		if err != nil {
			return nil, err
		}
		accts = all
	}

	names := engine.Integrations()
	if integration != "" {
		names = []string{integration}
	}

	var reqs []syncer.SyncRequest
	for _, acct := range accts {
		for _, name := range names {
			// An explicit pair is always attempted; otherwise only linked
			// integrations are.
			if acct.ExternalID(name) == "" && (accountRef == "" || integration == "") {
				continue
			}
			reqs = append(reqs, syncer.SyncRequest{AccountID: acct.ID, Integration: name})
		}
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("nothing to sync: no account is linked to the selected integrations")
	}
	return reqs, nil
}

// report prints one line per result and fails when any sync failed.
func (a *app) report(ctx context.Context, w io.Writer, results []*syncer.SyncResult) error {
	names := map[string]string{}
	if all, err := a.accounts.All(ctx); err == nil {
		for _, acct := range all {
			names[acct.ID.String()] = acct.Name
		}
	}

	failed := 0
	for _, r := range results {
		name := names[r.AccountID.String()]
		if name == "" {
			name = r.AccountID.String()
		}
		fmt.Fprintf(w, "%s [%s]: %s\n", name, r.Integration, r.Summary())
		for _, msg := range r.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", msg)
		}
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d syncs failed", failed, len(results))
	}
	return nil
}

func newImportCommand(g *globals) *cobra.Command {
	var account, integration, format string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import CSV files from the import directory",
		Long: `Import every CSV file in the configured import directory into one
account, then move each imported file to import/processed/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd, g, account, integration, format, dryRun)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account name or ID (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&integration, "integration", config.KindCSV, "csv integration to import through")
	cmd.Flags().StringVar(&format, "format", "", "parser format, overriding the integration setting")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify without writing or moving files")

	return cmd
}

func runImport(cmd *cobra.Command, g *globals, accountRef, integration, format string, dryRun bool) error {
	a, ctx, err := openApp(cmd.Context(), g)
	if err != nil {
		return err
	}
	defer a.Close()

	in, ok := a.cfg.Integration(integration)
	if !ok || in.Kind != config.KindCSV {
		return fmt.Errorf("integration %q is not a csv integration", integration)
	}
	acct, err := a.accounts.Resolve(ctx, accountRef)
	if err != nil {
		return err
	}
	engine, err := a.engine()
	if err != nil {
		return err
	}

	dir := a.cfg.Path(a.cfg.ImportDir)
	files, err := csvsource.Scan(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No CSV files in %s\n", dir)
		return nil
	}

	var results []*syncer.SyncResult
	for _, f := range files {
		settings := map[string]string{csvsource.SettingFile: f.Path}
		if format != "" {
			settings[csvsource.SettingFormat] = format
		}
		res, err := engine.Sync(ctx, syncer.SyncRequest{
			AccountID:   acct.ID,
			Integration: integration,
			Settings:    settings,
			DryRun:      dryRun,
		})
		results = append(results, res)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ", f.Name)
		if err != nil || dryRun {
			fmt.Fprintln(cmd.OutOrStdout(), res.Summary())
			continue
		}
		if err := csvsource.MarkProcessed(dir, f.Name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s, moved to processed\n", res.Summary())
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to import", failed, len(results))
	}
	return nil
}
