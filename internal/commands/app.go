package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerline/ledgerline/internal/accounts"
	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/dedup"
	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/runlog"
	"github.com/ledgerline/ledgerline/internal/source/csvsource"
	"github.com/ledgerline/ledgerline/internal/source/demo"
	"github.com/ledgerline/ledgerline/internal/source/simplefin"
	"github.com/ledgerline/ledgerline/internal/store"
	"github.com/ledgerline/ledgerline/internal/store/sqlite"
	"github.com/ledgerline/ledgerline/internal/syncer"
	"github.com/ledgerline/ledgerline/internal/tagging"
)

// app is everything a command needs once the project is opened.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	store    store.Store
	accounts *accounts.Service
	runs     *runlog.Log
	now      func() time.Time
}

// openApp loads the config, sets up logging and opens the database.
// Callers must Close the app.
func openApp(ctx context.Context, g *globals) (*app, context.Context, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, ctx, err
	}
	level := cfg.LogLevel
	if g.logLevel != "" {
		level = g.logLevel
	}
	log, err := logger.New(level, os.Stderr)
	if err != nil {
		return nil, ctx, err
	}
	ctx = logger.WithContext(ctx, log)

	s, err := sqlite.Open(ctx, cfg.Path(cfg.Database))
	if err != nil {
		return nil, ctx, err
	}
	return &app{
		cfg:      cfg,
		log:      log,
		store:    s,
		accounts: accounts.NewService(s, time.Now),
		runs:     runlog.New(cfg.Root),
		now:      time.Now,
	}, ctx, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// engine builds a sync engine for every configured integration.
func (a *app) engine() (*syncer.Engine, error) {
	integrations, err := buildIntegrations(a.cfg, a.now)
	if err != nil {
		return nil, err
	}
	opts := []syncer.Option{
		syncer.WithRecorder(a.runs),
		syncer.WithRejectConcurrent(a.cfg.Sync.RejectConcurrent),
		syncer.WithWorkers(a.cfg.Sync.Workers),
	}
	if len(a.cfg.TagRules) > 0 {
		tagger, err := tagging.New(a.cfg.TagRules)
		if err != nil {
			return nil, err
		}
		opts = append(opts, syncer.WithHook(tagger))
	}
	return syncer.New(a.store, integrations, opts...)
}

func buildIntegrations(cfg *config.Config, now func() time.Time) ([]syncer.Integration, error) {
	var out []syncer.Integration
	var sfin *simplefin.Client
	for _, in := range cfg.Integrations {
		var src syncer.Source
		switch in.Kind {
		case config.KindSimpleFIN:
			if sfin == nil {
				sfin = simplefin.New()
			}
			src = sfin
		case config.KindCSV:
			src = csvsource.New(csvsource.DefaultRegistry())
		case config.KindDemo:
			src = demo.New(now)
		default:
			return nil, fmt.Errorf("integration %s: unknown kind %q", in.Name, in.Kind)
		}
		strategy, err := dedup.New(in.Strategy, in.Name)
		if err != nil {
			return nil, fmt.Errorf("integration %s: %w", in.Name, err)
		}
		out = append(out, syncer.Integration{
			Name:         in.Name,
			Source:       src,
			Strategy:     strategy,
			Settings:     in.Settings,
			BalancesOnly: in.BalancesOnly,
		})
	}
	return out, nil
}

// parseDate reads a YYYY-MM-DD flag value.
func parseDate(flag, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(model.DateFormat, s)
	if err != nil {
		return nil, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", flag, s)
	}
	return &t, nil
}
