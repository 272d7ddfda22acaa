// Package syncer reconciles transactions discovered by a data source with
// the stored record set.
//
// Each sync runs Planning, Fetching, Classifying and Merging in order and
// ends Committed or Failed. Nothing is written before the final commit, and
// the commit lands as one store transaction, so a failed or canceled sync
// leaves the store exactly as it found it and can simply be retried.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ledgerline/ledgerline/internal/dedup"
	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/model"
	"github.com/ledgerline/ledgerline/internal/store"
	"github.com/ledgerline/ledgerline/internal/window"
)

// DefaultWorkers bounds SyncAll concurrency.
const DefaultWorkers = 4

// Engine runs syncs against one store.
type Engine struct {
	store        store.Store
	integrations map[string]Integration
	names        []string

	now           func() time.Time
	newID         func() uuid.UUID
	hook          Hook
	recorder      Recorder
	rejectBusy    bool
	workers       int
	locks         *keyedLock
	afterClassify func(ctx context.Context)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces uuid.New for new records.
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithHook installs a post-commit hook.
func WithHook(h Hook) Option {
	return func(e *Engine) { e.hook = h }
}

// WithRecorder installs a run recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithRejectConcurrent makes a second sync for a busy (account, integration)
// pair fail with ErrSyncInProgress instead of waiting.
func WithRejectConcurrent(reject bool) Option {
	return func(e *Engine) { e.rejectBusy = reject }
}

// WithWorkers sets how many pairs SyncAll runs at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New creates an engine over s with the given integrations.
func New(s store.Store, integrations []Integration, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:        s,
		integrations: make(map[string]Integration, len(integrations)),
		now:          time.Now,
		newID:        uuid.New,
		workers:      DefaultWorkers,
		locks:        newKeyedLock(),
	}
	for _, in := range integrations {
		if in.Name == "" {
			return nil, fmt.Errorf("integration without a name")
		}
		if in.Source == nil || in.Strategy == nil {
			return nil, fmt.Errorf("integration %s: source and strategy are required", in.Name)
		}
		if _, dup := e.integrations[in.Name]; dup {
			return nil, fmt.Errorf("duplicate integration %s", in.Name)
		}
		e.integrations[in.Name] = in
		e.names = append(e.names, in.Name)
	}
	sort.Strings(e.names)
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Integrations returns the registered integration names, sorted.
func (e *Engine) Integrations() []string {
	return append([]string(nil), e.names...)
}

// SyncRequest selects what to sync. Start and End override the planned
// window. Settings are laid over the integration's own settings for this
// run only.
type SyncRequest struct {
	AccountID   uuid.UUID
	Integration string
	Start       *time.Time
	End         *time.Time
	Settings    map[string]string
	DryRun      bool
}

// SyncResult reports one sync. On failure the counts are zero and Err holds
// a *SyncError.
type SyncResult struct {
	AccountID   uuid.UUID
	Integration string
	Window      window.Window
	Discovered  int
	New         int
	Updated     int
	Skipped     int
	Balances    int
	Stage       Stage
	DryRun      bool
	Warnings    []string
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Summary renders the result for people.
func (r *SyncResult) Summary() string {
	if r.Err != nil {
		return fmt.Sprintf("%d new, %d updated, sync failed: %v", r.New, r.Updated, r.Err)
	}
	s := fmt.Sprintf("%d new, %d updated, %d skipped", r.New, r.Updated, r.Skipped)
	if r.DryRun {
		s += " (dry run)"
	}
	return s
}

// Sync runs one (account, integration) sync. The returned result is never
// nil; when err is non-nil it is also stored in result.Err.
func (e *Engine) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	res := &SyncResult{
		AccountID:   req.AccountID,
		Integration: req.Integration,
		DryRun:      req.DryRun,
		StartedAt:   e.now(),
	}
	log := logger.FromContext(ctx).With().
		Str("account", req.AccountID.String()).
		Str("integration", req.Integration).
		Logger()
	ctx = logger.WithContext(ctx, log)

	err := e.sync(ctx, req, res)
	res.FinishedAt = e.now()
	if err != nil {
		res.Stage = StageFailed
		res.Err = err
		res.New, res.Updated, res.Skipped, res.Balances = 0, 0, 0, 0
		ev := log.Warn()
		if errors.Is(err, ErrInvariantViolation) {
			ev = log.Error()
		}
		ev.Err(err).Msg("sync failed")
	} else {
		log.Info().
			Str("window", res.Window.String()).
			Int("discovered", res.Discovered).
			Int("new", res.New).
			Int("updated", res.Updated).
			Int("skipped", res.Skipped).
			Int("balances", res.Balances).
			Bool("dry_run", res.DryRun).
			Msg("sync complete")
	}

	if e.recorder != nil {
		if rerr := e.recorder.Record(res); rerr != nil {
			log.Warn().Err(rerr).Msg("recording sync run")
		}
	}
	return res, err
}

func (e *Engine) sync(ctx context.Context, req SyncRequest, res *SyncResult) error {
	log := logger.FromContext(ctx)

	in, ok := e.integrations[req.Integration]
	if !ok {
		return stageErr(StagePlanning, ErrConfig, fmt.Errorf("unknown integration %q", req.Integration))
	}

	release, err := e.locks.acquire(ctx, req.AccountID.String()+"|"+req.Integration, !e.rejectBusy)
	if err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			return stageErr(StagePlanning, ErrSyncInProgress,
				fmt.Errorf("account %s with %s: %w", req.AccountID, req.Integration, err))
		}
		return stageErr(StagePlanning, ErrCanceled, err)
	}
	defer release()

	// Planning
	transition(log, StagePlanning)
	account, err := e.store.GetAccount(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return stageErr(StagePlanning, ErrConfig, err)
		}
		return stageErr(StagePlanning, ErrDedupLookup, err)
	}
	latest, err := e.store.FindLatestTransactionDate(ctx, account.ID)
	if err != nil {
		return stageErr(StagePlanning, ErrDedupLookup, err)
	}
	w, err := window.Plan(window.Params{Latest: latest, Start: req.Start, End: req.End, Today: e.now()})
	if err != nil {
		return stageErr(StagePlanning, ErrInvariantViolation, err)
	}
	res.Window = w

	// Fetching
	if err := checkCanceled(ctx, StageFetching); err != nil {
		return err
	}
	transition(log, StageFetching, zerologStr("window", w.String()))
	extID := account.ExternalID(in.Name)
	var ids []string
	if extID != "" {
		ids = []string{extID}
	}
	settings := mergeSettings(in.Settings, req.Settings)

	var batch model.TransactionBatch
	if in.balancesOnly(extID) {
		log.Debug().Str("external_id", extID).Msg("balances-only account, skipping transactions")
	} else {
		batch, err = in.Source.DiscoverTransactions(ctx, ids, w.Start, w.End, settings)
		if err != nil {
			return fetchErr(ctx, err)
		}
	}
	balances, err := in.Source.DiscoverBalances(ctx, ids, settings)
	if err != nil {
		return fetchErr(ctx, err)
	}
	res.Warnings = append(res.Warnings, batch.Warnings...)
	res.Warnings = append(res.Warnings, balances.Warnings...)
	for _, msg := range res.Warnings {
		log.Warn().Str("warning", msg).Msg("provider warning")
	}

	// Classifying
	if err := checkCanceled(ctx, StageClassifying); err != nil {
		return err
	}
	candidates := e.candidates(account, in, extID, batch.Transactions)
	res.Discovered = len(candidates)
	transition(log, StageClassifying, func(ev *zerolog.Event) { ev.Int("discovered", len(candidates)) })

	for i := range candidates {
		key := in.Strategy.GenerateKey(candidates[i])
		if key == "" {
			return stageErr(StageClassifying, ErrInvariantViolation,
				fmt.Errorf("%s strategy produced no key for %q on %s", in.Strategy.Name(),
					candidates[i].Description, candidates[i].TransactionDate.Format(model.DateFormat)))
		}
		candidates[i].DedupKey = key
	}
	found, err := in.Strategy.FindExisting(ctx, account.ID, candidates, e.store)
	if err != nil {
		if ctx.Err() != nil {
			return stageErr(StageClassifying, ErrCanceled, ctx.Err())
		}
		return stageErr(StageClassifying, ErrDedupLookup, err)
	}
	if e.afterClassify != nil {
		e.afterClassify(ctx)
	}

	// Merging
	if err := checkCanceled(ctx, StageMerging); err != nil {
		return err
	}
	transition(log, StageMerging)
	now := e.now()
	plan := e.merge(in.Name, candidates, found, now)
	snapshots := e.snapshots(account, extID, balances.Balances, now)
	res.New, res.Updated, res.Skipped = plan.inserts, plan.updates, plan.skipped
	res.Balances = len(snapshots)

	if req.DryRun {
		res.Stage = StageCommitted
		return nil
	}
	if err := checkCanceled(ctx, StageMerging); err != nil {
		return err
	}
	err = e.store.Atomic(ctx, func(tx store.Store) error {
		if len(plan.upserts) > 0 {
			if _, err := tx.UpsertTransactions(ctx, plan.upserts); err != nil {
				return fmt.Errorf("writing %d transactions: %w", len(plan.upserts), err)
			}
		}
		if len(snapshots) > 0 {
			if err := tx.InsertBalanceSnapshots(ctx, snapshots); err != nil {
				return fmt.Errorf("writing %d balance snapshots: %w", len(snapshots), err)
			}
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return stageErr(StageMerging, ErrCanceled, ctx.Err())
		}
		return stageErr(StageMerging, ErrStoreWrite, err)
	}
	res.Stage = StageCommitted
	transition(log, StageCommitted)

	e.runHook(ctx, plan.inserted(), res)
	return nil
}

// candidates turns raw records into unsaved transactions for account. Rows
// reported for a different provider account are dropped.
func (e *Engine) candidates(account model.Account, in Integration, extID string, raws []model.RawTransaction) []model.Transaction {
	out := make([]model.Transaction, 0, len(raws))
	for _, r := range raws {
		if extID != "" && r.AccountExternalID != "" && r.AccountExternalID != extID {
			continue
		}
		t := model.Transaction{
			AccountID:       account.ID,
			Amount:          r.Amount,
			Description:     r.Description,
			TransactionDate: model.Day(r.TransactionDate),
			PostedDate:      model.DayPtr(r.PostedDate),
			Tags:            model.NormalizeTags(r.Tags),
		}
		if r.ExternalID != "" {
			t.ExternalIDs = map[string]string{in.Name: r.ExternalID}
		}
		out = append(out, t)
	}
	return out
}

type pending struct {
	tx     model.Transaction
	op     model.UpsertOp
	stored *model.Transaction
	keys   []string
}

type mergePlan struct {
	upserts []model.Upsert
	inserts int
	updates int
	skipped int
}

func (p mergePlan) inserted() []model.Transaction {
	var out []model.Transaction
	for _, u := range p.upserts {
		if u.Op == model.OpInsert {
			out = append(out, u.Transaction)
		}
	}
	return out
}

// merge turns classified candidates into write instructions. A candidate
// that resolves to a record already touched in this batch is folded into it
// and counted as skipped, as is a match that would change nothing.
func (e *Engine) merge(source string, candidates []model.Transaction, found map[string]model.Transaction, now time.Time) mergePlan {
	var (
		order  []*pending
		byID   = make(map[uuid.UUID]*pending)
		byKey  = make(map[string]*pending)
		plan   mergePlan
		folded int
	)
	for _, c := range candidates {
		if stored, ok := found[c.DedupKey]; ok {
			p, seen := byID[stored.ID]
			switch {
			case seen && !otherSourceID(source, p.tx, c):
				p.tx = carryForward(p.tx, c, now)
				p.keys = append(p.keys, dedup.Keys(source, p.tx)...)
				folded++
				continue
			case !seen && !otherSourceID(source, stored, c):
				s := stored
				p := &pending{tx: carryForward(stored, c, now), op: model.OpUpdate, stored: &s}
				p.keys = append([]string{c.DedupKey}, dedup.Keys(source, p.tx)...)
				byID[stored.ID] = p
				byKey[c.DedupKey] = p
				order = append(order, p)
				continue
			}
			// A fingerprint fallback onto a row that already holds a
			// different provider ID from this source is a new purchase.
		}
		if p, seen := byKey[c.DedupKey]; seen && !otherSourceID(source, p.tx, c) {
			p.tx = carryForward(p.tx, c, now)
			p.keys = append(p.keys, dedup.Keys(source, p.tx)...)
			folded++
			continue
		}
		t := c
		t.ID = e.newID()
		t.CreatedAt = now
		t.UpdatedAt = now
		p := &pending{tx: t, op: model.OpInsert}
		p.keys = append([]string{c.DedupKey}, dedup.Keys(source, t)...)
		byID[t.ID] = p
		byKey[c.DedupKey] = p
		order = append(order, p)
	}

	plan.skipped = folded
	for _, p := range order {
		if p.op == model.OpUpdate && samePersisted(*p.stored, p.tx) {
			plan.skipped++
			continue
		}
		plan.upserts = append(plan.upserts, model.Upsert{Op: p.op, Transaction: p.tx, Keys: uniqueKeys(p.keys)})
		if p.op == model.OpInsert {
			plan.inserts++
		} else {
			plan.updates++
		}
	}
	return plan
}

// otherSourceID reports whether c is keyed by its provider ID from source
// while held already carries a different ID from that source. Fingerprint
// keyed candidates never conflict.
func otherSourceID(source string, held, c model.Transaction) bool {
	id, have := c.ExternalID(source), held.ExternalID(source)
	if id == "" || have == "" || id == have {
		return false
	}
	return c.DedupKey == dedup.ExternalIDKey(source, id)
}

func (e *Engine) snapshots(account model.Account, extID string, raws []model.RawBalance, now time.Time) []model.BalanceSnapshot {
	var out []model.BalanceSnapshot
	for _, r := range raws {
		if extID != "" && r.AccountExternalID != "" && r.AccountExternalID != extID {
			continue
		}
		at := r.AsOf
		if at.IsZero() {
			at = now
		}
		out = append(out, model.BalanceSnapshot{
			ID:           e.newID(),
			AccountID:    account.ID,
			Balance:      r.Balance,
			SnapshotTime: at.UTC(),
			Source:       model.SourceSync,
			CreatedAt:    now,
		})
	}
	return out
}

// runHook asks the hook for tags on inserted records. Failures only add
// warnings; the sync is already committed.
func (e *Engine) runHook(ctx context.Context, inserted []model.Transaction, res *SyncResult) {
	if e.hook == nil || len(inserted) == 0 {
		return
	}
	log := logger.FromContext(ctx)
	suggested, err := e.hook.SuggestTags(ctx, inserted)
	if err != nil {
		log.Warn().Err(err).Msg("post-merge hook failed")
		res.Warnings = append(res.Warnings, fmt.Sprintf("tagging: %v", err))
		return
	}
	ids := make([]uuid.UUID, 0, len(suggested))
	for id := range suggested {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		tags := model.NormalizeTags(suggested[id])
		if len(tags) == 0 {
			continue
		}
		if err := e.store.AddTags(ctx, id, tags); err != nil {
			log.Warn().Err(err).Str("transaction", id.String()).Msg("applying suggested tags")
			res.Warnings = append(res.Warnings, fmt.Sprintf("tagging %s: %v", id, err))
		}
	}
}

// SyncAllRequest configures SyncAll.
type SyncAllRequest struct {
	DryRun bool
}

// SyncAll syncs every account against every integration it carries an
// external ID for. Pairs run concurrently up to the worker limit. Results
// come back in account-name, integration-name order; failures are reported
// per pair and never stop the others.
func (e *Engine) SyncAll(ctx context.Context, req SyncAllRequest) ([]*SyncResult, error) {
	accounts, err := e.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	var jobs []SyncRequest
	for _, a := range accounts {
		for _, name := range e.names {
			if a.ExternalID(name) == "" {
				continue
			}
			jobs = append(jobs, SyncRequest{AccountID: a.ID, Integration: name, DryRun: req.DryRun})
		}
	}

	results := make([]*SyncResult, len(jobs))
	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	for i, job := range jobs {
		i, job := i, job
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = &SyncResult{
					AccountID:   job.AccountID,
					Integration: job.Integration,
					DryRun:      job.DryRun,
					Stage:       StageFailed,
					Err:         stageErr(StagePlanning, ErrCanceled, ctx.Err()),
				}
				return
			}
			defer func() { <-sem }()
			results[i], _ = e.Sync(ctx, job)
		}()
	}
	wg.Wait()
	return results, nil
}

func transition(log zerolog.Logger, stage Stage, fields ...func(*zerolog.Event)) {
	ev := log.Debug().Str("stage", string(stage))
	for _, f := range fields {
		f(ev)
	}
	ev.Msg("sync stage")
}

func zerologStr(key, val string) func(*zerolog.Event) {
	return func(ev *zerolog.Event) { ev.Str(key, val) }
}

func checkCanceled(ctx context.Context, stage Stage) error {
	if err := ctx.Err(); err != nil {
		return stageErr(stage, ErrCanceled, err)
	}
	return nil
}

func fetchErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return stageErr(StageFetching, ErrCanceled, err)
	}
	return stageErr(StageFetching, ErrSourceFetch, err)
}

func mergeSettings(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	maps.Copy(out, base)
	maps.Copy(out, override)
	return out
}

func uniqueKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := keys[:0:0]
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
