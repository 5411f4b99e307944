package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/observability"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

// Config is the immutable pair table of one run.
type Config struct {
	Pairs      []domain.PairConfig
	Aliases    map[string]string // signal token → configured pair
	VenuePairs map[string]string // venue pair code → configured pair
}

// CycleResult contains everything produced by one reconciliation cycle.
type CycleResult struct {
	Cycle           int
	StartedAt       time.Time
	Duration        time.Duration
	SignalsMerged   int
	Outcomes        []PairOutcome
	OrdersPlaced    int
	OrdersCancelled int
	CancelFailures  int
	PairErrors      int
	SnapshotErr     error
}

// Engine drives the venue account toward the signaled position of every
// configured pair. It is not safe for concurrent use: one loop owns it.
type Engine struct {
	source   ports.SignalSource
	venue    ports.Venue
	store    ports.StateStore
	notifier ports.Notifier
	metrics  *observability.Metrics

	cfg      Config
	accounts []string

	state   domain.ReconciliationState
	cursors map[string]int64
	cycle   int
	now     func() time.Time
}

// New creates the reconciliation engine. notifier and metrics may be nil.
func New(
	cfg Config,
	source ports.SignalSource,
	venue ports.Venue,
	store ports.StateStore,
	notifier ports.Notifier,
	metrics *observability.Metrics,
) *Engine {
	pairs := make([]domain.PairConfig, len(cfg.Pairs))
	var accounts []string
	for i, pc := range cfg.Pairs {
		pairs[i] = pc.WithDefaults()
		if !slices.Contains(accounts, pc.SourceAccount) {
			accounts = append(accounts, pc.SourceAccount)
		}
	}
	slices.Sort(accounts)
	cfg.Pairs = pairs

	return &Engine{
		source:   source,
		venue:    venue,
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		cfg:      cfg,
		accounts: accounts,
		state:    domain.ReconciliationState{},
		cursors:  make(map[string]int64),
		now:      time.Now,
	}
}

// Restore loads the persisted state, continues the cycle numbering and seeds
// each account's cursor with the highest sequence id already stored for it.
func (e *Engine) Restore(ctx context.Context) error {
	state, err := e.store.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("engine.Restore: %w", err)
	}
	last, err := e.store.LastCycle(ctx)
	if err != nil {
		return fmt.Errorf("engine.Restore: %w", err)
	}
	e.state = state
	e.cycle = last
	for _, acc := range e.accounts {
		e.cursors[acc] = state.MaxSequence(acc)
	}
	slog.Info("engine: state restored", "pairs", len(state), "last_cycle", last, "cursors", e.cursors)
	return nil
}

// State returns a copy of the current reconciliation state.
func (e *Engine) State() domain.ReconciliationState {
	return e.state.Clone()
}

// RunOnce executes one cycle: merge fresh signals, replace venue belief from
// one open-order snapshot, reconcile every configured pair, persist.
//
// Venue belief is updated optimistically after an order is submitted. If
// that order later fails on the venue, local belief is wrong until a
// snapshot shows otherwise: staleness is bounded by one polling interval.
//
// The only error that aborts the cycle before persisting is a
// *domain.SignalSourceAuthError, which is fatal. Every other failure is
// confined to its account or pair and reported in the result.
func (e *Engine) RunOnce(ctx context.Context) (*CycleResult, error) {
	e.cycle++
	start := e.now()
	result := &CycleResult{Cycle: e.cycle, StartedAt: start}

	// 1. Signals
	merged, err := e.refreshSignals(ctx)
	if err != nil {
		e.metrics.ObserveCycle("fatal", e.now().Sub(start), start)
		return nil, fmt.Errorf("engine.RunOnce: signals: %w", err)
	}
	result.SignalsMerged = merged

	// 2. Venue snapshot
	violations, err := e.refreshVenue(ctx)
	if err != nil {
		slog.Error("engine: open-order snapshot failed, skipping reconciliation", "err", err)
		result.SnapshotErr = err
	}

	// 3. Reconcile
	for _, pc := range e.cfg.Pairs {
		var out PairOutcome
		switch {
		case result.SnapshotErr != nil:
			out = PairOutcome{Pair: pc.Pair, Action: ActionNoSnapshot, Err: result.SnapshotErr}
		case violations[pc.Pair] != nil:
			out = PairOutcome{Pair: pc.Pair, Action: ActionIntegrityHalt, Err: violations[pc.Pair]}
		default:
			out = e.reconcilePair(ctx, pc)
		}
		e.record(result, out)
	}

	// 4. Persist
	summary := ports.CycleSummary{
		Cycle:           result.Cycle,
		SignalsMerged:   result.SignalsMerged,
		OrdersPlaced:    result.OrdersPlaced,
		OrdersCancelled: result.OrdersCancelled,
		CancelFailures:  result.CancelFailures,
		PairErrors:      result.PairErrors,
	}
	if err := e.store.SaveState(ctx, e.state, summary); err != nil {
		result.Duration = e.now().Sub(start)
		e.metrics.ObserveCycle("persist_failed", result.Duration, start)
		return result, fmt.Errorf("engine.RunOnce: persist: %w", err)
	}

	result.Duration = e.now().Sub(start)
	status := "ok"
	if result.SnapshotErr != nil {
		status = "no_snapshot"
	}
	e.metrics.ObserveCycle(status, result.Duration, start)
	e.notify(ctx, result)
	return result, nil
}

// record logs a pair outcome and folds it into the cycle result.
func (e *Engine) record(result *CycleResult, out PairOutcome) {
	result.Outcomes = append(result.Outcomes, out)
	result.OrdersCancelled += out.Cancelled
	result.CancelFailures += len(out.CancelFailures)
	if out.OrderID != "" && out.Action == ActionPlaced {
		result.OrdersPlaced++
	}

	e.metrics.PairAction(out.Pair, string(out.Action))
	attrs := out.logAttrs()
	switch {
	case out.Err != nil:
		result.PairErrors++
		e.metrics.PairFailure(out.Pair, domain.ErrorKind(out.Err))
		var integrity *domain.DataIntegrityError
		if errors.As(out.Err, &integrity) {
			slog.Error("engine: DATA INTEGRITY violation, pair halted", attrs...)
		} else {
			slog.Warn("engine: pair failed", attrs...)
		}
	case out.Action == ActionSynced || out.Action == ActionNoSignal:
		slog.Debug("engine: pair checked", attrs...)
	default:
		slog.Info("engine: pair reconciled", attrs...)
	}
}

func (e *Engine) notify(ctx context.Context, result *CycleResult) {
	if e.notifier == nil {
		return
	}
	rows := make([]ports.PairReport, 0, len(result.Outcomes))
	for _, out := range result.Outcomes {
		ps := e.state[out.Pair]
		rows = append(rows, ports.PairReport{
			Pair:    out.Pair,
			Signal:  ps.Signal,
			Venue:   ps.Venue,
			Action:  string(out.Action),
			OrderID: out.OrderID,
			Detail:  out.detail(),
			Err:     out.Err,
		})
	}
	if err := e.notifier.NotifyCycle(ctx, result.Cycle, rows); err != nil {
		slog.Warn("engine: notifier error", "err", err)
	}
}
