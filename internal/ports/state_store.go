package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// CycleSummary is the per-cycle row persisted next to the state document.
type CycleSummary struct {
	Cycle           int
	SignalsMerged   int
	OrdersPlaced    int
	OrdersCancelled int
	CancelFailures  int
	PairErrors      int
}

// StateStore persists the reconciliation state and the order intent journal.
type StateStore interface {
	// LoadState returns the last persisted state, or an empty one.
	LoadState(ctx context.Context) (domain.ReconciliationState, error)

	// SaveState atomically replaces the whole state document, records the
	// cycle summary and commits every SUBMITTED intent.
	SaveState(ctx context.Context, state domain.ReconciliationState, summary CycleSummary) error

	// LastCycle returns the number of the last persisted cycle, 0 if none.
	LastCycle(ctx context.Context) (int, error)

	// Intent journal
	SaveIntent(ctx context.Context, intent domain.OrderIntent) error
	MarkIntentSubmitted(ctx context.Context, clientID, orderID string) error
	MarkIntentAbandoned(ctx context.Context, clientID string) error
	UnresolvedIntents(ctx context.Context, pair string) ([]domain.OrderIntent, error)

	Close() error
}

// CycleRecord is a persisted cycle summary.
type CycleRecord struct {
	CycleSummary
	FinishedAt time.Time
}
