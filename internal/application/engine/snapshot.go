package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// refreshVenue replaces venue belief with the current open-order snapshot.
// Every pair present in the snapshot gets its record replaced as a whole.
// A configured pair without open orders keeps its position but its order
// ids are cleared: those orders filled or were cancelled. Pairs whose orders
// violate position binariness are returned and left untouched.
func (e *Engine) refreshVenue(ctx context.Context) (map[string]*domain.DataIntegrityError, error) {
	orders, err := e.venue.ListOpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}

	snap := domain.NormalizeOpenOrders(orders, e.cfg.VenuePairs)
	for pair, rec := range snap.Records {
		e.state.SetVenue(pair, rec)
	}
	for _, pc := range e.cfg.Pairs {
		if _, ok := snap.Records[pc.Pair]; ok {
			continue
		}
		if _, ok := snap.Violations[pc.Pair]; ok {
			continue
		}
		prev := e.state[pc.Pair].Venue
		if prev == nil || len(prev.OpenOrderIDs) == 0 {
			continue
		}
		slog.Debug("engine: tracked orders left the book",
			"pair", pc.Pair,
			"orders", prev.OpenOrderIDs,
		)
		e.state.SetVenue(pc.Pair, domain.VenueRecord{Position: prev.Position, OpenOrderIDs: []string{}})
	}
	for pair, v := range snap.Violations {
		slog.Error("engine: open orders violate position binariness",
			"pair", pair,
			"sides", v.Sides,
			"orders", v.OrderIDs,
		)
	}

	slog.Debug("engine: venue snapshot applied",
		"open_orders", len(orders),
		"pairs", len(snap.Records),
		"violations", len(snap.Violations),
	)
	return snap.Violations, nil
}
