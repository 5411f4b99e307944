package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

// DryRunVenue wraps a venue so that reads hit the exchange and writes are
// only logged. Placed orders get a synthetic "dry-run-" id.
func DryRunVenue(v ports.Venue) ports.Venue {
	return &dryRunVenue{Venue: v}
}

type dryRunVenue struct {
	ports.Venue
}

func (d *dryRunVenue) PlaceOrder(_ context.Context, req domain.PlaceOrderRequest) (string, error) {
	id := "dry-run-" + uuid.NewString()
	slog.Info("engine: [dry-run] order not sent",
		"venue_pair", req.VenuePair,
		"side", string(req.Side),
		"volume", req.VolumeString(),
		"kind", string(req.Kind),
		"id", id,
	)
	return id, nil
}

func (d *dryRunVenue) CancelOrder(_ context.Context, orderID string) (bool, error) {
	slog.Info("engine: [dry-run] cancel not sent", "order_id", orderID)
	return true, nil
}
