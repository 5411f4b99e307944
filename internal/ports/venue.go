package ports

import (
	"context"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Venue places, cancels and inspects orders on the exchange account.
type Venue interface {
	// ListOpenOrders returns the full open-order snapshot.
	ListOpenOrders(ctx context.Context) ([]domain.OpenOrder, error)

	// PlaceOrder submits an order and returns the venue order id.
	PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (string, error)

	// CancelOrder cancels one order. false with a nil error means the venue
	// did not cancel anything.
	CancelOrder(ctx context.Context, orderID string) (bool, error)

	// Balances returns available amounts per venue asset code.
	Balances(ctx context.Context) (domain.Balances, error)

	// Quote returns the best bid and ask of a venue pair.
	Quote(ctx context.Context, venuePair string) (domain.Quote, error)

	// FindOrderByClientID returns the venue id of an order submitted with
	// clientID, open or closed, or "" when the venue never saw it.
	FindOrderByClientID(ctx context.Context, clientID string) (string, error)
}
