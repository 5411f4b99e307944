package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderQuantityPlaces is the number of fractional digits an order volume is
// rendered with when submitted.
const OrderQuantityPlaces = 5

// OpenOrder is one entry of the venue's open-order snapshot.
type OpenOrder struct {
	ID            string
	VenuePair     string // raw venue code, translated before grouping
	Side          Side
	ClientOrderID string
}

// Quote is the top of book for a pair.
type Quote struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// Balances maps venue asset codes to available amounts. A missing asset is
// a zero balance.
type Balances map[string]decimal.Decimal

// Of returns the balance of asset, zero if absent.
func (b Balances) Of(asset string) decimal.Decimal {
	if v, ok := b[asset]; ok {
		return v
	}
	return decimal.Zero
}

// OrderPlan is the corrective order computed by SizeOrder.
type OrderPlan struct {
	Pair     string
	Side     Side
	Quantity decimal.Decimal
	Spend    decimal.Decimal // quote currency committed, buys only
}

// PlaceOrderRequest is sent to the venue.
type PlaceOrderRequest struct {
	VenuePair     string
	Side          Side
	Quantity      decimal.Decimal
	Kind          OrderKind
	Price         decimal.Decimal // limit orders only
	ClientOrderID string
}

// VolumeString renders the quantity with OrderQuantityPlaces digits,
// truncating so a sell never exceeds the held balance.
func (r PlaceOrderRequest) VolumeString() string {
	return r.Quantity.Truncate(OrderQuantityPlaces).StringFixed(OrderQuantityPlaces)
}

// Post is one publication of a signal source account.
type Post struct {
	ID        int64
	Text      string
	CreatedAt time.Time
}
