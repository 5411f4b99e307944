package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// IntentStatus is the lifecycle of a journalled order.
type IntentStatus string

const (
	IntentPending   IntentStatus = "PENDING"   // recorded, submit outcome unknown
	IntentSubmitted IntentStatus = "SUBMITTED" // accepted by the venue, state not yet persisted
	IntentCommitted IntentStatus = "COMMITTED" // state persisted with the order id
	IntentAbandoned IntentStatus = "ABANDONED" // never reached the venue or superseded
)

// OrderIntent is written before an order is submitted so that a restarted
// process can tell whether it already went out.
type OrderIntent struct {
	ClientID  string
	Pair      string
	Side      Side
	Quantity  decimal.Decimal
	Kind      OrderKind
	Price     decimal.Decimal
	OrderID   string
	Status    IntentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
