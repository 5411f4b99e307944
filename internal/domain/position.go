package domain

import (
	"encoding/json"
	"fmt"
)

// Position is the binary trading stance for a pair. There is no flat value:
// a missing record means "unknown", never "flat".
type Position int

const (
	Long Position = iota + 1
	Short
)

// String devuelve la forma persistida ("long" / "short").
func (p Position) String() string {
	switch p {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return fmt.Sprintf("Position(%d)", int(p))
	}
}

// Valid reports whether p is one of the two representable positions.
func (p Position) Valid() bool {
	return p == Long || p == Short
}

// ParsePosition accepts "long" or "short".
func ParsePosition(s string) (Position, error) {
	switch s {
	case "long":
		return Long, nil
	case "short":
		return Short, nil
	}
	return 0, fmt.Errorf("domain.ParsePosition: invalid position %q", s)
}

// MarshalJSON persiste la posición como string.
func (p Position) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("domain.Position: cannot marshal %d", int(p))
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON rechaza cualquier valor que no sea long/short.
func (p *Position) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("domain.Position: %w", err)
	}
	v, err := ParsePosition(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Side is the side of an order on the venue.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Position maps an order side to the stance it commits to.
func (s Side) Position() (Position, bool) {
	switch s {
	case Buy:
		return Long, true
	case Sell:
		return Short, true
	}
	return 0, false
}

// SideFor is the order side that moves the account toward p.
func SideFor(p Position) Side {
	if p == Short {
		return Sell
	}
	return Buy
}

// OrderKind is the venue order type.
type OrderKind string

const (
	OrderMarket OrderKind = "market"
	OrderLimit  OrderKind = "limit"
)
