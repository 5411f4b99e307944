package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BudgetAvailable is the YAML/CLI spelling of the use-available budget.
const BudgetAvailable = "available"

var (
	// DefaultDust is the minimum base-asset quantity worth selling.
	DefaultDust = decimal.RequireFromString("0.0001")
	// DefaultMinNotional is the minimum quote-currency spend worth buying.
	DefaultMinNotional = decimal.NewFromInt(5)
	// QuoteBalanceCap is the share of the quote balance a buy may ever spend.
	QuoteBalanceCap = decimal.RequireFromString("0.95")
)

// Budget is either a fixed ceiling in quote currency or the use-available
// sentinel (spend up to QuoteBalanceCap of the available quote balance).
type Budget struct {
	Fixed        decimal.Decimal
	UseAvailable bool
}

// FixedBudget builds a fixed-ceiling budget.
func FixedBudget(amount decimal.Decimal) Budget {
	return Budget{Fixed: amount}
}

// AvailableBudget builds the use-available sentinel.
func AvailableBudget() Budget {
	return Budget{UseAvailable: true}
}

// ParseBudget accepts a decimal amount or "available".
func ParseBudget(s string) (Budget, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, BudgetAvailable) {
		return AvailableBudget(), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Budget{}, fmt.Errorf("domain.ParseBudget: %q: %w", s, err)
	}
	if !d.IsPositive() {
		return Budget{}, fmt.Errorf("domain.ParseBudget: %q must be positive", s)
	}
	return FixedBudget(d), nil
}

func (b Budget) String() string {
	if b.UseAvailable {
		return BudgetAvailable
	}
	return b.Fixed.String()
}

// PairConfig is the static, per-run configuration of one tracked pair.
type PairConfig struct {
	Pair          string // configured identifier, e.g. "ETHUSD"
	Budget        Budget
	Dust          decimal.Decimal
	MinNotional   decimal.Decimal
	VenuePair     string // venue market code, e.g. "ETHEUR"
	BaseAsset     string // venue asset code held when long, e.g. "XETH"
	QuoteAsset    string // venue asset code spent when buying, e.g. "ZEUR"
	SourceAccount string // account whose posts drive this pair
	OrderKind     OrderKind
}

// WithDefaults fills zero thresholds and order kind.
func (c PairConfig) WithDefaults() PairConfig {
	if c.Dust.IsZero() {
		c.Dust = DefaultDust
	}
	if c.MinNotional.IsZero() {
		c.MinNotional = DefaultMinNotional
	}
	if c.OrderKind == "" {
		c.OrderKind = OrderMarket
	}
	return c
}
