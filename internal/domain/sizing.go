package domain

import "github.com/shopspring/decimal"

// SkipReason explains why SizeOrder returned no plan. Not an error: the
// position is still considered reconciled.
type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipMinNotional SkipReason = "below_min_notional"
	SkipDust        SkipReason = "below_dust"
)

// SizeOrder computes the order that moves the account to desired, or nil
// with the reason when the order would be under the pair's thresholds.
//
// Long: spend min(budget - held value, 95% of quote balance) at the ask, or
// 95% of the quote balance for the use-available budget; skip unless the
// spend exceeds MinNotional. Short: sell the whole base balance; skip unless
// it exceeds Dust.
func SizeOrder(cfg PairConfig, desired Position, bal Balances, q Quote) (*OrderPlan, SkipReason) {
	cfg = cfg.WithDefaults()
	base := bal.Of(cfg.BaseAsset)

	if desired == Short {
		if !base.GreaterThan(cfg.Dust) {
			return nil, SkipDust
		}
		return &OrderPlan{Pair: cfg.Pair, Side: Sell, Quantity: base}, SkipNone
	}

	quoteCap := bal.Of(cfg.QuoteAsset).Mul(QuoteBalanceCap)

	var maxSpend decimal.Decimal
	if cfg.Budget.UseAvailable {
		maxSpend = quoteCap
	} else {
		maxSpend = cfg.Budget.Fixed.Sub(q.Ask.Mul(base))
	}
	maxSpend = decimal.Min(maxSpend, quoteCap)

	if !maxSpend.GreaterThan(cfg.MinNotional) || !q.Ask.IsPositive() {
		return nil, SkipMinNotional
	}
	return &OrderPlan{
		Pair:     cfg.Pair,
		Side:     Buy,
		Quantity: maxSpend.Div(q.Ask),
		Spend:    maxSpend,
	}, SkipNone
}
