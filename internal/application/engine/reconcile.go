package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Action is the decision taken for a pair in one cycle.
type Action string

const (
	ActionNoSignal      Action = "no_signal"
	ActionSynced        Action = "synced"
	ActionPlaced        Action = "placed"
	ActionAdopted       Action = "adopted"     // order already submitted by an earlier run
	ActionNoOrder       Action = "no_order"    // reconciled, sizing under threshold
	ActionIntegrityHalt Action = "integrity"   // mixed sides in the snapshot
	ActionNoSnapshot    Action = "no_snapshot" // open orders could not be listed
	ActionFailed        Action = "failed"
)

// PairOutcome is the single result of reconciling one pair: what was decided
// and, when it failed, why.
type PairOutcome struct {
	Pair           string
	Action         Action
	Desired        domain.Position
	Plan           *domain.OrderPlan
	Skip           domain.SkipReason
	OrderID        string
	Cancelled      int
	CancelFailures []*domain.VenueCancelFailure
	Err            error
}

func (o PairOutcome) logAttrs() []any {
	attrs := []any{"pair", o.Pair, "action", string(o.Action)}
	if o.Desired.Valid() {
		attrs = append(attrs, "desired", o.Desired.String())
	}
	if o.Plan != nil {
		attrs = append(attrs, "side", string(o.Plan.Side), "qty", o.Plan.Quantity.StringFixed(domain.OrderQuantityPlaces))
	}
	if o.Skip != domain.SkipNone {
		attrs = append(attrs, "skip", string(o.Skip))
	}
	if o.OrderID != "" {
		attrs = append(attrs, "order_id", o.OrderID)
	}
	if o.Cancelled > 0 || len(o.CancelFailures) > 0 {
		attrs = append(attrs, "cancelled", o.Cancelled, "cancel_failures", len(o.CancelFailures))
	}
	if o.Err != nil {
		attrs = append(attrs, "err", o.Err)
	}
	return attrs
}

// detail is the short human summary shown by the notifier.
func (o PairOutcome) detail() string {
	var parts []string
	if o.Plan != nil {
		parts = append(parts, fmt.Sprintf("%s %s", o.Plan.Side, o.Plan.Quantity.StringFixed(domain.OrderQuantityPlaces)))
	}
	if o.Skip != domain.SkipNone {
		parts = append(parts, string(o.Skip))
	}
	if o.Cancelled > 0 {
		parts = append(parts, fmt.Sprintf("cancelled %d", o.Cancelled))
	}
	if n := len(o.CancelFailures); n > 0 {
		parts = append(parts, fmt.Sprintf("cancel failed %d", n))
	}
	return strings.Join(parts, ", ")
}

// reconcilePair compares the signaled position with venue belief and, when
// they diverge, cancels stale orders, sizes and submits the corrective order
// and updates venue belief optimistically. On failure the pair's state is
// left as it was.
func (e *Engine) reconcilePair(ctx context.Context, pc domain.PairConfig) PairOutcome {
	out := PairOutcome{Pair: pc.Pair}

	ps := e.state[pc.Pair]
	if ps.Signal == nil {
		out.Action = ActionNoSignal
		return out
	}
	desired := ps.Signal.Position
	out.Desired = desired

	if ps.Venue != nil && ps.Venue.Position == desired {
		out.Action = ActionSynced
		return out
	}

	// Diverged, or venue unknown. Cancellation is best effort: failed ids
	// stay recorded and are retried next cycle.
	var stillOpen []string
	if ps.Venue != nil {
		for _, id := range ps.Venue.OpenOrderIDs {
			if f := e.cancel(ctx, id); f != nil {
				out.CancelFailures = append(out.CancelFailures, f)
				stillOpen = append(stillOpen, id)
				continue
			}
			out.Cancelled++
		}
	}

	orderID, adopted, err := e.recoverIntent(ctx, pc, desired)
	if err != nil {
		return out.fail(fmt.Errorf("recover intent: %w", err))
	}

	switch {
	case adopted:
		out.Action = ActionAdopted
	default:
		plan, quote, skip, err := e.size(ctx, pc, desired)
		if err != nil {
			return out.fail(err)
		}
		out.Plan, out.Skip = plan, skip
		if plan == nil {
			out.Action = ActionNoOrder
			e.metrics.SizingSkip(pc.Pair, string(skip))
			break
		}
		orderID, err = e.submit(ctx, pc, *plan, quote)
		if err != nil {
			out.OrderID = orderID
			return out.fail(fmt.Errorf("place order: %w", err))
		}
		out.Action = ActionPlaced
		e.metrics.OrderPlaced(pc.Pair, string(plan.Side))
	}

	ids := stillOpen
	if orderID != "" {
		ids = append(ids, orderID)
	}
	out.OrderID = orderID
	e.state.SetVenue(pc.Pair, domain.VenueRecord{Position: desired, OpenOrderIDs: ids})
	return out
}

func (o PairOutcome) fail(err error) PairOutcome {
	o.Action = ActionFailed
	o.Err = err
	return o
}

// cancel requests cancellation of one order; a non-nil result is a
// tolerated failure.
func (e *Engine) cancel(ctx context.Context, orderID string) *domain.VenueCancelFailure {
	ok, err := e.venue.CancelOrder(ctx, orderID)
	if err != nil || !ok {
		e.metrics.CancelAttempt("failed")
		f := &domain.VenueCancelFailure{OrderID: orderID, Err: err}
		slog.Warn("engine: cancel failed, order stays tracked", "order_id", orderID, "err", f)
		return f
	}
	e.metrics.CancelAttempt("ok")
	slog.Info("engine: order cancelled", "order_id", orderID)
	return nil
}

// size fetches balances (and the quote when it is needed) and runs the
// sizing policy.
func (e *Engine) size(ctx context.Context, pc domain.PairConfig, desired domain.Position) (*domain.OrderPlan, domain.Quote, domain.SkipReason, error) {
	bal, err := e.venue.Balances(ctx)
	if err != nil {
		return nil, domain.Quote{}, domain.SkipNone, fmt.Errorf("balances: %w", err)
	}

	var quote domain.Quote
	if desired == domain.Long || pc.OrderKind == domain.OrderLimit {
		quote, err = e.venue.Quote(ctx, pc.VenuePair)
		if err != nil {
			return nil, domain.Quote{}, domain.SkipNone, fmt.Errorf("quote %s: %w", pc.VenuePair, err)
		}
	}

	plan, skip := domain.SizeOrder(pc, desired, bal, quote)
	return plan, quote, skip, nil
}

// submit journals the order intent, submits the order and marks the intent
// submitted. An explicit venue rejection abandons the intent; any other
// failure leaves it pending so the next cycle can ask the venue about it.
// When only the journal update fails, the venue order id is returned along
// with the error.
func (e *Engine) submit(ctx context.Context, pc domain.PairConfig, plan domain.OrderPlan, quote domain.Quote) (string, error) {
	req := domain.PlaceOrderRequest{
		VenuePair:     pc.VenuePair,
		Side:          plan.Side,
		Quantity:      plan.Quantity,
		Kind:          pc.OrderKind,
		ClientOrderID: uuid.New().String(),
	}
	if req.Kind == domain.OrderLimit {
		req.Price = quote.Ask
		if plan.Side == domain.Sell {
			req.Price = quote.Bid
		}
	}

	now := e.now().UTC()
	intent := domain.OrderIntent{
		ClientID:  req.ClientOrderID,
		Pair:      pc.Pair,
		Side:      req.Side,
		Quantity:  req.Quantity,
		Kind:      req.Kind,
		Price:     req.Price,
		Status:    domain.IntentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.SaveIntent(ctx, intent); err != nil {
		return "", fmt.Errorf("journal intent: %w", err)
	}

	orderID, err := e.venue.PlaceOrder(ctx, req)
	if err != nil {
		var rejected *domain.VenueRequestError
		if errors.As(err, &rejected) {
			if aerr := e.store.MarkIntentAbandoned(ctx, req.ClientOrderID); aerr != nil {
				slog.Warn("engine: could not abandon intent", "client_id", req.ClientOrderID, "err", aerr)
			}
		}
		return "", err
	}

	// La orden existe en el venue pero el journal sigue en PENDING: el par
	// falla y el ciclo siguiente la adopta por client id.
	if err := e.store.MarkIntentSubmitted(ctx, req.ClientOrderID, orderID); err != nil {
		slog.Warn("engine: could not mark intent submitted", "client_id", req.ClientOrderID, "order_id", orderID, "err", err)
		return orderID, fmt.Errorf("journal submitted %s: %w", orderID, err)
	}

	slog.Info("engine: order placed",
		"pair", pc.Pair,
		"side", string(req.Side),
		"volume", req.VolumeString(),
		"kind", string(req.Kind),
		"order_id", orderID,
		"client_id", req.ClientOrderID,
	)
	return orderID, nil
}

// recoverIntent looks for orders an earlier run submitted for this pair
// whose outcome never reached the persisted state. An order already sent in
// the desired direction is adopted instead of submitting a duplicate.
func (e *Engine) recoverIntent(ctx context.Context, pc domain.PairConfig, desired domain.Position) (string, bool, error) {
	intents, err := e.store.UnresolvedIntents(ctx, pc.Pair)
	if err != nil {
		return "", false, err
	}

	want := domain.SideFor(desired)
	var adopted string
	for _, in := range intents {
		if in.Side != want || adopted != "" {
			if err := e.store.MarkIntentAbandoned(ctx, in.ClientID); err != nil {
				return "", false, err
			}
			continue
		}

		switch in.Status {
		case domain.IntentSubmitted:
			adopted = in.OrderID
		case domain.IntentPending:
			id, err := e.venue.FindOrderByClientID(ctx, in.ClientID)
			if err != nil {
				return "", false, fmt.Errorf("lookup %s: %w", in.ClientID, err)
			}
			if id == "" {
				if err := e.store.MarkIntentAbandoned(ctx, in.ClientID); err != nil {
					return "", false, err
				}
				continue
			}
			if err := e.store.MarkIntentSubmitted(ctx, in.ClientID, id); err != nil {
				return "", false, err
			}
			adopted = id
		}

		if adopted != "" {
			slog.Warn("engine: adopting order from unpersisted cycle",
				"pair", pc.Pair,
				"client_id", in.ClientID,
				"order_id", adopted,
			)
		}
	}
	return adopted, adopted != "", nil
}
