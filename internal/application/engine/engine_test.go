package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

const trader = "trader"

func ethConfig() domain.PairConfig {
	return domain.PairConfig{
		Pair:          "ETHUSD",
		Budget:        domain.FixedBudget(dec("100")),
		VenuePair:     "ETHEUR",
		BaseAsset:     "XETH",
		QuoteAsset:    "ZEUR",
		SourceAccount: trader,
	}
}

func btcConfig() domain.PairConfig {
	return domain.PairConfig{
		Pair:          "BTCUSD",
		Budget:        domain.AvailableBudget(),
		VenuePair:     "XBTEUR",
		BaseAsset:     "XXBT",
		QuoteAsset:    "ZEUR",
		SourceAccount: trader,
	}
}

type harness struct {
	src      *fakeSource
	venue    *fakeVenue
	store    *memStore
	notifier *recordingNotifier
	engine   *Engine
}

func newHarness(pairs ...domain.PairConfig) *harness {
	h := &harness{
		src:      newFakeSource(),
		venue:    newFakeVenue(),
		store:    newMemStore(),
		notifier: &recordingNotifier{},
	}
	h.venue.quotes["ETHEUR"] = domain.Quote{Bid: dec("1990"), Ask: dec("2000")}
	h.venue.quotes["XBTEUR"] = domain.Quote{Bid: dec("49900"), Ask: dec("50000")}
	cfg := Config{
		Pairs:      pairs,
		Aliases:    map[string]string{"ETH": "ETHUSD", "BTC": "BTCUSD"},
		VenuePairs: map[string]string{"ETHEUR": "ETHUSD", "XBTEUR": "BTCUSD"},
	}
	h.engine = New(cfg, h.src, h.venue, h.store, h.notifier, nil)
	return h
}

func (h *harness) run(t *testing.T) *CycleResult {
	t.Helper()
	res, err := h.engine.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func outcomeFor(t *testing.T, res *CycleResult, pair string) PairOutcome {
	t.Helper()
	for _, o := range res.Outcomes {
		if o.Pair == pair {
			return o
		}
	}
	t.Fatalf("no outcome for %s", pair)
	return PairOutcome{}
}

func TestRunOnce_FirstSignalPlacesOrder(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.post(trader, 10, "I am going long ETH")
	h.venue.balances = domain.Balances{"ZEUR": dec("1000")}

	res := h.run(t)

	assert.Equal(t, 1, res.SignalsMerged)
	assert.Equal(t, 1, res.OrdersPlaced)
	assert.Empty(t, h.venue.cancelled)
	require.Len(t, h.venue.placed, 1)
	req := h.venue.placed[0]
	assert.Equal(t, domain.Buy, req.Side)
	assert.Equal(t, "ETHEUR", req.VenuePair)
	assert.Equal(t, domain.OrderMarket, req.Kind)
	assert.True(t, req.Quantity.Equal(dec("0.05")), "qty %s", req.Quantity)
	assert.NotEmpty(t, req.ClientOrderID)

	out := outcomeFor(t, res, "ETHUSD")
	assert.Equal(t, ActionPlaced, out.Action)
	assert.Equal(t, "TX1", out.OrderID)

	saved := h.store.state["ETHUSD"]
	require.NotNil(t, saved.Signal)
	require.NotNil(t, saved.Venue)
	assert.Equal(t, domain.Long, saved.Signal.Position)
	assert.Equal(t, int64(10), saved.Signal.SequenceID)
	assert.Equal(t, domain.VenueRecord{Position: domain.Long, OpenOrderIDs: []string{"TX1"}}, *saved.Venue)

	committed := h.store.intentsWith(domain.IntentCommitted)
	require.Len(t, committed, 1)
	assert.Equal(t, "TX1", committed[0].OrderID)

	require.Len(t, h.notifier.rows, 1)
	assert.Equal(t, "placed", h.notifier.rows[0][0].Action)

	// Second cycle: belief already matches, nothing new goes out.
	res = h.run(t)
	assert.Equal(t, []int64{0, 10}, h.src.since[trader])
	assert.Equal(t, ActionSynced, outcomeFor(t, res, "ETHUSD").Action)
	assert.Len(t, h.venue.placed, 1)
}

func TestRunOnce_SyncedPairIsNoop(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.post(trader, 10, "I am long ETH")
	h.venue.open = []domain.OpenOrder{{ID: "O1", VenuePair: "ETHEUR", Side: domain.Buy}}

	res := h.run(t)

	assert.Equal(t, ActionSynced, outcomeFor(t, res, "ETHUSD").Action)
	assert.Empty(t, h.venue.placed)
	assert.Empty(t, h.venue.cancelled)
	assert.Zero(t, res.PairErrors)
}

func TestRunOnce_NoSignalDoesNothing(t *testing.T) {
	h := newHarness(ethConfig())
	h.venue.open = []domain.OpenOrder{{ID: "O1", VenuePair: "ETHEUR", Side: domain.Sell}}

	res := h.run(t)

	assert.Equal(t, ActionNoSignal, outcomeFor(t, res, "ETHUSD").Action)
	assert.Empty(t, h.venue.placed)
	assert.Empty(t, h.venue.cancelled)
	assert.Equal(t, domain.Short, h.store.state["ETHUSD"].Venue.Position)
}

func TestRunOnce_DivergedCancelsEveryOrderThenPlacesOnce(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.post(trader, 11, "I am going short on ETH")
	h.venue.open = []domain.OpenOrder{
		{ID: "B", VenuePair: "ETHEUR", Side: domain.Buy},
		{ID: "A", VenuePair: "ETHEUR", Side: domain.Buy},
	}
	h.venue.balances = domain.Balances{"XETH": dec("0.5")}

	res := h.run(t)

	assert.Equal(t, []string{"A", "B"}, h.venue.cancelled)
	require.Len(t, h.venue.placed, 1)
	assert.Equal(t, domain.Sell, h.venue.placed[0].Side)
	assert.True(t, h.venue.placed[0].Quantity.Equal(dec("0.5")))
	assert.Equal(t, 2, res.OrdersCancelled)
	assert.Equal(t, domain.VenueRecord{Position: domain.Short, OpenOrderIDs: []string{"TX1"}}, *h.store.state["ETHUSD"].Venue)
}

func TestRunOnce_CancelFailureKeepsOrderID(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.post(trader, 11, "I am short ETH")
	h.venue.open = []domain.OpenOrder{
		{ID: "A", VenuePair: "ETHEUR", Side: domain.Buy},
		{ID: "B", VenuePair: "ETHEUR", Side: domain.Buy},
	}
	h.venue.cancelFail["B"] = true
	h.venue.balances = domain.Balances{"XETH": dec("0.5")}

	res := h.run(t)

	out := outcomeFor(t, res, "ETHUSD")
	assert.Equal(t, ActionPlaced, out.Action)
	require.Len(t, out.CancelFailures, 1)
	assert.Equal(t, "B", out.CancelFailures[0].OrderID)
	assert.Equal(t, 1, res.CancelFailures)
	assert.Equal(t, 1, res.OrdersCancelled)
	assert.Equal(t, []string{"B", "TX1"}, h.store.state["ETHUSD"].Venue.OpenOrderIDs)
}

func TestRunOnce_FilledOrdersAreNotCancelledOnFlip(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.post(trader, 10, "I am long ETH")
	h.venue.balances = domain.Balances{"ZEUR": dec("1000")}

	h.run(t)
	assert.Equal(t, []string{"TX1"}, h.store.state["ETHUSD"].Venue.OpenOrderIDs)

	// TX1 filled: it never shows up among open orders.
	h.src.post(trader, 11, "I am short ETH")
	h.venue.balances = domain.Balances{"XETH": dec("0.05")}
	res := h.run(t)

	out := outcomeFor(t, res, "ETHUSD")
	assert.Equal(t, ActionPlaced, out.Action)
	assert.Zero(t, out.Cancelled)
	assert.Empty(t, out.CancelFailures)
	assert.Empty(t, h.venue.cancelled)
	require.Len(t, h.venue.placed, 2)
	assert.Equal(t, domain.Sell, h.venue.placed[1].Side)
	assert.Equal(t, domain.VenueRecord{Position: domain.Short, OpenOrderIDs: []string{"TX2"}}, *h.store.state["ETHUSD"].Venue)

	h.src.post(trader, 12, "I am long ETH")
	h.venue.balances = domain.Balances{"ZEUR": dec("1000")}
	res = h.run(t)

	assert.Equal(t, ActionPlaced, outcomeFor(t, res, "ETHUSD").Action)
	assert.Empty(t, h.venue.cancelled)
	assert.Zero(t, res.CancelFailures)
	assert.Equal(t, domain.VenueRecord{Position: domain.Long, OpenOrderIDs: []string{"TX3"}}, *h.store.state["ETHUSD"].Venue)
}

func TestRunOnce_SyncedPairForgetsFilledOrder(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.post(trader, 10, "I am long ETH")
	h.venue.balances = domain.Balances{"ZEUR": dec("1000")}
	h.run(t)

	res := h.run(t)

	assert.Equal(t, ActionSynced, outcomeFor(t, res, "ETHUSD").Action)
	venue := h.store.state["ETHUSD"].Venue
	require.NotNil(t, venue)
	assert.Equal(t, domain.Long, venue.Position)
	assert.Empty(t, venue.OpenOrderIDs)
}

func TestRunOnce_DustSuppressesSellButMarksShort(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.post(trader, 12, "I am short ETH")
	h.venue.open = []domain.OpenOrder{{ID: "A", VenuePair: "ETHEUR", Side: domain.Buy}}
	h.venue.balances = domain.Balances{"XETH": dec("0.00005")}

	res := h.run(t)

	out := outcomeFor(t, res, "ETHUSD")
	assert.Equal(t, ActionNoOrder, out.Action)
	assert.Equal(t, domain.SkipDust, out.Skip)
	assert.NoError(t, out.Err)
	assert.Equal(t, []string{"A"}, h.venue.cancelled)
	assert.Empty(t, h.venue.placed)

	venue := h.store.state["ETHUSD"].Venue
	assert.Equal(t, domain.Short, venue.Position)
	assert.Empty(t, venue.OpenOrderIDs)
}

func TestRunOnce_MinNotionalSuppressesBuyButMarksLong(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.post(trader, 12, "I am long ETH")
	// 0.049 ETH at 2000 is 98 of the 100 budget: only 2 left to spend.
	h.venue.balances = domain.Balances{"XETH": dec("0.049"), "ZEUR": dec("1000")}

	res := h.run(t)

	out := outcomeFor(t, res, "ETHUSD")
	assert.Equal(t, ActionNoOrder, out.Action)
	assert.Equal(t, domain.SkipMinNotional, out.Skip)
	assert.Empty(t, h.venue.placed)
	assert.Equal(t, domain.Long, h.store.state["ETHUSD"].Venue.Position)
}

func TestRunOnce_IntegrityViolationHaltsOnlyThatPair(t *testing.T) {
	h := newHarness(ethConfig(), btcConfig())
	h.src.post(trader, 20, "I am short ETH")
	h.src.post(trader, 21, "I am long BTC")
	h.venue.open = []domain.OpenOrder{
		{ID: "A", VenuePair: "ETHEUR", Side: domain.Buy},
		{ID: "B", VenuePair: "ETHEUR", Side: domain.Sell},
	}
	h.venue.balances = domain.Balances{"ZEUR": dec("1000"), "XETH": dec("1")}
	prior := domain.VenueRecord{Position: domain.Long, OpenOrderIDs: []string{"OLD"}}
	h.store.state = domain.ReconciliationState{"ETHUSD": {Venue: &prior}}
	require.NoError(t, h.engine.Restore(context.Background()))

	res := h.run(t)

	eth := outcomeFor(t, res, "ETHUSD")
	assert.Equal(t, ActionIntegrityHalt, eth.Action)
	var integrity *domain.DataIntegrityError
	require.ErrorAs(t, eth.Err, &integrity)
	assert.Equal(t, []string{"A", "B"}, integrity.OrderIDs)
	venue := h.store.state["ETHUSD"].Venue
	require.NotNil(t, venue)
	assert.Equal(t, domain.VenueRecord{Position: domain.Long, OpenOrderIDs: []string{"OLD"}}, *venue)
	assert.Empty(t, h.venue.cancelled)

	btc := outcomeFor(t, res, "BTCUSD")
	assert.Equal(t, ActionPlaced, btc.Action)
	require.Len(t, h.venue.placed, 1)
	assert.Equal(t, "XBTEUR", h.venue.placed[0].VenuePair)
	// 95% of 1000 at 50000
	assert.True(t, h.venue.placed[0].Quantity.Equal(dec("0.019")))
	assert.Equal(t, 1, res.PairErrors)
}

func TestRunOnce_VenueRejectionFailsOnlyThePair(t *testing.T) {
	h := newHarness(ethConfig(), btcConfig())
	h.src.post(trader, 30, "I am long ETH")
	h.venue.open = []domain.OpenOrder{{ID: "S1", VenuePair: "XBTEUR", Side: domain.Sell}}
	h.venue.balances = domain.Balances{"ZEUR": dec("1000")}
	h.venue.placeErr = &domain.VenueRequestError{Op: "AddOrder", Messages: []string{"EOrder:Insufficient funds"}}

	res := h.run(t)

	out := outcomeFor(t, res, "ETHUSD")
	assert.Equal(t, ActionFailed, out.Action)
	assert.Equal(t, "venue_request", domain.ErrorKind(out.Err))
	assert.Equal(t, ActionNoSignal, outcomeFor(t, res, "BTCUSD").Action)
	assert.Equal(t, 1, res.PairErrors)

	// State persisted, venue belief of the failed pair untouched.
	require.Len(t, h.store.cycles, 1)
	assert.Nil(t, h.store.state["ETHUSD"].Venue)
	assert.NotNil(t, h.store.state["ETHUSD"].Signal)
	assert.Len(t, h.store.intentsWith(domain.IntentAbandoned), 1)
}

func TestRunOnce_TransportErrorLeavesIntentPending(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.post(trader, 30, "I am long ETH")
	h.venue.balances = domain.Balances{"ZEUR": dec("1000")}
	h.venue.placeErr = errors.New("connection reset by peer")

	res := h.run(t)

	assert.Equal(t, ActionFailed, outcomeFor(t, res, "ETHUSD").Action)
	assert.Len(t, h.store.intentsWith(domain.IntentPending), 1)
}

func TestRunOnce_UnjournaledPlacementFailsPairThenIsAdopted(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.post(trader, 60, "I am long ETH")
	h.venue.balances = domain.Balances{"ZEUR": dec("1000")}
	h.store.markErr = errors.New("database is locked")

	res := h.run(t)

	out := outcomeFor(t, res, "ETHUSD")
	assert.Equal(t, ActionFailed, out.Action)
	assert.Equal(t, "TX1", out.OrderID)
	assert.ErrorContains(t, out.Err, "database is locked")
	assert.Equal(t, 1, res.PairErrors)
	assert.Zero(t, res.OrdersPlaced)
	assert.Nil(t, h.store.state["ETHUSD"].Venue)
	require.Len(t, h.venue.placed, 1)
	clientID := h.venue.placed[0].ClientOrderID
	assert.Equal(t, domain.IntentPending, h.store.intents[clientID].Status)

	// Next cycle asks the venue about the pending intent instead of placing again.
	h.store.markErr = nil
	h.venue.clientOrders[clientID] = "TX1"
	res = h.run(t)

	out = outcomeFor(t, res, "ETHUSD")
	assert.Equal(t, ActionAdopted, out.Action)
	assert.Equal(t, "TX1", out.OrderID)
	assert.Equal(t, []string{clientID}, h.venue.lookups)
	assert.Len(t, h.venue.placed, 1)
	assert.Equal(t, domain.IntentCommitted, h.store.intents[clientID].Status)
	assert.Equal(t, domain.VenueRecord{Position: domain.Long, OpenOrderIDs: []string{"TX1"}}, *h.store.state["ETHUSD"].Venue)
}

func TestRunOnce_BalanceErrorFailsPair(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.post(trader, 30, "I am short ETH")
	h.venue.open = []domain.OpenOrder{{ID: "A", VenuePair: "ETHEUR", Side: domain.Buy}}
	h.venue.balErr = errors.New("timeout")

	res := h.run(t)

	out := outcomeFor(t, res, "ETHUSD")
	assert.Equal(t, ActionFailed, out.Action)
	assert.Equal(t, domain.VenueRecord{Position: domain.Long, OpenOrderIDs: []string{"A"}}, *h.store.state["ETHUSD"].Venue)
}

func TestRunOnce_AuthErrorIsFatal(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.errs[trader] = &domain.SignalSourceAuthError{Account: trader, Status: 401, Err: errors.New("Unauthorized")}

	res, err := h.engine.RunOnce(context.Background())

	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, domain.IsFatal(err))
	assert.Empty(t, h.store.cycles)
}

func TestRunOnce_TransientSourceErrorSkipsAccount(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.errs[trader] = errors.New("503 service unavailable")

	res := h.run(t)

	assert.Zero(t, res.SignalsMerged)
	assert.Equal(t, ActionNoSignal, outcomeFor(t, res, "ETHUSD").Action)
	assert.Zero(t, h.engine.cursors[trader])
	assert.Len(t, h.store.cycles, 1)
}

func TestRunOnce_SnapshotFailureSkipsEveryPair(t *testing.T) {
	h := newHarness(ethConfig(), btcConfig())
	h.src.post(trader, 40, "I am long ETH")
	h.venue.listErr = errors.New("EAPI:Invalid nonce")

	res := h.run(t)

	require.Error(t, res.SnapshotErr)
	for _, out := range res.Outcomes {
		assert.Equal(t, ActionNoSnapshot, out.Action, out.Pair)
	}
	assert.Empty(t, h.venue.placed)
	require.Len(t, h.store.cycles, 1)
	assert.NotNil(t, h.store.state["ETHUSD"].Signal)
}

func TestRunOnce_CursorAdvancesPastNonSignals(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.post(trader, 21, "gm")
	h.src.post(trader, 20, "I am short ETH")
	h.src.post(trader, 15, "I am long ETH")
	h.venue.open = []domain.OpenOrder{{ID: "S", VenuePair: "ETHEUR", Side: domain.Sell}}

	h.run(t)
	h.run(t)

	sig := h.store.state["ETHUSD"].Signal
	require.NotNil(t, sig)
	assert.Equal(t, domain.Short, sig.Position)
	assert.Equal(t, int64(20), sig.SequenceID)
	assert.Equal(t, []int64{0, 21}, h.src.since[trader])
}

func TestRunOnce_AliasAndAccountFiltering(t *testing.T) {
	btc := btcConfig()
	btc.SourceAccount = "other"
	h := newHarness(ethConfig(), btc)
	h.src.post(trader, 3, "I am long on ETH")
	h.src.post(trader, 4, "I am going short DOGE")
	h.src.post(trader, 5, "I am short BTC")
	h.venue.open = []domain.OpenOrder{{ID: "O", VenuePair: "ETHEUR", Side: domain.Buy}}

	res := h.run(t)

	assert.Equal(t, 1, res.SignalsMerged)
	assert.Equal(t, domain.Long, h.store.state["ETHUSD"].Signal.Position)
	assert.Nil(t, h.store.state["BTCUSD"].Signal)
	assert.NotContains(t, h.store.state, "DOGE")
	assert.Contains(t, h.src.since, "other")
}

func TestRestore_SeedsCursorsFromStoredSignals(t *testing.T) {
	h := newHarness(ethConfig())
	h.store.state = domain.ReconciliationState{
		"ETHUSD": {
			Signal: &domain.SignalRecord{Position: domain.Long, SequenceID: 42, SourceAccount: trader},
			Venue:  &domain.VenueRecord{Position: domain.Long, OpenOrderIDs: []string{"O1"}},
		},
	}

	h.store.cycles = []ports.CycleSummary{{Cycle: 7}}

	require.NoError(t, h.engine.Restore(context.Background()))
	res := h.run(t)

	assert.Equal(t, 8, res.Cycle)
	assert.Equal(t, []int64{42}, h.src.since[trader])
	assert.Equal(t, ActionSynced, outcomeFor(t, res, "ETHUSD").Action)
	assert.Empty(t, h.venue.placed)
}

func TestRunOnce_AdoptsSubmittedIntent(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.post(trader, 50, "I am long ETH")
	h.store.intents["c1"] = domain.OrderIntent{
		ClientID: "c1", Pair: "ETHUSD", Side: domain.Buy,
		Status: domain.IntentSubmitted, OrderID: "TX9",
	}

	res := h.run(t)

	out := outcomeFor(t, res, "ETHUSD")
	assert.Equal(t, ActionAdopted, out.Action)
	assert.Equal(t, "TX9", out.OrderID)
	assert.Empty(t, h.venue.placed)
	assert.Empty(t, h.venue.lookups)
	assert.Equal(t, []string{"TX9"}, h.store.state["ETHUSD"].Venue.OpenOrderIDs)
	assert.Equal(t, domain.IntentCommitted, h.store.intents["c1"].Status)
}

func TestRunOnce_PendingIntentFoundOnVenueIsAdopted(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.post(trader, 50, "I am long ETH")
	h.store.intents["c1"] = domain.OrderIntent{ClientID: "c1", Pair: "ETHUSD", Side: domain.Buy, Status: domain.IntentPending}
	h.venue.clientOrders["c1"] = "TX7"

	res := h.run(t)

	assert.Equal(t, ActionAdopted, outcomeFor(t, res, "ETHUSD").Action)
	assert.Equal(t, []string{"c1"}, h.venue.lookups)
	assert.Empty(t, h.venue.placed)
	assert.Equal(t, "TX7", h.store.intents["c1"].OrderID)
	assert.Equal(t, domain.IntentCommitted, h.store.intents["c1"].Status)
}

func TestRunOnce_PendingIntentUnknownToVenueIsReplaced(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.post(trader, 50, "I am long ETH")
	h.store.intents["c1"] = domain.OrderIntent{ClientID: "c1", Pair: "ETHUSD", Side: domain.Buy, Status: domain.IntentPending}
	h.venue.balances = domain.Balances{"ZEUR": dec("1000")}

	res := h.run(t)

	assert.Equal(t, ActionPlaced, outcomeFor(t, res, "ETHUSD").Action)
	assert.Equal(t, domain.IntentAbandoned, h.store.intents["c1"].Status)
	require.Len(t, h.venue.placed, 1)
	assert.NotEqual(t, "c1", h.venue.placed[0].ClientOrderID)
}

func TestRunOnce_OppositeSideIntentIsAbandoned(t *testing.T) {
	h := newHarness(ethConfig())
	h.src.post(trader, 50, "I am long ETH")
	h.store.intents["c1"] = domain.OrderIntent{ClientID: "c1", Pair: "ETHUSD", Side: domain.Sell, Status: domain.IntentSubmitted, OrderID: "TX3"}
	h.venue.balances = domain.Balances{"ZEUR": dec("1000")}

	h.run(t)

	assert.Equal(t, domain.IntentAbandoned, h.store.intents["c1"].Status)
	assert.Empty(t, h.venue.lookups)
	require.Len(t, h.venue.placed, 1)
	assert.Equal(t, domain.Buy, h.venue.placed[0].Side)
}

func TestRunOnce_LimitOrdersUseTopOfBook(t *testing.T) {
	pc := ethConfig()
	pc.OrderKind = domain.OrderLimit
	h := newHarness(pc)
	h.src.post(trader, 60, "I am short ETH")
	h.venue.balances = domain.Balances{"XETH": dec("0.25")}

	h.run(t)

	require.Len(t, h.venue.placed, 1)
	req := h.venue.placed[0]
	assert.Equal(t, domain.OrderLimit, req.Kind)
	assert.True(t, req.Price.Equal(dec("1990")), "sells rest on the bid")
}

func TestRunOnce_PersistErrorIsReturned(t *testing.T) {
	h := newHarness(ethConfig())
	h.store.saveErr = errors.New("disk full")

	res, err := h.engine.RunOnce(context.Background())

	require.Error(t, err)
	assert.NotNil(t, res)
	assert.False(t, domain.IsFatal(err))
}

func TestDryRunVenue_SkipsWrites(t *testing.T) {
	fake := newFakeVenue()
	fake.open = []domain.OpenOrder{{ID: "O1", VenuePair: "ETHEUR", Side: domain.Buy}}
	v := DryRunVenue(fake)
	ctx := context.Background()

	id, err := v.PlaceOrder(ctx, domain.PlaceOrderRequest{VenuePair: "ETHEUR", Side: domain.Buy, Quantity: dec("1")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "dry-run-"))

	ok, err := v.CancelOrder(ctx, "O1")
	require.NoError(t, err)
	assert.True(t, ok)

	orders, err := v.ListOpenOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Empty(t, fake.placed)
	assert.Empty(t, fake.cancelled)
}
