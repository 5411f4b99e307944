package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ── source ──

type fakeSource struct {
	posts map[string][]domain.Post
	errs  map[string]error
	since map[string][]int64
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		posts: make(map[string][]domain.Post),
		errs:  make(map[string]error),
		since: make(map[string][]int64),
	}
}

func (s *fakeSource) post(account string, id int64, text string) {
	s.posts[account] = append(s.posts[account], domain.Post{ID: id, Text: text})
}

func (s *fakeSource) FetchPosts(_ context.Context, account string, sinceID int64) iter.Seq2[domain.Post, error] {
	s.since[account] = append(s.since[account], sinceID)
	return func(yield func(domain.Post, error) bool) {
		if err := s.errs[account]; err != nil {
			yield(domain.Post{}, err)
			return
		}
		for _, p := range s.posts[account] {
			if p.ID <= sinceID {
				continue
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}

// ── venue ──

type fakeVenue struct {
	open         []domain.OpenOrder
	listErr      error
	balances     domain.Balances
	balErr       error
	quotes       map[string]domain.Quote
	placeErr     error
	cancelFail   map[string]bool
	clientOrders map[string]string

	placed    []domain.PlaceOrderRequest
	cancelled []string
	lookups   []string
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{
		balances:     domain.Balances{},
		quotes:       make(map[string]domain.Quote),
		cancelFail:   make(map[string]bool),
		clientOrders: make(map[string]string),
	}
}

func (v *fakeVenue) ListOpenOrders(context.Context) ([]domain.OpenOrder, error) {
	if v.listErr != nil {
		return nil, v.listErr
	}
	return slices.Clone(v.open), nil
}

func (v *fakeVenue) PlaceOrder(_ context.Context, req domain.PlaceOrderRequest) (string, error) {
	if v.placeErr != nil {
		return "", v.placeErr
	}
	v.placed = append(v.placed, req)
	return fmt.Sprintf("TX%d", len(v.placed)), nil
}

func (v *fakeVenue) CancelOrder(_ context.Context, id string) (bool, error) {
	v.cancelled = append(v.cancelled, id)
	if v.cancelFail[id] {
		return false, errors.New("EOrder:Unknown order")
	}
	return true, nil
}

func (v *fakeVenue) Balances(context.Context) (domain.Balances, error) {
	if v.balErr != nil {
		return nil, v.balErr
	}
	return v.balances, nil
}

func (v *fakeVenue) Quote(_ context.Context, venuePair string) (domain.Quote, error) {
	q, ok := v.quotes[venuePair]
	if !ok {
		return domain.Quote{}, fmt.Errorf("no quote for %s", venuePair)
	}
	return q, nil
}

func (v *fakeVenue) FindOrderByClientID(_ context.Context, clientID string) (string, error) {
	v.lookups = append(v.lookups, clientID)
	return v.clientOrders[clientID], nil
}

// ── store ──

type memStore struct {
	state   domain.ReconciliationState
	intents map[string]domain.OrderIntent
	cycles  []ports.CycleSummary
	saveErr error
	markErr error
}

func newMemStore() *memStore {
	return &memStore{
		state:   domain.ReconciliationState{},
		intents: make(map[string]domain.OrderIntent),
	}
}

func (m *memStore) LoadState(context.Context) (domain.ReconciliationState, error) {
	return m.state.Clone(), nil
}

func (m *memStore) SaveState(_ context.Context, state domain.ReconciliationState, summary ports.CycleSummary) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.state = state.Clone()
	m.cycles = append(m.cycles, summary)
	for id, in := range m.intents {
		if in.Status == domain.IntentSubmitted {
			in.Status = domain.IntentCommitted
			m.intents[id] = in
		}
	}
	return nil
}

func (m *memStore) LastCycle(context.Context) (int, error) {
	if len(m.cycles) == 0 {
		return 0, nil
	}
	return m.cycles[len(m.cycles)-1].Cycle, nil
}

func (m *memStore) SaveIntent(_ context.Context, in domain.OrderIntent) error {
	m.intents[in.ClientID] = in
	return nil
}

func (m *memStore) MarkIntentSubmitted(_ context.Context, clientID, orderID string) error {
	if m.markErr != nil {
		return m.markErr
	}
	in, ok := m.intents[clientID]
	if !ok {
		return fmt.Errorf("intent %s not found", clientID)
	}
	in.Status = domain.IntentSubmitted
	in.OrderID = orderID
	m.intents[clientID] = in
	return nil
}

func (m *memStore) MarkIntentAbandoned(_ context.Context, clientID string) error {
	in, ok := m.intents[clientID]
	if !ok {
		return fmt.Errorf("intent %s not found", clientID)
	}
	in.Status = domain.IntentAbandoned
	m.intents[clientID] = in
	return nil
}

func (m *memStore) UnresolvedIntents(_ context.Context, pair string) ([]domain.OrderIntent, error) {
	var out []domain.OrderIntent
	for _, in := range m.intents {
		if in.Pair == pair && (in.Status == domain.IntentPending || in.Status == domain.IntentSubmitted) {
			out = append(out, in)
		}
	}
	slices.SortFunc(out, func(a, b domain.OrderIntent) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ClientID, b.ClientID)
	})
	return out, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) intentsWith(status domain.IntentStatus) []domain.OrderIntent {
	var out []domain.OrderIntent
	for _, in := range m.intents {
		if in.Status == status {
			out = append(out, in)
		}
	}
	return out
}

// ── notifier ──

type recordingNotifier struct {
	cycles []int
	rows   [][]ports.PairReport
}

func (n *recordingNotifier) NotifyCycle(_ context.Context, cycle int, rows []ports.PairReport) error {
	n.cycles = append(n.cycles, cycle)
	n.rows = append(n.rows, rows)
	return nil
}
