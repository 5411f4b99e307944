package domain

import (
	"maps"
	"slices"
	"time"
)

// SignalRecord is one directional instruction from a signal source.
// SequenceID is the only ordering key.
type SignalRecord struct {
	Position      Position  `json:"position"`
	SequenceID    int64     `json:"sequence_id"`
	ObservedAt    time.Time `json:"observed_at"`
	SourceAccount string    `json:"source_account"`
}

// VenueRecord is the venue's view of a pair. It is always replaced as a
// whole, never merged.
type VenueRecord struct {
	Position     Position `json:"position"`
	OpenOrderIDs []string `json:"open_order_ids"`
}

// Clone copies the order id slice.
func (v VenueRecord) Clone() VenueRecord {
	ids := make([]string, len(v.OpenOrderIDs))
	copy(ids, v.OpenOrderIDs)
	return VenueRecord{Position: v.Position, OpenOrderIDs: ids}
}

// PairState is what the engine knows about one pair. Both halves may be
// absent.
type PairState struct {
	Signal *SignalRecord `json:"signal,omitempty"`
	Venue  *VenueRecord  `json:"venue,omitempty"`
}

func (p PairState) clone() PairState {
	var out PairState
	if p.Signal != nil {
		s := *p.Signal
		out.Signal = &s
	}
	if p.Venue != nil {
		v := p.Venue.Clone()
		out.Venue = &v
	}
	return out
}

// ReconciliationState maps configured pair identifiers to their state.
// Entries are created lazily and never removed.
type ReconciliationState map[string]PairState

// Clone returns a deep copy.
func (s ReconciliationState) Clone() ReconciliationState {
	out := make(ReconciliationState, len(s))
	for k, v := range s {
		out[k] = v.clone()
	}
	return out
}

// Pairs returns the pair identifiers in sorted order.
func (s ReconciliationState) Pairs() []string {
	return slices.Sorted(maps.Keys(s))
}

// SetVenue replaces the venue record of pair, creating the entry if needed.
func (s ReconciliationState) SetVenue(pair string, v VenueRecord) {
	ps := s[pair]
	rec := v.Clone()
	ps.Venue = &rec
	s[pair] = ps
}

// MaxSequence returns the highest stored sequence id for account.
func (s ReconciliationState) MaxSequence(account string) int64 {
	var highest int64
	for _, ps := range s {
		if ps.Signal != nil && ps.Signal.SourceAccount == account && ps.Signal.SequenceID > highest {
			highest = ps.Signal.SequenceID
		}
	}
	return highest
}
