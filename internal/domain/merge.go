package domain

// MergeSignal applies candidate, read from source, to the signal slot of
// pair and returns the resulting state. state itself is not modified.
//
// The candidate replaces the stored record when nothing is stored yet, when
// the stored record came from another source, or when its sequence id is
// strictly higher. On equal ids the stored record wins, so an identical
// record is a no-op and a conflicting one is dropped: the outcome of a batch
// does not depend on delivery order. The comparison is a strict > on purpose;
// a >= would let the last conflicting delivery win.
//
// A pair holds one signal slot, not one per source. Sequence ids are only
// comparable within one account, so a candidate from a different source
// takes the slot whatever its id. Callers bind each pair to a single source
// account (PairConfig.SourceAccount) and drop posts from other accounts
// before merging; the cross-source replacement only fires when that binding
// is changed in configuration.
func MergeSignal(state ReconciliationState, pair, source string, candidate SignalRecord) ReconciliationState {
	out := make(ReconciliationState, len(state)+1)
	for k, v := range state {
		out[k] = v
	}

	candidate.SourceAccount = source
	ps := out[pair].clone()

	if ps.Signal == nil || ps.Signal.SourceAccount != source || candidate.SequenceID > ps.Signal.SequenceID {
		ps.Signal = &candidate
	}
	out[pair] = ps
	return out
}
