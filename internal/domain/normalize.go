package domain

import "slices"

// VenueSnapshot is the normalized open-order snapshot of one cycle.
type VenueSnapshot struct {
	// Records holds one record per pair that has open orders. A pair with no
	// open orders has no entry: the venue has no opinion about it.
	Records map[string]VenueRecord
	// Violations holds the pairs whose orders break position binariness.
	Violations map[string]*DataIntegrityError
}

// NormalizeOpenOrders groups orders by configured pair (translating venue
// codes with venuePairs, unknown codes pass through unchanged) and derives
// one VenueRecord per pair: buy orders mean Long, sell orders mean Short.
// A pair with mixed or unknown sides is reported in Violations and gets no
// record.
func NormalizeOpenOrders(orders []OpenOrder, venuePairs map[string]string) VenueSnapshot {
	groups := make(map[string][]OpenOrder)
	for _, o := range orders {
		pair := o.VenuePair
		if mapped, ok := venuePairs[pair]; ok {
			pair = mapped
		}
		groups[pair] = append(groups[pair], o)
	}

	snap := VenueSnapshot{
		Records:    make(map[string]VenueRecord, len(groups)),
		Violations: make(map[string]*DataIntegrityError),
	}
	for pair, group := range groups {
		rec, err := normalizeGroup(pair, group)
		if err != nil {
			snap.Violations[pair] = err
			continue
		}
		snap.Records[pair] = rec
	}
	return snap
}

func normalizeGroup(pair string, group []OpenOrder) (VenueRecord, *DataIntegrityError) {
	ids := make([]string, 0, len(group))
	var sides []Side
	for _, o := range group {
		ids = append(ids, o.ID)
		if !slices.Contains(sides, o.Side) {
			sides = append(sides, o.Side)
		}
	}
	slices.Sort(ids)

	if len(sides) != 1 {
		slices.Sort(sides)
		return VenueRecord{}, &DataIntegrityError{Pair: pair, Sides: sides, OrderIDs: ids}
	}
	pos, ok := sides[0].Position()
	if !ok {
		return VenueRecord{}, &DataIntegrityError{Pair: pair, Sides: sides, OrderIDs: ids}
	}
	return VenueRecord{Position: pos, OpenOrderIDs: ids}, nil
}
