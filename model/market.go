package model

import "sort"

// Market is one reference record from the gamma markets catalog, reduced to
// the fields the mirror consumes. Token ids are utf8 for the same reason the
// fill asset ids are.
type Market struct {
	CreatedAt   string
	ID          string
	Question    string
	Answer1     string
	Answer2     string
	NegRisk     bool
	MarketSlug  string
	Token1      string
	Token2      string
	ConditionID string
	Volume      string
	Ticker      string
	ClosedTime  string
}

// SortMarketsByCreatedAt orders markets by creation date in place.
// CreatedAt is an RFC3339-ish string from the catalog; lexical order matches
// chronological order for that format.
func SortMarketsByCreatedAt(markets []Market) {
	sort.Slice(markets, func(i, j int) bool {
		return markets[i].CreatedAt < markets[j].CreatedAt
	})
}

// DedupeMarkets removes markets with duplicate ids, keeping the first
// occurrence.
func DedupeMarkets(markets []Market) []Market {
	seen := make(map[string]struct{}, len(markets))
	out := markets[:0:0]
	for _, m := range markets {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}
