package model

import "sort"

// FillEvent is a single orderFilledEvent row from the orderbook subgraph.
// IDs and amounts stay strings: asset ids and raw amounts are 256-bit
// integers that must never pass through a float.
type FillEvent struct {
	ID                string `json:"id"`
	Timestamp         int64  `json:"timestamp,string"`
	Maker             string `json:"maker"`
	MakerAssetID      string `json:"makerAssetId"`
	MakerAmountFilled string `json:"makerAmountFilled"`
	Taker             string `json:"taker"`
	TakerAssetID      string `json:"takerAssetId"`
	TakerAmountFilled string `json:"takerAmountFilled"`
	TransactionHash   string `json:"transactionHash"`
}

// SortFills orders a page by (timestamp, id) in place. The subgraph only
// guarantees timestamp order, so pages are re-sorted locally before the
// cursor looks at their trailing row.
func SortFills(fills []FillEvent) {
	sort.Slice(fills, func(i, j int) bool {
		if fills[i].Timestamp != fills[j].Timestamp {
			return fills[i].Timestamp < fills[j].Timestamp
		}
		return fills[i].ID < fills[j].ID
	})
}

// MaxTimestamp returns the largest timestamp in rows, or 0 for an empty set.
func MaxTimestamp(fills []FillEvent) int64 {
	var max int64
	for _, f := range fills {
		if f.Timestamp > max {
			max = f.Timestamp
		}
	}
	return max
}
