package storage

import "github.com/apache/arrow/go/v17/arrow"

// FillSchema returns the Arrow schema for the fill dataset.
// Asset ids and raw amounts are utf8: they are 256-bit integers and any
// numeric column type would silently truncate them.
func FillSchema() *arrow.Schema {
	return arrow.NewSchema(
		[]arrow.Field{
			{Name: "timestamp", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
			{Name: "id", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "maker", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "makerAssetId", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "makerAmountFilled", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "taker", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "takerAssetId", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "takerAmountFilled", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "transactionHash", Type: arrow.BinaryTypes.String, Nullable: false},
		},
		nil,
	)
}

// MarketSchema returns the Arrow schema for the market reference dataset.
func MarketSchema() *arrow.Schema {
	return arrow.NewSchema(
		[]arrow.Field{
			{Name: "createdAt", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "id", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "question", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "answer1", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "answer2", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "neg_risk", Type: arrow.FixedWidthTypes.Boolean, Nullable: false},
			{Name: "market_slug", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "token1", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "token2", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "condition_id", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "volume", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "ticker", Type: arrow.BinaryTypes.String, Nullable: false},
			{Name: "closedTime", Type: arrow.BinaryTypes.String, Nullable: false},
		},
		nil,
	)
}
