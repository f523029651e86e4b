package subgraph

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/machinebox/graphql"

	"github.com/polylake/goldsky-mirror/cursor"
	"github.com/polylake/goldsky-mirror/logging"
	"github.com/polylake/goldsky-mirror/metrics"
	"github.com/polylake/goldsky-mirror/model"
	"github.com/polylake/goldsky-mirror/resilience"
)

// DefaultEndpoint is the Goldsky orderbook subgraph for Polymarket fills.
const DefaultEndpoint = "https://api.goldsky.com/api/public/project_cl6mb8i9h0003e201j6li0diw/subgraphs/orderbook-subgraph/0.0.1/gn"

// DefaultRetryDelay is the fixed backoff between transient fetch failures.
const DefaultRetryDelay = 5 * time.Second

// advancingQuery pages forward by timestamp.
const advancingQuery = `query fills($ts: BigInt!, $first: Int!) {
  orderFilledEvents(orderBy: timestamp, orderDirection: asc, first: $first,
                    where: {timestamp_gt: $ts}) {
    id
    timestamp
    maker
    makerAssetId
    makerAmountFilled
    taker
    takerAssetId
    takerAmountFilled
    transactionHash
  }
}`

// pinnedQuery pages by id inside a single timestamp.
const pinnedQuery = `query fills($ts: BigInt!, $id: ID!, $first: Int!) {
  orderFilledEvents(orderBy: timestamp, orderDirection: asc, first: $first,
                    where: {timestamp: $ts, id_gt: $id}) {
    id
    timestamp
    maker
    makerAssetId
    makerAmountFilled
    taker
    takerAssetId
    takerAmountFilled
    transactionHash
  }
}`

// Client fetches fill pages from the orderbook subgraph. Transient transport
// failures are retried forever with a fixed backoff: the loop above never
// sees them, only pages or context cancellation.
type Client struct {
	logger     *logging.ComponentLogger
	collector  *metrics.Collector
	gql        *graphql.Client
	endpoint   string
	retryDelay time.Duration
}

// NewClient creates a subgraph client for endpoint.
func NewClient(logger *logging.ComponentLogger, collector *metrics.Collector, endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		logger:     logger,
		collector:  collector,
		gql:        graphql.NewClient(endpoint),
		endpoint:   endpoint,
		retryDelay: DefaultRetryDelay,
	}
}

// FetchPage requests up to pageSize fills after cur. The returned page is
// sorted by (timestamp, id); the subgraph only guarantees timestamp order.
// An empty page is a valid result, not an error.
func (c *Client) FetchPage(ctx context.Context, cur cursor.Cursor, pageSize int) ([]model.FillEvent, error) {
	req := c.buildRequest(cur, pageSize)

	var resp struct {
		OrderFilledEvents []model.FillEvent `json:"orderFilledEvents"`
	}

	start := time.Now()
	err := resilience.Forever(ctx, c.retryDelay, func() error {
		resp.OrderFilledEvents = nil
		return c.gql.Run(ctx, req, &resp)
	}, func(attempt int, err error) {
		c.collector.RecordFetchRetry()
		c.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", c.retryDelay).
			Msg("Subgraph query failed, retrying")
	})
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	page := resp.OrderFilledEvents
	model.SortFills(page)
	c.collector.RecordPage(len(page), time.Since(start))

	return page, nil
}

func (c *Client) buildRequest(cur cursor.Cursor, pageSize int) *graphql.Request {
	if ts, lastID, ok := cur.PinnedAt(); ok {
		req := graphql.NewRequest(pinnedQuery)
		req.Var("ts", strconv.FormatInt(ts, 10))
		req.Var("id", lastID)
		req.Var("first", pageSize)
		return req
	}
	req := graphql.NewRequest(advancingQuery)
	req.Var("ts", strconv.FormatInt(cur.LastTimestamp, 10))
	req.Var("first", pageSize)
	return req
}
