package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/polylake/goldsky-mirror/logging"
	"github.com/polylake/goldsky-mirror/metrics"
	"github.com/polylake/goldsky-mirror/model"
	"github.com/polylake/goldsky-mirror/resilience"
)

// DefaultEndpoint is the public gamma markets catalog.
const DefaultEndpoint = "https://gamma-api.polymarket.com"

const (
	defaultMaxAttempts    = 3
	defaultRateLimitDelay = 10 * time.Second
	defaultRetryDelay     = 2 * time.Second
)

// Client looks markets up in the gamma catalog by clob token id.
//
// Retry policy per key: HTTP 429 waits 10s, any other failure waits 2s,
// both bounded by 3 attempts; after that the key is given up on and the
// caller moves to the next one. A clean "no market for this token" response
// is terminal, not retried.
type Client struct {
	logger    *logging.ComponentLogger
	collector *metrics.Collector
	http      *http.Client
	baseURL   string

	maxAttempts    int
	rateLimitDelay time.Duration
	retryDelay     time.Duration
}

// NewClient creates a catalog client for baseURL.
func NewClient(logger *logging.ComponentLogger, collector *metrics.Collector, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultEndpoint
	}
	return &Client{
		logger:         logger,
		collector:      collector,
		http:           &http.Client{Timeout: 30 * time.Second},
		baseURL:        baseURL,
		maxAttempts:    defaultMaxAttempts,
		rateLimitDelay: defaultRateLimitDelay,
		retryDelay:     defaultRetryDelay,
	}
}

// gammaMarket is the subset of the catalog response the mirror consumes.
// clobTokenIds and outcomes arrive as JSON-encoded strings in most catalog
// versions and as plain arrays in others; both shapes are accepted.
type gammaMarket struct {
	ID               string          `json:"id"`
	Question         string          `json:"question"`
	Title            string          `json:"title"`
	Slug             string          `json:"slug"`
	ConditionID      string          `json:"conditionId"`
	CreatedAt        string          `json:"createdAt"`
	ClosedTime       string          `json:"closedTime"`
	Volume           string          `json:"volume"`
	ClobTokenIDs     json.RawMessage `json:"clobTokenIds"`
	Outcomes         json.RawMessage `json:"outcomes"`
	NegRiskAugmented bool            `json:"negRiskAugmented"`
	NegRiskOther     bool            `json:"negRiskOther"`
	Events           []struct {
		Ticker string `json:"ticker"`
	} `json:"events"`
}

// LookupMarket fetches the market holding tokenID. It returns (nil, nil)
// when the catalog has no market for the token or the record is malformed
// (both cases are skipped, not retried), and an error when all attempts
// failed.
func (c *Client) LookupMarket(ctx context.Context, tokenID string) (*model.Market, error) {
	start := time.Now()
	defer func() {
		c.collector.RecordCatalogLookup(time.Since(start))
	}()

	var raw []gammaMarket
	var lastErr error

	for att := 1; att <= c.maxAttempts; att++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var delay time.Duration
		raw, delay, lastErr = c.fetchOnce(ctx, tokenID)
		if lastErr == nil {
			break
		}
		if att < c.maxAttempts {
			c.logger.Warn().
				Err(lastErr).
				Str("token_id", tokenID).
				Int("attempt", att).
				Dur("backoff", delay).
				Msg("Catalog lookup failed, retrying")
			if werr := resilience.Wait(ctx, delay); werr != nil {
				return nil, werr
			}
		}
	}
	if lastErr != nil {
		c.collector.RecordCatalogError()
		return nil, fmt.Errorf("lookup market for token %s: %w", tokenID, lastErr)
	}

	if len(raw) == 0 {
		c.collector.RecordCatalogSkip()
		c.logger.Debug().
			Str("token_id", tokenID).
			Msg("No market found for token")
		return nil, nil
	}

	market, ok := c.convert(raw[0], tokenID)
	if !ok {
		c.collector.RecordCatalogSkip()
		return nil, nil
	}
	return market, nil
}

// fetchOnce performs a single catalog request, returning the suggested
// backoff for the failure class alongside the error.
func (c *Client) fetchOnce(ctx context.Context, tokenID string) ([]gammaMarket, time.Duration, error) {
	reqURL := fmt.Sprintf("%s/markets?clob_token_ids=%s", c.baseURL, url.QueryEscape(tokenID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, c.retryDelay, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.retryDelay, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.collector.RecordRateLimit()
		return nil, c.rateLimitDelay, fmt.Errorf("catalog rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.retryDelay, fmt.Errorf("catalog status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.retryDelay, fmt.Errorf("read catalog response: %w", err)
	}
	var raw []gammaMarket
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, c.retryDelay, fmt.Errorf("decode catalog response: %w", err)
	}
	return raw, 0, nil
}

// convert maps a raw catalog record to the mirror's market model, skipping
// records without the two outcome tokens.
func (c *Client) convert(raw gammaMarket, tokenID string) (*model.Market, bool) {
	tokens := decodeStringList(raw.ClobTokenIDs)
	if len(tokens) < 2 {
		c.logger.Warn().
			Str("token_id", tokenID).
			Str("market_id", raw.ID).
			Int("token_count", len(tokens)).
			Msg("Malformed market record, skipping")
		return nil, false
	}

	outcomes := decodeStringList(raw.Outcomes)
	answer1, answer2 := "YES", "NO"
	if len(outcomes) > 0 {
		answer1 = outcomes[0]
	}
	if len(outcomes) > 1 {
		answer2 = outcomes[1]
	}

	question := raw.Question
	if question == "" {
		question = raw.Title
	}

	ticker := ""
	if len(raw.Events) > 0 {
		ticker = raw.Events[0].Ticker
	}

	return &model.Market{
		CreatedAt:   raw.CreatedAt,
		ID:          raw.ID,
		Question:    question,
		Answer1:     answer1,
		Answer2:     answer2,
		NegRisk:     raw.NegRiskAugmented || raw.NegRiskOther,
		MarketSlug:  raw.Slug,
		Token1:      tokens[0],
		Token2:      tokens[1],
		ConditionID: raw.ConditionID,
		Volume:      raw.Volume,
		Ticker:      ticker,
		ClosedTime:  raw.ClosedTime,
	}, true
}

// decodeStringList accepts either a JSON array of strings or a JSON string
// containing an encoded array, returning nil for anything else.
func decodeStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(encoded), &list); err != nil {
		return nil
	}
	return list
}
