package markets

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/polylake/goldsky-mirror/logging"
	"github.com/polylake/goldsky-mirror/metrics"
	"github.com/polylake/goldsky-mirror/model"
	"github.com/polylake/goldsky-mirror/resilience"
)

// collateralAssetID is the makerAssetId/takerAssetId value of the cash leg
// of a fill; it never maps to a market token.
const collateralAssetID = "0"

// requestDelay paces catalog lookups between consecutive keys.
const requestDelay = 500 * time.Millisecond

// Store is the columnar-store capability for a market dataset.
type Store interface {
	Load(ctx context.Context) ([]model.Market, error)
	Store(ctx context.Context, markets []model.Market) error
}

// Lookup is the reference-lookup capability: zero or one market per token,
// (nil, nil) when the catalog has nothing usable, error when lookups for the
// key gave up.
type Lookup interface {
	LookupMarket(ctx context.Context, tokenID string) (*model.Market, error)
}

// Reconciler fills gaps in the market reference dataset: token ids that
// appear in the fill stream but in no known market are looked up in the
// catalog and appended to the missing-markets dataset. The set of already
// known market ids doubles as the idempotency filter, so an interrupted run
// simply re-derives the remaining gap on restart.
type Reconciler struct {
	logger    *logging.ComponentLogger
	collector *metrics.Collector
	main      Store
	missing   Store
	lookup    Lookup
	delay     time.Duration
}

// NewReconciler creates a reconciler over the main (read-only) and missing
// (read-write) market datasets.
func NewReconciler(logger *logging.ComponentLogger, collector *metrics.Collector, main, missing Store, lookup Lookup) *Reconciler {
	return &Reconciler{
		logger:    logger,
		collector: collector,
		main:      main,
		missing:   missing,
		lookup:    lookup,
		delay:     requestDelay,
	}
}

// Combined returns the merged market view: main plus missing, deduplicated
// by market id keeping the first occurrence, sorted by creation date.
func (r *Reconciler) Combined(ctx context.Context) ([]model.Market, error) {
	mainRows, err := r.main.Load(ctx)
	if err != nil {
		return nil, err
	}
	missingRows, err := r.missing.Load(ctx)
	if err != nil {
		return nil, err
	}

	combined := make([]model.Market, 0, len(mainRows)+len(missingRows))
	combined = append(combined, mainRows...)
	combined = append(combined, missingRows...)
	combined = model.DedupeMarkets(combined)
	model.SortMarketsByCreatedAt(combined)
	return combined, nil
}

// MissingTokens returns the distinct asset ids referenced by fills that no
// known market covers, in first-seen order. The collateral leg is excluded.
func (r *Reconciler) MissingTokens(ctx context.Context, fills []model.FillEvent) ([]string, error) {
	known, err := r.Combined(ctx)
	if err != nil {
		return nil, err
	}

	covered := make(map[string]struct{}, 2*len(known))
	for _, m := range known {
		covered[m.Token1] = struct{}{}
		covered[m.Token2] = struct{}{}
	}

	var missing []string
	seen := make(map[string]struct{})
	for _, f := range fills {
		for _, token := range []string{f.MakerAssetID, f.TakerAssetID} {
			if token == "" || token == collateralAssetID {
				continue
			}
			if _, ok := covered[token]; ok {
				continue
			}
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			missing = append(missing, token)
		}
	}

	r.logger.Info().
		Int("known_markets", len(known)).
		Int("missing_tokens", len(missing)).
		Msg("Computed market coverage gap")

	return missing, nil
}

// FetchMissing looks every token id up in the catalog and appends the
// resulting markets to the missing dataset. A key whose lookup gives up is
// logged and skipped; the run continues with the next key.
func (r *Reconciler) FetchMissing(ctx context.Context, tokenIDs []string) error {
	if len(tokenIDs) == 0 {
		r.logger.Info().Msg("No missing tokens to fetch")
		return nil
	}

	existing, err := r.missing.Load(ctx)
	if err != nil {
		return err
	}
	knownIDs := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		knownIDs[m.ID] = struct{}{}
	}

	r.logger.Info().
		Int("tokens", len(tokenIDs)).
		Int("existing_missing_markets", len(existing)).
		Msg("Fetching missing markets from catalog")

	var fetched []model.Market
	for i, tokenID := range tokenIDs {
		if i > 0 {
			if err := resilience.Wait(ctx, r.delay); err != nil {
				return err
			}
		}

		market, err := r.lookup.LookupMarket(ctx, tokenID)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			r.logger.Error().
				Err(err).
				Str("token_id", tokenID).
				Msg("Giving up on token")
			continue
		}
		if market == nil {
			continue
		}
		if _, dup := knownIDs[market.ID]; dup {
			r.logger.Debug().
				Str("market_id", market.ID).
				Str("token_id", tokenID).
				Msg("Market already present, skipping")
			continue
		}

		knownIDs[market.ID] = struct{}{}
		fetched = append(fetched, *market)
		r.logger.Info().
			Str("market_id", market.ID).
			Str("token_id", tokenID).
			Str("slug", market.MarketSlug).
			Msg("Fetched missing market")
	}

	if len(fetched) == 0 {
		r.logger.Info().Msg("No new markets to add")
		return nil
	}

	merged := append(existing, fetched...)
	merged = model.DedupeMarkets(merged)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt < merged[j].CreatedAt
	})

	if err := r.missing.Store(ctx, merged); err != nil {
		return fmt.Errorf("persist missing markets: %w", err)
	}

	r.logger.Info().
		Int("new_markets", len(fetched)).
		Int("total_missing_markets", len(merged)).
		Msg("Missing markets dataset updated")

	return nil
}
