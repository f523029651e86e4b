package markets

import (
	"context"
	"errors"
	"testing"

	"github.com/polylake/goldsky-mirror/logging"
	"github.com/polylake/goldsky-mirror/metrics"
	"github.com/polylake/goldsky-mirror/model"
)

type memMarketStore struct {
	rows   []model.Market
	stores int
}

func (m *memMarketStore) Load(ctx context.Context) ([]model.Market, error) {
	return m.rows, nil
}

func (m *memMarketStore) Store(ctx context.Context, markets []model.Market) error {
	m.rows = append([]model.Market(nil), markets...)
	m.stores++
	return nil
}

// mapLookup resolves tokens from a fixed table; unknown tokens return
// (nil, nil) and tokens in fail return an error.
type mapLookup struct {
	markets map[string]model.Market
	fail    map[string]bool
	calls   []string
}

func (l *mapLookup) LookupMarket(ctx context.Context, tokenID string) (*model.Market, error) {
	l.calls = append(l.calls, tokenID)
	if l.fail[tokenID] {
		return nil, errors.New("lookup gave up")
	}
	m, ok := l.markets[tokenID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func newTestReconciler(t *testing.T, main, missing Store, lookup Lookup) *Reconciler {
	t.Helper()
	logger := logging.NewComponentLogger("markets-test", "test")
	r := NewReconciler(logger, metrics.NewCollector(logger), main, missing, lookup)
	r.delay = 0
	return r
}

func market(id, createdAt, token1, token2 string) model.Market {
	return model.Market{ID: id, CreatedAt: createdAt, Token1: token1, Token2: token2}
}

func TestCombinedMergesAndDedupes(t *testing.T) {
	main := &memMarketStore{rows: []model.Market{
		market("1", "2024-02-01T00:00:00Z", "t1", "t2"),
		market("2", "2024-01-01T00:00:00Z", "t3", "t4"),
	}}
	missing := &memMarketStore{rows: []model.Market{
		market("2", "2024-03-01T00:00:00Z", "t3", "t4"), // duplicate id
		market("3", "2024-01-15T00:00:00Z", "t5", "t6"),
	}}
	r := newTestReconciler(t, main, missing, &mapLookup{})

	combined, err := r.Combined(context.Background())
	if err != nil {
		t.Fatalf("Combined failed: %v", err)
	}

	want := []string{"2", "3", "1"} // sorted by CreatedAt, first occurrence of 2 wins
	if len(combined) != len(want) {
		t.Fatalf("combined has %d markets, want %d", len(combined), len(want))
	}
	for i, id := range want {
		if combined[i].ID != id {
			t.Errorf("combined[%d].ID = %q, want %q", i, combined[i].ID, id)
		}
	}
}

func TestMissingTokensExcludesCoveredAndCollateral(t *testing.T) {
	main := &memMarketStore{rows: []model.Market{
		market("1", "2024-01-01T00:00:00Z", "t1", "t2"),
	}}
	r := newTestReconciler(t, main, &memMarketStore{}, &mapLookup{})

	fills := []model.FillEvent{
		{ID: "f1", MakerAssetID: "0", TakerAssetID: "t1"},  // collateral + covered
		{ID: "f2", MakerAssetID: "t9", TakerAssetID: "0"},  // t9 missing
		{ID: "f3", MakerAssetID: "t9", TakerAssetID: "t8"}, // t9 repeat, t8 missing
		{ID: "f4", MakerAssetID: "", TakerAssetID: "t2"},   // empty + covered
	}

	got, err := r.MissingTokens(context.Background(), fills)
	if err != nil {
		t.Fatalf("MissingTokens failed: %v", err)
	}

	want := []string{"t9", "t8"} // first-seen order
	if len(got) != len(want) {
		t.Fatalf("missing tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("missing[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFetchMissingAppendsAndSkips(t *testing.T) {
	missing := &memMarketStore{rows: []model.Market{
		market("10", "2024-01-01T00:00:00Z", "a1", "a2"),
	}}
	lookup := &mapLookup{
		markets: map[string]model.Market{
			"b1": market("11", "2024-02-01T00:00:00Z", "b1", "b2"),
			"b2": market("11", "2024-02-01T00:00:00Z", "b1", "b2"), // same market via other token
			"a1": market("10", "2024-01-01T00:00:00Z", "a1", "a2"), // already stored
		},
		fail: map[string]bool{"bad": true},
	}
	r := newTestReconciler(t, &memMarketStore{}, missing, lookup)

	tokens := []string{"b1", "bad", "unknown", "b2", "a1"}
	if err := r.FetchMissing(context.Background(), tokens); err != nil {
		t.Fatalf("FetchMissing failed: %v", err)
	}

	if len(lookup.calls) != len(tokens) {
		t.Errorf("lookup called %d times, want %d (failed keys are skipped, not fatal)", len(lookup.calls), len(tokens))
	}
	if missing.stores != 1 {
		t.Fatalf("missing store written %d times, want 1", missing.stores)
	}

	want := []string{"10", "11"} // sorted by CreatedAt
	if len(missing.rows) != len(want) {
		t.Fatalf("missing dataset has %d markets, want %d: %+v", len(missing.rows), len(want), missing.rows)
	}
	for i, id := range want {
		if missing.rows[i].ID != id {
			t.Errorf("missing[%d].ID = %q, want %q", i, missing.rows[i].ID, id)
		}
	}
}

func TestFetchMissingNoNewMarkets(t *testing.T) {
	missing := &memMarketStore{rows: []model.Market{
		market("10", "2024-01-01T00:00:00Z", "a1", "a2"),
	}}
	lookup := &mapLookup{markets: map[string]model.Market{
		"a1": market("10", "2024-01-01T00:00:00Z", "a1", "a2"),
	}}
	r := newTestReconciler(t, &memMarketStore{}, missing, lookup)

	if err := r.FetchMissing(context.Background(), []string{"a1"}); err != nil {
		t.Fatalf("FetchMissing failed: %v", err)
	}
	if missing.stores != 0 {
		t.Errorf("missing store written %d times with nothing new, want 0", missing.stores)
	}
}
