package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/polylake/goldsky-mirror/cursor"
	"github.com/polylake/goldsky-mirror/logging"
	"github.com/polylake/goldsky-mirror/metrics"
)

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	logger := logging.NewComponentLogger("subgraph-test", "test")
	c := NewClient(logger, metrics.NewCollector(logger), endpoint)
	c.retryDelay = time.Millisecond
	return c
}

func TestFetchPageAdvancing(t *testing.T) {
	var got gqlRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"data": {"orderFilledEvents": [
			{"id": "b", "timestamp": "101", "maker": "0xm"},
			{"id": "a", "timestamp": "100"}
		]}}`)
	}))
	defer srv.Close()

	page, err := newTestClient(t, srv.URL).FetchPage(context.Background(), cursor.Advancing(99), 100)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}

	if got.Variables["ts"] != "99" {
		t.Errorf("ts variable = %v, want \"99\" (BigInt travels as a string)", got.Variables["ts"])
	}
	if got.Variables["first"] != float64(100) {
		t.Errorf("first variable = %v, want 100", got.Variables["first"])
	}
	if _, hasID := got.Variables["id"]; hasID {
		t.Error("advancing query carries an id variable")
	}

	// The page comes back sorted even though the server answered unsorted.
	if len(page) != 2 || page[0].ID != "a" || page[1].ID != "b" {
		t.Errorf("page = %+v, want [a b] sorted by (timestamp, id)", page)
	}
	if page[0].Timestamp != 100 {
		t.Errorf("page[0].Timestamp = %d, want 100", page[0].Timestamp)
	}
}

func TestFetchPagePinned(t *testing.T) {
	var got gqlRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"data": {"orderFilledEvents": []}}`)
	}))
	defer srv.Close()

	cur := cursor.Advancing(90).WithPin(100, "fill-7")
	page, err := newTestClient(t, srv.URL).FetchPage(context.Background(), cur, 50)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if len(page) != 0 {
		t.Errorf("page = %+v, want empty", page)
	}

	if got.Variables["ts"] != "100" {
		t.Errorf("ts variable = %v, want \"100\"", got.Variables["ts"])
	}
	if got.Variables["id"] != "fill-7" {
		t.Errorf("id variable = %v, want \"fill-7\"", got.Variables["id"])
	}
}

func TestFetchPageRetriesTransientFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data": {"orderFilledEvents": [{"id": "a", "timestamp": "100"}]}}`)
	}))
	defer srv.Close()

	page, err := newTestClient(t, srv.URL).FetchPage(context.Background(), cursor.Advancing(0), 10)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2", calls)
	}
	if len(page) != 1 || page[0].ID != "a" {
		t.Errorf("page = %+v, want the single fill a", page)
	}
}

func TestFetchPageCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestClient(t, srv.URL).FetchPage(ctx, cursor.Advancing(0), 10); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
