package cursor

import "github.com/polylake/goldsky-mirror/model"

// Signal tells the scrape loop what a fetched page means for the stream.
type Signal int

const (
	// Continue means more pages are expected at the returned cursor.
	Continue Signal = iota

	// Drained means the pinned timestamp produced an empty page: every row
	// at that timestamp has been fetched. The returned cursor advances past
	// it, and one more fetch is required before the stream can be declared
	// exhausted.
	Drained

	// Exhausted means an advancing cursor produced an empty page: the feed
	// has no rows left. Terminal.
	Exhausted

	// CaughtUp means a short page drained the filtered window up to the
	// feed's head. The page still carries rows to buffer; the loop
	// terminates after this iteration's bookkeeping.
	CaughtUp
)

// Advance computes the next cursor from a freshly fetched page. page must
// already be sorted by (timestamp, id); pageSize is the requested page size.
//
// A full page always pins the cursor at its trailing row, even when the page
// spans several timestamps: rows at the trailing timestamp may continue past
// the page boundary, and staying pinned only costs redundant re-fetches that
// dedup absorbs, never data loss.
func Advance(cur Cursor, page []model.FillEvent, pageSize int) (Cursor, Signal) {
	if len(page) == 0 {
		if ts, _, ok := cur.PinnedAt(); ok {
			return Advancing(ts), Drained
		}
		return cur, Exhausted
	}

	last := page[len(page)-1]
	if len(page) >= pageSize {
		return cur.WithPin(last.Timestamp, last.ID), Continue
	}

	// Short page: the window is drained up to the feed head.
	if ts, _, ok := cur.PinnedAt(); ok {
		return Advancing(ts), CaughtUp
	}
	return Advancing(last.Timestamp), CaughtUp
}
