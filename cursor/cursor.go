package cursor

import "encoding/json"

// Cursor is the pagination checkpoint for the fill stream. It is a tagged
// variant with two shapes:
//
//   - advancing: LastTimestamp is the highest fully consumed timestamp and
//     the next page is filtered with timestamp_gt.
//   - pinned: a full page ended inside pinTimestamp, so more rows may exist
//     at that exact timestamp. The next page is filtered with
//     timestamp == pinTimestamp AND id > pinLastID while LastTimestamp keeps
//     its pre-pin value.
//
// A pin always carries the last id seen at the pinned timestamp; the pair is
// set and cleared together so the id-required-iff-pinned invariant cannot be
// broken by callers.
type Cursor struct {
	LastTimestamp int64

	pinTimestamp int64
	pinLastID    string
	pinned       bool
}

// Advancing returns a cursor positioned just past ts with no pin.
func Advancing(ts int64) Cursor {
	return Cursor{LastTimestamp: ts}
}

// Pinned reports whether the cursor is pinned at a single timestamp.
func (c Cursor) Pinned() bool {
	return c.pinned
}

// PinnedAt returns the pinned timestamp and the last id seen there.
// ok is false for an advancing cursor.
func (c Cursor) PinnedAt() (ts int64, lastID string, ok bool) {
	if !c.pinned {
		return 0, "", false
	}
	return c.pinTimestamp, c.pinLastID, true
}

// WithPin returns a copy of c pinned at ts with lastID as the pagination
// boundary. LastTimestamp is preserved. An empty lastID would make the pin
// unfilterable, so it yields an advancing cursor instead.
func (c Cursor) WithPin(ts int64, lastID string) Cursor {
	if lastID == "" {
		return Advancing(c.LastTimestamp)
	}
	return Cursor{
		LastTimestamp: c.LastTimestamp,
		pinTimestamp:  ts,
		pinLastID:     lastID,
		pinned:        true,
	}
}

// cursorState is the on-disk shape. The field names are fixed: they are the
// checkpoint's wire format and must survive across versions.
type cursorState struct {
	LastTimestamp   int64   `json:"last_timestamp"`
	LastID          *string `json:"last_id"`
	StickyTimestamp *int64  `json:"sticky_timestamp"`
}

// MarshalJSON encodes the cursor in its durable checkpoint format.
func (c Cursor) MarshalJSON() ([]byte, error) {
	state := cursorState{LastTimestamp: c.LastTimestamp}
	if c.pinned {
		ts, id := c.pinTimestamp, c.pinLastID
		state.StickyTimestamp = &ts
		state.LastID = &id
	}
	return json.Marshal(state)
}

// UnmarshalJSON decodes a checkpoint, normalizing invalid states: a sticky
// timestamp without a last id cannot be paginated and is treated as
// non-sticky.
func (c *Cursor) UnmarshalJSON(data []byte) error {
	var state cursorState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	*c = Cursor{LastTimestamp: state.LastTimestamp}
	if state.StickyTimestamp != nil && state.LastID != nil && *state.LastID != "" {
		c.pinTimestamp = *state.StickyTimestamp
		c.pinLastID = *state.LastID
		c.pinned = true
	}
	return nil
}
