package cursor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/polylake/goldsky-mirror/logging"
)

// Store persists the cursor as a small JSON file next to the dataset.
// Writes go through a temp file and rename so a crash mid-write never leaves
// a torn checkpoint behind.
type Store struct {
	logger *logging.ComponentLogger
	path   string
}

// NewStore creates a cursor store at path, creating the parent directory if
// needed.
func NewStore(logger *logging.ComponentLogger, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cursor directory: %w", err)
	}
	return &Store{logger: logger, path: path}, nil
}

// Path returns the checkpoint file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the last saved cursor. found is false when no checkpoint exists
// or the file is unreadable; in both cases the zero (advancing, timestamp 0)
// cursor is returned and the caller decides how to bootstrap.
func (s *Store) Load() (cur Cursor, found bool, err error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Cursor{}, false, nil
	}
	if err != nil {
		return Cursor{}, false, fmt.Errorf("read cursor file: %w", err)
	}

	if err := json.Unmarshal(data, &cur); err != nil {
		// A corrupt checkpoint is recoverable: fall back to the dataset
		// bootstrap path rather than refusing to start.
		s.logger.Warn().
			Err(err).
			Str("path", s.path).
			Msg("Cursor file is corrupt, ignoring it")
		return Cursor{}, false, nil
	}

	evt := s.logger.Info().
		Int64("last_timestamp", cur.LastTimestamp)
	if ts, id, ok := cur.PinnedAt(); ok {
		evt = evt.Int64("sticky_timestamp", ts).Str("last_id", id)
	}
	evt.Msg("Loaded cursor checkpoint")

	return cur, true, nil
}

// Save durably persists the cursor, overwriting any prior checkpoint.
func (s *Store) Save(cur Cursor) error {
	data, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write cursor file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename cursor file: %w", err)
	}

	s.logger.Debug().
		Int64("last_timestamp", cur.LastTimestamp).
		Bool("pinned", cur.Pinned()).
		Msg("Cursor checkpoint saved")

	return nil
}

// Clear removes the checkpoint. Called once, after confirmed stream
// exhaustion; a missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cursor file: %w", err)
	}
	s.logger.Info().
		Str("path", s.path).
		Msg("Cursor checkpoint cleared")
	return nil
}
