// Package state persists the publish watermark between invocations.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// ErrCorrupt marks a state file that exists but cannot be read or decoded.
// Losing the watermark would cause duplicate posts, so this is never
// silently recovered from.
var ErrCorrupt = errors.New("state file corrupt")

// fileState is the on-disk shape. Unknown fields are ignored on read so
// newer versions can add fields without breaking older binaries.
type fileState struct {
	Watermark int64 `json:"watermark"`
}

// Store reads and writes the watermark state file. The watermark is the
// unix timestamp (UTC seconds) of the most recently published entry; zero
// means nothing has been published yet.
type Store struct {
	path string
	lock *flock.Flock
}

func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("state: path is required")
	}
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Lock acquires the advisory lock next to the state file. It fails fast
// when another invocation already holds it, so overlapping cron runs
// cannot both publish the same entries.
func (s *Store) Lock() error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire state lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("state file %s is locked by another instance", s.path)
	}
	return nil
}

func (s *Store) Unlock() error {
	return s.lock.Unlock()
}

// Load returns the persisted watermark. A missing file is the cold-start
// case and returns 0, not an error.
func (s *Store) Load() (int64, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", ErrCorrupt, s.path, err)
	}

	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return 0, fmt.Errorf("%w: decode %s: %v", ErrCorrupt, s.path, err)
	}
	if st.Watermark < 0 {
		return 0, fmt.Errorf("%w: negative watermark in %s", ErrCorrupt, s.path)
	}
	return st.Watermark, nil
}

// Save writes the watermark via a temp file and rename, so a crash
// mid-write never leaves a watermark ahead of what was actually published.
func (s *Store) Save(watermark int64) error {
	data, err := json.Marshal(fileState{Watermark: watermark})
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
