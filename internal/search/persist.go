package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"props_bot/internal/model"
)

// StorageKey is the key the persisted record is stored under.
const StorageKey = "search-storage"

// ErrNotFound is returned by a Backend when the key has no value.
var ErrNotFound = errors.New("not found")

// Backend is the key-value substrate the store persists into.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Persisted is the layout of the persisted record.
type Persisted struct {
	SavedSearches  []model.SavedSearch  `json:"savedSearches"`
	RecentSearches []model.RecentSearch `json:"recentSearches"`
}

// Encode serializes the persisted subset of a state.
func Encode(st State) ([]byte, error) {
	data, err := json.Marshal(Persisted{
		SavedSearches:  st.SavedSearches,
		RecentSearches: st.RecentSearches,
	})
	if err != nil {
		return nil, fmt.Errorf("encode search state: %w", err)
	}
	return data, nil
}

// Decode parses a persisted record. Nil collections are returned as empty.
// Entries without an id, and recent searches without a query, are dropped
// since no operation could address them.
func Decode(data []byte) (Persisted, error) {
	var p Persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return Persisted{}, fmt.Errorf("decode search state: %w", err)
	}
	p.SavedSearches = slices.DeleteFunc(p.SavedSearches, func(ss model.SavedSearch) bool {
		return ss.ID == ""
	})
	p.RecentSearches = slices.DeleteFunc(p.RecentSearches, func(r model.RecentSearch) bool {
		return r.ID == "" || strings.TrimSpace(r.Query) == ""
	})
	if p.SavedSearches == nil {
		p.SavedSearches = []model.SavedSearch{}
	}
	if p.RecentSearches == nil {
		p.RecentSearches = []model.RecentSearch{}
	}
	if len(p.RecentSearches) > MaxRecentSearches {
		p.RecentSearches = p.RecentSearches[:MaxRecentSearches]
	}
	return p, nil
}

func (s *Store) restore(ctx context.Context) {
	if s.backend == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.backend.Get(ctx, StorageKey)
	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		s.log.Warn("read search state", "error", err)
		return
	}

	p, err := Decode(data)
	if err != nil {
		s.log.Warn("discard search state", "error", err)
		return
	}
	s.saved = p.SavedSearches
	s.recent = p.RecentSearches
}

// persist writes st unless a newer version has already been written.
func (s *Store) persist(st State, version uint64) {
	if s.backend == nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if version <= s.written {
		return
	}

	data, err := Encode(st)
	if err != nil {
		s.log.Error("persist search state", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.backend.Put(ctx, StorageKey, data); err != nil {
		s.log.Error("persist search state", "error", err)
		return
	}
	s.written = version
}
