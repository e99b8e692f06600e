// Package search implements the per-session filter and search state store:
// active criteria, free-text query, saved searches and recent searches.
package search

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"props_bot/internal/model"
)

// MaxRecentSearches is the capacity of the recent search history.
const MaxRecentSearches = 10

// ErrEmptyName is returned by SaveSearch when the display name is blank.
var ErrEmptyName = errors.New("saved search name is required")

// State is a point-in-time copy of the store contents.
type State struct {
	Filters        model.Criteria
	Query          string
	SavedSearches  []model.SavedSearch
	RecentSearches []model.RecentSearch
}

// Store holds the filter and search state of one session. Only saved and
// recent searches are persisted; criteria and query reset on restart.
type Store struct {
	mu        sync.Mutex
	filters   model.Criteria
	query     string
	saved     []model.SavedSearch
	recent    []model.RecentSearch
	listeners map[int]func(State)
	nextSub   int
	version   uint64

	writeMu sync.Mutex
	written uint64

	backend Backend
	log     *slog.Logger
	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

// New creates a Store and restores persisted searches from backend.
// A missing or unreadable record leaves both collections empty.
func New(ctx context.Context, backend Backend, log *slog.Logger) *Store {
	s := &Store{
		filters:   model.DefaultCriteria(),
		saved:     []model.SavedSearch{},
		recent:    []model.RecentSearch{},
		listeners: make(map[int]func(State)),
		backend:   backend,
		log:       log,
		timeout:   5 * time.Second,
		now:       time.Now,
		newID:     newID,
	}
	s.restore(ctx)
	return s
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Filters returns a copy of the active criteria.
func (s *Store) Filters() model.Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters.Clone()
}

// Query returns the current free-text query.
func (s *Store) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// SavedSearches returns the saved searches in creation order.
func (s *Store) SavedSearches() []model.SavedSearch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSaved(s.saved)
}

// RecentSearches returns the recent searches, newest first.
func (s *Store) RecentSearches() []model.RecentSearch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.recent)
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ActiveFiltersCount returns the number of active filter categories.
func (s *Store) ActiveFiltersCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters.ActiveCount()
}

// SavedSearch returns the saved search with the given id.
func (s *Store) SavedSearch(id string) (model.SavedSearch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.savedIndex(id)
	if i < 0 {
		return model.SavedSearch{}, false
	}
	return cloneSaved(s.saved[i : i+1])[0], true
}

// RecentSearch returns the recent search with the given id.
func (s *Store) RecentSearch(id string) (model.RecentSearch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.recentIndex(id)
	if i < 0 {
		return model.RecentSearch{}, false
	}
	return s.recent[i], true
}

// SetFilters merges patch into the active criteria.
func (s *Store) SetFilters(patch model.CriteriaPatch) {
	s.mutate(false, func() bool {
		s.filters = s.filters.Apply(patch)
		return true
	})
}

// SetSearchQuery replaces the free-text query verbatim.
func (s *Store) SetSearchQuery(text string) {
	s.mutate(false, func() bool {
		s.query = text
		return true
	})
}

// ResetFilters restores the default criteria and clears the query.
func (s *Store) ResetFilters() {
	s.mutate(false, func() bool {
		s.filters = model.DefaultCriteria()
		s.query = ""
		return true
	})
}

// SaveSearch snapshots the current criteria and query under name and
// appends it to the saved searches.
func (s *Store) SaveSearch(name string) (model.SavedSearch, error) {
	if strings.TrimSpace(name) == "" {
		return model.SavedSearch{}, ErrEmptyName
	}

	var saved model.SavedSearch
	s.mutate(true, func() bool {
		saved = model.SavedSearch{
			ID:      s.newID(),
			Name:    name,
			Filters: s.filters.Clone(),
		}
		if s.query != "" {
			q := s.query
			saved.Query = &q
		}
		s.saved = append(s.saved, saved)
		return true
	})
	return cloneSaved([]model.SavedSearch{saved})[0], nil
}

// DeleteSavedSearch removes the saved search with the given id, if any.
func (s *Store) DeleteSavedSearch(id string) {
	s.mutate(true, func() bool {
		i := s.savedIndex(id)
		if i < 0 {
			return false
		}
		s.saved = slices.Delete(s.saved, i, i+1)
		return true
	})
}

// LoadSavedSearch makes the saved search with the given id the active
// criteria and query. It reports whether the id was found.
func (s *Store) LoadSavedSearch(id string) bool {
	found := false
	s.mutate(false, func() bool {
		i := s.savedIndex(id)
		if i < 0 {
			return false
		}
		found = true
		s.filters = s.saved[i].Filters.Clone()
		s.query = ""
		if s.saved[i].Query != nil {
			s.query = *s.saved[i].Query
		}
		return true
	})
	return found
}

// AddRecentSearch records query at the front of the recent history.
// Blank queries are ignored and an entry with the same trimmed text is
// moved rather than duplicated.
func (s *Store) AddRecentSearch(query string) {
	text := strings.TrimSpace(query)
	if text == "" {
		return
	}
	s.mutate(true, func() bool {
		entry := model.RecentSearch{
			ID:        s.newID(),
			Query:     text,
			Timestamp: s.now().UTC().Truncate(time.Millisecond),
		}
		recent := make([]model.RecentSearch, 0, MaxRecentSearches)
		recent = append(recent, entry)
		for _, r := range s.recent {
			if r.Query == text {
				continue
			}
			if len(recent) == MaxRecentSearches {
				break
			}
			recent = append(recent, r)
		}
		s.recent = recent
		return true
	})
}

// RemoveRecentSearch removes the recent search with the given id, if any.
func (s *Store) RemoveRecentSearch(id string) {
	s.mutate(true, func() bool {
		i := s.recentIndex(id)
		if i < 0 {
			return false
		}
		s.recent = slices.Delete(s.recent, i, i+1)
		return true
	})
}

// ClearRecentSearches empties the recent history.
func (s *Store) ClearRecentSearches() {
	s.mutate(true, func() bool {
		s.recent = []model.RecentSearch{}
		return true
	})
}

// Subscribe registers fn to be called with the new state after every
// change. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// mutate runs fn under the lock. When fn reports a change the persisted
// record is rewritten (if persist is set) and listeners are notified.
func (s *Store) mutate(persist bool, fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.version++
	version := s.version
	state := s.snapshotLocked()
	listeners := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	if persist {
		s.persist(state, version)
	}
	for _, l := range listeners {
		l(state)
	}
}

func (s *Store) snapshotLocked() State {
	return State{
		Filters:        s.filters.Clone(),
		Query:          s.query,
		SavedSearches:  cloneSaved(s.saved),
		RecentSearches: slices.Clone(s.recent),
	}
}

func (s *Store) savedIndex(id string) int {
	return slices.IndexFunc(s.saved, func(ss model.SavedSearch) bool { return ss.ID == id })
}

func (s *Store) recentIndex(id string) int {
	return slices.IndexFunc(s.recent, func(r model.RecentSearch) bool { return r.ID == id })
}

func cloneSaved(in []model.SavedSearch) []model.SavedSearch {
	out := make([]model.SavedSearch, len(in))
	for i, ss := range in {
		out[i] = ss
		out[i].Filters = ss.Filters.Clone()
		if ss.Query != nil {
			q := *ss.Query
			out[i].Query = &q
		}
	}
	return out
}
