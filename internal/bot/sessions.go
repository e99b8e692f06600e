package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"props_bot/internal/model"
	"props_bot/internal/search"
	"props_bot/internal/storage"
)

// sessions owns exactly one search store per chat.
type sessions struct {
	mu     sync.Mutex
	stores map[int64]*search.Store
	db     storage.Storage
	log    *slog.Logger
}

func newSessions(db storage.Storage, log *slog.Logger) *sessions {
	return &sessions{
		stores: make(map[int64]*search.Store),
		db:     db,
		log:    log,
	}
}

// get returns the store of chatID, restoring it from storage on first use.
func (s *sessions) get(ctx context.Context, chatID int64) *search.Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stores[chatID]; ok {
		return st
	}

	log := s.log.With("chat_id", chatID)
	st := search.New(ctx, storage.NewChatBackend(s.db, chatID), log)
	s.watchDeletes(st, chatID, log)
	s.stores[chatID] = st
	return st
}

// watchDeletes drops the seen-listing history of saved searches that
// disappear from the store. Notifications from concurrent mutations can
// arrive out of order, so each one diffs against the live store under mu
// rather than the state it carries.
func (s *sessions) watchDeletes(st *search.Store, chatID int64, log *slog.Logger) {
	var mu sync.Mutex
	known := savedIDs(st.SavedSearches())
	st.Subscribe(func(search.State) {
		mu.Lock()
		defer mu.Unlock()

		current := savedIDs(st.SavedSearches())
		for id := range known {
			if current[id] {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.db.ForgetSearch(ctx, chatID, id); err != nil {
				log.Error("forget saved search", "search_id", id, "error", err)
			}
			cancel()
		}
		known = current
	})
}

func savedIDs(saved []model.SavedSearch) map[string]bool {
	ids := make(map[string]bool, len(saved))
	for _, ss := range saved {
		ids[ss.ID] = true
	}
	return ids
}
