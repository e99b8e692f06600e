package scheduler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"props_bot/internal/bot"
	"props_bot/internal/fetcher"
	"props_bot/internal/filter"
	"props_bot/internal/model"
	"props_bot/internal/search"
	"props_bot/internal/storage"
)

// Sender is the interface for sending Telegram messages.
type Sender interface {
	SendMessage(chatID int64, text string)
}

// Scheduler periodically matches new listings against every saved search
// and notifies the owning chat.
type Scheduler struct {
	db      storage.Storage
	fetcher *fetcher.Fetcher
	sender  Sender
	feedURL string
	log     *slog.Logger
	tick    time.Duration
	pause   time.Duration
}

// New creates a Scheduler with the default HTTP client.
func New(db storage.Storage, sender Sender, feedURL string, log *slog.Logger) *Scheduler {
	return NewWithFetcher(db, fetcher.New(http.DefaultClient), sender, feedURL, log)
}

// NewWithFetcher creates a Scheduler with a custom fetcher (useful for testing).
func NewWithFetcher(db storage.Storage, f *fetcher.Fetcher, sender Sender, feedURL string, log *slog.Logger) *Scheduler {
	return &Scheduler{
		db:      db,
		fetcher: f,
		sender:  sender,
		feedURL: feedURL,
		log:     log,
		tick:    15 * time.Minute,
		// Telegram allows roughly 20 messages per second.
		pause: 50 * time.Millisecond,
	}
}

// SetTickInterval overrides the default 15-minute check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

func (s *Scheduler) checkAll(ctx context.Context) {
	chats, err := s.db.ListChats(ctx, search.StorageKey)
	if err != nil {
		s.log.Error("list chats", "error", err)
		return
	}
	if len(chats) == 0 {
		return
	}

	listings, err := s.fetcher.Listings(ctx, s.feedURL)
	if err != nil {
		s.log.Error("fetch listings", "url", s.feedURL, "error", err)
		return
	}
	s.log.Debug("fetched listings", "count", len(listings), "chats", len(chats))

	for _, chatID := range chats {
		if ctx.Err() != nil {
			return
		}
		s.processChat(ctx, chatID, listings)
	}
}

func (s *Scheduler) processChat(ctx context.Context, chatID int64, listings []model.Property) {
	data, err := s.db.GetState(ctx, chatID, search.StorageKey)
	if err != nil {
		s.log.Error("read search state", "chat_id", chatID, "error", err)
		return
	}
	state, err := search.Decode(data)
	if err != nil {
		s.log.Warn("skip unreadable search state", "chat_id", chatID, "error", err)
		return
	}

	for _, ss := range state.SavedSearches {
		if ctx.Err() != nil {
			return
		}
		s.processSearch(ctx, chatID, ss, listings)
	}
}

func (s *Scheduler) processSearch(ctx context.Context, chatID int64, ss model.SavedSearch, listings []model.Property) {
	query := ""
	if ss.Query != nil {
		query = *ss.Query
	}

	sent := 0
	for _, p := range listings {
		if !filter.Match(p, ss.Filters, query) {
			continue
		}
		seen, err := s.db.IsSeen(ctx, chatID, ss.ID, p.ID)
		if err != nil {
			s.log.Error("check seen", "chat_id", chatID, "search_id", ss.ID, "listing_id", p.ID, "error", err)
			continue
		}
		if seen {
			continue
		}

		s.sender.SendMessage(chatID, bot.FormatNotification(ss.Name, p))
		sent++

		if err := s.db.MarkSeen(ctx, chatID, ss.ID, p.ID); err != nil {
			s.log.Error("mark seen", "chat_id", chatID, "search_id", ss.ID, "listing_id", p.ID, "error", err)
		}

		time.Sleep(s.pause)
	}

	if sent > 0 {
		s.log.Info("sent notifications", "chat_id", chatID, "search_id", ss.ID, "name", ss.Name, "count", sent)
	}
}
