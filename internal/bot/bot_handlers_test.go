package bot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"props_bot/internal/config"
	"props_bot/internal/fetcher"
	"props_bot/internal/model"
	"props_bot/internal/storage"
)

// --- mocks ---

type sentMsg struct {
	ChatID   int64
	Text     string
	Keyboard *tgbotapi.InlineKeyboardMarkup
}

type mockAPI struct {
	mu   sync.Mutex
	sent []sentMsg
	acks []string
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch msg := c.(type) {
	case tgbotapi.MessageConfig:
		s := sentMsg{ChatID: msg.ChatID, Text: msg.Text}
		if kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
			s.Keyboard = &kb
		}
		m.sent = append(m.sent, s)
	case tgbotapi.CallbackConfig:
		m.acks = append(m.acks, msg.CallbackQueryID)
	}
	return tgbotapi.Message{}, nil
}

func (m *mockAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(tgbotapi.UpdatesChannel)
}

func (m *mockAPI) StopReceivingUpdates() {}

func (m *mockAPI) last() sentMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMsg{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockAPI) lastText() string {
	return m.last().Text
}

func (m *mockAPI) allTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, s := range m.sent {
		out[i] = s.Text
	}
	return out
}

func (m *mockAPI) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.acks = nil
}

type mockHTTPClient struct {
	body string
	err  error
}

func (m *mockHTTPClient) Do(_ *http.Request) (*http.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

// --- helpers ---

const testChat int64 = 100

func newTestBot(t *testing.T, client fetcher.HTTPClient) (*Bot, *mockAPI, *storage.SQLite) {
	t.Helper()
	db, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := &mockAPI{}
	b := &Bot{
		api:      api,
		db:       db,
		cfg:      &config.Config{ListingsFeedURL: "https://listings.example.com/rss"},
		fetcher:  fetcher.New(client),
		sessions: newSessions(db, log),
		log:      log,
	}
	return b, api, db
}

func listingsClient(t *testing.T) *mockHTTPClient {
	t.Helper()
	data, err := os.ReadFile("../../testdata/listings.xml")
	if err != nil {
		t.Fatalf("read listings xml: %v", err)
	}
	return &mockHTTPClient{body: string(data)}
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("reply missing %q, got:\n%s", want, got)
	}
}

func commandMsg(from int64, cmd, args string) *tgbotapi.Message {
	text := "/" + cmd
	if args != "" {
		text += " " + args
	}
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: from},
		Chat: &tgbotapi.Chat{ID: testChat},
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len("/" + cmd)},
		},
	}
}

func callback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 1, UserName: "tester"},
		Data:    data,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: testChat}},
	}
}

// --- handler tests ---

func TestHandleStart(t *testing.T) {
	b, api, _ := newTestBot(t, &mockHTTPClient{})
	b.handleStart(testChat)
	requireContains(t, api.lastText(), "Welcome to Props Bot")
}

func TestHandleHelp(t *testing.T) {
	b, api, _ := newTestBot(t, &mockHTTPClient{})
	b.handleHelp(testChat)
	for _, want := range []string{"/set", "/save", "/recent", "/search"} {
		requireContains(t, api.lastText(), want)
	}
}

func TestHandleSetUnsetSort(t *testing.T) {
	ctx := context.Background()
	b, api, _ := newTestBot(t, &mockHTTPClient{})

	b.handleSet(ctx, testChat, "price 100000-200000")
	requireContains(t, api.lastText(), "Active filters: 1")

	b.handleSet(ctx, testChat, "barrios Palermo, Belgrano")
	requireContains(t, api.lastText(), "Active filters: 2")
	requireContains(t, api.lastText(), "Barrios: Palermo, Belgrano")

	b.handleSort(ctx, testChat, "price asc")
	requireContains(t, api.lastText(), "Sort: price asc")

	b.handleUnset(ctx, testChat, "price")
	requireContains(t, api.lastText(), "Active filters: 1")

	got := b.sessions.get(ctx, testChat).Filters()
	want := model.DefaultCriteria()
	want.Neighborhoods = []string{"Palermo", "Belgrano"}
	want.SortBy = model.SortPrice
	want.SortOrder = model.SortAsc
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleSetErrors(t *testing.T) {
	ctx := context.Background()
	b, api, _ := newTestBot(t, &mockHTTPClient{})

	tests := []struct {
		name string
		run  func()
		want string
	}{
		{name: "set without value", run: func() { b.handleSet(ctx, testChat, "price") }, want: "usage: /set"},
		{name: "set unknown field", run: func() { b.handleSet(ctx, testChat, "color red") }, want: "unknown field"},
		{name: "unset unknown field", run: func() { b.handleUnset(ctx, testChat, "color") }, want: "unknown field"},
		{name: "sort bad key", run: func() { b.handleSort(ctx, testChat, "size") }, want: "invalid value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api.reset()
			tt.run()
			requireContains(t, api.lastText(), tt.want)
		})
	}

	if diff := cmp.Diff(0, b.sessions.get(ctx, testChat).ActiveFiltersCount()); diff != "" {
		t.Errorf("invalid input changed filters (-want +got):\n%s", diff)
	}
}

func TestHandleQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("searches and records recent", func(t *testing.T) {
		b, api, _ := newTestBot(t, listingsClient(t))
		b.handleQuery(ctx, testChat, "nunez")

		requireContains(t, api.lastText(), "Listings 1-1 of 1")
		requireContains(t, api.lastText(), "Monoambiente en alquiler")

		st := b.sessions.get(ctx, testChat)
		if diff := cmp.Diff("nunez", st.Query()); diff != "" {
			t.Errorf("query (-want +got):\n%s", diff)
		}
		recent := st.RecentSearches()
		if diff := cmp.Diff(1, len(recent)); diff != "" {
			t.Fatalf("recent count (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff("nunez", recent[0].Query); diff != "" {
			t.Errorf("recent query (-want +got):\n%s", diff)
		}
	})

	t.Run("empty text clears query", func(t *testing.T) {
		b, api, _ := newTestBot(t, listingsClient(t))
		st := b.sessions.get(ctx, testChat)
		st.SetSearchQuery("palermo")

		b.handleQuery(ctx, testChat, "")
		requireContains(t, api.lastText(), "Query cleared")
		if diff := cmp.Diff("", st.Query()); diff != "" {
			t.Errorf("query (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(0, len(st.RecentSearches())); diff != "" {
			t.Errorf("recent count (-want +got):\n%s", diff)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		b, api, _ := newTestBot(t, listingsClient(t))
		b.handleQuery(ctx, testChat, "castillo")
		requireContains(t, api.lastText(), "No listings match")
	})

	t.Run("fetch error", func(t *testing.T) {
		b, api, _ := newTestBot(t, &mockHTTPClient{err: errors.New("connection refused")})
		b.handleQuery(ctx, testChat, "palermo")
		requireContains(t, api.lastText(), "Failed to fetch listings")
	})
}

func TestHandleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("applies filters and sort", func(t *testing.T) {
		b, api, _ := newTestBot(t, listingsClient(t))
		b.handleSet(ctx, testChat, "op sale")
		b.handleSort(ctx, testChat, "price desc")
		api.reset()

		b.handleSearch(ctx, testChat, "")
		got := api.lastText()
		requireContains(t, got, "Listings 1-2 of 2")
		if strings.Index(got, "PH reciclado") > strings.Index(got, "Luminoso") {
			t.Errorf("expected descending price order, got:\n%s", got)
		}
		if api.last().Keyboard != nil {
			t.Error("single page should not carry a next page button")
		}
	})

	t.Run("page past the end", func(t *testing.T) {
		b, api, _ := newTestBot(t, listingsClient(t))
		b.handleSearch(ctx, testChat, "2")
		requireContains(t, api.lastText(), "Page 2 is empty")
	})

	t.Run("huge page is rejected", func(t *testing.T) {
		b, api, _ := newTestBot(t, listingsClient(t))
		b.handleSearch(ctx, testChat, "2305843009213693953")
		requireContains(t, api.lastText(), "Usage: /search")
	})

	t.Run("forged page callback", func(t *testing.T) {
		b, api, _ := newTestBot(t, listingsClient(t))
		b.handleCallback(ctx, callback("page:2305843009213693953"))
		requireContains(t, api.lastText(), "Usage: /search")
	})

	t.Run("invalid page", func(t *testing.T) {
		b, api, _ := newTestBot(t, listingsClient(t))
		b.handleSearch(ctx, testChat, "zero")
		requireContains(t, api.lastText(), "Usage: /search")
	})
}

func TestSavedSearchLifecycle(t *testing.T) {
	ctx := context.Background()
	b, api, db := newTestBot(t, listingsClient(t))

	b.handleSave(ctx, testChat, "  ")
	requireContains(t, api.lastText(), "Usage: /save")

	b.handleSet(ctx, testChat, "op rent")
	st := b.sessions.get(ctx, testChat)
	st.SetSearchQuery("monoambiente")
	b.handleSave(ctx, testChat, "Alquileres")
	requireContains(t, api.lastText(), `Saved "Alquileres" with 1 filter(s)`)

	saved := st.SavedSearches()
	if diff := cmp.Diff(1, len(saved)); diff != "" {
		t.Fatalf("saved count (-want +got):\n%s", diff)
	}
	id := saved[0].ID

	b.handleSaved(ctx, testChat)
	requireContains(t, api.lastText(), "Alquileres")
	if kb := api.last().Keyboard; kb == nil || len(kb.InlineKeyboard) != 1 {
		t.Errorf("expected one keyboard row, got %+v", kb)
	}

	b.handleReset(ctx, testChat)
	if diff := cmp.Diff(0, st.ActiveFiltersCount()); diff != "" {
		t.Errorf("filters after reset (-want +got):\n%s", diff)
	}

	b.handleLoad(ctx, testChat, id)
	requireContains(t, api.lastText(), "Loaded")
	requireContains(t, api.lastText(), "Operation: rent")
	if diff := cmp.Diff("monoambiente", st.Query()); diff != "" {
		t.Errorf("query after load (-want +got):\n%s", diff)
	}

	// A fresh session on the same database sees the saved search.
	other := newSessions(db, b.log).get(ctx, testChat)
	if diff := cmp.Diff(st.SavedSearches(), other.SavedSearches()); diff != "" {
		t.Errorf("restored saved searches (-want +got):\n%s", diff)
	}

	if err := db.MarkSeen(ctx, testChat, id, "1003"); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	b.handleDeleteSaved(ctx, testChat, id)
	requireContains(t, api.lastText(), `Deleted "Alquileres"`)
	seen, err := db.IsSeen(ctx, testChat, id, "1003")
	if err != nil {
		t.Fatalf("is seen: %v", err)
	}
	if seen {
		t.Error("seen history should be dropped with the saved search")
	}

	b.handleSaved(ctx, testChat)
	requireContains(t, api.lastText(), "no saved searches")

	b.handleLoad(ctx, testChat, id)
	requireContains(t, api.lastText(), "Saved search not found")
	b.handleDeleteSaved(ctx, testChat, "")
	requireContains(t, api.lastText(), "Usage: /delsaved")
}

func TestRecentSearchHandlers(t *testing.T) {
	ctx := context.Background()
	b, api, _ := newTestBot(t, listingsClient(t))

	b.handleRecent(ctx, testChat)
	requireContains(t, api.lastText(), "No recent searches")

	b.handleQuery(ctx, testChat, "palermo")
	b.handleQuery(ctx, testChat, "terraza")
	b.handleRecent(ctx, testChat)
	got := api.lastText()
	requireContains(t, got, "1. terraza")
	requireContains(t, got, "2. palermo")

	st := b.sessions.get(ctx, testChat)
	id := st.RecentSearches()[1].ID
	b.handleRemoveRecent(ctx, testChat, id)
	requireContains(t, api.lastText(), "Removed")
	b.handleRemoveRecent(ctx, testChat, id)
	requireContains(t, api.lastText(), "Recent search not found")

	b.handleClearRecent(ctx, testChat)
	requireContains(t, api.lastText(), "cleared")
	if diff := cmp.Diff(0, len(st.RecentSearches())); diff != "" {
		t.Errorf("recent after clear (-want +got):\n%s", diff)
	}
}

func TestHandleUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("denies users outside the allow list", func(t *testing.T) {
		b, api, _ := newTestBot(t, listingsClient(t))
		b.cfg.AllowedUsers = []int64{1}
		b.handleUpdate(ctx, tgbotapi.Update{Message: commandMsg(2, "start", "")})
		requireContains(t, api.lastText(), "Access denied")
	})

	t.Run("plain text runs a search", func(t *testing.T) {
		b, api, _ := newTestBot(t, listingsClient(t))
		msg := &tgbotapi.Message{
			From: &tgbotapi.User{ID: 1},
			Chat: &tgbotapi.Chat{ID: testChat},
			Text: "  Palermo ",
		}
		b.handleUpdate(ctx, tgbotapi.Update{Message: msg})
		requireContains(t, api.lastText(), "Luminoso 3 ambientes")
		if diff := cmp.Diff("Palermo", b.sessions.get(ctx, testChat).Query()); diff != "" {
			t.Errorf("query (-want +got):\n%s", diff)
		}
	})

	t.Run("callback from denied user is only acked", func(t *testing.T) {
		b, api, _ := newTestBot(t, listingsClient(t))
		b.cfg.AllowedUsers = []int64{99}
		b.handleUpdate(ctx, tgbotapi.Update{CallbackQuery: callback("page:2")})
		if diff := cmp.Diff(0, len(api.allTexts())); diff != "" {
			t.Errorf("expected no text messages (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"cb"}, api.acks); diff != "" {
			t.Errorf("acks (-want +got):\n%s", diff)
		}
	})
}

func TestHandleCommand(t *testing.T) {
	ctx := context.Background()
	b, api, _ := newTestBot(t, listingsClient(t))

	cmds := []struct {
		cmd      string
		args     string
		contains string
	}{
		{"start", "", "Welcome"},
		{"help", "", "/filters"},
		{"filters", "", "Active filters: 0"},
		{"set", "bedrooms 2", "Bedrooms: 2+"},
		{"unset", "bedrooms", "Active filters: 0"},
		{"sort", "date", "Sort: date"},
		{"query", "terraza", "PH reciclado"},
		{"search", "", "Listings 1-1 of 1"},
		{"reset", "", "cleared"},
		{"save", "Casas", "Saved"},
		{"saved", "", "Casas"},
		{"load", "missing", "not found"},
		{"delsaved", "missing", "not found"},
		{"recent", "", "terraza"},
		{"rmrecent", "", "Usage: /rmrecent"},
		{"clearrecent", "", "cleared"},
		{"unknown_cmd", "", "Unknown command"},
	}

	for _, tc := range cmds {
		t.Run(tc.cmd, func(t *testing.T) {
			api.reset()
			b.handleCommand(ctx, commandMsg(1, tc.cmd, tc.args))
			requireContains(t, api.lastText(), tc.contains)
		})
	}
}

func TestHandleCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid data format", func(t *testing.T) {
		b, api, _ := newTestBot(t, listingsClient(t))
		b.handleCallback(ctx, callback("nocolon"))
		if diff := cmp.Diff(0, len(api.allTexts())); diff != "" {
			t.Errorf("expected no text messages (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"cb"}, api.acks); diff != "" {
			t.Errorf("acks (-want +got):\n%s", diff)
		}
	})

	t.Run("load and delete saved", func(t *testing.T) {
		b, api, _ := newTestBot(t, listingsClient(t))
		st := b.sessions.get(ctx, testChat)
		st.SetFilters(model.CriteriaPatch{Bedrooms: model.Ptr(3)})
		saved, err := st.SaveSearch("Familia")
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		st.ResetFilters()

		b.handleCallback(ctx, callback("load:"+saved.ID))
		requireContains(t, api.lastText(), "Bedrooms: 3+")

		b.handleCallback(ctx, callback("delsaved:"+saved.ID))
		requireContains(t, api.lastText(), `Deleted "Familia"`)
	})

	t.Run("recent reruns the query", func(t *testing.T) {
		b, api, _ := newTestBot(t, listingsClient(t))
		st := b.sessions.get(ctx, testChat)
		st.AddRecentSearch("palermo")
		st.AddRecentSearch("terraza")
		id := st.RecentSearches()[1].ID

		b.handleCallback(ctx, callback("recent:"+id))
		requireContains(t, api.lastText(), "Luminoso 3 ambientes")
		if diff := cmp.Diff("palermo", st.RecentSearches()[0].Query); diff != "" {
			t.Errorf("rerun should move the query to the front (-want +got):\n%s", diff)
		}

		b.handleCallback(ctx, callback("recent:gone"))
		requireContains(t, api.lastText(), "That recent search is gone")
	})

	t.Run("remove recent", func(t *testing.T) {
		b, api, _ := newTestBot(t, listingsClient(t))
		st := b.sessions.get(ctx, testChat)
		st.AddRecentSearch("palermo")

		b.handleCallback(ctx, callback("rmrecent:"+st.RecentSearches()[0].ID))
		requireContains(t, api.lastText(), "Removed")
	})

	t.Run("page", func(t *testing.T) {
		b, api, _ := newTestBot(t, listingsClient(t))
		b.handleCallback(ctx, callback("page:1"))
		requireContains(t, api.lastText(), "Listings 1-3 of 3")
	})
}
