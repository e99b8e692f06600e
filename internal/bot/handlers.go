package bot

import (
	"context"
	"errors"
	"fmt"

	"props_bot/internal/filter"
	"props_bot/internal/model"
	"props_bot/internal/search"
)

const pageSize = 5

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Props Bot!

Search property listings and get notified about new ones.

Quick start:
1. /set op sale and /set barrios Palermo, Belgrano to narrow listings
2. Send any text to search titles and barrios
3. /save <name> to keep the search and get alerts for new matches

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Filters:
/filters - show the active filters
/set <field> <value> - set a filter
/unset <field> [field...] - clear filters
/sort <key> [asc|desc] - order results
/reset - clear all filters and the query

Fields: op (sale, rent), type (apartment, house, ph, land, office, commercial),
price 100000-200000, currency (USD, ARS), area 40-80, bedrooms, bathrooms,
parking, age (new, up_to_5, up_to_10, up_to_20, over_20), barrios, amenities,
opportunities (on, off)

Sort keys: relevance, price, price_per_m2, area, date, opportunity_score

Searching:
/query <text> - search titles and barrios (plain text works too)
/query - clear the query
/search [page] - run the current search

Saved searches:
/save <name> - save the current filters and query
/saved - list saved searches
/load <id> - restore a saved search
/delsaved <id> - delete a saved search

Recent searches:
/recent - list recent searches
/rmrecent <id> - remove one
/clearrecent - clear the history`)
}

func (b *Bot) handleFilters(ctx context.Context, chatID int64) {
	st := b.sessions.get(ctx, chatID)
	b.reply(chatID, FormatCriteria(st.Filters(), st.Query()))
}

func (b *Bot) handleSet(ctx context.Context, chatID int64, args string) {
	patch, err := ParseSetArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	b.applyPatch(ctx, chatID, patch)
}

func (b *Bot) handleUnset(ctx context.Context, chatID int64, args string) {
	patch, err := ParseUnsetArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	b.applyPatch(ctx, chatID, patch)
}

func (b *Bot) handleSort(ctx context.Context, chatID int64, args string) {
	patch, err := ParseSortArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	b.applyPatch(ctx, chatID, patch)
}

func (b *Bot) applyPatch(ctx context.Context, chatID int64, patch model.CriteriaPatch) {
	st := b.sessions.get(ctx, chatID)
	st.SetFilters(patch)
	b.reply(chatID, FormatCriteria(st.Filters(), st.Query()))
}

func (b *Bot) handleQuery(ctx context.Context, chatID int64, text string) {
	st := b.sessions.get(ctx, chatID)
	if text == "" {
		st.SetSearchQuery("")
		b.reply(chatID, "Query cleared.")
		return
	}
	st.SetSearchQuery(text)
	st.AddRecentSearch(text)
	b.runSearch(ctx, chatID, st, 1)
}

func (b *Bot) handleReset(ctx context.Context, chatID int64) {
	st := b.sessions.get(ctx, chatID)
	st.ResetFilters()
	b.reply(chatID, "Filters and query cleared. Saved and recent searches are kept.")
}

func (b *Bot) handleSave(ctx context.Context, chatID int64, name string) {
	st := b.sessions.get(ctx, chatID)
	saved, err := st.SaveSearch(name)
	if errors.Is(err, search.ErrEmptyName) {
		b.reply(chatID, "Usage: /save <name>")
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to save search: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Saved %q with %d filter(s).\nID: %s\nYou will be notified about new matching listings.",
		saved.Name, saved.Filters.ActiveCount(), saved.ID))
}

func (b *Bot) handleSaved(ctx context.Context, chatID int64) {
	saved := b.sessions.get(ctx, chatID).SavedSearches()
	if len(saved) == 0 {
		b.reply(chatID, FormatSavedList(saved))
		return
	}
	b.replyWithKeyboard(chatID, FormatSavedList(saved), savedKeyboard(saved))
}

func (b *Bot) handleLoad(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /load <id>")
		return
	}
	st := b.sessions.get(ctx, chatID)
	if !st.LoadSavedSearch(id) {
		b.reply(chatID, "Saved search not found.")
		return
	}
	b.reply(chatID, "Loaded.\n\n"+FormatCriteria(st.Filters(), st.Query()))
}

func (b *Bot) handleDeleteSaved(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /delsaved <id>")
		return
	}
	st := b.sessions.get(ctx, chatID)
	saved, found := st.SavedSearch(id)
	if !found {
		b.reply(chatID, "Saved search not found.")
		return
	}
	st.DeleteSavedSearch(id)
	b.reply(chatID, fmt.Sprintf("Deleted %q.", saved.Name))
}

func (b *Bot) handleRecent(ctx context.Context, chatID int64) {
	recent := b.sessions.get(ctx, chatID).RecentSearches()
	if len(recent) == 0 {
		b.reply(chatID, FormatRecentList(recent))
		return
	}
	b.replyWithKeyboard(chatID, FormatRecentList(recent), recentKeyboard(recent))
}

func (b *Bot) handleRemoveRecent(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /rmrecent <id>")
		return
	}
	st := b.sessions.get(ctx, chatID)
	if _, found := st.RecentSearch(id); !found {
		b.reply(chatID, "Recent search not found.")
		return
	}
	st.RemoveRecentSearch(id)
	b.reply(chatID, "Removed from recent searches.")
}

func (b *Bot) handleClearRecent(ctx context.Context, chatID int64) {
	b.sessions.get(ctx, chatID).ClearRecentSearches()
	b.reply(chatID, "Recent searches cleared.")
}

func (b *Bot) handleSearch(ctx context.Context, chatID int64, args string) {
	page, err := ParsePageArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /search [page]")
		return
	}
	b.runSearch(ctx, chatID, b.sessions.get(ctx, chatID), page)
}

func (b *Bot) runSearch(ctx context.Context, chatID int64, st *search.Store, page int) {
	items, err := b.fetcher.Listings(ctx, b.cfg.ListingsFeedURL)
	if err != nil {
		b.log.Error("fetch listings", "chat_id", chatID, "error", err)
		b.reply(chatID, fmt.Sprintf("Failed to fetch listings: %v", err))
		return
	}

	resp := filter.Search(items, st.Filters(), st.Query(), page, pageSize)
	if resp.HasMore {
		b.replyWithKeyboard(chatID, FormatResults(resp), pageKeyboard(resp.Page+1))
		return
	}
	b.reply(chatID, FormatResults(resp))
}
