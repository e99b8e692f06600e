package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback actions double as command names where one exists.
const (
	cbLoad         = "load"
	cbDeleteSaved  = "delsaved"
	cbRecent       = "recent"
	cbRemoveRecent = "rmrecent"
	cbPage         = "page"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	b.ack(cb.ID, "")

	action, arg, ok := strings.Cut(cb.Data, ":")
	if !ok || arg == "" {
		return
	}

	b.log.Info("callback",
		"action", action,
		"arg", arg,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cbLoad:
		b.handleLoad(ctx, chatID, arg)
	case cbDeleteSaved:
		b.handleDeleteSaved(ctx, chatID, arg)
	case cbRecent:
		st := b.sessions.get(ctx, chatID)
		r, found := st.RecentSearch(arg)
		if !found {
			b.reply(chatID, "That recent search is gone.")
			return
		}
		b.handleQuery(ctx, chatID, r.Query)
	case cbRemoveRecent:
		b.handleRemoveRecent(ctx, chatID, arg)
	case cbPage:
		b.handleSearch(ctx, chatID, arg)
	}
}
