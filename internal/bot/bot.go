package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"props_bot/internal/config"
	"props_bot/internal/fetcher"
	"props_bot/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is the Telegram front end of the property search. Every chat gets
// its own search store.
type Bot struct {
	api      telegramAPI
	db       storage.Storage
	cfg      *config.Config
	fetcher  *fetcher.Fetcher
	sessions *sessions
	log      *slog.Logger
}

// New creates a Bot with the given Telegram token, storage, and config.
func New(token string, db storage.Storage, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:      api,
		db:       db,
		cfg:      cfg,
		fetcher:  fetcher.New(http.DefaultClient),
		sessions: newSessions(db, log),
		log:      log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.From == nil {
			return
		}
		if !b.cfg.IsUserAllowed(cb.From.ID) {
			b.ack(cb.ID, "Access denied.")
			return
		}
		b.handleCallback(ctx, cb)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !b.cfg.IsUserAllowed(msg.From.ID) {
		b.reply(msg.Chat.ID, "Access denied.")
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	if text := strings.TrimSpace(msg.Text); text != "" {
		b.handleQuery(ctx, msg.Chat.ID, text)
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) replyWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = kb
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) ack(callbackID, text string) {
	if _, err := b.api.Send(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Error("send callback ack", "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "filters":
		b.handleFilters(ctx, chatID)
	case "set":
		b.handleSet(ctx, chatID, args)
	case "unset":
		b.handleUnset(ctx, chatID, args)
	case "sort":
		b.handleSort(ctx, chatID, args)
	case "query":
		b.handleQuery(ctx, chatID, args)
	case "reset":
		b.handleReset(ctx, chatID)
	case "save":
		b.handleSave(ctx, chatID, args)
	case "saved":
		b.handleSaved(ctx, chatID)
	case cbLoad:
		b.handleLoad(ctx, chatID, args)
	case cbDeleteSaved:
		b.handleDeleteSaved(ctx, chatID, args)
	case "recent":
		b.handleRecent(ctx, chatID)
	case cbRemoveRecent:
		b.handleRemoveRecent(ctx, chatID, args)
	case "clearrecent":
		b.handleClearRecent(ctx, chatID)
	case "search":
		b.handleSearch(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
