package storage

import (
	"context"
	"errors"

	"props_bot/internal/search"
)

// ChatBackend exposes the state of a single chat as a search.Backend.
type ChatBackend struct {
	store  Storage
	chatID int64
}

// NewChatBackend scopes store to chatID.
func NewChatBackend(store Storage, chatID int64) *ChatBackend {
	return &ChatBackend{store: store, chatID: chatID}
}

// Get returns the value stored under key, or search.ErrNotFound.
func (b *ChatBackend) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := b.store.GetState(ctx, b.chatID, key)
	if errors.Is(err, ErrNotFound) {
		return nil, search.ErrNotFound
	}
	return v, err
}

// Put stores value under key.
func (b *ChatBackend) Put(ctx context.Context, key string, value []byte) error {
	return b.store.PutState(ctx, b.chatID, key, value)
}
