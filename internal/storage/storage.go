// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	GetState(ctx context.Context, chatID int64, key string) ([]byte, error)
	PutState(ctx context.Context, chatID int64, key string, value []byte) error
	ListChats(ctx context.Context, key string) ([]int64, error)

	MarkSeen(ctx context.Context, chatID int64, searchID, listingID string) error
	IsSeen(ctx context.Context, chatID int64, searchID, listingID string) (bool, error)
	ForgetSearch(ctx context.Context, chatID int64, searchID string) error

	Close() error
}
