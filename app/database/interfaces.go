package database

import (
	"context"
	"errors"
)

var ErrDuplicateKey = errors.New("duplicate key")

// ItemRepository is the durable record of every feed entry ever processed.
// Records are append-only: once a guid is recorded it is never updated or
// removed, and recording it again fails with ErrDuplicateKey.
type ItemRepository interface {
	Contains(ctx context.Context, guid string) (bool, error)
	Record(ctx context.Context, guid, title, hashString string) error

	List(ctx context.Context, limit int) ([]SeenItem, error)
	Count(ctx context.Context) (int, error)
}
