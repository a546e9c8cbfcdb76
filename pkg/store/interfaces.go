package store

import (
	"context"
)

// StateStore keeps opaque string records under stable keys. Callers own
// the encoding. A missing or unreadable record reads as absent.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
