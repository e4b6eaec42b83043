package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned by every SnapshotRepository when the key holds no value.
var ErrNotFound = errors.New("snapshot not found")

// SnapshotRepository is the durable key/value store holding serialized snapshots.
type SnapshotRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
