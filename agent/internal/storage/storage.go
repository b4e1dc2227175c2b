package storage

import (
	"context"
	"errors"

	"github.com/exceptionless/exceptionless-go/pkg/types"
)

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("storage: closed")

// Storage is an ordered, prefix-addressable event store.
type Storage interface {
	Save(ctx context.Context, key string, ev *types.Event) error
	Get(ctx context.Context, prefix string, max int) ([]*types.Event, error)
	Clear(ctx context.Context, prefix string) error
}
