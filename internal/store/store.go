package store

import (
	"context"

	"lastmile/internal/model"
	"lastmile/internal/sim"
)

// Sessions is the session registry used by the API server.
type Sessions interface {
	Create(ctx context.Context, city string, hub model.Hub) (*sim.Session, error)
	Get(ctx context.Context, id string) (*sim.Session, error)
	List(ctx context.Context) ([]*sim.Session, error)
	Delete(ctx context.Context, id string) error
	Len() int
}

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = model.ErrNotFound
