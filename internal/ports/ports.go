package ports

import (
	"context"

	"budget/internal/core"
)

// Ports between the HTTP layer and item storage.
type (
	// ItemSession is a storage handle scoped to one request. Close must be
	// called on every exit path.
	ItemSession interface {
		// Insert stores a new item and returns it with its assigned id.
		Insert(ctx context.Context, in core.ItemInput) (core.BudgetItem, error)
		// List returns at most limit items ordered by id, skipping the first skip.
		List(ctx context.Context, skip, limit int) ([]core.BudgetItem, error)
		// Get returns core.ErrItemNotFound when no item has the id.
		Get(ctx context.Context, id int64) (core.BudgetItem, error)
		// Delete returns core.ErrItemNotFound when no item has the id.
		Delete(ctx context.Context, id int64) error
		Close() error
	}

	SessionOpener interface {
		OpenSession(ctx context.Context) (ItemSession, error)
	}

	// Pinger reports whether the backing store is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
