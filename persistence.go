package mlsync

import (
	"context"

	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
)

// Compile-time interface check to ensure proper implementation.
var _ Persistence = (*client)(nil)

// Persistence handles catalog persistence operations.
type Persistence interface {
	// Save flushes the catalog to its backing location
	Save(ctx context.Context) error
}

// Save flushes the catalog to its backing location. Stores without a
// backing location, like the in-memory default, cannot be saved.
func (c *client) Save(ctx context.Context) error {
	saveable, ok := c.store.(listings.Persistable)
	if !ok {
		return errors.NewConfigError("store", "store type does not support saving", nil)
	}
	if err := saveable.Save(ctx); err != nil {
		return errors.WrapIO("write", "catalog", err)
	}
	return nil
}
