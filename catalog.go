package mlsync

import (
	"github.com/openlistings/mlsync/pkg/listings"
)

// Compile-time interface check to ensure proper implementation.
var _ Catalog = (*client)(nil)

// Catalog provides access to the synced property catalog.
type Catalog interface {
	// Catalog returns the property store every sync writes into. The
	// store is shared and safe for concurrent use; writes made through
	// it fire the registered property hooks.
	Catalog() listings.Store
}

// Catalog returns the property store every sync writes into.
func (c *client) Catalog() listings.Store {
	return c.catalog
}
