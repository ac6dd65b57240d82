// Package all links every provider adapter family into the binary.
// Importing it for side effects registers each family's factory:
//
//	import _ "github.com/openlistings/mlsync/internal/adapters/all"
package all

import (
	// Each family package registers itself via init().
	_ "github.com/openlistings/mlsync/internal/adapters/bridge"
	_ "github.com/openlistings/mlsync/internal/adapters/reso"
	_ "github.com/openlistings/mlsync/internal/adapters/ridx"
)
