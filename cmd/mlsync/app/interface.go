package app

import (
	"github.com/openlistings/mlsync/cmd/application"
)

// Ensure App implements application.Application at compile time.
var _ application.Application = (*App)(nil)
