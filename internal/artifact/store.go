// Package artifact stores rendered receipt documents keyed by provider
// reference code. Implementations are shared across all businesses; callers
// derive keys from tenant-scoped records.
package artifact

import (
	"context"
	"errors"
)

// ErrNotFound indicates no artifact exists under the requested key.
var ErrNotFound = errors.New("artifact not found")

// Store is the interface for artifact persistence. Delete of a missing key
// returns ErrNotFound; the retention janitor treats that as success.
type Store interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Key derives the storage key for a transaction's receipt from its provider
// reference code.
func Key(code string) string {
	return code + ".pdf"
}
