// Package metadata stores small persisted scalars outside the record
// collections: the sync watermarks and the agent session. Watermarks survive
// data import/export independently of the records themselves.
package metadata

import "context"

// Well-known metadata keys.
const (
	KeyLastSyncAt         = "last_sync_at"
	KeyGeneratorLastRunAt = "generator_last_run_at"
	KeySessionToken       = "session_token"
	KeyUserID             = "user_id"
)

type Repository interface {
	// GetTime reads a unix-millisecond watermark. A missing or corrupted
	// value degrades to 0 ("never happened") rather than failing the caller.
	GetTime(ctx context.Context, key string) (int64, error)

	// SetTime writes a unix-millisecond watermark.
	SetTime(ctx context.Context, key string, millis int64) error

	// GetString reads a string value; missing keys yield "".
	GetString(ctx context.Context, key string) (string, error)

	// SetString writes a string value.
	SetString(ctx context.Context, key, value string) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error
}
