package driven

import (
	"context"

	"github.com/ericfisherdev/lockbox/internal/domain/model"
)

// RecordStore defines the driven port for durable CRUD over encrypted records,
// addressed by service name. Implementations never see plaintext.
//
// Every failure of the underlying storage is wrapped with model.ErrStorage and
// returned as-is; implementations do not retry.
type RecordStore interface {
	// Put inserts or overwrites the record for service. The write is atomic and
	// durable once Put returns.
	Put(ctx context.Context, service string, ciphertext []byte) error

	// Get returns the ciphertext stored for service, or model.ErrNotFound.
	Get(ctx context.Context, service string) ([]byte, error)

	// List returns every stored service name in lexicographic order. An empty
	// store yields an empty, non-nil slice.
	List(ctx context.Context) ([]string, error)

	// Delete removes the record for service. Deleting an absent service is a no-op.
	Delete(ctx context.Context, service string) error
}

// VaultStore is a RecordStore backed by a single self-contained file that also
// carries the vault's key derivation parameters.
type VaultStore interface {
	RecordStore

	// EnsureKeyParams stores candidate when the vault has no parameters yet and
	// returns the parameters actually stored. Concurrent first unlocks from
	// separate processes therefore agree on a single salt.
	EnsureKeyParams(ctx context.Context, candidate model.KeyParams) (model.KeyParams, error)

	// Snapshot writes a consistent copy of the backing file to dst. dst must not exist.
	Snapshot(ctx context.Context, dst string) error

	// Path returns the location of the backing file.
	Path() string

	// Close releases the backing file.
	Close() error
}
