package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/lockbox/internal/domain/model"
)

// MetaRepo persists the single row of per-vault key derivation parameters.
type MetaRepo struct {
	db *DB
}

// NewMetaRepo creates a new MetaRepo.
func NewMetaRepo(db *DB) *MetaRepo {
	return &MetaRepo{db: db}
}

// EnsureKeyParams inserts candidate if the vault has no parameters yet, then
// returns the stored parameters. A zero candidate only reads; it returns
// model.ErrNotFound when nothing is stored.
func (r *MetaRepo) EnsureKeyParams(ctx context.Context, candidate model.KeyParams) (model.KeyParams, error) {
	if !candidate.IsZero() {
		const insert = `INSERT OR IGNORE INTO vault_meta (id, salt, kdf_time, kdf_memory_kib, kdf_threads) VALUES (1, ?, ?, ?, ?)`
		_, err := r.db.Writer.ExecContext(ctx, insert,
			candidate.Salt, candidate.Time, candidate.MemoryKiB, candidate.Threads)
		if err != nil {
			return model.KeyParams{}, fmt.Errorf("%w: store key params: %w", model.ErrStorage, err)
		}
	}

	const query = `SELECT salt, kdf_time, kdf_memory_kib, kdf_threads FROM vault_meta WHERE id = 1`
	var p model.KeyParams
	err := r.db.Writer.QueryRowContext(ctx, query).Scan(&p.Salt, &p.Time, &p.MemoryKiB, &p.Threads)
	if errors.Is(err, sql.ErrNoRows) {
		return model.KeyParams{}, model.ErrNotFound
	}
	if err != nil {
		return model.KeyParams{}, fmt.Errorf("%w: load key params: %w", model.ErrStorage, err)
	}
	return p, nil
}
