package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/lockbox/internal/domain/model"
	"github.com/ericfisherdev/lockbox/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.VaultStore = (*Store)(nil)

// Store bundles the record and meta repositories over one database file.
type Store struct {
	*RecordRepo
	*MetaRepo
	db *DB
}

// Open opens the vault file at path, creating it and its schema on first use.
func Open(ctx context.Context, path string, busyTimeout time.Duration) (*Store, error) {
	db, err := NewDB(ctx, path, busyTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrStorage, err)
	}

	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", model.ErrStorage, err)
	}

	slog.Debug("sqlite vault opened", "path", path)

	return &Store{
		RecordRepo: NewRecordRepo(db),
		MetaRepo:   NewMetaRepo(db),
		db:         db,
	}, nil
}

// Snapshot writes a consistent, compacted copy of the database to dst using
// VACUUM INTO. The copy does not hold locks on the live file once it returns.
func (s *Store) Snapshot(ctx context.Context, dst string) error {
	if _, err := s.db.Reader.ExecContext(ctx, `VACUUM INTO ?`, dst); err != nil {
		return fmt.Errorf("%w: snapshot to %s: %w", model.ErrStorage, dst, err)
	}
	return nil
}

// Path returns the vault file location.
func (s *Store) Path() string {
	return s.db.Path()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrStorage, err)
	}
	return nil
}
