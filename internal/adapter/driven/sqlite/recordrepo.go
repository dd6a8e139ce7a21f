package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/lockbox/internal/domain/model"
	"github.com/ericfisherdev/lockbox/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RecordStore = (*RecordRepo)(nil)

// RecordRepo is the SQLite implementation of the RecordStore port interface.
// It stores ciphertext only; encryption happens in the application layer.
type RecordRepo struct {
	db *DB
}

// NewRecordRepo creates a new RecordRepo.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

// Put stores or replaces the ciphertext for the given service.
func (r *RecordRepo) Put(ctx context.Context, service string, ciphertext []byte) error {
	const query = `INSERT OR REPLACE INTO records (service, ciphertext, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`
	if _, err := r.db.Writer.ExecContext(ctx, query, service, ciphertext); err != nil {
		return fmt.Errorf("%w: put record %q: %w", model.ErrStorage, service, err)
	}
	return nil
}

// Get retrieves the ciphertext for the given service.
// Returns model.ErrNotFound if no record exists for that service.
func (r *RecordRepo) Get(ctx context.Context, service string) ([]byte, error) {
	const query = `SELECT ciphertext FROM records WHERE service = ?`
	var ciphertext []byte
	err := r.db.Reader.QueryRowContext(ctx, query, service).Scan(&ciphertext)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get record %q: %w", model.ErrStorage, service, err)
	}
	return ciphertext, nil
}

// List returns all stored service names ordered by name.
func (r *RecordRepo) List(ctx context.Context) ([]string, error) {
	const query = `SELECT service FROM records ORDER BY service`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %w", model.ErrStorage, err)
	}
	defer rows.Close()

	services := []string{}
	for rows.Next() {
		var service string
		if err := rows.Scan(&service); err != nil {
			return nil, fmt.Errorf("%w: scan record: %w", model.ErrStorage, err)
		}
		services = append(services, service)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate records: %w", model.ErrStorage, err)
	}

	return services, nil
}

// Delete removes the record for the given service.
func (r *RecordRepo) Delete(ctx context.Context, service string) error {
	const query = `DELETE FROM records WHERE service = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, service); err != nil {
		return fmt.Errorf("%w: delete record %q: %w", model.ErrStorage, service, err)
	}
	return nil
}
