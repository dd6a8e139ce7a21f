// Package bolt implements the vault store ports on a single bbolt file.
//
// bbolt holds an exclusive lock on the file while it is open, so a second
// process opening the same vault waits up to the configured timeout and then
// fails with model.ErrStorage.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.etcd.io/bbolt"

	"github.com/ericfisherdev/lockbox/internal/domain/model"
	"github.com/ericfisherdev/lockbox/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.VaultStore = (*Store)(nil)

var (
	recordsBucket = []byte("records")
	metaBucket    = []byte("meta")
	keyParamsKey  = []byte("key_params")
)

// keyParamsJSON is the on-disk encoding of model.KeyParams.
type keyParamsJSON struct {
	Salt      []byte `json:"salt"`
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memory_kib"`
	Threads   uint8  `json:"threads"`
}

// Store is the bbolt implementation of the VaultStore port interface.
type Store struct {
	db   *bbolt.DB
	path string
}

// Open opens the vault file at path, creating it and its buckets on first use.
// lockTimeout bounds the wait for another process holding the file.
func Open(_ context.Context, path string, lockTimeout time.Duration) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", model.ErrStorage, path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{recordsBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: init %s: %w", model.ErrStorage, path, err)
	}

	slog.Debug("bolt vault opened", "path", path)

	return &Store{db: db, path: path}, nil
}

// Put stores or replaces the ciphertext for the given service.
func (s *Store) Put(ctx context.Context, service string, ciphertext []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordsBucket).Put([]byte(service), ciphertext)
	})
	if err != nil {
		return fmt.Errorf("%w: put record %q: %w", model.ErrStorage, service, err)
	}
	return nil
}

// Get retrieves the ciphertext for the given service.
// Returns model.ErrNotFound if no record exists for that service.
func (s *Store) Get(ctx context.Context, service string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ciphertext []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(recordsBucket).Get([]byte(service))
		if v == nil {
			return model.ErrNotFound
		}
		// v is only valid for the life of the transaction.
		ciphertext = bytes.Clone(v)
		return nil
	})
	if errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get record %q: %w", model.ErrStorage, service, err)
	}
	return ciphertext, nil
}

// List returns all stored service names in byte order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	services := []string{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordsBucket).ForEach(func(k, _ []byte) error {
			services = append(services, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %w", model.ErrStorage, err)
	}
	return services, nil
}

// Delete removes the record for the given service.
func (s *Store) Delete(ctx context.Context, service string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordsBucket).Delete([]byte(service))
	})
	if err != nil {
		return fmt.Errorf("%w: delete record %q: %w", model.ErrStorage, service, err)
	}
	return nil
}

// EnsureKeyParams inserts candidate if the vault has no parameters yet, then
// returns the stored parameters. A zero candidate only reads; it returns
// model.ErrNotFound when nothing is stored.
func (s *Store) EnsureKeyParams(ctx context.Context, candidate model.KeyParams) (model.KeyParams, error) {
	if err := ctx.Err(); err != nil {
		return model.KeyParams{}, err
	}

	var stored keyParamsJSON
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if v := b.Get(keyParamsKey); v != nil {
			return json.Unmarshal(v, &stored)
		}
		if candidate.IsZero() {
			return model.ErrNotFound
		}

		stored = keyParamsJSON(candidate)
		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("marshal key params: %w", err)
		}
		return b.Put(keyParamsKey, data)
	})
	if errors.Is(err, model.ErrNotFound) {
		return model.KeyParams{}, err
	}
	if err != nil {
		return model.KeyParams{}, fmt.Errorf("%w: key params: %w", model.ErrStorage, err)
	}
	return model.KeyParams(stored), nil
}

// Snapshot copies the database to dst inside a read transaction.
func (s *Store) Snapshot(ctx context.Context, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%w: snapshot to %s: destination exists", model.ErrStorage, dst)
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.CopyFile(dst, 0o600)
	})
	if err != nil {
		return fmt.Errorf("%w: snapshot to %s: %w", model.ErrStorage, dst, err)
	}
	return nil
}

// Path returns the vault file location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the file lock and closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrStorage, err)
	}
	return nil
}
