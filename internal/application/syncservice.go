package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ericfisherdev/lockbox/internal/domain/model"
	"github.com/ericfisherdev/lockbox/internal/domain/port/driven"
)

// SyncService backs up and restores the vault file through a RemoteSync
// collaborator. It never runs network I/O while holding the store: pushes
// upload a snapshot, and pulls require the session to be closed.
type SyncService struct {
	remote driven.RemoteSync
	logger *slog.Logger
}

// NewSyncService creates a SyncService. remote may be nil, in which case
// every call returns model.ErrSyncNotConfigured.
func NewSyncService(remote driven.RemoteSync, logger *slog.Logger) *SyncService {
	return &SyncService{remote: remote, logger: logger}
}

// Configured reports whether a remote is attached.
func (s *SyncService) Configured() bool {
	return s != nil && s.remote != nil
}

// Push snapshots the open vault into a private temporary directory and
// uploads the snapshot.
func (s *SyncService) Push(ctx context.Context, v *Vault) error {
	if !s.Configured() {
		return model.ErrSyncNotConfigured
	}

	dir, err := os.MkdirTemp("", "lockbox-push-*")
	if err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	defer os.RemoveAll(dir)

	snapshot := filepath.Join(dir, filepath.Base(v.Path()))
	if err := v.Snapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("snapshot vault: %w", err)
	}

	if err := s.remote.Push(ctx, snapshot); err != nil {
		return fmt.Errorf("push vault: %w", err)
	}

	s.logger.Info("vault pushed", "path", v.Path())
	return nil
}

// Pull replaces the local vault file with the remote copy. The vault session
// must already be closed; the caller reopens it afterwards.
func (s *SyncService) Pull(ctx context.Context, v *Vault) error {
	if !s.Configured() {
		return model.ErrSyncNotConfigured
	}
	if v.State() != StateClosed {
		return errors.New("vault must be closed before pulling")
	}

	if err := s.remote.Pull(ctx, v.Path()); err != nil {
		return fmt.Errorf("pull vault: %w", err)
	}

	s.logger.Info("vault pulled", "path", v.Path())
	return nil
}
