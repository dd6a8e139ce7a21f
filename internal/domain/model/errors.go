package model

import "errors"

var (
	// ErrNotFound is returned when no record exists for a service. It is an
	// expected outcome, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrAuthentication is returned when a ciphertext fails to decrypt under
	// the session key: either the master passphrase is wrong or the stored
	// data was corrupted or tampered with.
	ErrAuthentication = errors.New("authentication failed: wrong master key or corrupted data")

	// ErrStorage wraps every I/O or durability failure of the backing store.
	ErrStorage = errors.New("storage error")

	// ErrInputCancelled is returned by a UI driver when the user declines a prompt.
	ErrInputCancelled = errors.New("input cancelled")

	// ErrVaultLocked is returned by vault operations attempted before Unlock.
	ErrVaultLocked = errors.New("vault is locked")

	// ErrVaultClosed is returned by vault operations attempted after Close.
	ErrVaultClosed = errors.New("vault is closed")

	// ErrInvalidService is returned when a service name is empty.
	ErrInvalidService = errors.New("service name must not be empty")

	// ErrRemoteNotFound is returned by a pull when the remote holds no vault file.
	ErrRemoteNotFound = errors.New("vault file not found on remote")

	// ErrSyncNotConfigured is returned when a sync is requested without a remote.
	ErrSyncNotConfigured = errors.New("remote sync not configured")
)
