package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ericfisherdev/lockbox/internal/crypto"
	"github.com/ericfisherdev/lockbox/internal/domain/model"
	"github.com/ericfisherdev/lockbox/internal/domain/port/driven"
)

// VaultState is the lifecycle stage of a Vault session.
type VaultState int

const (
	// StateLocked is the initial state: no master key has been derived yet.
	StateLocked VaultState = iota
	// StateReady means the master key is held and operations are permitted.
	StateReady
	// StateClosed is terminal: the key is destroyed and the store is closed.
	StateClosed
)

// String returns a lowercase name for logging.
func (s VaultState) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// KeyParamsFunc produces key derivation parameters for a brand-new vault.
type KeyParamsFunc func() (model.KeyParams, error)

// VaultOption customizes a Vault.
type VaultOption func(*Vault)

// WithSuite selects the cipher suite used for newly written records.
func WithSuite(suite crypto.Suite) VaultOption {
	return func(v *Vault) { v.suite = suite }
}

// WithKeyParams overrides how parameters for a new vault are generated.
func WithKeyParams(fn KeyParamsFunc) VaultOption {
	return func(v *Vault) { v.newKeyParams = fn }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) VaultOption {
	return func(v *Vault) { v.logger = logger }
}

// Vault is one session over a vault file. It owns the store and, once
// unlocked, the master key. Operations are permitted only in StateReady.
//
// A Vault is safe for concurrent use so that the HTTP adapter can share it.
type Vault struct {
	mu           sync.Mutex
	state        VaultState
	store        driven.VaultStore
	key          *crypto.MasterKey
	suite        crypto.Suite
	newKeyParams KeyParamsFunc
	logger       *slog.Logger
}

// NewVault creates a locked Vault over store. The Vault takes ownership of
// store and closes it in Close.
func NewVault(store driven.VaultStore, opts ...VaultOption) *Vault {
	v := &Vault{
		store:        store,
		suite:        crypto.DefaultSuite,
		newKeyParams: crypto.NewKeyParams,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// State returns the current lifecycle state.
func (v *Vault) State() VaultState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Path returns the location of the vault file.
func (v *Vault) Path() string {
	return v.store.Path()
}

// Unlock derives the master key from passphrase and moves the session to
// StateReady. On a new vault file it first persists fresh key parameters.
// A wrong passphrase is not detected here; it surfaces as
// model.ErrAuthentication on the first Retrieve.
func (v *Vault) Unlock(ctx context.Context, passphrase string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.state {
	case StateReady:
		return errors.New("vault already unlocked")
	case StateClosed:
		return model.ErrVaultClosed
	}

	params, err := v.store.EnsureKeyParams(ctx, model.KeyParams{})
	if errors.Is(err, model.ErrNotFound) {
		candidate, genErr := v.newKeyParams()
		if genErr != nil {
			return fmt.Errorf("new key params: %w", genErr)
		}
		params, err = v.store.EnsureKeyParams(ctx, candidate)
		if err == nil {
			v.logger.Info("vault initialized", "path", v.store.Path())
		}
	}
	if err != nil {
		return fmt.Errorf("load key params: %w", err)
	}

	key, err := crypto.Derive(passphrase, params)
	if err != nil {
		return fmt.Errorf("derive master key: %w", err)
	}

	v.key = key
	v.state = StateReady
	v.logger.Debug("vault unlocked", "path", v.store.Path(), "suite", v.suite.String())
	return nil
}

// ready must be called with mu held.
func (v *Vault) ready() error {
	switch v.state {
	case StateLocked:
		return model.ErrVaultLocked
	case StateClosed:
		return model.ErrVaultClosed
	}
	return nil
}

func validateService(service string) error {
	if strings.TrimSpace(service) == "" {
		return model.ErrInvalidService
	}
	return nil
}

// StorePassword encrypts plaintext and stores it under service, replacing
// any existing password.
func (v *Vault) StorePassword(ctx context.Context, service, plaintext string) error {
	if err := validateService(service); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.ready(); err != nil {
		return err
	}

	ciphertext, err := crypto.Encrypt(v.key, v.suite, plaintext)
	if err != nil {
		return fmt.Errorf("encrypt password for %q: %w", service, err)
	}

	if err := v.store.Put(ctx, service, ciphertext); err != nil {
		return err
	}

	v.logger.Debug("password stored", "service", service)
	return nil
}

// Retrieve returns the plaintext password for service. It returns
// model.ErrNotFound when nothing is stored and model.ErrAuthentication when
// the stored ciphertext does not open under the session key.
func (v *Vault) Retrieve(ctx context.Context, service string) (string, error) {
	if err := validateService(service); err != nil {
		return "", err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.ready(); err != nil {
		return "", err
	}

	ciphertext, err := v.store.Get(ctx, service)
	if err != nil {
		return "", err
	}

	plaintext, err := crypto.Decrypt(v.key, ciphertext)
	if err != nil {
		v.logger.Warn("password failed to decrypt", "service", service)
		return "", fmt.Errorf("decrypt password for %q: %w", service, err)
	}
	return plaintext, nil
}

// Generate returns a fresh random password of the given length. Nothing is stored.
func (v *Vault) Generate(length int) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.ready(); err != nil {
		return "", err
	}

	return crypto.GeneratePassword(length)
}

// ListServices returns every stored service name in lexicographic order.
func (v *Vault) ListServices(ctx context.Context) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.ready(); err != nil {
		return nil, err
	}

	return v.store.List(ctx)
}

// DeleteService removes the password for service. Removing an absent
// service is not an error.
func (v *Vault) DeleteService(ctx context.Context, service string) error {
	if err := validateService(service); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.ready(); err != nil {
		return err
	}

	if err := v.store.Delete(ctx, service); err != nil {
		return err
	}

	v.logger.Debug("service deleted", "service", service)
	return nil
}

// Snapshot writes a consistent copy of the vault file to dst for backup.
func (v *Vault) Snapshot(ctx context.Context, dst string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.ready(); err != nil {
		return err
	}

	return v.store.Snapshot(ctx, dst)
}

// Close ends the session: the master key is destroyed and the store closed.
// Close is idempotent and valid from any state.
func (v *Vault) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == StateClosed {
		return nil
	}
	v.state = StateClosed

	v.key.Destroy()
	v.key = nil

	if err := v.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	v.logger.Debug("vault closed", "path", v.store.Path())
	return nil
}
