package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/ericfisherdev/lockbox/internal/crypto"
	"github.com/ericfisherdev/lockbox/internal/domain/model"
	"github.com/ericfisherdev/lockbox/internal/domain/port/driven"
)

var (
	// errExit ends the command loop.
	errExit = errors.New("exit")

	// ErrSessionLost is returned by Run when the vault could not be reopened
	// after a pull. The shell has no open session and stops.
	ErrSessionLost = errors.New("vault session could not be reopened")
)

// StoreOpener opens the vault file for a new session.
type StoreOpener func(ctx context.Context) (driven.VaultStore, error)

// Shell exposes every user-facing vault action as a named command driven
// through a UIDriver. Front ends call Execute (or Run for an interactive
// loop); there is no event wiring.
type Shell struct {
	ui        driven.UIDriver
	open      StoreOpener
	sync      *SyncService
	vaultOpts []VaultOption
	logger    *slog.Logger

	vault    *Vault
	commands map[string]func(context.Context) error
}

// NewShell creates a Shell. sync may be nil when no remote is configured.
func NewShell(ui driven.UIDriver, open StoreOpener, sync *SyncService, logger *slog.Logger, vaultOpts ...VaultOption) *Shell {
	s := &Shell{
		ui:        ui,
		open:      open,
		sync:      sync,
		vaultOpts: vaultOpts,
		logger:    logger,
	}
	s.commands = map[string]func(context.Context) error{
		"store":    s.Store,
		"retrieve": s.Retrieve,
		"generate": s.Generate,
		"list":     s.List,
		"delete":   s.Delete,
		"push":     s.Push,
		"pull":     s.Pull,
		"help":     s.Help,
		"exit":     s.Exit,
	}
	return s
}

// Vault returns the current session, or nil before Start.
func (s *Shell) Vault() *Vault {
	return s.vault
}

// Commands returns the command names in alphabetical order.
func (s *Shell) Commands() []string {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start opens the vault file and asks for the master passphrase. If the user
// cancels, the session never becomes ready and model.ErrInputCancelled is
// returned.
func (s *Shell) Start(ctx context.Context) error {
	store, err := s.open(ctx)
	if err != nil {
		return fmt.Errorf("open vault: %w", err)
	}
	vault := NewVault(store, append([]VaultOption{WithLogger(s.logger)}, s.vaultOpts...)...)

	passphrase, err := s.ui.PromptSecret(ctx, "Enter your master passphrase:")
	if err != nil {
		_ = vault.Close()
		return err
	}

	if err := vault.Unlock(ctx, passphrase); err != nil {
		_ = vault.Close()
		return err
	}

	s.vault = vault
	return nil
}

// Run reads commands until the user exits, cancels the command prompt, or
// ctx is done. Command failures are shown to the user and the loop continues.
func (s *Shell) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		name, err := s.ui.PromptText(ctx, "Command ("+strings.Join(s.Commands(), ", ")+"):")
		if errors.Is(err, model.ErrInputCancelled) {
			return nil
		}
		if err != nil {
			return err
		}

		err = s.Execute(ctx, name)
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil {
			s.logger.Error("command failed", "command", name, "error", err)
			if showErr := s.ui.ShowResult(ctx, "Error: "+describeError(err), ""); showErr != nil {
				return showErr
			}
			if errors.Is(err, ErrSessionLost) {
				return err
			}
		}
	}
}

// Execute runs one named command. A cancelled prompt inside the command is
// a no-op and returns nil.
func (s *Shell) Execute(ctx context.Context, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}

	cmd, ok := s.commands[name]
	if !ok {
		return s.ui.ShowResult(ctx, fmt.Sprintf("Unknown command %q. Type help for the list of commands.", name), "")
	}

	err := cmd(ctx)
	if errors.Is(err, model.ErrInputCancelled) {
		return nil
	}
	return err
}

// Close ends the current session, if any.
func (s *Shell) Close() error {
	if s.vault == nil {
		return nil
	}
	return s.vault.Close()
}

// Store asks for a service and a password and stores them.
func (s *Shell) Store(ctx context.Context) error {
	service, err := s.ui.PromptText(ctx, "Enter the service:")
	if err != nil {
		return err
	}
	password, err := s.ui.PromptSecret(ctx, "Enter the password:")
	if err != nil {
		return err
	}

	if err := s.vault.StorePassword(ctx, service, password); err != nil {
		return err
	}
	return s.ui.ShowResult(ctx, "Password stored successfully!", "")
}

// Retrieve asks for a service and shows its password. A missing password and
// one that fails to decrypt produce different messages.
func (s *Shell) Retrieve(ctx context.Context) error {
	service, err := s.ui.PromptText(ctx, "Enter the service to retrieve the password:")
	if err != nil {
		return err
	}

	password, err := s.vault.Retrieve(ctx, service)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return s.ui.ShowResult(ctx, fmt.Sprintf("No password found for %s", service), "")
	case errors.Is(err, model.ErrAuthentication):
		return s.ui.ShowResult(ctx, fmt.Sprintf("Unable to decrypt the password for %s: wrong master key or corrupted data.", service), "")
	case err != nil:
		return err
	}

	return s.ui.ShowResult(ctx, fmt.Sprintf("The password for %s is: %s", service, password), password)
}

// Generate asks for an optional length and shows a fresh random password.
// The password is not stored.
func (s *Shell) Generate(ctx context.Context) error {
	raw, err := s.ui.PromptText(ctx, fmt.Sprintf("Password length (default %d):", crypto.DefaultPasswordLength))
	if err != nil {
		return err
	}

	length := crypto.DefaultPasswordLength
	if raw = strings.TrimSpace(raw); raw != "" {
		length, err = strconv.Atoi(raw)
		if err != nil || length < 1 {
			return s.ui.ShowResult(ctx, fmt.Sprintf("Invalid length %q: enter a positive number.", raw), "")
		}
	}

	password, err := s.vault.Generate(length)
	if err != nil {
		return err
	}
	return s.ui.ShowResult(ctx, "Generated Password: "+password, password)
}

// List shows every stored service name.
func (s *Shell) List(ctx context.Context) error {
	services, err := s.vault.ListServices(ctx)
	if err != nil {
		return err
	}
	if len(services) == 0 {
		return s.ui.ShowResult(ctx, "No services found.", "")
	}
	return s.ui.ShowResult(ctx, "List of Services:\n"+strings.Join(services, "\n"), "")
}

// Delete asks for a service and removes its password.
func (s *Shell) Delete(ctx context.Context) error {
	service, err := s.ui.PromptText(ctx, "Enter the service to delete:")
	if err != nil {
		return err
	}

	if err := s.vault.DeleteService(ctx, service); err != nil {
		return err
	}
	return s.ui.ShowResult(ctx, fmt.Sprintf("Service '%s' deleted successfully!", service), "")
}

// Push uploads a snapshot of the vault to the remote.
func (s *Shell) Push(ctx context.Context) error {
	if !s.sync.Configured() {
		return s.ui.ShowResult(ctx, "Remote sync is not configured.", "")
	}
	if err := s.sync.Push(ctx, s.vault); err != nil {
		return err
	}
	return s.ui.ShowResult(ctx, "Database uploaded to remote.", "")
}

// Pull ends the session, replaces the local vault file with the remote copy,
// and starts a new session, asking for the master passphrase again. If the
// user cancels the new passphrase prompt the shell exits.
func (s *Shell) Pull(ctx context.Context) error {
	if !s.sync.Configured() {
		return s.ui.ShowResult(ctx, "Remote sync is not configured.", "")
	}

	if err := s.vault.Close(); err != nil {
		return err
	}

	pullErr := s.sync.Pull(ctx, s.vault)
	switch {
	case errors.Is(pullErr, model.ErrRemoteNotFound):
		if err := s.ui.ShowResult(ctx, "No vault found on remote; local vault unchanged.", ""); err != nil {
			return err
		}
	case pullErr != nil:
		if err := s.ui.ShowResult(ctx, "Download failed: "+describeError(pullErr), ""); err != nil {
			return err
		}
	default:
		if err := s.ui.ShowResult(ctx, "Database downloaded from remote. Unlock it to continue.", ""); err != nil {
			return err
		}
	}

	if err := s.Start(ctx); err != nil {
		if errors.Is(err, model.ErrInputCancelled) {
			return errExit
		}
		return fmt.Errorf("%w: %w", ErrSessionLost, err)
	}
	return nil
}

// Help lists the available commands.
func (s *Shell) Help(ctx context.Context) error {
	return s.ui.ShowResult(ctx, "Commands: "+strings.Join(s.Commands(), ", "), "")
}

// Exit ends the session and stops the command loop.
func (s *Shell) Exit(context.Context) error {
	if err := s.Close(); err != nil {
		return err
	}
	return errExit
}

// describeError turns a vault error into a short user-facing explanation.
func describeError(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidService):
		return "the service name must not be empty."
	case errors.Is(err, model.ErrSyncNotConfigured):
		return "remote sync is not configured."
	case errors.Is(err, model.ErrRemoteNotFound):
		return "no vault found on remote."
	case errors.Is(err, model.ErrVaultClosed), errors.Is(err, model.ErrVaultLocked):
		return "the vault is not unlocked."
	case errors.Is(err, model.ErrStorage):
		return "the vault file could not be read or written: " + err.Error()
	default:
		return err.Error()
	}
}
