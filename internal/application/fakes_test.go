package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sqliteadapter "github.com/ericfisherdev/lockbox/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/lockbox/internal/application"
	"github.com/ericfisherdev/lockbox/internal/domain/model"
)

// --- Fakes ---

// mapStore is an in-memory VaultStore. Set err to make every call fail.
type mapStore struct {
	data   map[string][]byte
	params model.KeyParams
	path   string
	err    error
	closed bool
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte), path: "memory.db"}
}

func (m *mapStore) Put(_ context.Context, service string, ciphertext []byte) error {
	if m.err != nil {
		return m.err
	}
	m.data[service] = append([]byte(nil), ciphertext...)
	return nil
}

func (m *mapStore) Get(_ context.Context, service string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.data[service]
	if !ok {
		return nil, model.ErrNotFound
	}
	return v, nil
}

func (m *mapStore) List(_ context.Context) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	names := make([]string, 0, len(m.data))
	for k := range m.data {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

func (m *mapStore) Delete(_ context.Context, service string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.data, service)
	return nil
}

func (m *mapStore) EnsureKeyParams(_ context.Context, candidate model.KeyParams) (model.KeyParams, error) {
	if m.err != nil {
		return model.KeyParams{}, m.err
	}
	if m.params.IsZero() {
		if candidate.IsZero() {
			return model.KeyParams{}, model.ErrNotFound
		}
		m.params = candidate
	}
	return m.params, nil
}

func (m *mapStore) Snapshot(_ context.Context, dst string) error {
	if m.err != nil {
		return m.err
	}
	return os.WriteFile(dst, []byte("snapshot"), 0o600)
}

func (m *mapStore) Path() string { return m.path }

func (m *mapStore) Close() error {
	m.closed = true
	return nil
}

// fakeRemote records pushes and serves pulls from memory.
type fakeRemote struct {
	pushed  []byte
	remote  []byte
	pushErr error
	pullErr error
}

func (f *fakeRemote) Push(_ context.Context, localPath string) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	f.pushed = data
	return nil
}

func (f *fakeRemote) Pull(_ context.Context, localPath string) error {
	if f.pullErr != nil {
		return f.pullErr
	}
	if f.remote == nil {
		return model.ErrRemoteNotFound
	}
	return os.WriteFile(localPath, f.remote, 0o600)
}

// scriptedUI answers prompts from a queue and records every result shown.
// An exhausted queue behaves like the user cancelling.
type scriptedUI struct {
	answers []string
	prompts []string
	results []shownResult
}

type shownResult struct {
	Message string
	Secret  string
}

// cancel is queued to simulate the user declining a prompt.
const cancel = "\x00cancel"

func (u *scriptedUI) next(label string) (string, error) {
	u.prompts = append(u.prompts, label)
	if len(u.answers) == 0 {
		return "", model.ErrInputCancelled
	}
	a := u.answers[0]
	u.answers = u.answers[1:]
	if a == cancel {
		return "", model.ErrInputCancelled
	}
	return a, nil
}

func (u *scriptedUI) PromptText(_ context.Context, label string) (string, error) {
	return u.next(label)
}

func (u *scriptedUI) PromptSecret(_ context.Context, label string) (string, error) {
	return u.next(label)
}

func (u *scriptedUI) ShowResult(_ context.Context, message, secret string) error {
	u.results = append(u.results, shownResult{Message: message, Secret: secret})
	return nil
}

func (u *scriptedUI) lastMessage() string {
	if len(u.results) == 0 {
		return ""
	}
	return u.results[len(u.results)-1].Message
}

// --- Helpers ---

var errBoom = errors.New("disk on fire")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// cheapKeyParams keeps Argon2id fast in tests.
func cheapKeyParams() (model.KeyParams, error) {
	return model.KeyParams{
		Salt:      []byte("test-salt-16byte"),
		Time:      1,
		MemoryKiB: 8 * 1024,
		Threads:   1,
	}, nil
}

func testVaultOptions() []application.VaultOption {
	return []application.VaultOption{
		application.WithKeyParams(cheapKeyParams),
		application.WithLogger(discardLogger()),
	}
}

// openSQLiteVault opens a locked vault over the SQLite file at path.
func openSQLiteVault(t *testing.T, path string) *application.Vault {
	t.Helper()
	store, err := sqliteadapter.Open(context.Background(), path, time.Second)
	require.NoError(t, err)
	v := application.NewVault(store, testVaultOptions()...)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

// unlockedVault returns a ready vault over a fresh SQLite file.
func unlockedVault(t *testing.T, passphrase string) *application.Vault {
	t.Helper()
	v := openSQLiteVault(t, filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, v.Unlock(context.Background(), passphrase))
	return v
}
