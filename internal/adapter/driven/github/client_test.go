package github_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/ericfisherdev/lockbox/internal/adapter/driven/github"
	"github.com/ericfisherdev/lockbox/internal/domain/model"
)

const contentsPath = "/repos/alice/secrets/contents/vault/lockbox.db"

// fakeContents is a minimal in-memory GitHub contents API for a single file.
type fakeContents struct {
	mu        sync.Mutex
	content   []byte
	sha       string
	exists    bool
	puts      []putBody
	authSeen  []string
	getStatus int
}

type putBody struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

func (f *fakeContents) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.authSeen = append(f.authSeen, r.Header.Get("Authorization"))

	if r.URL.Path != contentsPath {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		if f.getStatus != 0 {
			w.WriteHeader(f.getStatus)
			_, _ = w.Write([]byte(`{"message":"boom"}`))
			return
		}
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":     "file",
			"name":     "lockbox.db",
			"path":     "vault/lockbox.db",
			"encoding": "base64",
			"size":     len(f.content),
			"sha":      f.sha,
			"content":  base64.StdEncoding.EncodeToString(f.content),
		})
	case http.MethodPut:
		var body putBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if f.exists && body.SHA != f.sha {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"sha mismatch"}`))
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(body.Content)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.puts = append(f.puts, body)
		status := http.StatusOK
		if !f.exists {
			status = http.StatusCreated
		}
		f.content = decoded
		f.exists = true
		f.sha = "sha-" + string(rune('a'+len(f.puts)))
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": map[string]any{"sha": f.sha, "path": "vault/lockbox.db"},
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler, branch string) *ghAdapter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokenFile := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("test-token\n"), 0o600))

	client, err := ghAdapter.NewClientWithHTTPClient(server.Client(), server.URL+"/", ghAdapter.Options{
		Repo:      "alice/secrets",
		Path:      "/vault/lockbox.db",
		Branch:    branch,
		TokenFile: tokenFile,
	})
	require.NoError(t, err)

	return client
}

func writeLocal(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lockbox.db")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestPush_CreatesMissingFile(t *testing.T) {
	fake := &fakeContents{}
	client := newTestClient(t, fake, "main")

	local := writeLocal(t, "vault-bytes-v1")
	require.NoError(t, client.Push(context.Background(), local))

	require.Len(t, fake.puts, 1)
	assert.Empty(t, fake.puts[0].SHA)
	assert.Equal(t, "main", fake.puts[0].Branch)
	assert.Contains(t, fake.puts[0].Message, "vault/lockbox.db")
	assert.Equal(t, "vault-bytes-v1", string(fake.content))
}

func TestPush_UpdatesExistingFileWithSHA(t *testing.T) {
	fake := &fakeContents{exists: true, sha: "sha-original", content: []byte("old")}
	client := newTestClient(t, fake, "")

	local := writeLocal(t, "vault-bytes-v2")
	require.NoError(t, client.Push(context.Background(), local))

	require.Len(t, fake.puts, 1)
	assert.Equal(t, "sha-original", fake.puts[0].SHA)
	assert.Equal(t, "vault-bytes-v2", string(fake.content))
}

func TestPush_MissingLocalFile(t *testing.T) {
	fake := &fakeContents{}
	client := newTestClient(t, fake, "")

	err := client.Push(context.Background(), filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
	assert.Empty(t, fake.puts)
}

func TestPush_ServerErrorIsReturned(t *testing.T) {
	fake := &fakeContents{getStatus: http.StatusInternalServerError}
	client := newTestClient(t, fake, "")

	err := client.Push(context.Background(), writeLocal(t, "x"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrRemoteNotFound)
	assert.Empty(t, fake.puts)
}

func TestPull_ReplacesLocalFile(t *testing.T) {
	fake := &fakeContents{exists: true, sha: "sha-1", content: []byte("remote-vault")}
	client := newTestClient(t, fake, "")

	local := writeLocal(t, "local-vault")
	require.NoError(t, client.Pull(context.Background(), local))

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "remote-vault", string(data))

	info, err := os.Stat(local)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(local))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary download file should be renamed away")
}

func TestPull_CreatesLocalFileWhenAbsent(t *testing.T) {
	fake := &fakeContents{exists: true, sha: "sha-1", content: []byte("remote-vault")}
	client := newTestClient(t, fake, "")

	local := filepath.Join(t.TempDir(), "fresh.db")
	require.NoError(t, client.Pull(context.Background(), local))

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "remote-vault", string(data))
}

func TestPull_RemoteMissingLeavesLocalUntouched(t *testing.T) {
	fake := &fakeContents{}
	client := newTestClient(t, fake, "")

	local := writeLocal(t, "local-vault")
	err := client.Pull(context.Background(), local)
	require.ErrorIs(t, err, model.ErrRemoteNotFound)

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "local-vault", string(data))
}

func TestPull_CancelledContextLeavesLocalUntouched(t *testing.T) {
	fake := &fakeContents{exists: true, sha: "sha-1", content: []byte("remote-vault")}
	client := newTestClient(t, fake, "")

	local := writeLocal(t, "local-vault")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, client.Pull(ctx, local))

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "local-vault", string(data))
}

func TestPushThenPull_RoundTrip(t *testing.T) {
	fake := &fakeContents{}
	client := newTestClient(t, fake, "")

	require.NoError(t, client.Push(context.Background(), writeLocal(t, "snapshot")))

	other := writeLocal(t, "stale")
	require.NoError(t, client.Pull(context.Background(), other))

	data, err := os.ReadFile(other)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", string(data))
}

func TestRequests_CarryTokenFromFile(t *testing.T) {
	fake := &fakeContents{exists: true, sha: "sha-1", content: []byte("v")}
	client := newTestClient(t, fake, "")

	require.NoError(t, client.Pull(context.Background(), writeLocal(t, "x")))

	require.NotEmpty(t, fake.authSeen)
	for _, h := range fake.authSeen {
		assert.Equal(t, "Bearer test-token", h)
	}
}

func TestNewClient_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts ghAdapter.Options
	}{
		{name: "missing slash", opts: ghAdapter.Options{Repo: "alice", Path: "lockbox.db"}},
		{name: "empty owner", opts: ghAdapter.Options{Repo: "/secrets", Path: "lockbox.db"}},
		{name: "empty repo", opts: ghAdapter.Options{Repo: "alice/", Path: "lockbox.db"}},
		{name: "empty path", opts: ghAdapter.Options{Repo: "alice/secrets", Path: "/"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ghAdapter.NewClient(tc.opts)
			assert.Error(t, err)
		})
	}
}
