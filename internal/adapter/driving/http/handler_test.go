package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boltadapter "github.com/ericfisherdev/lockbox/internal/adapter/driven/bolt"
	httphandler "github.com/ericfisherdev/lockbox/internal/adapter/driving/http"
	"github.com/ericfisherdev/lockbox/internal/application"
	"github.com/ericfisherdev/lockbox/internal/crypto"
	"github.com/ericfisherdev/lockbox/internal/domain/model"
)

const testToken = "s3cret-api-token"

// --- Fakes ---

type fakeRemote struct {
	pushed []byte
	err    error
}

func (f *fakeRemote) Push(_ context.Context, localPath string) error {
	if f.err != nil {
		return f.err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	f.pushed = data
	return nil
}

func (f *fakeRemote) Pull(context.Context, string) error { return model.ErrRemoteNotFound }

// --- Test helpers ---

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func cheapKeyParams() (model.KeyParams, error) {
	p, err := crypto.NewKeyParams()
	if err != nil {
		return model.KeyParams{}, err
	}
	p.Time, p.MemoryKiB, p.Threads = 1, 8*1024, 1
	return p, nil
}

// newVault opens a bolt-backed vault in a temp dir and unlocks it.
func newVault(t *testing.T) *application.Vault {
	t.Helper()

	store, err := boltadapter.Open(context.Background(), filepath.Join(t.TempDir(), "lockbox.db"), time.Second)
	require.NoError(t, err)

	v := application.NewVault(store,
		application.WithKeyParams(cheapKeyParams),
		application.WithLogger(discardLogger),
	)
	t.Cleanup(func() { _ = v.Close() })

	require.NoError(t, v.Unlock(context.Background(), "correct-horse"))
	return v
}

func setupMux(t *testing.T, v *application.Vault, remote *fakeRemote) http.Handler {
	t.Helper()

	var syncSvc *application.SyncService
	if remote != nil {
		syncSvc = application.NewSyncService(remote, discardLogger)
	}
	h := httphandler.NewHandler(v, syncSvc, discardLogger)
	return httphandler.NewServeMux(h, testToken, discardLogger)
}

func do(t *testing.T, mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	err := json.NewDecoder(rec.Body).Decode(v)
	require.NoError(t, err)
}

// --- Tests ---

func TestPutThenGetPassword(t *testing.T) {
	mux := setupMux(t, newVault(t), nil)

	rec := do(t, mux, http.MethodPut, "/api/v1/services/email", `{"password":"Tr0ub4dor&3"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/v1/services/email", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var resp httphandler.PasswordResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "email", resp.Service)
	assert.Equal(t, "Tr0ub4dor&3", resp.Password)
}

func TestGetPassword_NotFound(t *testing.T) {
	mux := setupMux(t, newVault(t), nil)

	rec := do(t, mux, http.MethodGet, "/api/v1/services/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]string
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "service not found", resp["error"])
}

func TestGetPassword_UndecryptableRecordIs422(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lockbox.db")

	// Store under one passphrase, then reopen with another.
	store, err := boltadapter.Open(context.Background(), path, time.Second)
	require.NoError(t, err)
	first := application.NewVault(store, application.WithKeyParams(cheapKeyParams), application.WithLogger(discardLogger))
	require.NoError(t, first.Unlock(context.Background(), "correct-horse"))
	require.NoError(t, first.StorePassword(context.Background(), "email", "hunter2"))
	require.NoError(t, first.Close())

	store, err = boltadapter.Open(context.Background(), path, time.Second)
	require.NoError(t, err)
	second := application.NewVault(store, application.WithKeyParams(cheapKeyParams), application.WithLogger(discardLogger))
	t.Cleanup(func() { _ = second.Close() })
	require.NoError(t, second.Unlock(context.Background(), "wrong-horse"))

	rec := do(t, setupMux(t, second, nil), http.MethodGet, "/api/v1/services/email", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestPutPassword_InvalidBody(t *testing.T) {
	mux := setupMux(t, newVault(t), nil)

	rec := do(t, mux, http.MethodPut, "/api/v1/services/email", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutPassword_BlankServiceName(t *testing.T) {
	mux := setupMux(t, newVault(t), nil)

	rec := do(t, mux, http.MethodPut, "/api/v1/services/%20", `{"password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListServices(t *testing.T) {
	v := newVault(t)
	mux := setupMux(t, v, nil)

	rec := do(t, mux, http.MethodGet, "/api/v1/services", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var empty map[string][]string
	decodeJSON(t, rec, &empty)
	require.Contains(t, empty, "services")
	assert.NotNil(t, empty["services"], "empty list should encode as [] not null")
	assert.Empty(t, empty["services"])

	for _, svc := range []string{"web", "bank", "email"} {
		require.NoError(t, v.StorePassword(context.Background(), svc, "pw-"+svc))
	}

	rec = do(t, mux, http.MethodGet, "/api/v1/services", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.ServiceListResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, []string{"bank", "email", "web"}, resp.Services)
}

func TestDeleteService(t *testing.T) {
	v := newVault(t)
	mux := setupMux(t, v, nil)
	require.NoError(t, v.StorePassword(context.Background(), "email", "x"))

	rec := do(t, mux, http.MethodDelete, "/api/v1/services/email", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Deleting again is not an error.
	rec = do(t, mux, http.MethodDelete, "/api/v1/services/email", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := v.Retrieve(context.Background(), "email")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestGeneratePassword(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLen    int
	}{
		{name: "default length", query: "", wantStatus: http.StatusOK, wantLen: crypto.DefaultPasswordLength},
		{name: "explicit length", query: "?length=32", wantStatus: http.StatusOK, wantLen: 32},
		{name: "zero length", query: "?length=0", wantStatus: http.StatusOK, wantLen: 0},
		{name: "negative length", query: "?length=-1", wantStatus: http.StatusBadRequest},
		{name: "not a number", query: "?length=abc", wantStatus: http.StatusBadRequest},
		{name: "too long", query: "?length=100000", wantStatus: http.StatusBadRequest},
	}

	mux := setupMux(t, newVault(t), nil)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodPost, "/api/v1/passwords/generate"+tc.query, "")
			require.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus != http.StatusOK {
				return
			}

			var resp httphandler.GeneratedPasswordResponse
			decodeJSON(t, rec, &resp)
			assert.Equal(t, tc.wantLen, resp.Length)
			assert.Len(t, resp.Password, tc.wantLen)
			for _, ch := range resp.Password {
				assert.Contains(t, crypto.PasswordCharset, string(ch))
			}
		})
	}
}

func TestPush(t *testing.T) {
	v := newVault(t)
	require.NoError(t, v.StorePassword(context.Background(), "email", "x"))

	remote := &fakeRemote{}
	rec := do(t, setupMux(t, v, remote), http.MethodPost, "/api/v1/sync/push", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, remote.pushed)
}

func TestPush_NotConfigured(t *testing.T) {
	rec := do(t, setupMux(t, newVault(t), nil), http.MethodPost, "/api/v1/sync/push", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestPush_RemoteFailureIs500(t *testing.T) {
	remote := &fakeRemote{err: errors.New("network down")}
	rec := do(t, setupMux(t, newVault(t), remote), http.MethodPost, "/api/v1/sync/push", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "network down")
}

func TestClosedVaultIs503(t *testing.T) {
	v := newVault(t)
	mux := setupMux(t, v, nil)
	require.NoError(t, v.Close())

	rec := do(t, mux, http.MethodGet, "/api/v1/services", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBearerAuth(t *testing.T) {
	mux := setupMux(t, newVault(t), nil)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong token", header: "Bearer nope"},
		{name: "wrong scheme", header: "Basic " + testToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestBearerAuth_EmptyConfiguredTokenRejectsAll(t *testing.T) {
	h := httphandler.NewHandler(newVault(t), nil, discardLogger)
	mux := httphandler.NewServeMux(h, "", discardLogger)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealth(t *testing.T) {
	mux := setupMux(t, newVault(t), nil)

	// No Authorization header: health is public.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.HealthResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ready", resp.Vault)
	assert.NotEmpty(t, resp.Time)
}

func TestUnknownRoute(t *testing.T) {
	mux := setupMux(t, newVault(t), nil)

	rec := do(t, mux, http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
