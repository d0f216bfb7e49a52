package config

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withMockKeyring sets up a mock keyring for the duration of a test
func withMockKeyring(t *testing.T, ring keyring.Keyring) {
	t.Helper()
	t.Cleanup(SetOpenKeyring(func(cfg keyring.Config) (keyring.Keyring, error) {
		return ring, nil
	}))
}

func exerciseStore(t *testing.T, store CredentialStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, Local, AuthToken)
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	require.NoError(t, store.Set(ctx, Local, AuthToken, "tok-local"))
	require.NoError(t, store.Set(ctx, "STAGING", AuthToken, "tok-staging"))
	require.NoError(t, store.Set(ctx, Local, APIKey, "key-local"))

	got, err := store.Get(ctx, Local, AuthToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-local", got)

	got, err = store.Get(ctx, Staging, AuthToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-staging", got)

	got, err = store.Get(ctx, Local, APIKey)
	require.NoError(t, err)
	assert.Equal(t, "key-local", got)

	require.NoError(t, store.Delete(ctx, Local, AuthToken))
	_, err = store.Get(ctx, Local, AuthToken)
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	require.NoError(t, store.Delete(ctx, Production, AuthToken), "deleting a missing credential")
}

func TestKeyringStore(t *testing.T) {
	withMockKeyring(t, keyring.NewArrayKeyring(nil))
	exerciseStore(t, &KeyringStore{})
}

func TestKeyringStore_OpenError(t *testing.T) {
	t.Cleanup(SetOpenKeyring(func(cfg keyring.Config) (keyring.Keyring, error) {
		return nil, errors.New("no keychain")
	}))

	store := &KeyringStore{}
	_, err := store.Get(context.Background(), Local, AuthToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open keyring")
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	exerciseStore(t, NewRedisStore(client, 0))
}

func TestRedisStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, time.Hour)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, Local, AuthToken, "tok"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Get(ctx, Local, AuthToken)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestNewCredentialStore(t *testing.T) {
	t.Setenv(EnvRedisURL, "")
	store, err := NewCredentialStore()
	require.NoError(t, err)
	assert.IsType(t, &KeyringStore{}, store)

	mr := miniredis.RunT(t)
	t.Setenv(EnvRedisURL, "redis://"+mr.Addr()+"/0")
	store, err = NewCredentialStore()
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, store)
	exerciseStore(t, store)

	t.Setenv(EnvRedisURL, "::not a url")
	_, err = NewCredentialStore()
	assert.Error(t, err)
}

func TestParseCredentialKind(t *testing.T) {
	kind, err := ParseCredentialKind("token")
	require.NoError(t, err)
	assert.Equal(t, AuthToken, kind)

	kind, err = ParseCredentialKind("API_KEY")
	require.NoError(t, err)
	assert.Equal(t, APIKey, kind)

	_, err = ParseCredentialKind("password")
	assert.Error(t, err)
}

func TestKeyringConfig_FileBackendOverride(t *testing.T) {
	t.Setenv(envKeyringBackend, "file")
	base := t.TempDir()
	t.Setenv(envCredentialsDir, base)

	cfg := keyringConfig()
	if len(cfg.AllowedBackends) != 1 || cfg.AllowedBackends[0] != keyring.FileBackend {
		t.Fatalf("AllowedBackends = %v, want [%s]", cfg.AllowedBackends, keyring.FileBackend)
	}
	if cfg.FileDir != filepath.Join(base, "keyring") {
		t.Fatalf("FileDir = %q, want %q", cfg.FileDir, filepath.Join(base, "keyring"))
	}
	if cfg.FilePasswordFunc == nil {
		t.Fatal("FilePasswordFunc is nil")
	}
}

func TestKeyringConfig_SystemBackendOverride(t *testing.T) {
	t.Setenv(envKeyringBackend, "system")

	cfg := keyringConfig()
	if cfg.ServiceName != serviceName {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, serviceName)
	}
	if cfg.FileDir != "" || cfg.FilePasswordFunc != nil || len(cfg.AllowedBackends) != 0 {
		t.Fatalf("system backend should not configure file storage: %+v", cfg)
	}
}

func TestShouldForceFileBackend(t *testing.T) {
	tests := []struct {
		name     string
		goos     string
		backend  string
		dbusAddr string
		want     bool
	}{
		{"explicit file backend", "darwin", keyringBackendFile, "ignored", true},
		{"auto on headless linux", "linux", keyringBackendAuto, "", true},
		{"auto on linux desktop", "linux", keyringBackendAuto, "unix:path=/run/user/1000/bus", false},
		{"system backend", "linux", keyringBackendSystem, "", false},
		{"auto on windows", "windows", keyringBackendAuto, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldForceFileBackend(tt.goos, tt.backend, tt.dbusAddr); got != tt.want {
				t.Fatalf("shouldForceFileBackend(%q, %q, %q) = %v, want %v", tt.goos, tt.backend, tt.dbusAddr, got, tt.want)
			}
		})
	}
}

func TestKeyringFilePassword(t *testing.T) {
	t.Setenv(envKeyringPassword, "hunter2")
	got, err := keyringFilePassword("prompt")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	t.Setenv(envKeyringPassword, "")
	original := stdinHasTTY
	stdinHasTTY = func() bool { return false }
	t.Cleanup(func() { stdinHasTTY = original })

	_, err = keyringFilePassword("prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), envKeyringPassword)
}
