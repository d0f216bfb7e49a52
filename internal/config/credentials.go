package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"github.com/redis/go-redis/v9"
)

const (
	serviceName = "bubbles"

	envKeyringBackend  = "BUBBLES_KEYRING_BACKEND"
	envKeyringPassword = "BUBBLES_KEYRING_PASSWORD"
	envCredentialsDir  = "BUBBLES_CREDENTIALS_DIR"
	EnvRedisURL        = "BUBBLES_REDIS_URL"

	keyringBackendAuto   = "auto"
	keyringBackendFile   = "file"
	keyringBackendSystem = "system"

	redisKeyPrefix = "bubbles:credentials:"
)

// CredentialKind names a stored secret.
type CredentialKind string

const (
	AuthToken CredentialKind = "auth_token"
	APIKey    CredentialKind = "api_key"
)

// ParseCredentialKind accepts "auth_token", "token", "api_key" or "key".
func ParseCredentialKind(s string) (CredentialKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auth_token", "token", "auth-token":
		return AuthToken, nil
	case "api_key", "key", "api-key":
		return APIKey, nil
	default:
		return "", fmt.Errorf("unknown credential kind %q (use auth_token or api_key)", s)
	}
}

// ErrCredentialNotFound is returned when nothing is stored for a key.
var ErrCredentialNotFound = errors.New("credential not found")

// CredentialStore persists auth tokens and API keys per environment.
type CredentialStore interface {
	Get(ctx context.Context, env string, kind CredentialKind) (string, error)
	Set(ctx context.Context, env string, kind CredentialKind, value string) error
	Delete(ctx context.Context, env string, kind CredentialKind) error
}

func credentialKey(env string, kind CredentialKind) string {
	return strings.ToLower(strings.TrimSpace(env)) + ":" + string(kind)
}

// NewCredentialStore selects the Redis store when BUBBLES_REDIS_URL is set and
// the OS keyring otherwise.
func NewCredentialStore() (CredentialStore, error) {
	if raw := strings.TrimSpace(os.Getenv(EnvRedisURL)); raw != "" {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvRedisURL, err)
		}
		return NewRedisStore(redis.NewClient(opts), 0), nil
	}
	return &KeyringStore{}, nil
}

// openKeyring can be replaced in tests to use a mock keyring.
var openKeyring = func(cfg keyring.Config) (keyring.Keyring, error) {
	return keyring.Open(cfg)
}

var stdinHasTTY = func() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// SetOpenKeyring allows replacing the keyring opener for testing.
// Returns a cleanup function that restores the original.
func SetOpenKeyring(fn func(keyring.Config) (keyring.Keyring, error)) func() {
	original := openKeyring
	openKeyring = fn
	return func() { openKeyring = original }
}

// KeyringStore keeps credentials in the OS keychain, falling back to an
// encrypted file on headless Linux.
type KeyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func (s *KeyringStore) open() (keyring.Keyring, error) {
	if s.ring != nil {
		return s.ring, nil
	}
	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	s.ring = ring
	return ring, nil
}

// Get implements CredentialStore.
func (s *KeyringStore) Get(_ context.Context, env string, kind CredentialKind) (string, error) {
	ring, err := s.open()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(credentialKey(env, kind))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrCredentialNotFound
		}
		return "", fmt.Errorf("failed to get credential: %w", err)
	}
	return string(item.Data), nil
}

// Set implements CredentialStore.
func (s *KeyringStore) Set(_ context.Context, env string, kind CredentialKind, value string) error {
	ring, err := s.open()
	if err != nil {
		return err
	}
	if err := ring.Set(keyring.Item{
		Key:         credentialKey(env, kind),
		Data:        []byte(value),
		Label:       fmt.Sprintf("%s %s (%s)", serviceName, kind, env),
		Description: "bubbles API credential",
	}); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Delete implements CredentialStore. Deleting a missing credential is not an error.
func (s *KeyringStore) Delete(_ context.Context, env string, kind CredentialKind) error {
	ring, err := s.open()
	if err != nil {
		return err
	}
	if err := ring.Remove(credentialKey(env, kind)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	return nil
}

func keyringConfig() keyring.Config {
	cfg := keyring.Config{
		ServiceName: serviceName,
	}

	backend := keyringBackendMode()
	if backend == keyringBackendSystem {
		return cfg
	}

	cfg.FileDir = keyringFileDir()
	cfg.FilePasswordFunc = keyringFilePassword

	// Headless Linux has no secret service; use the encrypted file backend.
	if shouldForceFileBackend(runtime.GOOS, backend, os.Getenv("DBUS_SESSION_BUS_ADDRESS")) {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	}
	return cfg
}

func keyringBackendMode() string {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envKeyringBackend))) {
	case keyringBackendFile:
		return keyringBackendFile
	case keyringBackendSystem, "os", "native":
		return keyringBackendSystem
	default:
		return keyringBackendAuto
	}
}

func shouldForceFileBackend(goos, backend, dbusAddr string) bool {
	if backend == keyringBackendFile {
		return true
	}
	if backend != keyringBackendAuto {
		return false
	}
	return goos == "linux" && strings.TrimSpace(dbusAddr) == ""
}

func keyringFileDir() string {
	base := strings.TrimSpace(os.Getenv(envCredentialsDir))
	if base == "" {
		if dir, err := userConfigDir(); err == nil && strings.TrimSpace(dir) != "" {
			base = filepath.Join(dir, serviceName)
		}
	}
	if base == "" {
		base = filepath.Join(os.TempDir(), serviceName)
	}
	return filepath.Join(base, "keyring")
}

func keyringFilePassword(prompt string) (string, error) {
	if password, ok := os.LookupEnv(envKeyringPassword); ok && strings.TrimSpace(password) != "" {
		return password, nil
	}
	if !stdinHasTTY() {
		return "", fmt.Errorf("set %s when using file keyring in non-interactive environments", envKeyringPassword)
	}
	return keyring.TerminalPrompt(prompt)
}

// RedisStore keeps credentials in Redis so CI runners can share them.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore creates a store on client. A zero ttl keeps keys forever.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Get implements CredentialStore.
func (s *RedisStore) Get(ctx context.Context, env string, kind CredentialKind) (string, error) {
	val, err := s.client.Get(ctx, redisKeyPrefix+credentialKey(env, kind)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCredentialNotFound
		}
		return "", fmt.Errorf("failed to get credential: %w", err)
	}
	return val, nil
}

// Set implements CredentialStore.
func (s *RedisStore) Set(ctx context.Context, env string, kind CredentialKind, value string) error {
	if err := s.client.Set(ctx, redisKeyPrefix+credentialKey(env, kind), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Delete implements CredentialStore.
func (s *RedisStore) Delete(ctx context.Context, env string, kind CredentialKind) error {
	if err := s.client.Del(ctx, redisKeyPrefix+credentialKey(env, kind)).Err(); err != nil {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	return nil
}
