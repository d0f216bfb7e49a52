package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath = "BUBBLES_CONFIG"
	EnvAPIKey     = "BUBBLES_API_KEY"
	EnvDefaultEnv = "BUBBLES_ENV"

	defaultConfigName = "bubbles.yaml"
)

// ErrNoConfigFile is returned when no config file could be located.
var ErrNoConfigFile = errors.New("no config file found - pass --config or set " + EnvConfigPath)

// Parse decodes a YAML settings document. Unknown keys are rejected.
func Parse(data []byte) (Settings, error) {
	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return s, nil
}

// LoadFile reads and parses the settings file at path.
func LoadFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Load populates store from the file at path (or the located default file)
// and applies environment overrides.
func Load(store *Store, path string) (string, error) {
	resolved, err := locateConfig(path)
	if err != nil {
		return "", err
	}
	loaded, err := LoadFile(resolved)
	if err != nil {
		return "", err
	}
	ApplyEnv(&loaded)
	if err := store.Configure(func(s *Settings) { *s = loaded }); err != nil {
		return "", err
	}
	return resolved, nil
}

// ApplyEnv overrides settings from the process environment.
func ApplyEnv(s *Settings) {
	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		s.APIKey = key
	}
}

// LoadDotEnv loads variables from a .env file in dir, when present. Variables
// already set in the environment are not overwritten.
func LoadDotEnv(dir string) {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// DefaultEnvironment returns the environment named by BUBBLES_ENV, or local.
func DefaultEnvironment() string {
	if env := strings.TrimSpace(os.Getenv(EnvDefaultEnv)); env != "" {
		return strings.ToLower(env)
	}
	return Local
}

var userConfigDir = os.UserConfigDir

func locateConfig(path string) (string, error) {
	if path = strings.TrimSpace(path); path != "" {
		return path, nil
	}
	if env := strings.TrimSpace(os.Getenv(EnvConfigPath)); env != "" {
		return env, nil
	}
	candidates := []string{defaultConfigName}
	if dir, err := userConfigDir(); err == nil && strings.TrimSpace(dir) != "" {
		candidates = append(candidates, filepath.Join(dir, serviceName, defaultConfigName))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", ErrNoConfigFile
}
