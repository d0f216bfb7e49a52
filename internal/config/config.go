// Package config holds the endpoint and environment settings consumed by the
// resource bindings, and the credential stores used by the CLI.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sinkingmoon/bubbles/internal/endpoint"
)

// Environment names.
const (
	Local      = "local"
	Staging    = "staging"
	Production = "production"
)

// EnvironmentNames lists the supported environments in display order.
var EnvironmentNames = []string{Local, Staging, Production}

// ErrFrozen is returned by Configure once the store has been frozen.
var ErrFrozen = errors.New("configuration is frozen")

// EnvironmentSettings locates one deployment target.
type EnvironmentSettings struct {
	Scheme string `yaml:"scheme" json:"scheme"`
	Host   string `yaml:"host" json:"host"`
	Port   string `yaml:"port,omitempty" json:"port,omitempty"`
}

// BaseURL composes scheme://host[:port]. Scheme and host are required.
func (e EnvironmentSettings) BaseURL() (string, error) {
	scheme := strings.TrimSuffix(strings.TrimSpace(e.Scheme), "://")
	host := strings.Trim(strings.TrimSpace(e.Host), "/")
	if scheme == "" {
		return "", fmt.Errorf("scheme is required")
	}
	if host == "" {
		return "", fmt.Errorf("host is required")
	}
	if port := strings.TrimSpace(e.Port); port != "" {
		return fmt.Sprintf("%s://%s:%s", scheme, host, port), nil
	}
	return fmt.Sprintf("%s://%s", scheme, host), nil
}

// Settings is the full configuration surface. Nil environments are not
// configured.
type Settings struct {
	Endpoints             []endpoint.Definition `yaml:"endpoints" json:"endpoints"`
	LocalEnvironment      *EnvironmentSettings  `yaml:"local_environment,omitempty" json:"local_environment,omitempty"`
	StagingEnvironment    *EnvironmentSettings  `yaml:"staging_environment,omitempty" json:"staging_environment,omitempty"`
	ProductionEnvironment *EnvironmentSettings  `yaml:"production_environment,omitempty" json:"production_environment,omitempty"`
	APIKey                string                `yaml:"api_key,omitempty" json:"api_key,omitempty"`
}

// Environment returns the settings for a named environment, or nil.
func (s *Settings) Environment(name string) *EnvironmentSettings {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Local:
		return s.LocalEnvironment
	case Staging:
		return s.StagingEnvironment
	case Production:
		return s.ProductionEnvironment
	default:
		return nil
	}
}

// SetEnvironment replaces the settings for a named environment.
func (s *Settings) SetEnvironment(name string, env *EnvironmentSettings) error {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Local:
		s.LocalEnvironment = env
	case Staging:
		s.StagingEnvironment = env
	case Production:
		s.ProductionEnvironment = env
	default:
		return fmt.Errorf("unknown environment %q (use %s)", name, strings.Join(EnvironmentNames, ", "))
	}
	return nil
}

// Clone returns a deep copy so later changes to s are not observed.
func (s Settings) Clone() Settings {
	out := Settings{APIKey: s.APIKey}
	if s.Endpoints != nil {
		out.Endpoints = make([]endpoint.Definition, len(s.Endpoints))
		for i, d := range s.Endpoints {
			out.Endpoints[i] = d.Clone()
		}
	}
	out.LocalEnvironment = cloneEnv(s.LocalEnvironment)
	out.StagingEnvironment = cloneEnv(s.StagingEnvironment)
	out.ProductionEnvironment = cloneEnv(s.ProductionEnvironment)
	return out
}

func cloneEnv(e *EnvironmentSettings) *EnvironmentSettings {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// Store holds Settings that are written during setup and read afterwards.
// It is meant to have a single writer: Configure must not race with
// bindings being built from Snapshot.
type Store struct {
	mu       sync.RWMutex
	settings Settings
	frozen   bool
}

// NewStore returns an empty, unfrozen store.
func NewStore() *Store {
	return &Store{}
}

// Configure applies fn to a copy of the current settings and stores the
// result. Fields fn assigns replace prior values wholesale.
func (s *Store) Configure(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return ErrFrozen
	}
	next := s.settings.Clone()
	fn(&next)
	s.settings = next
	return nil
}

// Freeze makes the store read-only.
func (s *Store) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
}

// Frozen reports whether Freeze was called.
func (s *Store) Frozen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frozen
}

// Snapshot returns a deep copy of the current settings.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}
