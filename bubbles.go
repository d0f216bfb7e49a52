// Package bubbles turns a declarative list of REST endpoint definitions into
// callable operations bound to local, staging and production environments.
//
//	store := bubbles.NewStore()
//	_ = store.Configure(func(s *bubbles.Settings) {
//		s.Endpoints = []bubbles.EndpointDefinition{{Method: "get", Location: "version", ExpectJSON: true}}
//		s.LocalEnvironment = &bubbles.EnvironmentSettings{Scheme: "http", Host: "localhost", Port: "1234"}
//	})
//	res, err := bubbles.New(store.Snapshot())
//	...
//	result, err := res.Local.Invoke(ctx, "version")
package bubbles

import (
	"github.com/sinkingmoon/bubbles/internal/api"
	"github.com/sinkingmoon/bubbles/internal/config"
	"github.com/sinkingmoon/bubbles/internal/endpoint"
	"github.com/sinkingmoon/bubbles/internal/resources"
	"github.com/sinkingmoon/bubbles/internal/response"
)

type (
	Settings            = config.Settings
	EnvironmentSettings = config.EnvironmentSettings
	Store               = config.Store
	EndpointDefinition  = endpoint.Definition
	Resources           = resources.Resources
	Binding             = resources.Binding
	Call                = resources.Call
	Option              = resources.Option
	Result              = api.Result
	Value               = response.Value
	Transport           = api.Transport
	TransportFunc       = api.TransportFunc

	ConfigurationError = api.ConfigurationError
	CallerError        = api.CallerError
	ArityError         = api.ArityError
	TransportError     = api.TransportError
	DecodeError        = api.DecodeError
	APIError           = api.APIError
)

// ErrFrozen is returned by Store.Configure after Store.Freeze.
var ErrFrozen = config.ErrFrozen

// NewStore returns an empty, unfrozen configuration store.
func NewStore() *Store { return config.NewStore() }

// New binds every configured environment of settings.
func New(settings Settings, opts ...Option) (*Resources, error) {
	return resources.New(settings, opts...)
}

// WithTransport overrides the HTTP transport used by every binding.
func WithTransport(t Transport) Option { return resources.WithTransport(t) }

// LoadConfig reads a YAML config file (or the default search path when path
// is empty) into store and returns the file used.
func LoadConfig(store *Store, path string) (string, error) { return config.Load(store, path) }

// CheckStatus turns a non-2xx Result into an *APIError.
func CheckStatus(r *Result) error { return api.CheckStatus(r) }
