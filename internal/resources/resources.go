// Package resources builds environment bindings: for every configured
// environment, a table of operations compiled from the endpoint definitions
// and dispatched by name.
package resources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sinkingmoon/bubbles/internal/api"
	"github.com/sinkingmoon/bubbles/internal/config"
	"github.com/sinkingmoon/bubbles/internal/debug"
	"github.com/sinkingmoon/bubbles/internal/endpoint"
	"github.com/sinkingmoon/bubbles/internal/resolve"
)

// Call is a bound operation. Arguments follow the operation's parameter
// contract: auth token, API key, credentials, path and query values, body.
type Call func(ctx context.Context, args ...any) (*api.Result, error)

type entry struct {
	op   *endpoint.Operation
	call Call
}

// Binding is the operation table for one environment.
type Binding struct {
	name      string
	baseURL   string
	transport api.Transport

	ops   map[string]*entry
	order []string
}

// Resources holds one Binding per configured environment.
type Resources struct {
	Local      *Binding
	Staging    *Binding
	Production *Binding

	settings config.Settings
}

type options struct {
	transport api.Transport
}

// Option customizes New.
type Option func(*options)

// WithTransport sets the transport used by every binding.
func WithTransport(t api.Transport) Option {
	return func(o *options) { o.transport = t }
}

// New compiles settings into bindings. Settings are copied, so later store
// changes require building a new Resources.
func New(settings config.Settings, opts ...Option) (*Resources, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.transport == nil {
		o.transport = api.NewHTTPTransport(api.DefaultTimeout)
	}

	settings = settings.Clone()
	if len(settings.Endpoints) == 0 {
		return nil, api.Configf("no endpoints configured")
	}

	r := &Resources{settings: settings}
	for _, name := range config.EnvironmentNames {
		env := settings.Environment(name)
		if env == nil {
			continue
		}
		b, err := newBinding(name, env, settings, o.transport)
		if err != nil {
			return nil, err
		}
		switch name {
		case config.Local:
			r.Local = b
		case config.Staging:
			r.Staging = b
		case config.Production:
			r.Production = b
		}
	}
	return r, nil
}

// Environments returns the configured bindings in local, staging,
// production order.
func (r *Resources) Environments() []*Binding {
	var out []*Binding
	for _, b := range []*Binding{r.Local, r.Staging, r.Production} {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// Environment returns the binding for name.
func (r *Resources) Environment(name string) (*Binding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, b := range r.Environments() {
		if b.name == key {
			return b, nil
		}
	}
	for _, known := range config.EnvironmentNames {
		if known == key {
			return nil, api.Configf("%s environment is not configured", key)
		}
	}
	msg := fmt.Sprintf("unknown environment %q", name)
	if s := resolve.Suggest(key, config.EnvironmentNames, 1); len(s) > 0 {
		msg += fmt.Sprintf(" (did you mean %q?)", s[0])
	}
	return nil, api.Configf("%s", msg)
}

// Settings returns a copy of the settings the bindings were built from.
func (r *Resources) Settings() config.Settings {
	return r.settings.Clone()
}

func newBinding(name string, env *config.EnvironmentSettings, settings config.Settings, t api.Transport) (*Binding, error) {
	baseURL, err := env.BaseURL()
	if err != nil {
		return nil, api.Configf("%s environment: %v", name, err)
	}
	b := &Binding{
		name:      name,
		baseURL:   baseURL,
		transport: t,
		ops:       make(map[string]*entry, len(settings.Endpoints)),
	}
	for _, def := range settings.Endpoints {
		op, err := endpoint.Compile(def, endpoint.Options{APIKey: settings.APIKey})
		if err != nil {
			return nil, err
		}
		if _, dup := b.ops[op.Name]; dup {
			return nil, api.Configf("duplicate operation name %q (set an explicit name on one of the endpoints)", op.Name)
		}
		b.ops[op.Name] = &entry{op: op, call: b.bind(op)}
		b.order = append(b.order, op.Name)
	}
	return b, nil
}

func (b *Binding) bind(op *endpoint.Operation) Call {
	return func(ctx context.Context, args ...any) (*api.Result, error) {
		req, err := op.Bind(b.baseURL, args)
		if err != nil {
			return nil, err
		}
		if debug.IsEnabled(ctx) {
			slog.Debug("invoking operation", "environment", b.name, "operation", op.Name, "method", req.Method, "url", req.URL)
		}
		return api.Execute(ctx, b.transport, req)
	}
}

// Name is the environment name, e.g. "local".
func (b *Binding) Name() string { return b.name }

// BaseURL is scheme://host[:port] for the environment.
func (b *Binding) BaseURL() string { return b.baseURL }

// Operations returns the compiled operations in declaration order.
func (b *Binding) Operations() []*endpoint.Operation {
	out := make([]*endpoint.Operation, len(b.order))
	for i, name := range b.order {
		out[i] = b.ops[name].op
	}
	return out
}

// Names returns the operation names in declaration order.
func (b *Binding) Names() []string {
	return append([]string(nil), b.order...)
}

// Operation looks up an operation by name. Unknown names are caller errors
// and carry suggestions when a close name exists.
func (b *Binding) Operation(name string) (*endpoint.Operation, error) {
	e, err := b.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.op, nil
}

// Func returns the bound call for name.
func (b *Binding) Func(name string) (Call, error) {
	e, err := b.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.call, nil
}

// Invoke dispatches to the operation called name.
func (b *Binding) Invoke(ctx context.Context, name string, args ...any) (*api.Result, error) {
	e, err := b.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.call(ctx, args...)
}

// Prepare binds args without sending the request.
func (b *Binding) Prepare(name string, args ...any) (*api.Request, error) {
	e, err := b.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.op.Bind(b.baseURL, args)
}

func (b *Binding) lookup(name string) (*entry, error) {
	if e, ok := b.ops[name]; ok {
		return e, nil
	}
	reason := fmt.Sprintf("unknown operation %q in %s environment", name, b.name)
	if s := resolve.Suggest(name, b.order, 3); len(s) > 0 {
		reason += fmt.Sprintf(" (did you mean %s?)", strings.Join(s, ", "))
	}
	return nil, &api.CallerError{Reason: reason}
}
