package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sinkingmoon/bubbles/internal/api"
	"github.com/sinkingmoon/bubbles/internal/config"
	"github.com/sinkingmoon/bubbles/internal/iocontext"
	"github.com/sinkingmoon/bubbles/internal/outfmt"
	"github.com/sinkingmoon/bubbles/internal/resources"
)

// errAlreadyHandled marks errors that RunE has already printed, so Execute
// does not print them a second time.
var errAlreadyHandled = errors.New("error already handled")

type handledError struct {
	err      error
	exitCode int
}

func (e *handledError) Error() string {
	return e.err.Error()
}

func (e *handledError) Unwrap() []error {
	return []error{errAlreadyHandled, e.err}
}

func (e *handledError) ExitCode() int {
	return e.exitCode
}

// RunE wraps a command body so failures are printed with suggestions and
// carry their exit code.
func RunE(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err == nil {
			return nil
		}
		if outfmt.IsJSON(cmd.Context()) {
			_ = printJSONErr(cmd, err)
		} else {
			_, _ = fmt.Fprint(cmd.ErrOrStderr(), HandleError(err))
		}
		return &handledError{err: err, exitCode: ExitCode(err)}
	}
}

func printJSONErr(cmd *cobra.Command, err error) error {
	payload := map[string]any{
		"error": map[string]any{
			"kind":    errorKind(err),
			"message": err.Error(),
		},
	}
	return outfmt.WriteJSON(cmd.ErrOrStderr(), payload, true)
}

// flagAlias registers a hidden alternative name for an existing flag.
func flagAlias(fs *pflag.FlagSet, name, alias string) {
	f := fs.Lookup(name)
	if f == nil {
		panic(fmt.Sprintf("flagAlias: flag %q not found", name))
	}
	a := *f // shares the Value
	a.Name = alias
	a.Shorthand = ""
	a.Usage = ""
	a.Hidden = true
	a.Annotations = map[string][]string{"alias-of": {name}}
	fs.AddFlag(&a)
}

// session is what a command needs to talk to one environment.
type session struct {
	resources *resources.Resources
	binding   *resources.Binding
	env       string
}

// newTransport builds the HTTP transport for commands. Tests replace it.
var newTransport = func(timeout time.Duration) api.Transport {
	t := api.NewHTTPTransport(timeout)
	t.UserAgent = "bubbles/" + version
	return t
}

// newCredentialStore opens the credential backend. Tests replace it.
var newCredentialStore = config.NewCredentialStore

// loadResources reads the config file, freezes it and binds every
// configured environment.
func loadResources() (*resources.Resources, error) {
	store := config.NewStore()
	if _, err := config.Load(store, flags.Config); err != nil {
		return nil, &api.ConfigurationError{Err: err}
	}
	store.Freeze()
	return resources.New(store.Snapshot(), resources.WithTransport(newTransport(flags.Timeout)))
}

// openSession loads resources and selects the environment from --env,
// BUBBLES_ENV or the local default.
func openSession() (*session, error) {
	res, err := loadResources()
	if err != nil {
		return nil, err
	}
	env := strings.TrimSpace(flags.Env)
	if env == "" {
		env = config.DefaultEnvironment()
	}
	b, err := res.Environment(env)
	if err != nil {
		return nil, err
	}
	return &session{resources: res, binding: b, env: b.Name()}, nil
}

func formatter(ctx context.Context) *outfmt.Formatter {
	streams := iocontext.GetIO(ctx)
	return outfmt.NewFormatter(ctx, streams.Out, streams.ErrOut)
}
