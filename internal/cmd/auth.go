package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sinkingmoon/bubbles/internal/config"
	"github.com/sinkingmoon/bubbles/internal/debug"
	"github.com/sinkingmoon/bubbles/internal/iocontext"
)

var credentialKinds = []config.CredentialKind{config.AuthToken, config.APIKey}

// selectedEnv is the environment auth commands act on. It does not require a
// config file, so credentials can be stored before endpoints are defined.
func selectedEnv() (string, error) {
	env := strings.ToLower(strings.TrimSpace(flags.Env))
	if env == "" {
		env = config.DefaultEnvironment()
	}
	for _, known := range config.EnvironmentNames {
		if env == known {
			return env, nil
		}
	}
	return "", fmt.Errorf("invalid argument: unknown environment %q (use %s)", env, strings.Join(config.EnvironmentNames, ", "))
}

// newAuthCmd returns the auth command with subcommands
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored auth tokens and API keys",
		Long: `Store auth tokens and API keys per environment in the OS keychain, or in
Redis when ` + config.EnvRedisURL + ` is set. Stored values are used by
"bubbles call" when an operation needs them.`,
	}

	cmd.AddCommand(newAuthSetCmd())
	cmd.AddCommand(newAuthShowCmd())
	cmd.AddCommand(newAuthClearCmd())

	return cmd
}

func newAuthSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <auth_token|api_key> [value]",
		Short: "Store a credential (reads stdin when value is omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			env, err := selectedEnv()
			if err != nil {
				return err
			}
			kind, err := config.ParseCredentialKind(args[0])
			if err != nil {
				return fmt.Errorf("invalid argument: %w", err)
			}

			streams := iocontext.GetIO(cmd.Context())
			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				line, err := bufio.NewReader(streams.In).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("no %s value given on stdin", kind)
				}
				value = line
			}
			value = strings.TrimSpace(value)
			if value == "" {
				return fmt.Errorf("invalid argument: %s must not be empty", kind)
			}

			store, err := newCredentialStore()
			if err != nil {
				return err
			}
			if err := store.Set(cmd.Context(), env, kind, value); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(streams.ErrOut, "Stored %s for %s\n", kind, env)
			return nil
		}),
	}
}

type storedCredential struct {
	Environment string `json:"environment"`
	Kind        string `json:"kind"`
	Stored      bool   `json:"stored"`
	Value       string `json:"value,omitempty"`
}

func newAuthShowCmd() *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:     "show",
		Aliases: []string{"status"},
		Short:   "Show stored credentials (redacted)",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			env, err := selectedEnv()
			if err != nil {
				return err
			}
			store, err := newCredentialStore()
			if err != nil {
				return err
			}

			var rows []storedCredential
			for _, kind := range credentialKinds {
				row := storedCredential{Environment: env, Kind: string(kind)}
				value, err := store.Get(cmd.Context(), env, kind)
				switch {
				case errors.Is(err, config.ErrCredentialNotFound):
				case err != nil:
					return err
				default:
					row.Stored = true
					row.Value = debug.Redact(value)
					if reveal {
						row.Value = value
					}
				}
				rows = append(rows, row)
			}

			f := formatter(cmd.Context())
			if handled, err := f.OutputAny(rows); handled {
				return err
			}
			f.StartTable([]string{"ENV", "KIND", "VALUE"})
			for _, row := range rows {
				value := "(not set)"
				if row.Stored {
					value = row.Value
				}
				f.Row(row.Environment, row.Kind, value)
			}
			return f.EndTable()
		}),
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print stored values in full")
	return cmd
}

func newAuthClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "clear [auth_token|api_key]",
		Aliases: []string{"logout"},
		Short:   "Remove stored credentials for the environment",
		Args:    cobra.MaximumNArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			env, err := selectedEnv()
			if err != nil {
				return err
			}
			kinds := credentialKinds
			if len(args) == 1 {
				kind, err := config.ParseCredentialKind(args[0])
				if err != nil {
					return fmt.Errorf("invalid argument: %w", err)
				}
				kinds = []config.CredentialKind{kind}
			}
			store, err := newCredentialStore()
			if err != nil {
				return err
			}
			for _, kind := range kinds {
				if err := store.Delete(cmd.Context(), env, kind); err != nil {
					return err
				}
			}
			_, _ = fmt.Fprintf(iocontext.GetIO(cmd.Context()).ErrOut, "Cleared credentials for %s\n", env)
			return nil
		}),
	}
}
