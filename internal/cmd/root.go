package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sinkingmoon/bubbles/internal/api"
	"github.com/sinkingmoon/bubbles/internal/config"
	"github.com/sinkingmoon/bubbles/internal/debug"
	"github.com/sinkingmoon/bubbles/internal/iocontext"
	"github.com/sinkingmoon/bubbles/internal/outfmt"
	"github.com/sinkingmoon/bubbles/internal/resolve"
)

// rootFlags holds global CLI flags
type rootFlags struct {
	Config   string
	Env      string
	Output   string
	Query    string
	Template string
	Compact  bool
	Debug    bool
	Quiet    bool
	Timeout  time.Duration
}

// flags holds the global command flags. It is reset at the start of every
// Execute call; tests rely on that for clean state.
var flags = defaultFlags()

func defaultFlags() rootFlags {
	return rootFlags{
		Output:  defaultOutput(),
		Timeout: api.DefaultTimeout,
	}
}

func defaultOutput() string {
	if value := strings.TrimSpace(os.Getenv("BUBBLES_OUTPUT")); value != "" {
		return value
	}
	return "text"
}

// Execute runs the root command
func Execute(ctx context.Context, args []string) error {
	// .env is read before the flag reset so BUBBLES_OUTPUT and friends apply.
	config.LoadDotEnv(".")

	flags = defaultFlags()

	root := &cobra.Command{
		Use:                "bubbles",
		Short:              "Call REST APIs described by endpoint definitions",
		Long:               rootLong,
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableSuggestions: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			mode, err := outfmt.Parse(strings.TrimSpace(flags.Output))
			if err != nil {
				return err
			}
			if flags.Template != "" && mode != outfmt.Text {
				return fmt.Errorf("--template cannot be combined with --output %s", mode)
			}
			ctx = outfmt.WithMode(ctx, mode)
			ctx = outfmt.WithCompact(ctx, flags.Compact)
			if flags.Query != "" {
				ctx = outfmt.WithQuery(ctx, flags.Query)
			}
			if flags.Template != "" {
				tmpl, err := loadTemplate(flags.Template)
				if err != nil {
					return err
				}
				ctx = outfmt.WithTemplate(ctx, tmpl)
			}
			if flags.Timeout <= 0 {
				return fmt.Errorf("--timeout must be > 0")
			}

			streams := iocontext.GetIO(ctx)
			if flags.Quiet {
				streams = streams.Quiet()
			}
			ctx = iocontext.WithIO(ctx, streams)
			cmd.SetOut(streams.Out)
			cmd.SetErr(streams.ErrOut)

			debug.SetupLogger(streams.ErrOut, flags.Debug)
			ctx = debug.WithDebug(ctx, flags.Debug)

			cmd.SetContext(ctx)
			return nil
		},
	}

	streams := iocontext.GetIO(ctx)
	root.SetOut(streams.Out)
	root.SetErr(streams.ErrOut)
	root.SetIn(streams.In)
	root.SetContext(ctx)
	root.SetArgs(args)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.Config, "config", "c", "", "Endpoint config file (env "+config.EnvConfigPath+")")
	pf.StringVarP(&flags.Env, "env", "e", "", "Environment: local|staging|production (env "+config.EnvDefaultEnv+")")
	pf.StringVarP(&flags.Output, "output", "o", flags.Output, "Output format: text|json|jsonl (env BUBBLES_OUTPUT)")
	pf.StringVarP(&flags.Query, "query", "q", "", "JQ expression to filter the response")
	pf.StringVar(&flags.Template, "template", "", "Go template string (or @path) to render the response")
	pf.BoolVar(&flags.Compact, "compact-json", false, "Compact JSON output (no indentation)")
	pf.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	pf.BoolVarP(&flags.Quiet, "quiet", "Q", false, "Suppress non-essential output on stderr")
	pf.DurationVar(&flags.Timeout, "timeout", flags.Timeout, "HTTP request timeout (e.g., 30s, 2m)")

	flagAlias(pf, "query", "jq")
	flagAlias(pf, "compact-json", "cj")

	root.AddCommand(newEndpointsCmd())
	root.AddCommand(newEnvsCmd())
	root.AddCommand(newCallCmd())
	root.AddCommand(newAuthCmd())
	root.AddCommand(newVersionCmd())

	targetCmd, err := root.ExecuteC()
	if err != nil {
		if !errors.Is(err, errAlreadyHandled) {
			_, _ = fmt.Fprintln(root.ErrOrStderr(), enhanceUnknownError(err, root, targetCmd))
		}
		return err
	}
	return nil
}

const rootLong = `bubbles calls the operations of a REST API described in a YAML file.

Each endpoint definition becomes an operation named after its location (or
its explicit name). Operations are bound once per configured environment:

  bubbles endpoints                      list operations and their arguments
  bubbles call version                   call an operation
  bubbles -e staging call list_students  call it against staging
  bubbles call login username=scottj password=...

Exit codes:
  0 ok, 1 error, 2 bad arguments, 3 configuration, 4 undecodable response,
  7 HTTP status >= 400 (with --fail), 8 network failure`

// enhanceUnknownError adds "did you mean?" suggestions to unknown command/flag errors.
func enhanceUnknownError(err error, root *cobra.Command, targetCmd *cobra.Command) string {
	msg := err.Error()

	if strings.Contains(msg, "unknown command") {
		if unknown := extractQuoted(msg); unknown != "" {
			var names []string
			for _, c := range root.Commands() {
				if c.IsAvailableCommand() {
					names = append(names, c.Name())
					names = append(names, c.Aliases...)
				}
			}
			if s := resolve.Suggest(unknown, names, 1); len(s) > 0 {
				return fmt.Sprintf("%s\n\nDid you mean %q?", msg, s[0])
			}
		}
		return msg
	}

	if strings.Contains(msg, "unknown flag") || strings.Contains(msg, "unknown shorthand flag") {
		var flagNames []string
		add := func(fs *pflag.FlagSet) {
			fs.VisitAll(func(f *pflag.Flag) {
				if !f.Hidden {
					flagNames = append(flagNames, "--"+f.Name)
				}
			})
		}
		cmd := targetCmd
		if cmd == nil {
			cmd = root
		}
		add(cmd.Flags())
		add(cmd.InheritedFlags())
		helpCmd := strings.TrimSpace(cmd.CommandPath()) + " --help"
		if unknown := extractFlag(msg); unknown != "" {
			if s := resolve.Suggest(unknown, flagNames, 1); len(s) > 0 {
				return fmt.Sprintf("%s\n\nDid you mean %q?\nRun %q to see supported flags.", msg, s[0], helpCmd)
			}
		}
		return fmt.Sprintf("%s\n\nRun %q to see supported flags.", msg, helpCmd)
	}

	return msg
}

// extractQuoted extracts the first double-quoted substring from s.
func extractQuoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

// extractFlag extracts a flag name (e.g., "--foo") from an error message.
func extractFlag(s string) string {
	idx := strings.Index(s, "--")
	if idx < 0 {
		return ""
	}
	rest := s[idx:]
	if end := strings.IndexByte(rest, ' '); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimRight(rest, ".,;:!?\"'")
}

func loadTemplate(value string) (string, error) {
	if strings.HasPrefix(value, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(value, "@"))
		if err != nil {
			return "", fmt.Errorf("failed to read template file: %w", err)
		}
		return string(data), nil
	}
	return value, nil
}
