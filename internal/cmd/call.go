package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sinkingmoon/bubbles/internal/api"
	"github.com/sinkingmoon/bubbles/internal/config"
	"github.com/sinkingmoon/bubbles/internal/debug"
	"github.com/sinkingmoon/bubbles/internal/dryrun"
	"github.com/sinkingmoon/bubbles/internal/endpoint"
	"github.com/sinkingmoon/bubbles/internal/iocontext"
	"github.com/sinkingmoon/bubbles/internal/outfmt"
)

// Environment variables consulted for secrets before the credential store.
const (
	envAuthToken = "BUBBLES_AUTH_TOKEN"
	envStoredKey = "BUBBLES_STORED_API_KEY"
)

type callOptions struct {
	token     string
	apiKey    string
	data      string
	saveToken bool
	fail      bool
	dryRun    bool
	raw       bool
}

func newCallCmd() *cobra.Command {
	var opts callOptions
	cmd := &cobra.Command{
		Use:     "call <operation> [args...]",
		Aliases: []string{"c", "invoke"},
		Short:   "Invoke an operation",
		Long: `Invoke an operation against the selected environment.

Positional arguments fill path and query parameters in order. For operations
that encode credentials or send a JSON body, key=value arguments build the
mapping (key:=value takes a raw JSON value, e.g. age:=42).

The auth token and API key are taken from --token/--api-key, then
` + envAuthToken + `/` + envStoredKey + `, then the credential store
(see: bubbles auth set).`,
		Example: `  bubbles call version
  bubbles call list_students
  bubbles call login username=scottj password=secret --save-token
  bubbles call get_student 7 -q .name`,
		Args: cobra.MinimumNArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, args[0], args[1:], opts)
		}),
	}
	cmd.Flags().StringVar(&opts.token, "token", "", "Auth token for authenticated operations")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "API key for operations that require one")
	cmd.Flags().StringVarP(&opts.data, "data", "d", "", "JSON body object, @file or - for stdin")
	cmd.Flags().BoolVar(&opts.saveToken, "save-token", false, "Store auth_token from the response for this environment")
	cmd.Flags().BoolVar(&opts.fail, "fail", false, "Exit with code 7 when the HTTP status is >= 400")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the request without sending it")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Print the response body as received")
	return cmd
}

func runCall(cmd *cobra.Command, name string, tokens []string, opts callOptions) error {
	ctx := cmd.Context()
	s, err := openSession()
	if err != nil {
		return err
	}
	op, err := s.binding.Operation(name)
	if err != nil {
		return err
	}

	callArgs, err := buildCallArgs(ctx, s.env, op, tokens, opts)
	if err != nil {
		return err
	}

	if opts.dryRun {
		req, err := s.binding.Prepare(op.Name, callArgs...)
		if err != nil {
			return err
		}
		return printRequest(ctx, op, req)
	}

	result, err := s.binding.Invoke(ctx, op.Name, callArgs...)
	if err != nil {
		return err
	}

	streams := iocontext.GetIO(ctx)
	if !result.OK() {
		_, _ = fmt.Fprintf(streams.ErrOut, "HTTP %d\n", result.Status)
	}
	if result.Decoded && !opts.raw {
		if err := formatter(ctx).Output(result.Value); err != nil {
			return err
		}
	} else if len(result.Body) > 0 {
		_, _ = streams.Out.Write(result.Body)
		if result.Body[len(result.Body)-1] != '\n' {
			_, _ = io.WriteString(streams.Out, "\n")
		}
	}

	if opts.saveToken && result.OK() {
		if err := saveAuthToken(ctx, s.env, result); err != nil {
			return err
		}
	}
	if opts.fail {
		return api.CheckStatus(result)
	}
	return nil
}

// buildCallArgs turns command-line tokens into arguments ordered by the
// operation's parameter contract. Shortfalls are left for the operation to
// report as arity errors.
func buildCallArgs(ctx context.Context, env string, op *endpoint.Operation, tokens []string, opts callOptions) ([]any, error) {
	params := op.Params()

	takesMapping := false
	for _, p := range params {
		if p.Kind == endpoint.ParamCredentials || p.Kind == endpoint.ParamBody {
			takesMapping = true
		}
	}

	var plain []string
	var pairs []pair
	for _, tok := range tokens {
		if takesMapping {
			if p, ok := parsePair(tok); ok {
				pairs = append(pairs, p)
				continue
			}
		}
		plain = append(plain, tok)
	}
	if !takesMapping && opts.data != "" {
		return nil, &api.CallerError{Operation: op.Name, Reason: "--data given but the operation takes no body"}
	}

	out := make([]any, 0, len(params))
	for _, p := range params {
		switch p.Kind {
		case endpoint.ParamAuthToken:
			v, err := resolveSecret(ctx, env, op, config.AuthToken, opts.token, envAuthToken, "--token")
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		case endpoint.ParamAPIKey:
			v, err := resolveSecret(ctx, env, op, config.APIKey, opts.apiKey, envStoredKey, "--api-key")
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		case endpoint.ParamCredentials:
			creds := make(map[string]string, len(pairs))
			for _, kv := range pairs {
				creds[kv.key] = kv.value
			}
			out = append(out, creds)
		case endpoint.ParamBody:
			body, err := buildBody(ctx, op, pairs, opts.data)
			if err != nil {
				return nil, err
			}
			out = append(out, body)
		default:
			if len(plain) == 0 {
				return out, nil
			}
			out = append(out, plain[0])
			plain = plain[1:]
		}
	}
	for _, extra := range plain {
		out = append(out, extra)
	}
	return out, nil
}

type pair struct {
	key     string
	value   string
	rawJSON bool
}

// parsePair recognizes key=value and key:=value.
func parsePair(tok string) (pair, bool) {
	idx := strings.IndexByte(tok, '=')
	if idx <= 0 {
		return pair{}, false
	}
	key, value := tok[:idx], tok[idx+1:]
	isJSON := strings.HasSuffix(key, ":")
	key = strings.TrimSuffix(key, ":")
	if key == "" || strings.ContainsAny(key, " \t/") {
		return pair{}, false
	}
	return pair{key: key, value: value, rawJSON: isJSON}, true
}

func buildBody(ctx context.Context, op *endpoint.Operation, pairs []pair, data string) (map[string]any, error) {
	body := map[string]any{}
	if data != "" {
		raw, err := readData(ctx, data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, &api.CallerError{Operation: op.Name, Reason: fmt.Sprintf("--data must be a JSON object: %v", err)}
		}
	}
	for _, kv := range pairs {
		if !kv.rawJSON {
			body[kv.key] = kv.value
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(kv.value), &v); err != nil {
			return nil, &api.CallerError{Operation: op.Name, Reason: fmt.Sprintf("%s:= value is not valid JSON: %v", kv.key, err)}
		}
		body[kv.key] = v
	}
	return body, nil
}

func readData(ctx context.Context, data string) ([]byte, error) {
	switch {
	case data == "-":
		return io.ReadAll(iocontext.GetIO(ctx).In)
	case strings.HasPrefix(data, "@"):
		return os.ReadFile(strings.TrimPrefix(data, "@"))
	default:
		return []byte(data), nil
	}
}

func resolveSecret(ctx context.Context, env string, op *endpoint.Operation, kind config.CredentialKind, flagValue, envVar, flagName string) (string, error) {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		return v, nil
	}
	store, err := newCredentialStore()
	if err != nil {
		return "", err
	}
	v, err := store.Get(ctx, env, kind)
	if err == nil && v != "" {
		return v, nil
	}
	if err != nil && !errors.Is(err, config.ErrCredentialNotFound) {
		return "", fmt.Errorf("reading stored %s: %w", kind, err)
	}
	return "", &api.CallerError{
		Operation: op.Name,
		Reason:    fmt.Sprintf("%s is required: pass %s, set %s or run `bubbles -e %s auth set %s`", kind, flagName, envVar, env, kind),
	}
}

func saveAuthToken(ctx context.Context, env string, result *api.Result) error {
	token := strings.TrimSpace(result.Get(string(config.AuthToken)).Text())
	if token == "" {
		return fmt.Errorf("response has no %s to save", config.AuthToken)
	}
	store, err := newCredentialStore()
	if err != nil {
		return err
	}
	if err := store.Set(ctx, env, config.AuthToken, token); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(iocontext.GetIO(ctx).ErrOut, "Saved %s for %s (%s)\n", config.AuthToken, env, debug.Redact(token))
	return nil
}

func printRequest(ctx context.Context, op *endpoint.Operation, req *api.Request) error {
	preview := dryrun.FromRequest(req, len(op.CredentialFields()) > 0)
	out := iocontext.GetIO(ctx).Out
	if outfmt.IsJSON(ctx) {
		return outfmt.WriteJSON(out, preview, outfmt.IsCompact(ctx))
	}
	preview.Write(out)
	return nil
}
