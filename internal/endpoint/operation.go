package endpoint

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/sinkingmoon/bubbles/internal/api"
)

// ParamKind classifies a positional parameter.
type ParamKind int

const (
	ParamAuthToken ParamKind = iota
	ParamAPIKey
	ParamCredentials
	ParamPath
	ParamQuery
	ParamBody
)

func (k ParamKind) String() string {
	switch k {
	case ParamAuthToken:
		return "auth_token"
	case ParamAPIKey:
		return "api_key"
	case ParamCredentials:
		return "credentials"
	case ParamPath:
		return "path"
	case ParamQuery:
		return "query"
	case ParamBody:
		return "body"
	default:
		return "unknown"
	}
}

// Param is one positional parameter of an operation.
type Param struct {
	Name string
	Kind ParamKind
}

// String renders the parameter for usage messages, e.g. "id" or "auth_token".
func (p Param) String() string {
	if p.Kind == ParamCredentials {
		return p.Name + "{...}"
	}
	return p.Name
}

// Operation is a compiled Definition: its name, parameter contract and
// location template.
type Operation struct {
	Name       string
	Definition Definition

	params   []Param
	segments []segment
	apiKey   string
}

type segment struct {
	literal     string
	placeholder string
}

// Options carries binding-wide settings that change an operation's contract.
type Options struct {
	// APIKey is the globally configured key. When set, API-key endpoints
	// take no API-key argument and send this key instead.
	APIKey string
}

// Compile validates d and derives its name and parameter contract. Failures
// are *api.ConfigurationError.
func Compile(d Definition, opts Options) (*Operation, error) {
	d = d.Clone()

	name, err := ResolveName(d)
	if err != nil {
		return nil, api.Configf("%v", err)
	}
	method, err := ParseMethod(string(d.Method))
	if err != nil {
		return nil, api.Configf("endpoint %s: %v", name, err)
	}
	d.Method = method

	if len(d.EncodeAuthorization) > 0 && d.Body {
		return nil, api.Configf("endpoint %s: encode_authorization and body are mutually exclusive", name)
	}
	if (len(d.EncodeAuthorization) > 0 || d.Body) && !method.AllowsBody() {
		return nil, api.Configf("endpoint %s: %s requests cannot carry a body", name, method)
	}

	segments, placeholders, err := parseLocation(d.Location)
	if err != nil {
		return nil, api.Configf("endpoint %s: %v", name, err)
	}

	op := &Operation{
		Name:       name,
		Definition: d,
		segments:   segments,
		apiKey:     opts.APIKey,
	}

	seen := make(map[string]struct{})
	addParam := func(p Param) error {
		if _, dup := seen[p.Name]; dup {
			return api.Configf("endpoint %s: parameter %q declared twice", name, p.Name)
		}
		seen[p.Name] = struct{}{}
		op.params = append(op.params, p)
		return nil
	}

	if d.Authenticated {
		_ = addParam(Param{Name: "auth_token", Kind: ParamAuthToken})
	}
	if d.APIKeyRequired && opts.APIKey == "" {
		_ = addParam(Param{Name: "api_key", Kind: ParamAPIKey})
	}
	if len(d.EncodeAuthorization) > 0 {
		fields := make(map[string]struct{}, len(d.EncodeAuthorization))
		for _, f := range d.EncodeAuthorization {
			f = strings.TrimPrefix(strings.TrimSpace(f), ":")
			if f == "" {
				return nil, api.Configf("endpoint %s: empty encode_authorization field", name)
			}
			if _, dup := fields[f]; dup {
				return nil, api.Configf("endpoint %s: encode_authorization field %q repeated", name, f)
			}
			fields[f] = struct{}{}
		}
		_ = addParam(Param{Name: "credentials", Kind: ParamCredentials})
	}
	for _, p := range placeholders {
		if err := addParam(Param{Name: p, Kind: ParamPath}); err != nil {
			return nil, err
		}
	}
	for _, q := range d.Query {
		q = strings.TrimSpace(q)
		if q == "" {
			return nil, api.Configf("endpoint %s: empty query parameter name", name)
		}
		if err := addParam(Param{Name: q, Kind: ParamQuery}); err != nil {
			return nil, err
		}
	}
	if d.Body {
		if err := addParam(Param{Name: "body", Kind: ParamBody}); err != nil {
			return nil, err
		}
	}
	return op, nil
}

// Params returns the positional parameters in call order.
func (op *Operation) Params() []Param {
	return append([]Param(nil), op.params...)
}

// Arity is the exact number of arguments the operation accepts.
func (op *Operation) Arity() int {
	return len(op.params)
}

// Usage renders the call signature, e.g. "list_students(auth_token)".
func (op *Operation) Usage() string {
	names := make([]string, len(op.params))
	for i, p := range op.params {
		names[i] = p.String()
	}
	return op.Name + "(" + strings.Join(names, ", ") + ")"
}

// CredentialFields returns the normalized encode_authorization field names.
func (op *Operation) CredentialFields() []string {
	out := make([]string, 0, len(op.Definition.EncodeAuthorization))
	for _, f := range op.Definition.EncodeAuthorization {
		out = append(out, strings.TrimPrefix(strings.TrimSpace(f), ":"))
	}
	return out
}

// Bind checks args against the parameter contract and builds the request
// against baseURL. It performs no I/O; every failure is a caller error.
func (op *Operation) Bind(baseURL string, args []any) (*api.Request, error) {
	if len(args) != len(op.params) {
		names := make([]string, len(op.params))
		for i, p := range op.params {
			names[i] = p.String()
		}
		return nil, &api.ArityError{Operation: op.Name, Want: len(op.params), Got: len(args), Params: names}
	}

	req := &api.Request{
		Operation:  op.Name,
		Method:     string(op.Definition.Method),
		Headers:    make(map[string]string),
		ExpectJSON: op.Definition.ExpectJSON,
	}
	pathValues := make(map[string]string)
	query := url.Values{}

	if op.Definition.APIKeyRequired && op.apiKey != "" {
		req.Headers[api.HeaderAPIKey] = op.apiKey
	}

	for i, p := range op.params {
		arg := args[i]
		switch p.Kind {
		case ParamAuthToken:
			token, err := op.secretArg(p, arg)
			if err != nil {
				return nil, err
			}
			req.Headers[api.HeaderAuthorization] = bearer(token)
		case ParamAPIKey:
			key, err := op.secretArg(p, arg)
			if err != nil {
				return nil, err
			}
			req.Headers[api.HeaderAPIKey] = key
		case ParamCredentials:
			body, err := op.encodeCredentials(arg)
			if err != nil {
				return nil, err
			}
			req.Body = body
		case ParamPath:
			s, err := op.scalarArg(p, arg)
			if err != nil {
				return nil, err
			}
			if s == "" {
				return nil, op.callerErr("path parameter %q must not be empty", p.Name)
			}
			pathValues[p.Name] = s
		case ParamQuery:
			s, err := op.scalarArg(p, arg)
			if err != nil {
				return nil, err
			}
			query.Set(p.Name, s)
		case ParamBody:
			if arg == nil {
				return nil, op.callerErr("body must not be nil")
			}
			body, err := json.Marshal(arg)
			if err != nil {
				return nil, op.callerErr("body is not JSON-encodable: %v", err)
			}
			req.Body = body
		}
	}

	if req.Body != nil {
		req.Headers[api.HeaderContentType] = api.ApplicationJSON
	}
	req.URL = joinURL(baseURL, op.expand(pathValues), query)
	return req, nil
}

func (op *Operation) callerErr(format string, args ...any) error {
	return &api.CallerError{Operation: op.Name, Reason: fmt.Sprintf(format, args...)}
}

func (op *Operation) secretArg(p Param, arg any) (string, error) {
	s, ok := arg.(string)
	if !ok {
		return "", op.callerErr("%s must be a string, got %T", p.Name, arg)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", op.callerErr("%s must not be empty", p.Name)
	}
	return s, nil
}

func (op *Operation) scalarArg(p Param, arg any) (string, error) {
	switch v := arg.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	rv := reflect.ValueOf(arg)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	}
	return "", op.callerErr("%s must be a scalar value, got %T", p.Name, arg)
}

// encodeCredentials accepts map[string]string or map[string]any holding
// exactly the declared credential fields and returns the JSON body.
func (op *Operation) encodeCredentials(arg any) ([]byte, error) {
	var given map[string]any
	switch m := arg.(type) {
	case map[string]any:
		given = m
	case map[string]string:
		given = make(map[string]any, len(m))
		for k, v := range m {
			given[k] = v
		}
	default:
		return nil, op.callerErr("credentials must be a map of field names to values, got %T", arg)
	}

	fields := op.CredentialFields()
	body := make(map[string]any, len(fields))
	var missing []string
	for _, f := range fields {
		v, ok := given[f]
		if !ok || v == nil {
			missing = append(missing, f)
			continue
		}
		body[f] = v
	}
	if len(missing) > 0 {
		return nil, op.callerErr("credentials missing field(s): %s", strings.Join(missing, ", "))
	}
	if len(given) != len(fields) {
		var extra []string
		for k := range given {
			if _, ok := body[k]; !ok {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		return nil, op.callerErr("credentials contain undeclared field(s): %s", strings.Join(extra, ", "))
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, op.callerErr("credentials are not JSON-encodable: %v", err)
	}
	return data, nil
}

func (op *Operation) expand(values map[string]string) string {
	var b strings.Builder
	for _, s := range op.segments {
		if s.placeholder == "" {
			b.WriteString(s.literal)
			continue
		}
		b.WriteString(url.PathEscape(values[s.placeholder]))
	}
	return b.String()
}

func bearer(token string) string {
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return token
	}
	return "Bearer " + token
}

// parseLocation splits a location template into literal text and {name}
// placeholders, returning the placeholder names in declaration order.
func parseLocation(location string) ([]segment, []string, error) {
	location = strings.TrimPrefix(strings.TrimSpace(location), ":")
	if location == "" {
		return nil, nil, fmt.Errorf("location is required")
	}

	var (
		segments []segment
		names    []string
		rest     = location
	)
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		closeIdx := strings.IndexByte(rest, '}')
		if open < 0 {
			if closeIdx >= 0 {
				return nil, nil, fmt.Errorf("unbalanced '}' in location %q", location)
			}
			segments = append(segments, segment{literal: rest})
			break
		}
		if closeIdx >= 0 && closeIdx < open {
			return nil, nil, fmt.Errorf("unbalanced '}' in location %q", location)
		}
		if open > 0 {
			segments = append(segments, segment{literal: rest[:open]})
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return nil, nil, fmt.Errorf("unterminated placeholder in location %q", location)
		}
		name := strings.TrimSpace(rest[open+1 : open+end])
		if !identifierPattern.MatchString(name) {
			return nil, nil, fmt.Errorf("invalid placeholder %q in location %q", name, location)
		}
		segments = append(segments, segment{placeholder: name})
		names = append(names, name)
		rest = rest[open+end+1:]
	}
	return segments, names, nil
}

func joinURL(baseURL, path string, query url.Values) string {
	out := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		out += "?" + query.Encode()
	}
	return out
}
