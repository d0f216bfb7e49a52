package outfmt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"text/template"

	"github.com/sinkingmoon/bubbles/internal/response"
)

type templateKey struct{}

// WithTemplate adds a template string to the context
func WithTemplate(ctx context.Context, tmpl string) context.Context {
	return context.WithValue(ctx, templateKey{}, tmpl)
}

// GetTemplate retrieves the template string from context
func GetTemplate(ctx context.Context) string {
	if tmpl, ok := ctx.Value(templateKey{}).(string); ok {
		return tmpl
	}
	return ""
}

// WriteTemplate renders a response value with a Go text/template. The
// template sees plain maps, slices and scalars, so `{{.students}}` and
// `{{range .students}}{{.name}}{{end}}` both work.
func WriteTemplate(w io.Writer, v response.Value, tmpl string) error {
	funcs := template.FuncMap{
		"json": func(val any) (string, error) {
			buf := &bytes.Buffer{}
			if err := WriteJSON(buf, val, false); err != nil {
				return "", err
			}
			return buf.String(), nil
		},
	}

	t, err := template.New("output").Funcs(funcs).Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return formatTemplateError("invalid template", err)
	}

	var data any
	if err := v.Decode(&data); err != nil {
		return err
	}
	if err := t.Execute(w, normalizeNumbers(data)); err != nil {
		return formatTemplateError("template execution error", err)
	}
	return nil
}

// normalizeNumbers turns whole float64 values into int64 so ids print as 1
// rather than 1e+00 style floats.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		return t.String()
	default:
		return v
	}
}

var templateLocationPattern = regexp.MustCompile(`:(\d+):(\d+):`)

func formatTemplateError(kind string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if matches := templateLocationPattern.FindStringSubmatch(msg); len(matches) == 3 {
		return fmt.Errorf("%s at line %s, column %s: %s", kind, matches[1], matches[2], msg)
	}
	return fmt.Errorf("%s: %w", kind, err)
}
