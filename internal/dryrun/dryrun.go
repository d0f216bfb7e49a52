// Package dryrun renders a bound request without sending it.
package dryrun

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/sinkingmoon/bubbles/internal/api"
	"github.com/sinkingmoon/bubbles/internal/debug"
)

// Preview is the redacted form of a request that would be sent.
type Preview struct {
	Operation string            `json:"operation"`
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	Body      any               `json:"body,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
}

// FromRequest builds a preview of req. Secret headers are always redacted;
// body values are redacted too when secretBody is set (credential bodies).
func FromRequest(req *api.Request, secretBody bool) *Preview {
	p := &Preview{
		Operation: req.Operation,
		Method:    req.Method,
		URL:       req.URL,
		Headers:   make(map[string]string, len(req.Headers)),
	}
	for k, v := range req.Headers {
		if k == api.HeaderAuthorization || k == api.HeaderAPIKey {
			v = debug.Redact(v)
		}
		p.Headers[k] = v
	}
	if len(req.Body) == 0 {
		return p
	}

	var body any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		p.Warnings = append(p.Warnings, "request body is not valid JSON")
		return p
	}
	if obj, ok := body.(map[string]any); ok && secretBody {
		for k, v := range obj {
			obj[k] = debug.Redact(fmt.Sprint(v))
		}
	}
	p.Body = body
	return p
}

// Write outputs the preview to the writer
func (p *Preview) Write(w io.Writer) {
	_, _ = fmt.Fprintf(w, "[DRY-RUN] Would %s %s\n", p.Method, p.URL)
	_, _ = fmt.Fprintf(w, "───────────────────────────────────────\n")

	keys := make([]string, 0, len(p.Headers))
	for k := range p.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", k, p.Headers[k])
	}

	if p.Body != nil {
		data, err := json.MarshalIndent(p.Body, "  ", "  ")
		if err == nil {
			_, _ = fmt.Fprintf(w, "\n  %s\n", data)
		}
	}

	if len(p.Warnings) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "Warnings:")
		for _, warning := range p.Warnings {
			_, _ = fmt.Fprintf(w, "  ! %s\n", warning)
		}
	}

	_, _ = fmt.Fprintf(w, "───────────────────────────────────────\n")
	_, _ = fmt.Fprintln(w, "Nothing sent (dry-run mode)")
}
