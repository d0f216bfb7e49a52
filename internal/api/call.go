package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sinkingmoon/bubbles/internal/debug"
	"github.com/sinkingmoon/bubbles/internal/response"
)

// Header names used by the request protocol.
const (
	HeaderAuthorization = "Authorization"
	HeaderAPIKey        = "X-Api-Key"
	HeaderRequestID     = "X-Request-Id"
	HeaderAccept        = "Accept"
	HeaderContentType   = "Content-Type"

	ApplicationJSON = "application/json"
)

// Request is a fully bound call: the URL has its placeholders substituted and
// the headers carry any credentials.
type Request struct {
	Operation  string
	Method     string
	URL        string
	Headers    map[string]string
	Body       []byte
	ExpectJSON bool
}

// Result is the outcome of a completed HTTP exchange. Non-2xx statuses are
// reported here rather than as errors.
type Result struct {
	Status    int
	Body      []byte
	RequestID string

	// Value holds the decoded body when the endpoint expects JSON.
	Value   response.Value
	Decoded bool
}

// OK reports whether the status is 2xx.
func (r *Result) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Field returns a top-level member of a decoded JSON object.
func (r *Result) Field(name string) (response.Value, error) {
	if !r.Decoded {
		return response.Value{}, errors.New("response was not decoded as JSON")
	}
	return r.Value.Field(name)
}

// Get is like Field but yields null for missing members.
func (r *Result) Get(name string) response.Value {
	v, err := r.Field(name)
	if err != nil {
		return response.Value{}
	}
	return v
}

// Items returns the elements of a decoded JSON array response.
func (r *Result) Items() ([]response.Value, error) {
	if !r.Decoded {
		return nil, errors.New("response was not decoded as JSON")
	}
	return r.Value.Items()
}

// Decode unmarshals the raw body into v.
func (r *Result) Decode(v any) error {
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// Execute sends req through t and decodes the response according to
// req.ExpectJSON. Transport failures come back as *TransportError and a
// successful response with an undecodable body as *DecodeError.
func Execute(ctx context.Context, t Transport, req *Request) (*Result, error) {
	if t == nil {
		return nil, Configf("no transport configured")
	}
	headers := make(map[string]string, len(req.Headers)+2)
	for k, v := range req.Headers {
		headers[k] = v
	}
	if headers[HeaderRequestID] == "" {
		headers[HeaderRequestID] = uuid.NewString()
	}
	if req.ExpectJSON && headers[HeaderAccept] == "" {
		headers[HeaderAccept] = ApplicationJSON
	}

	start := time.Now()
	status, body, err := t.Perform(ctx, req.Method, req.URL, headers, req.Body)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &TransportError{Method: req.Method, URL: req.URL, Err: err}
	}
	if debug.IsEnabled(ctx) {
		slog.Debug("operation complete", "operation", req.Operation, "status", status, "duration", time.Since(start))
	}

	result := &Result{
		Status:    status,
		Body:      body,
		RequestID: headers[HeaderRequestID],
	}
	if !req.ExpectJSON {
		return result, nil
	}

	value, err := response.Parse(body)
	if err != nil {
		if result.OK() {
			return nil, &DecodeError{Operation: req.Operation, Err: err}
		}
		// Error pages are often HTML; keep the raw body for the caller.
		return result, nil
	}
	result.Value = value
	result.Decoded = true
	return result, nil
}

// CheckStatus converts a result with status >= 400 into an *APIError. Callers
// that want the throw-on-failure policy apply it after invoking an operation.
func CheckStatus(r *Result) error {
	if r == nil || r.Status < 400 {
		return nil
	}
	return &APIError{
		StatusCode: r.Status,
		Body:       sanitizeErrorBody(string(r.Body)),
		RequestID:  r.RequestID,
	}
}

// sanitizeErrorBody extracts safe error message from API response
// without exposing potentially sensitive data like tokens or user info
func sanitizeErrorBody(body string) string {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Errors  any    `json:"errors"`
	}
	if err := json.Unmarshal([]byte(body), &errResp); err != nil {
		return "API request failed (response body redacted for security)"
	}

	validationErrors := formatValidationErrors(errResp.Errors)

	var result string
	if errResp.Error != "" {
		result = errResp.Error
	} else if errResp.Message != "" {
		result = errResp.Message
	}

	if validationErrors != "" {
		if result != "" {
			return result + "\nValidation errors:\n" + validationErrors
		}
		return "Validation errors:\n" + validationErrors
	}
	if result != "" {
		return result
	}
	return "API request failed (response body redacted for security)"
}

// formatValidationErrors handles both {"field": "msg"} and {"field": ["msg", ...]}.
func formatValidationErrors(raw any) string {
	errMap, ok := raw.(map[string]any)
	if !ok || len(errMap) == 0 {
		return ""
	}

	var lines []string
	for field, value := range errMap {
		switch v := value.(type) {
		case string:
			lines = append(lines, fmt.Sprintf("  %s: %s", field, v))
		case []any:
			for _, msg := range v {
				if msgStr, ok := msg.(string); ok {
					lines = append(lines, fmt.Sprintf("  %s: %s", field, msgStr))
				}
			}
		}
	}
	if len(lines) == 0 {
		return ""
	}

	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
