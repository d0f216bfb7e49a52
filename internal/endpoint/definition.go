// Package endpoint describes declarative HTTP operations and compiles them into
// callable operations with a fixed positional parameter contract.
package endpoint

import (
	"fmt"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"
)

// Method is an HTTP request method. It is stored upper-case.
type Method string

const (
	GET     Method = http.MethodGet
	POST    Method = http.MethodPost
	PUT     Method = http.MethodPut
	PATCH   Method = http.MethodPatch
	DELETE  Method = http.MethodDelete
	HEAD    Method = http.MethodHead
	OPTIONS Method = http.MethodOptions
)

// ParseMethod normalizes s ("get", "Post", ...) to a known Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS:
		return m, nil
	case "":
		return "", fmt.Errorf("method is required")
	default:
		return "", fmt.Errorf("unsupported method %q", s)
	}
}

// AllowsBody reports whether requests with this method may carry a body.
func (m Method) AllowsBody() bool {
	return m == POST || m == PUT || m == PATCH
}

// UnmarshalYAML accepts methods in any case, e.g. "get" or ":get".
func (m *Method) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	*m = Method(strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(s), ":")))
	return nil
}

// Definition is one declared endpoint.
type Definition struct {
	Method         Method `yaml:"method" json:"method"`
	Location       string `yaml:"location" json:"location"`
	Authenticated  bool   `yaml:"authenticated" json:"authenticated"`
	APIKeyRequired bool   `yaml:"api_key_required" json:"api_key_required"`
	ExpectJSON     bool   `yaml:"expect_json" json:"expect_json"`

	// Name overrides the operation name derived from Location.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// EncodeAuthorization lists the credential fields (e.g. username,
	// password) sent as the JSON request body.
	EncodeAuthorization []string `yaml:"encode_authorization,omitempty" json:"encode_authorization,omitempty"`

	// Query lists required query-string parameters, in argument order.
	Query []string `yaml:"query,omitempty" json:"query,omitempty"`

	// Body makes the last argument a free-form JSON request body.
	Body bool `yaml:"body,omitempty" json:"body,omitempty"`
}

// Clone returns a deep copy of d.
func (d Definition) Clone() Definition {
	out := d
	if d.EncodeAuthorization != nil {
		out.EncodeAuthorization = append([]string(nil), d.EncodeAuthorization...)
	}
	if d.Query != nil {
		out.Query = append([]string(nil), d.Query...)
	}
	return out
}
