package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/sinkingmoon/bubbles/internal/endpoint"
)

type endpointInfo struct {
	Name           string   `json:"name"`
	Method         string   `json:"method"`
	Location       string   `json:"location"`
	URL            string   `json:"url"`
	Params         []string `json:"params"`
	Authenticated  bool     `json:"authenticated"`
	APIKeyRequired bool     `json:"api_key_required"`
	ExpectJSON     bool     `json:"expect_json"`
	Credentials    []string `json:"encode_authorization,omitempty"`
}

func describeOperation(baseURL string, op *endpoint.Operation) endpointInfo {
	params := make([]string, 0, op.Arity())
	for _, p := range op.Params() {
		params = append(params, p.String())
	}
	location := strings.TrimPrefix(op.Definition.Location, ":")
	return endpointInfo{
		Name:           op.Name,
		Method:         string(op.Definition.Method),
		Location:       location,
		URL:            strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(location, "/"),
		Params:         params,
		Authenticated:  op.Definition.Authenticated,
		APIKeyRequired: op.Definition.APIKeyRequired,
		ExpectJSON:     op.Definition.ExpectJSON,
		Credentials:    op.CredentialFields(),
	}
}

func newEndpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "endpoints",
		Aliases: []string{"ops", "ls"},
		Short:   "List the operations bound for an environment",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}

			ops := s.binding.Operations()
			infos := make([]endpointInfo, 0, len(ops))
			for _, op := range ops {
				infos = append(infos, describeOperation(s.binding.BaseURL(), op))
			}

			f := formatter(cmd.Context())
			if handled, err := f.OutputAny(infos); handled {
				return err
			}
			f.StartTable([]string{"NAME", "METHOD", "URL", "ARGS"})
			for _, info := range infos {
				f.Row(info.Name, info.Method, info.URL, strings.Join(info.Params, " "))
			}
			return f.EndTable()
		}),
	}
}
