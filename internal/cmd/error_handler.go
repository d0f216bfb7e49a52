package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sinkingmoon/bubbles/internal/api"
	"github.com/sinkingmoon/bubbles/internal/config"
)

// HandleError processes an error and returns a user-friendly message with suggestions
func HandleError(err error) string {
	if err == nil {
		return ""
	}

	var msg strings.Builder

	var apiErr *api.APIError
	var arityErr *api.ArityError

	switch {
	case errors.Is(err, config.ErrNoConfigFile):
		fmt.Fprintf(&msg, "Error: %s\n\n", err.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Create bubbles.yaml in the current directory\n")
		msg.WriteString("  - Or pass --config path/to/endpoints.yaml\n")

	case api.IsConfigurationError(err):
		fmt.Fprintf(&msg, "%s\n\n", err.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check the endpoint definitions and environments in your config file\n")
		msg.WriteString("  - Run: bubbles envs\n")

	case errors.As(err, &arityErr):
		fmt.Fprintf(&msg, "Error: %s\n\n", err.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: bubbles endpoints to see each operation's arguments\n")
		msg.WriteString("  - Store a token with: bubbles auth set auth_token\n")

	case api.IsCallerError(err):
		fmt.Fprintf(&msg, "Error: %s\n", err.Error())

	case api.IsDecodeError(err):
		fmt.Fprintf(&msg, "Error: %s\n\n", err.Error())
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - The endpoint is marked expect_json but returned something else\n")
		msg.WriteString("  - Use --debug to see the request\n")

	case errors.As(err, &apiErr):
		fmt.Fprintf(&msg, "API error (HTTP %d): %s\n\n", apiErr.StatusCode, apiErr.Body)
		msg.WriteString(suggestionsForStatusCode(apiErr.StatusCode))
		if apiErr.RequestID != "" {
			fmt.Fprintf(&msg, "\nRequest ID: %s\n", apiErr.RequestID)
		}

	case strings.Contains(err.Error(), "connection refused"):
		msg.WriteString("Connection refused.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check if the API server is running\n")
		msg.WriteString("  - Verify the environment's host and port: bubbles envs\n")

	case strings.Contains(err.Error(), "no such host"):
		msg.WriteString("DNS resolution failed.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check the environment host spelling\n")
		msg.WriteString("  - Try using the IP address directly\n")

	default:
		fmt.Fprintf(&msg, "Error: %s\n", err.Error())
	}

	return msg.String()
}

func suggestionsForStatusCode(code int) string {
	var suggestions strings.Builder
	suggestions.WriteString("Suggestions:\n")

	switch code {
	case 400, 422:
		suggestions.WriteString("  - Check the arguments you passed\n")
		suggestions.WriteString("  - Use --debug to see the full request\n")
	case 401:
		suggestions.WriteString("  - Your auth token may be invalid or expired\n")
		suggestions.WriteString("  - Log in again with --save-token, or run: bubbles auth set auth_token\n")
	case 403:
		suggestions.WriteString("  - You don't have permission for this operation\n")
		suggestions.WriteString("  - Check that the API key is valid\n")
	case 404:
		suggestions.WriteString("  - The resource doesn't exist\n")
		suggestions.WriteString("  - Check the path arguments\n")
	case 500, 502, 503, 504:
		suggestions.WriteString("  - Server error - not your fault\n")
		suggestions.WriteString("  - Wait and retry\n")
	default:
		suggestions.WriteString("  - Use --debug for more details\n")
	}

	return suggestions.String()
}
