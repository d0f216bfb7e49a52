package cmd

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/spf13/pflag"

	"github.com/sinkingmoon/bubbles/internal/api"
	"github.com/sinkingmoon/bubbles/internal/config"
)

const (
	exitOK        = 0
	exitGeneric   = 1
	exitUsage     = 2
	exitConfig    = 3
	exitDecode    = 4
	exitHTTPError = 7
	exitNetwork   = 8
)

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	var handled *handledError
	if errors.As(err, &handled) {
		if handled.exitCode != 0 {
			return handled.exitCode
		}
		err = handled.err
	}

	switch {
	case api.IsConfigurationError(err), errors.Is(err, config.ErrNoConfigFile):
		return exitConfig
	case api.IsCallerError(err):
		return exitUsage
	case api.IsDecodeError(err):
		return exitDecode
	case api.IsAPIError(err):
		return exitHTTPError
	case api.IsTransportError(err), isNetworkError(err):
		return exitNetwork
	case isUsageError(err):
		return exitUsage
	}
	return exitGeneric
}

// errorKind names the error class for JSON error output.
func errorKind(err error) string {
	switch {
	case api.IsConfigurationError(err):
		return "configuration"
	case api.IsArityError(err):
		return "arity"
	case api.IsCallerError(err):
		return "caller"
	case api.IsDecodeError(err):
		return "decode"
	case api.IsAPIError(err):
		return "http"
	case api.IsTransportError(err):
		return "transport"
	}
	return "error"
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isUsageError(err error) bool {
	msg := strings.ToLower(err.Error())
	indicators := []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts at most",
		"accepts between",
		"invalid argument",
	}
	for _, indicator := range indicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
