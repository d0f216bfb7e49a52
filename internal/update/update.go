// Package update compares the version reported by an API's version endpoint
// against a required minimum.
package update

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/sinkingmoon/bubbles/internal/api"
)

const (
	// VersionField is the member of the version response holding the semver.
	VersionField = "versionName"
	CheckTimeout = 5 * time.Second
)

// Fetcher invokes an operation that returns the API's version document.
type Fetcher func(ctx context.Context, args ...any) (*api.Result, error)

type CheckResult struct {
	APIName       string
	ServerVersion string
	Required      string
	Satisfied     bool
}

// Check fetches the API version and compares it with required. A server
// version that is not valid semver never satisfies a requirement.
func Check(ctx context.Context, fetch Fetcher, required string) (*CheckResult, error) {
	if !semver.IsValid(normalizeVersion(required)) {
		return nil, fmt.Errorf("invalid required version %q", required)
	}

	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	result, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := api.CheckStatus(result); err != nil {
		return nil, err
	}

	server := strings.TrimSpace(result.Get(VersionField).Text())
	if server == "" {
		return nil, fmt.Errorf("version response has no %s", VersionField)
	}
	return &CheckResult{
		APIName:       result.Get("name").Text(),
		ServerVersion: server,
		Required:      required,
		Satisfied:     Satisfies(server, required),
	}, nil
}

// Satisfies reports whether version >= required under semver ordering.
func Satisfies(version, required string) bool {
	v, r := normalizeVersion(version), normalizeVersion(required)
	if !semver.IsValid(v) || !semver.IsValid(r) {
		return false
	}
	return semver.Compare(v, r) >= 0
}

func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
