package cmd

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinkingmoon/bubbles/internal/api"
	"github.com/sinkingmoon/bubbles/internal/config"
)

func TestEndpoints_Text(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)

	res := execute(t, "", "endpoints")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "NAME")
	assert.Contains(t, res.stdout, "list_students")
	assert.Contains(t, res.stdout, "auth_token")
	assert.Contains(t, res.stdout, a.server.URL+"/students/{id}")
	assert.Equal(t, int32(0), a.hits.Load(), "listing must not call the API")
}

func TestEndpoints_JSON(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)

	res := execute(t, "", "endpoints", "-o", "json")
	require.NoError(t, res.err)

	var infos []endpointInfo
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &infos))
	require.Len(t, infos, 6)
	assert.Equal(t, "version", infos[0].Name)
	assert.Empty(t, infos[0].Params)
	assert.Equal(t, "get_student", infos[2].Name)
	assert.Equal(t, []string{"auth_token", "id", "include"}, infos[2].Params)
	assert.Equal(t, "login", infos[3].Name)
	assert.Equal(t, []string{"api_key", "credentials{...}"}, infos[3].Params)
	assert.Equal(t, []string{"username", "password"}, infos[3].Credentials)
}

func TestEndpoints_UnknownEnvironment(t *testing.T) {
	setupTestEnv(t, newTestAPI(t))

	res := execute(t, "", "-e", "prod", "endpoints")
	require.Error(t, res.err)
	assert.Equal(t, exitConfig, res.code)
	assert.Contains(t, res.stderr, "production")
}

func TestEndpoints_MissingConfig(t *testing.T) {
	setupTestEnv(t, nil)

	res := execute(t, "", "endpoints")
	require.Error(t, res.err)
	assert.Equal(t, exitConfig, res.code)
	assert.True(t, api.IsConfigurationError(res.err))
}

func TestCall_Version(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)

	res := execute(t, "", "call", "version", "-o", "json", "--compact-json")
	require.NoError(t, res.err)
	assert.JSONEq(t, `{"name":"Sinking Moon API","versionName":"2.0.0","deployDate":"2018-01-02"}`, res.stdout)

	res = execute(t, "", "call", "version", "-q", ".versionName")
	require.NoError(t, res.err)
	assert.Equal(t, "2.0.0\n", res.stdout)

	res = execute(t, "", "call", "version", "--template", "{{.name}} {{.versionName}}")
	require.NoError(t, res.err)
	assert.Equal(t, "Sinking Moon API 2.0.0", res.stdout)
}

func TestCall_MissingTokenIsUsageError(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)

	res := execute(t, "", "call", "list_students")
	require.Error(t, res.err)
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, "auth_token is required")
	assert.Equal(t, int32(0), a.hits.Load())
}

func TestCall_StoredToken(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)

	res := execute(t, "", "auth", "set", "auth_token", testToken)
	require.NoError(t, res.err)

	res = execute(t, "", "call", "list_students", "-q", ".students[0].name")
	require.NoError(t, res.err)
	assert.Equal(t, "Joe Blow\n", res.stdout)

	auth, _ := a.seen()
	assert.Equal(t, "Bearer "+testToken, auth)

	// Tokens are stored per environment.
	res = execute(t, "", "-e", "staging", "call", "list_students")
	assert.Equal(t, exitUsage, res.code)
}

func TestCall_TokenFromEnv(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)
	t.Setenv(envAuthToken, testToken)

	res := execute(t, "", "call", "get_student", "7", "courses", "-o", "json")
	require.NoError(t, res.err)
	assert.JSONEq(t, `{"id":"7","include":"courses"}`, res.stdout)
}

func TestCall_ArityError(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)

	res := execute(t, "", "call", "get_student", "7", "--token", testToken)
	require.Error(t, res.err)
	assert.Equal(t, exitUsage, res.code)
	assert.True(t, api.IsArityError(res.err))
	assert.Contains(t, res.stderr, "expected 3 argument(s), got 2")

	res = execute(t, "", "call", "version", "extra")
	assert.Equal(t, exitUsage, res.code)
	assert.Equal(t, int32(0), a.hits.Load())
}

func TestCall_NonSuccessStatus(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)

	res := execute(t, "", "call", "list_students", "--token", "wrong", "-q", ".error")
	require.NoError(t, res.err, "non-2xx is data unless --fail is set")
	assert.Equal(t, "invalid token\n", res.stdout)
	assert.Contains(t, res.stderr, "HTTP 401")

	res = execute(t, "", "call", "list_students", "--token", "wrong", "--fail")
	require.Error(t, res.err)
	assert.Equal(t, exitHTTPError, res.code)
	assert.Contains(t, res.stderr, "invalid token")
}

func TestCall_LoginSavesToken(t *testing.T) {
	a := newTestAPI(t)
	store := setupTestEnv(t, a)

	res := execute(t, "", "call", "login", "username=scottj", "password=123qwe456",
		"--api-key", testAPIKey, "--save-token", "-q", ".name")
	require.NoError(t, res.err)
	assert.Equal(t, "Scott Johnson\n", res.stdout)
	assert.Contains(t, res.stderr, "Saved auth_token for local")

	_, body := a.seen()
	assert.Equal(t, map[string]any{"username": "scottj", "password": "123qwe456"}, body)

	saved, err := store.Get(context.Background(), config.Local, config.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, loginToken, saved)
}

func TestCall_LoginMissingCredentialField(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)
	t.Setenv(envStoredKey, testAPIKey)

	res := execute(t, "", "call", "login", "username=scottj")
	require.Error(t, res.err)
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, "password")
	assert.Equal(t, int32(0), a.hits.Load())
}

func TestCall_Body(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)
	t.Setenv(envAuthToken, testToken)

	res := execute(t, `{"zip":"90263"}`, "call", "create_student", "name=Joe Blow", "age:=42", "--data", "-")
	require.NoError(t, res.err)

	_, body := a.seen()
	assert.Equal(t, map[string]any{"name": "Joe Blow", "age": float64(42), "zip": "90263"}, body)
}

func TestCall_DryRunRedactsSecrets(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)

	res := execute(t, "", "call", "login", "username=scottj", "password=123qwe456", "--api-key", testAPIKey, "--dry-run")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "POST "+a.server.URL+"/login")
	assert.NotContains(t, res.stdout, "123qwe456")
	assert.NotContains(t, res.stdout, testAPIKey)
	assert.Equal(t, int32(0), a.hits.Load())
}

func TestCall_UnknownOperation(t *testing.T) {
	setupTestEnv(t, newTestAPI(t))

	res := execute(t, "", "call", "list_studnets")
	require.Error(t, res.err)
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, "list_students")
}

func TestCall_DecodeError(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)
	res := execute(t, "", "call", "health")
	require.Error(t, res.err)
	assert.Equal(t, exitDecode, res.code)
}

func TestCall_TransportError(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)
	a.server.Close()

	res := execute(t, "", "call", "version", "-o", "json")
	require.Error(t, res.err)
	assert.Equal(t, exitNetwork, res.code)

	var payload struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stderr), &payload))
	assert.Equal(t, "transport", payload.Error.Kind)
}

func TestEnvs(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)

	res := execute(t, "", "envs", "-o", "json")
	require.NoError(t, res.err)
	var infos []envInfo
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "local", infos[0].Name)
	assert.Equal(t, "staging", infos[1].Name)
	assert.Equal(t, a.server.URL, infos[0].BaseURL)
}

func TestEnvsCheck(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)

	res := execute(t, "", "envs", "check", "-o", "json")
	require.NoError(t, res.err)
	var checks []envCheck
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &checks))
	require.Len(t, checks, 2)
	for _, c := range checks {
		assert.True(t, c.OK, "%s: %s", c.Name, c.Error)
		assert.Equal(t, 200, c.Status)
	}
	assert.Equal(t, int32(2), a.hits.Load())

	res = execute(t, "", "envs", "check", "--operation", "list_students")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "takes arguments")
}

func TestEnvsCheck_Failure(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)
	a.server.Close()

	res := execute(t, "", "envs", "check")
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "local")
	assert.Contains(t, res.stderr, "2 of 2 environment(s) failed")
}

func TestAuth_SetShowClear(t *testing.T) {
	setupTestEnv(t, nil)

	res := execute(t, testToken+"\n", "auth", "set", "token")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Stored auth_token for local")

	res = execute(t, "", "auth", "show", "-o", "json")
	require.NoError(t, res.err)
	var rows []storedCredential
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &rows))
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Stored)
	assert.NotEqual(t, testToken, rows[0].Value)
	assert.False(t, rows[1].Stored)

	res = execute(t, "", "auth", "show", "--reveal")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, testToken)

	res = execute(t, "", "auth", "clear")
	require.NoError(t, res.err)
	res = execute(t, "", "auth", "show")
	require.NoError(t, res.err)
	assert.NotContains(t, res.stdout, testToken[:4]+"****")
	assert.Contains(t, res.stdout, "(not set)")
}

func TestAuth_InvalidInput(t *testing.T) {
	setupTestEnv(t, nil)

	res := execute(t, "", "auth", "set", "password", "x")
	assert.Equal(t, exitUsage, res.code)

	res = execute(t, "", "-e", "qa", "auth", "show")
	assert.Equal(t, exitUsage, res.code)

	res = execute(t, "", "auth", "set", "api_key")
	require.Error(t, res.err)
}

func TestVersion(t *testing.T) {
	a := newTestAPI(t)
	setupTestEnv(t, a)

	res := execute(t, "", "version")
	require.NoError(t, res.err)
	assert.Equal(t, "bubbles version dev\n", res.stdout)
	assert.Equal(t, int32(0), a.hits.Load())

	res = execute(t, "", "version", "--require", "1.5.0")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Sinking Moon API (local) version 2.0.0")

	res = execute(t, "", "version", "--require", "3.0.0")
	require.Error(t, res.err)
	assert.Equal(t, exitGeneric, res.code)
	assert.Contains(t, res.stderr, "older than required 3.0.0")
}

func TestUnknownCommandSuggests(t *testing.T) {
	setupTestEnv(t, nil)

	res := execute(t, "", "endpionts")
	require.Error(t, res.err)
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, `Did you mean "endpoints"?`)
}

func TestInvalidOutputFormat(t *testing.T) {
	setupTestEnv(t, nil)

	res := execute(t, "", "envs", "-o", "yaml")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "invalid output format")
}
