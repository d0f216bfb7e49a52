package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/99designs/keyring"

	"github.com/sinkingmoon/bubbles/internal/config"
	"github.com/sinkingmoon/bubbles/internal/iocontext"
)

const (
	testToken  = "eyJ0eXAiOiJKV1QiLCJhbGciOiJIUzI1NiJ9.test-token"
	testAPIKey = "e4150c01953cd24ac18084b1cb0ddcb3766de03a"
	loginToken = "login-issued-token-0123456789"
)

const testConfigTemplate = `
endpoints:
  - method: get
    location: version
    expect_json: true
  - method: get
    location: students
    authenticated: true
    name: list_students
    expect_json: true
  - method: get
    location: students/{id}
    authenticated: true
    name: get_student
    expect_json: true
    query: [include]
  - method: post
    location: login
    api_key_required: true
    expect_json: true
    encode_authorization: [username, password]
  - method: post
    location: students
    authenticated: true
    name: create_student
    expect_json: true
    body: true
  - method: get
    location: health
    expect_json: true
local_environment:
  scheme: %[1]s
  host: %[2]s
  port: %[3]s
staging_environment:
  scheme: %[1]s
  host: %[2]s
  port: %[3]s
`

// testAPI is a fake of the student API used by command tests.
type testAPI struct {
	server *httptest.Server
	hits   atomic.Int32

	mu       sync.Mutex
	lastAuth string
	lastBody map[string]any
}

func (a *testAPI) seen() (string, map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastAuth, a.lastBody
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	a := &testAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"name":"Sinking Moon API","versionName":"2.0.0","deployDate":"2018-01-02"}`)
	})
	mux.HandleFunc("GET /students", func(w http.ResponseWriter, r *http.Request) {
		if !a.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, `{"error":"invalid token"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"students":[{"name":"Joe Blow","zip":"90263"}]}`)
	})
	mux.HandleFunc("GET /students/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !a.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, `{"error":"invalid token"}`)
			return
		}
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"id":%q,"include":%q}`, r.PathValue("id"), r.URL.Query().Get("include")))
	})
	mux.HandleFunc("POST /students", func(w http.ResponseWriter, r *http.Request) {
		if !a.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, `{"error":"invalid token"}`)
			return
		}
		a.readBody(r)
		writeJSON(w, http.StatusCreated, `{"id":2}`)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		body := a.readBody(r)
		if r.Header.Get("X-Api-Key") != testAPIKey {
			writeJSON(w, http.StatusForbidden, `{"error":"invalid api key"}`)
			return
		}
		if body["username"] != "scottj" || body["password"] != "123qwe456" {
			writeJSON(w, http.StatusUnauthorized, `{"error":"invalid credentials"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"id":1,"name":"Scott Johnson","username":"scottj","email":"scottj@sinkingmoon.com","auth_token":"`+loginToken+`"}`)
	})

	a.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.hits.Add(1)
		a.mu.Lock()
		a.lastAuth = r.Header.Get("Authorization")
		a.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(a.server.Close)
	return a
}

func (a *testAPI) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+testToken
}

func (a *testAPI) readBody(r *http.Request) map[string]any {
	var body map[string]any
	data, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(data, &body)
	a.mu.Lock()
	a.lastBody = body
	a.mu.Unlock()
	return body
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// setupTestEnv isolates the process environment, writes a config file
// pointing at a and installs an in-memory credential store.
func setupTestEnv(t *testing.T, a *testAPI) config.CredentialStore {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, key := range []string{
		config.EnvDefaultEnv, config.EnvAPIKey, config.EnvRedisURL,
		envAuthToken, envStoredKey, "BUBBLES_OUTPUT",
	} {
		t.Setenv(key, "")
	}

	if a != nil {
		u, err := url.Parse(a.server.URL)
		if err != nil {
			t.Fatalf("parse server url: %v", err)
		}
		path := filepath.Join(t.TempDir(), "bubbles.yaml")
		content := fmt.Sprintf(testConfigTemplate, u.Scheme, u.Hostname(), u.Port())
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv(config.EnvConfigPath, path)
	} else {
		t.Setenv(config.EnvConfigPath, filepath.Join(t.TempDir(), "missing.yaml"))
	}

	store := config.NewKeyringStore(keyring.NewArrayKeyring(nil))
	orig := newCredentialStore
	newCredentialStore = func() (config.CredentialStore, error) { return store, nil }
	t.Cleanup(func() { newCredentialStore = orig })
	return store
}

type cmdResult struct {
	stdout string
	stderr string
	err    error
	code   int
}

// execute runs the CLI with buffered streams and an optional stdin.
func execute(t *testing.T, stdin string, args ...string) cmdResult {
	t.Helper()
	var out, errOut bytes.Buffer
	ctx := iocontext.WithIO(context.Background(), &iocontext.IO{
		Out:    &out,
		ErrOut: &errOut,
		In:     strings.NewReader(stdin),
	})
	err := Execute(ctx, args)
	return cmdResult{stdout: out.String(), stderr: errOut.String(), err: err, code: ExitCode(err)}
}
