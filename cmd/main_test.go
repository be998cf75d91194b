package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type testHost struct {
	dir    string
	config string
}

func newTestHost(t *testing.T, server string) *testHost {
	t.Helper()
	dir := t.TempDir()

	content := fmt.Sprintf(`
[agent]
agent_id = "test-agent"
agent_name = "Test Agent"

[collection]
include_services = false
include_software = false

[output]
output_directory = %q

[logging]
console = false
log_directory = %q

[retry]
max_retries = 1

[vault]
key_path = %q
token_path = %q
%s`,
		filepath.Join(dir, "data"),
		filepath.Join(dir, "logs"),
		filepath.Join(dir, "vault", ".key"),
		filepath.Join(dir, "vault", ".token"),
		server,
	)

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return &testHost{dir: dir, config: path}
}

func (h *testHost) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", h.config}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func serverSection(url string) string {
	return fmt.Sprintf("\n[server]\nenabled = true\nurl = %q\ntimeout_seconds = 5\n", url)
}

type fakeCollector struct {
	mu          sync.Mutex
	submissions int
	auth        []string
	snapshots   []map[string]interface{}
}

func (f *fakeCollector) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/agents/register/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.submissions++
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"pending","message":"awaiting approval"}`))
	})
	mux.HandleFunc("GET /api/agents/register/{id}/status/", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "test-agent" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"status":"approved","message":"ok","token":"agt_integration_token"}`))
	})
	mux.HandleFunc("POST /api/agents/data/", func(w http.ResponseWriter, r *http.Request) {
		var snap map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			t.Errorf("decode snapshot: %v", err)
		}
		f.mu.Lock()
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		f.snapshots = append(f.snapshots, snap)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	return mux
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	run := func(args ...string) error {
		cmd := newRootCommand()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs(append([]string{"--config", path}, args...))
		return cmd.Execute()
	}

	require.NoError(t, run("config", "init"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "[agent]")

	require.ErrorContains(t, run("config", "init"), "already exists")
	require.NoError(t, run("config", "init", "--force"))
}

func TestRegisterStatusUnregister(t *testing.T) {
	h := newTestHost(t, "")

	out, err := h.execute(t, "status")
	require.NoError(t, err)
	require.Contains(t, out, "Credential: missing")
	require.Contains(t, out, "Delivery:   disabled")
	require.Contains(t, out, "Schedule:   every 5m0s")

	out, err = h.execute(t, "register", "  agt_manual_token \n")
	require.NoError(t, err)
	require.Contains(t, out, "Credential stored")

	out, err = h.execute(t, "status")
	require.NoError(t, err)
	require.Contains(t, out, "Credential: present")

	out, err = h.execute(t, "unregister")
	require.NoError(t, err)
	require.Contains(t, out, "Credential deleted")

	out, err = h.execute(t, "unregister")
	require.NoError(t, err)
	require.Contains(t, out, "No credential stored")

	audit, err := os.ReadFile(filepath.Join(h.dir, "logs", "audit.log"))
	require.NoError(t, err)
	require.Contains(t, string(audit), "credential_saved")
	require.Contains(t, string(audit), "credential_deleted")
	require.NotContains(t, string(audit), "agt_manual_token")
}

func TestRegister_InvalidArguments(t *testing.T) {
	h := newTestHost(t, "")

	_, err := h.execute(t, "register")
	require.Error(t, err)

	_, err = h.execute(t, "register", "two words")
	require.ErrorContains(t, err, "invalid token")

	_, err = h.execute(t, "status", "extra")
	require.Error(t, err)
}

func TestRunOnce_LocalOnly(t *testing.T) {
	h := newTestHost(t, "")

	_, err := h.execute(t, "run", "--once")
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(h.dir, "data"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Name(), "snapshot_"))

	data, err := os.ReadFile(filepath.Join(h.dir, "data", entries[0].Name()))
	require.NoError(t, err)
	var snap map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &snap))
	require.Equal(t, "test-agent", snap["agent_id"])
	require.NotEmpty(t, snap["device_fingerprint"])
}

func TestRunOnce_RequiresCredential(t *testing.T) {
	h := newTestHost(t, serverSection("https://collector.invalid/api/agents/data/"))

	_, err := h.execute(t, "run", "--once")
	require.ErrorContains(t, err, "device-agent init")
}

func TestRunOnce_InvalidConfig(t *testing.T) {
	h := newTestHost(t, "\n[server]\nenabled = true\n")

	_, err := h.execute(t, "run", "--once")
	require.ErrorContains(t, err, "server.url")
}

func TestInitThenDeliver(t *testing.T) {
	fake := &fakeCollector{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	h := newTestHost(t, serverSection(srv.URL+"/api/agents/data/"))

	out, err := h.execute(t, "init", "--allow-fallback")
	require.NoError(t, err)
	require.Contains(t, out, "Registration submitted: awaiting approval")
	require.Contains(t, out, "credential stored")
	require.Equal(t, 1, fake.submissions)

	out, err = h.execute(t, "status")
	require.NoError(t, err)
	require.Contains(t, out, "Credential: present")

	_, err = h.execute(t, "run", "--once")
	require.NoError(t, err)

	require.Equal(t, []string{"Bearer agt_integration_token"}, fake.auth)
	require.Len(t, fake.snapshots, 1)
	require.Equal(t, "Test Agent", fake.snapshots[0]["agent_name"])
}

func TestRunOnce_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	h := newTestHost(t, serverSection(srv.URL+"/ingest/"))
	_, err := h.execute(t, "register", "agt_revoked")
	require.NoError(t, err)

	_, err = h.execute(t, "run", "--once")
	require.ErrorContains(t, err, "re-register")
}
