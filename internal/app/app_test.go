package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `service_name: doorquest_test
loglevel: error
host: 127.0.0.1
port: "8000"
hasher:
  cost: 4
profile_pics:
  dir: ./profile_pics
  max_upload_bytes: 1048576
database:
  type: sqlite
  sqlite_config:
    path: ./database.db
    valid_tables: ["users"]
    valid_fields: ["id", "username", "password"]
`

func freePort(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	require.NoError(t, listener.Close())
	return port
}

func TestApp_RunServesAndShutsDown(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0o600))

	port := freePort(t)
	lookuper := envconfig.MapLookuper(map[string]string{
		"DOORQUEST_PORT":             port,
		"DOORQUEST_SQLITE_PATH":      filepath.Join(dir, "data", "database.db"),
		"DOORQUEST_PROFILE_PICS_DIR": filepath.Join(dir, "profile_pics"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := newApp(ctx, configPath, lookuper)
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, "profile_pics"))

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	baseURL := "http://127.0.0.1:" + port
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.PostForm(baseURL+"/register", url.Values{"username": {"alice"}, "password": {"pw"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `doorquest_test_requests_total{operation="register",outcome="success"} 1`))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not shut down")
	}
	assert.FileExists(t, filepath.Join(dir, "data", "database.db"))
}

func TestNewApp_InvalidConfig(t *testing.T) {
	_, err := NewApp(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
