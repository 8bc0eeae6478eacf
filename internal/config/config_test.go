package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-finadmin-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	c := config.New()

	require.Equal(t, "http://localhost:8080", c.GetBaseURL())
	require.Equal(t, 15*time.Minute, c.GetAccessTokenMaxAge())
	require.Equal(t, 7*24*time.Hour, c.GetRefreshTokenMaxAge())
	require.Equal(t, 5*time.Second, c.GetRateLimitBackoff())
	require.Equal(t, "finadmin-dashboard", c.GetServiceName())
	require.Equal(t, ":8080", c.GetPort())
	require.Zero(t, c.GetRequestsPerSecond())
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
API_BASE_URL: https://api.example.com
REQUEST_TIMEOUT: 10s
ACCESS_TOKEN_MAX_AGE: 60
SERVICE_NAME: from-file
PORT: 9090
`), 0o600))

	t.Setenv("SERVICE_NAME", "from-env")

	c, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com", c.GetBaseURL())
	require.Equal(t, 10*time.Second, c.GetRequestTimeout())
	require.Equal(t, time.Minute, c.GetAccessTokenMaxAge())
	require.Equal(t, "from-env", c.GetServiceName())
	require.Equal(t, ":9090", c.GetPort())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
