package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, resolved, err := Load(nil, path)
	req.NoError(err)
	req.Equal(path, resolved)
	req.Equal(Default(), cfg)

	_, statErr := os.Stat(path)
	req.NoError(statErr)
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	req.NoError(os.WriteFile(path, []byte("addr: \":9090\"\nevent_queue_size: 32\nlivekit:\n  enabled: true\n"), 0o600))

	t.Setenv("AGRIAI_EVENT_QUEUE_SIZE", "128")
	t.Setenv("AGRIAI_LIVEKIT_API_KEY", "devkey")
	t.Setenv("AGRIAI_SHUTDOWN_TIMEOUT", "9s")

	cfg, _, err := Load(nil, path)
	req.NoError(err)
	req.Equal(":9090", cfg.Addr)
	req.Equal(128, cfg.EventQueueSize)
	req.True(cfg.LiveKit.Enabled)
	req.Equal("devkey", cfg.LiveKit.APIKey)
	req.Equal(9*time.Second, cfg.ShutdownTimeout)
}

func TestLoadReadsDotEnv(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	t.Chdir(dir)
	req.NoError(os.WriteFile(filepath.Join(dir, ".env"), []byte("AGRIAI_JWT_ISSUER=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("AGRIAI_JWT_ISSUER") })

	cfg, _, err := Load(nil, filepath.Join(dir, "config.yaml"))
	req.NoError(err)
	req.Equal("from-dotenv", cfg.JWTIssuer)
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":7000", JWTRequired: true, LiveKit: LiveKitConfig{URL: "wss://lk"}})

	require.Equal(t, ":7000", cfg.Addr)
	require.True(t, cfg.JWTRequired)
	require.Equal(t, "wss://lk", cfg.LiveKit.URL)
	require.Equal(t, Default().EventQueueSize, cfg.EventQueueSize)
}
