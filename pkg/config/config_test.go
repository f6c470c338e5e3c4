package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "confsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFSYNC_ENV", "production")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.Sync.MinInterval)
	assert.Equal(t, 60*time.Second, cfg.Sync.MaxInterval)
	assert.Equal(t, 30*time.Second, cfg.Sync.SessionTimeout)
	assert.True(t, cfg.Sync.Download)
	assert.Equal(t, RemoteNone, cfg.Sync.Remote)
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("CONFSYNC_ENV", "production")

	path := writeConfig(t, `
node_id: laptop
data_dir: /var/lib/confsync
sync:
  remote: s3
  max_interval: 30s
  session_timeout: 10s
connectors:
  s3:
    bucket: rules
    prefix: team/
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "laptop", cfg.NodeID)
	assert.Equal(t, RemoteS3, cfg.Sync.Remote)
	assert.Equal(t, 30*time.Second, cfg.Sync.MaxInterval)
	assert.Equal(t, time.Second, cfg.Sync.MinInterval, "unset fields keep defaults")
	assert.Equal(t, "rules", cfg.Connectors.S3.Bucket)
	assert.Equal(t, "us-east-1", cfg.Connectors.S3.Region)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFSYNC_ENV", "production")
	t.Setenv("CONFSYNC_SYNC_REMOTE", "file")
	t.Setenv("CONFSYNC_FILE_DIR", "/srv/rules")
	t.Setenv("CONFSYNC_SYNC_ENABLED", "false")
	t.Setenv("CONFSYNC_SYNC_MAX_INTERVAL", "15s")

	cfg, err := Load(writeConfig(t, "sync:\n  remote: s3\n"))
	require.NoError(t, err)

	assert.Equal(t, RemoteFile, cfg.Sync.Remote)
	assert.Equal(t, "/srv/rules", cfg.Connectors.File.Dir)
	assert.False(t, cfg.Sync.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Sync.MaxInterval)
}

func TestLoadInvalidEnv(t *testing.T) {
	t.Setenv("CONFSYNC_ENV", "production")
	t.Setenv("CONFSYNC_SYNC_ENABLED", "sometimes")

	_, err := Load("")
	assert.ErrorContains(t, err, "CONFSYNC_SYNC_ENABLED")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "min below one second", mutate: func(c *Config) { c.Sync.MinInterval = 500 * time.Millisecond }, wantErr: "min_interval"},
		{name: "max above sixty seconds", mutate: func(c *Config) { c.Sync.MaxInterval = 2 * time.Minute }, wantErr: "max_interval"},
		{name: "min above max", mutate: func(c *Config) { c.Sync.MinInterval = 10 * time.Second; c.Sync.MaxInterval = 5 * time.Second }, wantErr: "exceeds"},
		{name: "no timeout", mutate: func(c *Config) { c.Sync.SessionTimeout = 0 }, wantErr: "session_timeout"},
		{name: "unknown remote", mutate: func(c *Config) { c.Sync.Remote = "github" }, wantErr: "unknown sync.remote"},
		{name: "no node id", mutate: func(c *Config) { c.NodeID = "" }, wantErr: "node_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
