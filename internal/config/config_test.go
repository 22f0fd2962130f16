package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideaflow/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(10*1024*1024), cfg.Uploads.MaxBytes)
	assert.Equal(t, 12*time.Hour, cfg.Auth.AccessTTL)
	assert.Equal(t, "fs", cfg.Storage.Driver)
	assert.Len(t, cfg.Uploads.AllowedTypes, 10)
}

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "/v1", cfg.Server.BasePath)
}

func TestFromYAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := config.FromYAML([]byte("log:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "memory", cfg.Auth.SessionStore)
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ideaflow.yml")
	require.NoError(t, os.WriteFile(path, []byte("uploads:\n  max_bytes: 2048\n"), 0o644))
	cfg, err := config.FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), cfg.Uploads.MaxBytes)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"redis without url": "auth:\n  session_store: redis\n  redis_url: \"\"\n",
		"unknown store":     "auth:\n  session_store: etcd\n",
		"minio no endpoint": "storage:\n  driver: minio\n",
		"unknown driver":    "storage:\n  driver: s4\n",
		"zero upload limit": "uploads:\n  max_bytes: 0\n",
		"bad base path":     "server:\n  base_path: v1\n",
		"bad log format":    "log:\n  format: xml\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestIsAllowedType(t *testing.T) {
	cfg := config.Default()
	assert.True(t, cfg.IsAllowedType("application/pdf"))
	assert.True(t, cfg.IsAllowedType("text/plain; charset=utf-8"))
	assert.True(t, cfg.IsAllowedType("IMAGE/PNG"))
	assert.False(t, cfg.IsAllowedType("application/x-msdownload"))
	assert.False(t, cfg.IsAllowedType(""))
}
