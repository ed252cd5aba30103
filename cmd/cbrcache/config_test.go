/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-cbrcache/cbr"
	"github.com/acronis/go-cbrcache/httpclient"
	"github.com/acronis/go-cbrcache/lrucache"
	"github.com/acronis/go-cbrcache/storage"
)

func TestLoadAppConfig_Defaults(t *testing.T) {
	cfg := NewAppConfig()
	require.NoError(t, loadAppConfig(cfg, ""))

	require.Equal(t, storage.TypeMemory, cfg.Storage.Type)
	require.Equal(t, lrucache.DefaultOrderKey, cfg.Cache.OrderKey)
	require.Greater(t, cfg.Cache.MaxEntries, 0)
	require.False(t, cfg.Checkpoint.Enabled)
	require.False(t, cfg.ProfServer.Enabled)
	require.Equal(t, cbr.DefaultBaseURL, cfg.CBR.BaseURL)
	require.Equal(t, httpclient.DefaultUserAgent, cfg.CBRHTTP.UserAgent)
}

func TestLoadAppConfig_FileAndEnv(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
storage:
  type: sqlite
  sqlite:
    path: /var/lib/cbrcache/cache.db
cache:
  maxEntries: 500
checkpoint:
  enabled: true
  interval: 30s
cbr:
  http:
    timeout: 3s
`), 0o600))
	t.Setenv("CBRCACHE_CACHE_MAXENTRIES", "1000")

	cfg := NewAppConfig()
	require.NoError(t, loadAppConfig(cfg, cfgPath))

	require.Equal(t, storage.TypeSQLite, cfg.Storage.Type)
	require.Equal(t, "/var/lib/cbrcache/cache.db", cfg.SQLite.Path)
	require.Equal(t, 1000, cfg.Cache.MaxEntries)
	require.True(t, cfg.Checkpoint.Enabled)
	require.Equal(t, 30*time.Second, cfg.Checkpoint.Interval)
	require.Equal(t, 3*time.Second, cfg.CBRHTTP.Timeout)
}

func TestLoadAppConfig_Errors(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
storage:
  type: etcd
`), 0o600))
	err := loadAppConfig(NewAppConfig(), cfgPath)
	require.ErrorContains(t, err, "storage.type")

	err = loadAppConfig(NewAppConfig(), filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}
