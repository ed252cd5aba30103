/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"github.com/acronis/go-cbrcache/cbr"
	"github.com/acronis/go-cbrcache/config"
	"github.com/acronis/go-cbrcache/httpclient"
	"github.com/acronis/go-cbrcache/httpserver"
	"github.com/acronis/go-cbrcache/log"
	"github.com/acronis/go-cbrcache/lrucache"
	"github.com/acronis/go-cbrcache/profserver"
	"github.com/acronis/go-cbrcache/storage"
	"github.com/acronis/go-cbrcache/storage/redis"
	"github.com/acronis/go-cbrcache/storage/sqlite"
)

// envVarsPrefix makes e.g. CBRCACHE_STORAGE_TYPE override "storage.type".
const envVarsPrefix = "cbrcache"

// AppConfig is the whole service configuration.
type AppConfig struct {
	Log        *log.Config
	Server     *httpserver.Config
	ProfServer *profserver.Config
	Cache      *lrucache.Config
	Checkpoint *lrucache.CheckpointConfig
	Storage    *storage.Config
	Redis      *redis.Config
	SQLite     *sqlite.Config
	CBR        *cbr.Config
	CBRHTTP    *httpclient.Config
}

// NewAppConfig creates an empty AppConfig to be filled by config.Loader.
func NewAppConfig() *AppConfig {
	return &AppConfig{
		Log:        log.NewConfig(),
		Server:     httpserver.NewConfig(),
		ProfServer: profserver.NewDefaultConfig(),
		Cache:      &lrucache.Config{},
		Checkpoint: &lrucache.CheckpointConfig{},
		Storage:    &storage.Config{},
		Redis:      redis.NewDefaultConfig(),
		SQLite:     sqlite.NewDefaultConfig(),
		CBR:        &cbr.Config{},
		CBRHTTP:    httpclient.NewConfigWithKeyPrefix("cbr.http"),
	}
}

var _ config.Config = (*AppConfig)(nil)

// SetProviderDefaults implements config.Config.
func (c *AppConfig) SetProviderDefaults(dp config.DataProvider) {
	config.CallSetProviderDefaultsForFields(c, dp)
}

// Set implements config.Config.
func (c *AppConfig) Set(dp config.DataProvider) error {
	return config.CallSetForFields(c, dp)
}

// loadAppConfig fills cfg from the YAML file (if path is not empty), environment variables and defaults.
func loadAppConfig(cfg *AppConfig, path string) error {
	loader := config.NewDefaultLoader(envVarsPrefix)
	if path == "" {
		return loader.Load(cfg)
	}
	return loader.LoadFromFile(path, config.DataTypeYAML, cfg)
}
