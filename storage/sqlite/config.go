/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/acronis/go-cbrcache/config"
)

const cfgDefaultKeyPrefix = "storage.sqlite"

const (
	cfgKeyPath        = "path"
	cfgKeyBusyTimeout = "busyTimeout"
)

// Default values.
const (
	DefaultPath        = "cbrcache.db"
	DefaultBusyTimeout = 5 * time.Second
)

// Config is the "storage.sqlite" section of the service configuration.
type Config struct {
	// Path is the database file. It is created if it does not exist.
	Path        string
	BusyTimeout time.Duration
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewDefaultConfig returns a Config with default values.
func NewDefaultConfig() *Config {
	return &Config{Path: DefaultPath, BusyTimeout: DefaultBusyTimeout}
}

// KeyPrefix implements config.KeyPrefixProvider.
func (c *Config) KeyPrefix() string {
	return cfgDefaultKeyPrefix
}

// SetProviderDefaults implements config.Config.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyPath, DefaultPath)
	dp.SetDefault(cfgKeyBusyTimeout, DefaultBusyTimeout)
}

// Set implements config.Config.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Path, err = dp.GetString(cfgKeyPath); err != nil {
		return err
	}
	if strings.TrimSpace(c.Path) == "" {
		return dp.WrapKeyErr(cfgKeyPath, fmt.Errorf("cannot be empty"))
	}
	if c.BusyTimeout, err = dp.GetDuration(cfgKeyBusyTimeout); err != nil {
		return err
	}
	if c.BusyTimeout < 0 {
		return dp.WrapKeyErr(cfgKeyBusyTimeout, fmt.Errorf("should be >= 0"))
	}
	return nil
}
