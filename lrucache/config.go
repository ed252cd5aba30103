/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"fmt"

	"github.com/acronis/go-cbrcache/config"
)

const cfgDefaultKeyPrefix = "cache"

const (
	cfgKeyMaxEntries = "maxEntries"
	cfgKeyOrderKey   = "orderKey"
)

// DefaultMaxEntries is the capacity used when the configuration does not set one.
const DefaultMaxEntries = 1000

// Config is the "cache" section of the service configuration.
type Config struct {
	MaxEntries int
	OrderKey   string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// KeyPrefix implements config.KeyPrefixProvider.
func (c *Config) KeyPrefix() string {
	return cfgDefaultKeyPrefix
}

// SetProviderDefaults implements config.Config.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMaxEntries, DefaultMaxEntries)
	dp.SetDefault(cfgKeyOrderKey, DefaultOrderKey)
}

// Set implements config.Config.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.MaxEntries, err = dp.GetInt(cfgKeyMaxEntries); err != nil {
		return err
	}
	if c.MaxEntries <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxEntries, fmt.Errorf("should be > 0"))
	}
	if c.OrderKey, err = dp.GetString(cfgKeyOrderKey); err != nil {
		return err
	}
	if c.OrderKey == "" {
		return dp.WrapKeyErr(cfgKeyOrderKey, fmt.Errorf("cannot be empty"))
	}
	return nil
}
