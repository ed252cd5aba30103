/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package redis

import (
	"fmt"
	"time"

	"github.com/acronis/go-cbrcache/config"
)

const cfgDefaultKeyPrefix = "storage.redis"

const (
	cfgKeyAddr                = "addr"
	cfgKeyUsername            = "username"
	cfgKeyPassword            = "password"
	cfgKeyDB                  = "db"
	cfgKeyNamespace           = "namespace"
	cfgKeyDialTimeout         = "timeouts.dial"
	cfgKeyReadTimeout         = "timeouts.read"
	cfgKeyWriteTimeout        = "timeouts.write"
	cfgKeyOpenMaxRetries      = "open.maxRetries"
	cfgKeyOpenInitialInterval = "open.initialInterval"
)

// Default values.
const (
	DefaultAddr                = "localhost:6379"
	DefaultDialTimeout         = 5 * time.Second
	DefaultReadTimeout         = 3 * time.Second
	DefaultWriteTimeout        = 3 * time.Second
	DefaultOpenMaxRetries      = 5
	DefaultOpenInitialInterval = 200 * time.Millisecond
)

// Config is the "storage.redis" section of the service configuration.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int

	// Namespace is prepended to every key, so several services may share one database.
	Namespace string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// OpenMaxRetries and OpenInitialInterval control how long Open waits for the server to come up.
	OpenMaxRetries      int
	OpenInitialInterval time.Duration
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewDefaultConfig returns a Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Addr:                DefaultAddr,
		DialTimeout:         DefaultDialTimeout,
		ReadTimeout:         DefaultReadTimeout,
		WriteTimeout:        DefaultWriteTimeout,
		OpenMaxRetries:      DefaultOpenMaxRetries,
		OpenInitialInterval: DefaultOpenInitialInterval,
	}
}

// KeyPrefix implements config.KeyPrefixProvider.
func (c *Config) KeyPrefix() string {
	return cfgDefaultKeyPrefix
}

// SetProviderDefaults implements config.Config.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyAddr, DefaultAddr)
	dp.SetDefault(cfgKeyDialTimeout, DefaultDialTimeout)
	dp.SetDefault(cfgKeyReadTimeout, DefaultReadTimeout)
	dp.SetDefault(cfgKeyWriteTimeout, DefaultWriteTimeout)
	dp.SetDefault(cfgKeyOpenMaxRetries, DefaultOpenMaxRetries)
	dp.SetDefault(cfgKeyOpenInitialInterval, DefaultOpenInitialInterval)
}

// Set implements config.Config.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Addr, err = dp.GetString(cfgKeyAddr); err != nil {
		return err
	}
	if c.Addr == "" {
		return dp.WrapKeyErr(cfgKeyAddr, fmt.Errorf("cannot be empty"))
	}
	if c.Username, err = dp.GetString(cfgKeyUsername); err != nil {
		return err
	}
	if c.Password, err = dp.GetString(cfgKeyPassword); err != nil {
		return err
	}
	if c.DB, err = dp.GetInt(cfgKeyDB); err != nil {
		return err
	}
	if c.DB < 0 {
		return dp.WrapKeyErr(cfgKeyDB, fmt.Errorf("should be >= 0"))
	}
	if c.Namespace, err = dp.GetString(cfgKeyNamespace); err != nil {
		return err
	}

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{cfgKeyDialTimeout, &c.DialTimeout},
		{cfgKeyReadTimeout, &c.ReadTimeout},
		{cfgKeyWriteTimeout, &c.WriteTimeout},
		{cfgKeyOpenInitialInterval, &c.OpenInitialInterval},
	} {
		if *d.dst, err = dp.GetDuration(d.key); err != nil {
			return err
		}
		if *d.dst < 0 {
			return dp.WrapKeyErr(d.key, fmt.Errorf("should be >= 0"))
		}
	}

	if c.OpenMaxRetries, err = dp.GetInt(cfgKeyOpenMaxRetries); err != nil {
		return err
	}
	if c.OpenMaxRetries < 0 {
		return dp.WrapKeyErr(cfgKeyOpenMaxRetries, fmt.Errorf("should be >= 0"))
	}
	return nil
}
