/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package storage

import (
	"github.com/acronis/go-cbrcache/config"
)

const cfgDefaultKeyPrefix = "storage"

const cfgKeyType = "type"

// Type is a kind of storage backend.
type Type string

// Storage backend types.
const (
	TypeMemory Type = "memory"
	TypeRedis  Type = "redis"
	TypeSQLite Type = "sqlite"
)

var availableTypes = []string{string(TypeMemory), string(TypeRedis), string(TypeSQLite)}

// Config is the "storage" section of the service configuration.
// Settings of the chosen backend live in its own subsection ("storage.redis", "storage.sqlite").
type Config struct {
	Type Type
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// KeyPrefix implements config.KeyPrefixProvider.
func (c *Config) KeyPrefix() string {
	return cfgDefaultKeyPrefix
}

// SetProviderDefaults implements config.Config.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyType, string(TypeMemory))
}

// Set implements config.Config.
func (c *Config) Set(dp config.DataProvider) error {
	typeStr, err := dp.GetStringFromSet(cfgKeyType, availableTypes, true)
	if err != nil {
		return err
	}
	c.Type = Type(typeStr)
	return nil
}
