/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cbr

import (
	"fmt"
	"net/url"

	"github.com/acronis/go-cbrcache/config"
)

const cfgDefaultKeyPrefix = "cbr"

const cfgKeyBaseURL = "baseURL"

// Config is the "cbr" section of the service configuration.
// HTTP client settings live under "cbr.http" (see httpclient.Config).
type Config struct {
	BaseURL string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// KeyPrefix implements config.KeyPrefixProvider.
func (c *Config) KeyPrefix() string {
	return cfgDefaultKeyPrefix
}

// SetProviderDefaults implements config.Config.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyBaseURL, DefaultBaseURL)
}

// Set implements config.Config.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.BaseURL, err = dp.GetString(cfgKeyBaseURL); err != nil {
		return err
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return dp.WrapKeyErr(cfgKeyBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return dp.WrapKeyErr(cfgKeyBaseURL, fmt.Errorf("should be absolute http(s) URL"))
	}
	return nil
}
