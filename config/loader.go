/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"io"
)

// Loader reads configuration data into a DataProvider and then fills Config sections from it.
// Defaults of all sections are registered before any section is set.
type Loader struct {
	DataProvider DataProvider
}

// NewDefaultLoader returns a Loader backed by viper that also looks at environment variables
// with the given prefix (e.g. prefix "cbrcache" makes "CBRCACHE_LOG_LEVEL" override "log.level").
func NewDefaultLoader(envVarsPrefix string) *Loader {
	va := NewViperAdapter()
	if envVarsPrefix != "" {
		va.UseEnvVars(envVarsPrefix)
	}
	return NewLoader(va)
}

// NewLoader returns a Loader over the given DataProvider.
func NewLoader(dp DataProvider) *Loader {
	return &Loader{dp}
}

// LoadFromFile reads the file and fills the passed sections.
func (l *Loader) LoadFromFile(path string, dataType DataType, cfg Config, cfgs ...Config) error {
	if err := l.DataProvider.SetFromFile(path, dataType); err != nil {
		return err
	}
	return l.Load(cfg, cfgs...)
}

// LoadFromReader reads the data and fills the passed sections.
func (l *Loader) LoadFromReader(reader io.Reader, dataType DataType, cfg Config, cfgs ...Config) error {
	if err := l.DataProvider.SetFromReader(reader, dataType); err != nil {
		return err
	}
	return l.Load(cfg, cfgs...)
}

// Load fills the passed sections from whatever the DataProvider already holds
// (defaults and environment variables only, if nothing was read).
func (l *Loader) Load(cfg Config, cfgs ...Config) error {
	all := append([]Config{cfg}, cfgs...)
	for _, c := range all {
		c.SetProviderDefaults(dataProviderFor(l.DataProvider, c))
	}
	for _, c := range all {
		if err := c.Set(dataProviderFor(l.DataProvider, c)); err != nil {
			return err
		}
	}
	return nil
}
