/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package config loads service configuration from YAML/JSON files and environment variables.
// Every configurable component exposes a type implementing Config, and Loader fills them all
// from a single DataProvider.
package config

import "reflect"

// Config is implemented by every configuration section that Loader can fill.
type Config interface {
	SetProviderDefaults(dp DataProvider)
	Set(dp DataProvider) error
}

// KeyPrefixProvider is implemented by sections that live under their own key (e.g. "storage.redis").
// Keys passed to the DataProvider are then relative to this prefix.
type KeyPrefixProvider interface {
	KeyPrefix() string
}

func dataProviderFor(dp DataProvider, cfg interface{}) DataProvider {
	if kp, ok := cfg.(KeyPrefixProvider); ok && kp.KeyPrefix() != "" {
		return NewKeyPrefixedDataProvider(dp, kp.KeyPrefix())
	}
	return dp
}

// CallSetProviderDefaultsForFields calls SetProviderDefaults for every exported non-nil field of *obj
// that implements Config. It lets a struct of sections be passed to Loader as a single Config.
func CallSetProviderDefaultsForFields(obj interface{}, dp DataProvider) {
	for _, c := range configFields(obj) {
		c.SetProviderDefaults(dataProviderFor(dp, c))
	}
}

// CallSetForFields calls Set for every exported non-nil field of *obj that implements Config.
// The first error is returned.
func CallSetForFields(obj interface{}, dp DataProvider) error {
	for _, c := range configFields(obj) {
		if err := c.Set(dataProviderFor(dp, c)); err != nil {
			return err
		}
	}
	return nil
}

func configFields(obj interface{}) []Config {
	el := reflect.ValueOf(obj).Elem()
	var res []Config
	for i := 0; i < el.NumField(); i++ {
		if !el.Type().Field(i).IsExported() {
			continue
		}
		f := el.Field(i)
		if f.Kind() == reflect.Ptr && f.IsNil() {
			continue
		}
		if c, ok := f.Interface().(Config); ok {
			res = append(res, c)
		}
	}
	return res
}
