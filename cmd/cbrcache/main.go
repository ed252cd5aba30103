/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Command cbrcache serves exchange rates of the Central Bank of Russia through an LRU cache.
//
// Usage:
//
//	cbrcache --config config.yml
//
// Every configuration key may be overridden by an environment variable, e.g. CBRCACHE_STORAGE_TYPE=redis.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/acronis/go-cbrcache/internal/appinfo"
	"github.com/acronis/go-cbrcache/log"
	"github.com/acronis/go-cbrcache/service"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg := NewAppConfig()
	if err := loadAppConfig(cfg, *cfgPath); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLogger := log.NewLogger(cfg.Log)
	defer closeLogger()
	logger = logger.With(log.String("version", appinfo.Version()))

	reg := newMetricsRegistry()
	a, err := newApp(context.Background(), cfg, logger, reg, appOpts{})
	if err != nil {
		logger.Error("failed to create service", log.Error(err))
		return err
	}

	svcErr := service.NewWithOpts(logger, a.Unit, service.Opts{MetricsRegisterer: reg}).Start()
	if closeErr := a.Close(); closeErr != nil && svcErr == nil {
		svcErr = fmt.Errorf("close cache: %w", closeErr)
	}
	return svcErr
}
