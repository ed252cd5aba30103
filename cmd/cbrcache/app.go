/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acronis/go-cbrcache/cbr"
	"github.com/acronis/go-cbrcache/httpclient"
	"github.com/acronis/go-cbrcache/httpserver"
	"github.com/acronis/go-cbrcache/httpserver/middleware"
	"github.com/acronis/go-cbrcache/internal/appinfo"
	"github.com/acronis/go-cbrcache/internal/ratesapi"
	"github.com/acronis/go-cbrcache/log"
	"github.com/acronis/go-cbrcache/lrucache"
	"github.com/acronis/go-cbrcache/profserver"
	"github.com/acronis/go-cbrcache/restapi"
	"github.com/acronis/go-cbrcache/service"
	"github.com/acronis/go-cbrcache/storage"
	"github.com/acronis/go-cbrcache/storage/memory"
	"github.com/acronis/go-cbrcache/storage/redis"
	"github.com/acronis/go-cbrcache/storage/sqlite"
)

const (
	metricsNamespace    = "cbrcache"
	providerRequestType = "cbr"
	cacheCloseTimeout   = 10 * time.Second
)

type appOpts struct {
	// Listener is passed to the HTTP server as is (e.g. in tests).
	Listener net.Listener
}

// app holds the components of the running service.
// The cache outlives unit: it is closed only after all units are stopped.
type app struct {
	Cache  *lrucache.Cache
	Server *httpserver.HTTPServer
	Unit   *service.CompositeUnit
	logger log.FieldLogger
}

// newMetricsRegistry creates a registry with the process-wide collectors.
func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: metricsNamespace}),
		appinfo.NewBuildInfoCollector(metricsNamespace),
	)
	restapi.MustInitAndRegisterMetrics(metricsNamespace, reg)
	return reg
}

// newApp builds every component and initializes the cache.
// Metrics of the HTTP server are registered by service.Service, the rest are registered here.
func newApp(ctx context.Context, cfg *AppConfig, logger log.FieldLogger, reg *prometheus.Registry, opts appOpts) (*app, error) {
	httpClient, err := newProviderHTTPClient(cfg.CBRHTTP, logger, reg)
	if err != nil {
		return nil, fmt.Errorf("create provider http client: %w", err)
	}
	provider, err := cbr.NewHTTPProvider(cfg.CBR.BaseURL, httpClient)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	store, err := newStorage(cfg, logger)
	if err != nil {
		return nil, err
	}
	cacheMetrics := lrucache.NewPrometheusMetricsWithOpts(lrucache.PrometheusMetricsOpts{
		Namespace:   metricsNamespace,
		ConstLabels: prometheus.Labels{"cache": "rates"},
	})
	cacheMetrics.MustRegister(reg)
	cache, err := lrucache.NewWithOpts(cfg.Cache.MaxEntries, store, lrucache.Options{
		OrderKey:         cfg.Cache.OrderKey,
		MetricsCollector: cacheMetrics,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	if err = cache.Init(ctx); err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	logger.Info("cache initialized",
		log.String("storage", string(cfg.Storage.Type)), log.Int("max_entries", cfg.Cache.MaxEntries),
		log.Int("entries", cache.Len()))

	client := cbr.NewClient(provider, cache, logger)

	server := httpserver.New(cfg.Server, logger, httpserver.Opts{
		APIRoutes:      map[httpserver.APIVersion]httpserver.APIRoute{1: ratesapi.NewHandler(client, logger).Register},
		ErrorDomain:    ratesapi.ErrorDomain,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		HTTPRequestMetrics: httpserver.HTTPRequestMetricsOpts{
			Namespace: metricsNamespace,
		},
		Listener: opts.Listener,
	})

	units := []service.Unit{server}
	if cfg.Checkpoint.Enabled {
		units = append(units, service.NewWorkerUnit(lrucache.NewCheckpointWorker(cache, cfg.Checkpoint.Interval, logger)))
	}
	if cfg.ProfServer.Enabled {
		units = append(units, profserver.New(cfg.ProfServer, logger))
	}

	return &app{Cache: cache, Server: server, Unit: service.NewCompositeUnit(units...), logger: logger}, nil
}

// Close saves the access order and releases the storage.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), cacheCloseTimeout)
	defer cancel()
	if err := a.Cache.Close(ctx); err != nil {
		a.logger.Error("failed to close cache", log.Error(err))
		return err
	}
	a.logger.Info("cache closed", log.Int("entries", a.Cache.Len()))
	return nil
}

func newStorage(cfg *AppConfig, logger log.FieldLogger) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case storage.TypeMemory:
		return memory.New(), nil
	case storage.TypeRedis:
		return redis.New(cfg.Redis, logger), nil
	case storage.TypeSQLite:
		return sqlite.New(cfg.SQLite, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func newProviderHTTPClient(cfg *httpclient.Config, logger log.FieldLogger, reg prometheus.Registerer) (*http.Client, error) {
	clientCfg := *cfg
	if clientCfg.UserAgent == httpclient.DefaultUserAgent {
		clientCfg.UserAgent = appinfo.UserAgent()
	}
	collector := httpclient.NewPrometheusMetricsCollector(metricsNamespace)
	collector.MustRegister(reg)
	return httpclient.NewWithOpts(&clientCfg, httpclient.Opts{
		RequestType: providerRequestType,
		LoggerProvider: func(ctx context.Context) log.FieldLogger {
			if l := middleware.GetLoggerFromContext(ctx); l != nil {
				return l
			}
			return logger
		},
		RequestIDProvider: middleware.GetRequestIDFromContext,
		Collector:         collector,
	})
}
