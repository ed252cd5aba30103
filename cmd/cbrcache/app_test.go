/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-cbrcache/cbr"
	"github.com/acronis/go-cbrcache/cbr/cbrtest"
	"github.com/acronis/go-cbrcache/config"
	"github.com/acronis/go-cbrcache/internal/ratesapi"
	"github.com/acronis/go-cbrcache/log/logtest"
	"github.com/acronis/go-cbrcache/service"
	"github.com/acronis/go-cbrcache/testutil"
)

type runningApp struct {
	*app
	baseURL string
	cancel  context.CancelFunc
	done    chan error
}

func startApp(t *testing.T, cfg *AppConfig) *runningApp {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	logger := logtest.NewRecorder()
	reg := newMetricsRegistry()
	a, err := newApp(context.Background(), cfg, logger, reg, appOpts{Listener: ln})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- service.NewWithOpts(logger, a.Unit, service.Opts{MetricsRegisterer: reg}).StartContext(ctx)
	}()
	require.NoError(t, testutil.WaitListeningServer(ln.Addr().String(), 3*time.Second))

	return &runningApp{app: a, baseURL: "http://" + ln.Addr().String(), cancel: cancel, done: done}
}

func (ra *runningApp) stop(t *testing.T) {
	t.Helper()
	ra.cancel()
	select {
	case err := <-ra.done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service is not stopped in time")
	}
	require.NoError(t, ra.Close())
}

func loadTestAppConfig(t *testing.T, cfgData string) *AppConfig {
	t.Helper()
	cfg := NewAppConfig()
	err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(bytes.NewBufferString(cfgData), config.DataTypeYAML, cfg)
	require.NoError(t, err)
	return cfg
}

func TestApp_RateDiff(t *testing.T) {
	provider := cbrtest.NewProvider()
	providerSrv := cbrtest.NewServer(provider)
	defer providerSrv.Close()

	cfg := loadTestAppConfig(t, fmt.Sprintf(`
cache:
  maxEntries: 10
cbr:
  baseURL: %s
`, providerSrv.URL))

	ra := startApp(t, cfg)
	defer ra.stop(t)

	for i := 0; i < 2; i++ {
		resp, err := http.Get(ra.baseURL + "/v1/currency_rate_diff?code=USD&from_date=2010-01-01&to_date=2020-01-01")
		require.NoError(t, err)
		testutil.RequireJSONInResponse(t, resp,
			&ratesapi.RateDiffResponse{RateFrom: "30.1851", RateTo: "61.9057", Difference: "31.7206"},
			&ratesapi.RateDiffResponse{})
		require.NoError(t, resp.Body.Close())
	}
	require.Equal(t, 2, provider.RatesCalls())

	resp, err := http.Get(ra.baseURL + "/v1/currency_rate_diff?code=USD&from_date=2020-01-01&to_date=2010-01-01")
	require.NoError(t, err)
	testutil.RequireErrorInResponse(t, resp, http.StatusBadRequest, ratesapi.ErrorDomain, "invalidParameters")
	require.NoError(t, resp.Body.Close())

	resp, err = http.Get(ra.baseURL + "/metrics")
	require.NoError(t, err)
	metricsBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	for _, name := range []string{
		"cbrcache_build_info",
		"cbrcache_cache_hits_total",
		"cbrcache_http_client_request_duration_seconds",
		"cbrcache_http_request_duration_seconds",
		`cbrcache_restapi_response_errors{code="invalidParameters",domain="CBRCache"} 1`,
	} {
		require.Contains(t, string(metricsBody), name)
	}
}

func TestApp_PersistsOrderAcrossRestart(t *testing.T) {
	providerSrv := cbrtest.NewServer(cbrtest.NewProvider())
	defer providerSrv.Close()

	cfgData := fmt.Sprintf(`
storage:
  type: sqlite
  sqlite:
    path: %s
cache:
  maxEntries: 10
checkpoint:
  enabled: true
  interval: 1h
cbr:
  baseURL: %s
`, filepath.Join(t.TempDir(), "cache.db"), providerSrv.URL)

	ra := startApp(t, loadTestAppConfig(t, cfgData))
	resp, err := http.Get(ra.baseURL + "/v1/currency_rate_diff?code=EUR&from_date=2000-01-01&to_date=2010-01-01")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
	keysBefore := ra.Cache.Keys()
	require.ElementsMatch(t, []string{
		cbr.RateCacheKey("EUR", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)),
		cbr.RateCacheKey("EUR", time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)),
	}, keysBefore)
	ra.stop(t)

	ra = startApp(t, loadTestAppConfig(t, cfgData))
	defer ra.stop(t)
	require.Equal(t, keysBefore, ra.Cache.Keys())
}

func TestNewApp_InitError(t *testing.T) {
	cfg := loadTestAppConfig(t, `
storage:
  type: redis
  redis:
    addr: 127.0.0.1:1
    open:
      maxRetries: 1
      initialInterval: 10ms
`)
	_, err := newApp(context.Background(), cfg, logtest.NewRecorder(), newMetricsRegistry(), appOpts{})
	require.ErrorContains(t, err, "init cache")
}
