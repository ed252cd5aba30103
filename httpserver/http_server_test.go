/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-cbrcache/httpserver/middleware"
	"github.com/acronis/go-cbrcache/log/logtest"
	"github.com/acronis/go-cbrcache/restapi"
	"github.com/acronis/go-cbrcache/testutil"
)

const testErrDomain = "CBRCache"

func newTestServer(t *testing.T, cfg *Config, reg *prometheus.Registry) (*HTTPServer, *logtest.Recorder) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	logRecorder := logtest.NewRecorder()
	srv := New(cfg, logRecorder, Opts{
		ErrorDomain: testErrDomain,
		APIRoutes: map[APIVersion]APIRoute{
			1: func(router chi.Router) {
				router.Get("/ping", func(rw http.ResponseWriter, r *http.Request) {
					restapi.RespondText(rw, "pong", middleware.GetLoggerFromContext(r.Context()))
				})
				router.Get("/rates/{code}", func(rw http.ResponseWriter, r *http.Request) {
					restapi.RespondJSON(rw, map[string]string{"code": chi.URLParam(r, "code")},
						middleware.GetLoggerFromContext(r.Context()))
				})
				router.Get("/panic", func(rw http.ResponseWriter, r *http.Request) {
					panic("unexpected nil cache")
				})
				router.Post("/echo", func(rw http.ResponseWriter, r *http.Request) {
					if _, err := io.ReadAll(r.Body); err != nil {
						rw.WriteHeader(http.StatusRequestEntityTooLarge)
						return
					}
					rw.WriteHeader(http.StatusNoContent)
				})
			},
		},
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Listener:       listener,
	})
	srv.MustRegisterMetrics(reg)
	t.Cleanup(func() { srv.UnregisterMetrics(reg) })

	fatalErr := make(chan error, 1)
	go srv.Start(fatalErr)
	t.Cleanup(func() {
		require.NoError(t, srv.Stop(true))
		testutil.RequireNoErrorInChannel(t, fatalErr)
	})
	require.NoError(t, testutil.WaitListeningServer(listener.Addr().String(), 3*time.Second))
	srv.URL = "http://" + listener.Addr().String()
	return srv, logRecorder
}

func doRequest(t *testing.T, method, url string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHTTPServer_Routes(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv, logRecorder := newTestServer(t, NewDefaultConfig(), reg)

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/ping", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, restapi.ContentTypeTextPlain, resp.Header.Get("Content-Type"))
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "pong", string(body))

	resp = doRequest(t, http.MethodGet, srv.URL+"/v1/rates/USD", nil)
	testutil.RequireJSONInResponse(t, resp, &map[string]string{"code": "USD"}, &map[string]string{})

	resp = doRequest(t, http.MethodGet, srv.URL+"/v2/ping", nil)
	testutil.RequireErrorInResponse(t, resp, http.StatusNotFound, testErrDomain, restapi.ErrCodeNotFound)

	resp = doRequest(t, http.MethodPost, srv.URL+"/v1/ping", nil)
	testutil.RequireErrorInResponse(t, resp, http.StatusMethodNotAllowed, testErrDomain, restapi.ErrCodeMethodNotAllowed)

	resp = doRequest(t, http.MethodGet, srv.URL+"/v1/panic", nil)
	testutil.RequireErrorInResponse(t, resp, http.StatusInternalServerError, testErrDomain, restapi.ErrCodeInternal)

	resp = doRequest(t, http.MethodGet, srv.URL+HealthCheckEndpoint, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NotEmpty(t, logRecorder.FindAllEntriesByFilter(func(e logtest.RecordedEntry) bool {
		return strings.HasPrefix(e.Text, "response completed in")
	}))
	_, found := logRecorder.FindEntry("Panic: unexpected nil cache")
	require.True(t, found)

	labels := func(pattern string, status int) prometheus.Labels {
		return prometheus.Labels{"method": http.MethodGet, "route_pattern": pattern,
			"user_agent_type": "http-client", "status_code": fmt.Sprint(status)}
	}
	hist := srv.metricsCollector.Durations.With(labels("/v1/rates/{code}", http.StatusOK)).(prometheus.Histogram)
	testutil.RequireSamplesCountInHistogram(t, hist, 1)
	hist = srv.metricsCollector.Durations.With(labels("/v1/panic", http.StatusInternalServerError)).(prometheus.Histogram)
	testutil.RequireSamplesCountInHistogram(t, hist, 1)

	resp = doRequest(t, http.MethodGet, srv.URL+MetricsEndpoint, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	metricsBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(metricsBody), "http_request_duration_seconds")
	// System endpoints are not measured.
	require.NotContains(t, string(metricsBody), `route_pattern="/healthz"`)
}

func TestHTTPServer_MaxBodySize(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Limits.MaxBodySizeBytes = 8
	srv, _ := newTestServer(t, cfg, prometheus.NewRegistry())

	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/echo", strings.NewReader("short"))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, srv.URL+"/v1/echo", strings.NewReader("this body is too long"))
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestHTTPServer_StartStop(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Address = testutil.GetLocalAddrWithFreeTCPPort()
	srv := New(cfg, logtest.NewLogger(), Opts{})
	require.Equal(t, "http://"+cfg.Address, srv.URL)
	network, addr := srv.NetworkAndAddr()
	require.Equal(t, "tcp", network)
	require.Equal(t, cfg.Address, addr)

	fatalErr := make(chan error, 1)
	go srv.Start(fatalErr)
	require.NoError(t, testutil.WaitListeningServer(cfg.Address, 3*time.Second))

	_, port, err := net.SplitHostPort(cfg.Address)
	require.NoError(t, err)
	require.Equal(t, port, fmt.Sprint(srv.GetPort()))

	require.NoError(t, srv.Stop(false))
	testutil.RequireNoErrorInChannel(t, fatalErr)
}

func TestHTTPServer_UnixSocket(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.UnixSocketPath = filepath.Join(t.TempDir(), "cbrcache.sock")
	srv := New(cfg, logtest.NewLogger(), Opts{})
	require.Equal(t, "http://localhost", srv.URL)

	fatalErr := make(chan error, 1)
	go srv.Start(fatalErr)

	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, "unix", cfg.UnixSocketPath)
		},
	}}
	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = client.Get(srv.URL + HealthCheckEndpoint)
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Stop(true))
	testutil.RequireNoErrorInChannel(t, fatalErr)
}

func TestHTTPServer_ListenError(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()

	cfg := NewDefaultConfig()
	cfg.Address = listener.Addr().String()
	srv := New(cfg, logtest.NewLogger(), Opts{})

	fatalErr := make(chan error, 1)
	srv.Start(fatalErr)
	require.Error(t, <-fatalErr)
}

func TestGetChiRoutePattern(t *testing.T) {
	router := chi.NewRouter()
	var pattern string
	router.Route("/v1", func(r chi.Router) {
		r.Get("/rates/{code}", func(rw http.ResponseWriter, r *http.Request) {
			pattern = GetChiRoutePattern(r)
		})
	})
	router.ServeHTTP(&discardResponseWriter{}, mustNewRequest(t, "/v1/rates/EUR"))
	require.Equal(t, "/v1/rates/{code}", pattern)

	require.Empty(t, GetChiRoutePattern(mustNewRequest(t, "/v1/rates/EUR")))
}

func mustNewRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

type discardResponseWriter struct {
	header http.Header
}

func (w *discardResponseWriter) Header() http.Header {
	if w.header == nil {
		w.header = http.Header{}
	}
	return w.header
}

func (w *discardResponseWriter) Write(b []byte) (int, error) { return len(b), nil }

func (w *discardResponseWriter) WriteHeader(int) {}
