/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-cbrcache/httpserver/middleware"
	"github.com/acronis/go-cbrcache/log/logtest"
	"github.com/acronis/go-cbrcache/testutil"
)

func TestHealthCheckHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		fn         HealthCheck
		wantStatus int
		wantData   *healthCheckResponseData
		wantLog    bool
	}{
		{
			name:       "nil function",
			wantStatus: http.StatusOK,
			wantData:   &healthCheckResponseData{Components: map[string]bool{}},
		},
		{
			name: "all components are healthy",
			fn: func(context.Context) (HealthCheckResult, error) {
				return HealthCheckResult{"storage": HealthCheckStatusOK}, nil
			},
			wantStatus: http.StatusOK,
			wantData:   &healthCheckResponseData{Components: map[string]bool{"storage": true}},
		},
		{
			name: "unhealthy component",
			fn: func(context.Context) (HealthCheckResult, error) {
				return HealthCheckResult{"storage": HealthCheckStatusFail, "provider": HealthCheckStatusOK}, nil
			},
			wantStatus: http.StatusServiceUnavailable,
			wantData:   &healthCheckResponseData{Components: map[string]bool{"storage": false, "provider": true}},
		},
		{
			name: "error",
			fn: func(context.Context) (HealthCheckResult, error) {
				return nil, errors.New("redis: connection refused")
			},
			wantStatus: http.StatusInternalServerError,
			wantLog:    true,
		},
		{
			name: "client closed request",
			fn: func(context.Context) (HealthCheckResult, error) {
				return nil, context.Canceled
			},
			wantStatus: StatusClientClosedRequest,
			wantLog:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logRecorder := logtest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, HealthCheckEndpoint, nil)
			req = req.WithContext(middleware.NewContextWithLogger(req.Context(), logRecorder))
			resp := httptest.NewRecorder()

			NewHealthCheckHandler(tt.fn).ServeHTTP(resp, req)

			require.Equal(t, tt.wantStatus, resp.Code)
			if tt.wantData != nil {
				testutil.RequireJSONInRecorder(t, resp, tt.wantData, &healthCheckResponseData{})
			} else {
				testutil.RequireEmptyBodyInRecorder(t, resp)
			}
			_, found := logRecorder.FindEntry("error while checking health")
			require.Equal(t, tt.wantLog, found)
		})
	}
}
