/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cbr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-cbrcache/cbr/cbrtest"
	"github.com/acronis/go-cbrcache/log/logtest"
	"github.com/acronis/go-cbrcache/lrucache"
	"github.com/acronis/go-cbrcache/storage/memory"
)

func TestNewHTTPProvider(t *testing.T) {
	for _, baseURL := range []string{"", "www.cbr.ru", "ftp://www.cbr.ru", "http://[::1"} {
		_, err := NewHTTPProvider(baseURL, nil)
		require.Error(t, err, "base URL %q", baseURL)
	}
	p, err := NewHTTPProvider("https://www.cbr.ru/", nil)
	require.NoError(t, err)
	require.Equal(t, "https://www.cbr.ru", p.baseURL)
}

func TestHTTPProvider_Requests(t *testing.T) {
	var mu sync.Mutex
	var gotPaths, gotDates []string
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPaths = append(gotPaths, r.URL.Path)
		gotDates = append(gotDates, r.URL.Query().Get("date_req"))
		_, _ = rw.Write([]byte("<doc/>"))
	}))
	defer server.Close()

	p, err := NewHTTPProvider(server.URL, server.Client())
	require.NoError(t, err)

	doc, err := p.CurrencyCodesDocument(context.Background())
	require.NoError(t, err)
	require.Equal(t, "<doc/>", string(doc))

	_, err = p.DailyRatesDocument(context.Background(), date("2010-01-02"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"/scripts/XML_valFull.asp", "/scripts/XML_daily.asp"}, gotPaths)
	require.Equal(t, []string{"", "02/01/2010"}, gotDates)
}

func TestHTTPProvider_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusInternalServerError)
	}))
	p, err := NewHTTPProvider(server.URL, server.Client())
	require.NoError(t, err)

	_, err = p.CurrencyCodesDocument(context.Background())
	require.ErrorContains(t, err, "unexpected status 500")

	server.Close()
	_, err = p.DailyRatesDocument(context.Background(), date("2010-01-01"))
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.CurrencyCodesDocument(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_OverHTTP(t *testing.T) {
	ctx := context.Background()
	fixture := cbrtest.NewProvider()
	server := cbrtest.NewServer(fixture)
	defer server.Close()

	p, err := NewHTTPProvider(server.URL, server.Client())
	require.NoError(t, err)
	cache, err := lrucache.New(10, memory.New())
	require.NoError(t, err)
	require.NoError(t, cache.Init(ctx))
	logRecorder := logtest.NewRecorder()
	client := NewClient(p, cache, logRecorder)

	codes, err := client.GetCurrencyCodes(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"AUD", "USD", "EUR"}, codes)

	rate, err := client.GetCurrencyRateRelativeRUB(ctx, "EUR", date("2000-01-01"))
	require.NoError(t, err)
	require.Equal(t, "27.2", rate.String())

	_, err = client.GetCurrencyRateRelativeRUB(ctx, "EUR", date("2001-01-01"))
	require.ErrorIs(t, err, ErrRateNotFound)

	fixture.SetErr(context.DeadlineExceeded)
	_, err = client.GetCurrencyRateRelativeRUB(ctx, "USD", date("2020-01-01"))
	require.ErrorIs(t, err, ErrNetwork)
	_, found := logRecorder.FindEntry("failed to get currency rate")
	require.True(t, found)
}
