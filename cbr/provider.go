/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cbr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the address of the public CBR service.
const DefaultBaseURL = "https://www.cbr.ru"

const (
	currencyCodesPath = "/scripts/XML_valFull.asp"
	dailyRatesPath    = "/scripts/XML_daily.asp"

	providerDateFormat = "02/01/2006"
	maxDocumentSize    = 4 << 20
)

// Provider returns raw XML documents of the rates service.
type Provider interface {
	// CurrencyCodesDocument returns the currency reference document (XML_valFull).
	CurrencyCodesDocument(ctx context.Context) ([]byte, error)

	// DailyRatesDocument returns the rates document (XML_daily) for the date.
	DailyRatesDocument(ctx context.Context, date time.Time) ([]byte, error)
}

// HTTPProvider is a Provider that talks to the service over HTTP.
type HTTPProvider struct {
	client  *http.Client
	baseURL string
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates an HTTPProvider. Timeouts, logging and rate limiting are up to httpClient.
func NewHTTPProvider(baseURL string, httpClient *http.Client) (*HTTPProvider, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be absolute http(s) URL", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPProvider{client: httpClient, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// CurrencyCodesDocument implements Provider.
func (p *HTTPProvider) CurrencyCodesDocument(ctx context.Context) ([]byte, error) {
	return p.get(ctx, currencyCodesPath, nil)
}

// DailyRatesDocument implements Provider.
func (p *HTTPProvider) DailyRatesDocument(ctx context.Context, date time.Time) ([]byte, error) {
	return p.get(ctx, dailyRatesPath, url.Values{"date_req": {date.Format(providerDateFormat)}})
}

func (p *HTTPProvider) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	reqURL := p.baseURL + path
	if len(query) != 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDocumentSize))
		return nil, fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", path, err)
	}
	return data, nil
}
