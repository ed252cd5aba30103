/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package ratesapi serves the public HTTP API of the service: currency codes known to the
// Central Bank of Russia and the difference of a currency rate between two dates.
package ratesapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/acronis/go-cbrcache/cbr"
	"github.com/acronis/go-cbrcache/httpserver/middleware"
	"github.com/acronis/go-cbrcache/log"
	"github.com/acronis/go-cbrcache/restapi"
)

// ErrorDomain is the domain of all REST API errors of the service.
const ErrorDomain = "CBRCache"

// API error codes and messages.
const (
	ErrCodeInvalidParameters    = "invalidParameters"
	ErrMessageInvalidParameters = "Invalid parameters"
	ErrCodeNoData               = "noData"
	ErrMessageNoData            = "No data"
	ErrCodeUnavailable          = "unavailable"
	ErrMessageUnavailable       = "Currency data is unavailable"
)

// Query parameters of the currency_rate_diff endpoint.
const (
	queryParamCode     = "code"
	queryParamFromDate = "from_date"
	queryParamToDate   = "to_date"
)

// minRateScale is the minimal number of decimal places in returned rates.
// Rates with more places reported by the provider are returned as is.
const minRateScale = 4

// RatesProvider returns currency data. *cbr.Client implements it.
type RatesProvider interface {
	GetCurrencyCodes(ctx context.Context) ([]string, error)
	GetCurrencyRateRelativeRUB(ctx context.Context, code string, date time.Time) (decimal.Decimal, error)
}

var _ RatesProvider = (*cbr.Client)(nil)

// CurrencyCodesResponse is the body of a successful GET /v1/currency_codes response.
type CurrencyCodesResponse struct {
	Codes []string `json:"codes"`
}

// RateDiffResponse is the body of a successful GET /v1/currency_rate_diff response.
// Rates are rubles per unit of the currency with four decimal places.
type RateDiffResponse struct {
	RateFrom   string `json:"rate_from"`
	RateTo     string `json:"rate_to"`
	Difference string `json:"difference"`
}

// Handler serves the v1 API.
type Handler struct {
	rates  RatesProvider
	logger log.FieldLogger
}

// NewHandler creates a new Handler. The logger is used when the request context carries none.
func NewHandler(rates RatesProvider, logger log.FieldLogger) *Handler {
	return &Handler{rates: rates, logger: logger}
}

// Register registers the v1 API routes in the router.
func (h *Handler) Register(router chi.Router) {
	router.Get("/ping", h.ping)
	router.Get("/currency_codes", h.currencyCodes)
	router.Get("/currency_rate_diff", h.currencyRateDiff)
}

func (h *Handler) getLogger(r *http.Request) log.FieldLogger {
	if logger := middleware.GetLoggerFromContext(r.Context()); logger != nil {
		return logger
	}
	return h.logger
}

func (h *Handler) ping(rw http.ResponseWriter, r *http.Request) {
	restapi.RespondText(rw, "pong", h.getLogger(r))
}

func (h *Handler) currencyCodes(rw http.ResponseWriter, r *http.Request) {
	logger := h.getLogger(r)
	codes, err := h.rates.GetCurrencyCodes(r.Context())
	if err != nil {
		h.respondFetchError(rw, r, err, http.StatusServiceUnavailable,
			restapi.NewError(ErrorDomain, ErrCodeUnavailable, ErrMessageUnavailable))
		return
	}
	restapi.RespondJSON(rw, CurrencyCodesResponse{Codes: codes}, logger)
}

func (h *Handler) currencyRateDiff(rw http.ResponseWriter, r *http.Request) {
	logger := h.getLogger(r)

	params, ok := parseRateDiffParams(r)
	if !ok {
		apiErr := restapi.NewError(ErrorDomain, ErrCodeInvalidParameters, ErrMessageInvalidParameters)
		restapi.RespondError(rw, http.StatusBadRequest, apiErr, logger)
		return
	}

	var rateFrom, rateTo decimal.Decimal
	eg, egCtx := errgroup.WithContext(r.Context())
	eg.Go(func() (err error) {
		rateFrom, err = h.rates.GetCurrencyRateRelativeRUB(egCtx, params.code, params.from)
		return err
	})
	eg.Go(func() (err error) {
		rateTo, err = h.rates.GetCurrencyRateRelativeRUB(egCtx, params.code, params.to)
		return err
	})
	if err := eg.Wait(); err != nil {
		apiErr := restapi.NewError(ErrorDomain, ErrCodeNoData, ErrMessageNoData).
			AddContext(queryParamCode, params.code).
			AddContext(queryParamFromDate, params.from.Format(time.DateOnly)).
			AddContext(queryParamToDate, params.to.Format(time.DateOnly))
		h.respondFetchError(rw, r, err, http.StatusBadRequest, apiErr)
		return
	}

	restapi.RespondJSON(rw, RateDiffResponse{
		RateFrom:   formatRate(rateFrom),
		RateTo:     formatRate(rateTo),
		Difference: formatRate(rateFrom.Sub(rateTo).Abs()),
	}, logger)
}

// formatRate pads d to minRateScale places and never rounds it.
func formatRate(d decimal.Decimal) string {
	return d.StringFixed(max(minRateScale, -d.Exponent()))
}

// respondFetchError responds with apiErr if the currency data is unavailable
// and with an internal error if the failure is unexpected.
func (h *Handler) respondFetchError(
	rw http.ResponseWriter, r *http.Request, err error, httpStatus int, apiErr *restapi.Error,
) {
	logger := h.getLogger(r)
	if !errors.Is(err, cbr.ErrUnavailable) {
		logger.Error("unexpected error while fetching currency data", log.Error(err))
		restapi.RespondInternalError(rw, ErrorDomain, logger)
		return
	}
	restapi.RespondError(rw, httpStatus, apiErr, logger)
}

type rateDiffParams struct {
	code string
	from time.Time
	to   time.Time
}

func parseRateDiffParams(r *http.Request) (rateDiffParams, bool) {
	query := r.URL.Query()
	params := rateDiffParams{code: query.Get(queryParamCode)}
	if params.code == "" {
		return params, false
	}
	var err error
	if params.from, err = time.Parse(time.DateOnly, query.Get(queryParamFromDate)); err != nil {
		return params, false
	}
	if params.to, err = time.Parse(time.DateOnly, query.Get(queryParamToDate)); err != nil {
		return params, false
	}
	return params, !params.to.Before(params.from)
}
