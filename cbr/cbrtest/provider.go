/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package cbrtest provides a fixture rates provider for tests: the same XML documents
// the CBR service serves (windows-1251 encoded, comma decimal separator), for a few currencies and dates.
package cbrtest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding/charmap"
)

type currency struct {
	id      string
	numCode string
	code    string
	name    string
	engName string
}

var currencies = []currency{
	{id: "R01010", numCode: "036", code: "AUD", name: "Австралийский доллар", engName: "Australian Dollar"},
	{id: "R01235", numCode: "840", code: "USD", name: "Доллар США", engName: "US Dollar"},
	{id: "R01239", numCode: "978", code: "EUR", name: "Евро", engName: "Euro"},
}

// Rates are keyed by date (YYYY-MM-DD) and currency code, written the way the service writes them.
var Rates = map[string]map[string]string{
	"2000-01-01": {"USD": "27,0000", "EUR": "27,2000", "AUD": "17,6300"},
	"2010-01-01": {"USD": "30,1851", "EUR": "43,4605", "AUD": "27,1304"},
	"2020-01-01": {"USD": "61,9057", "EUR": "69,3777", "AUD": "43,3835"},
}

// Provider serves fixture documents and counts requests. It implements cbr.Provider.
type Provider struct {
	mu         sync.Mutex
	err        error
	codesCalls int
	ratesCalls int
}

// NewProvider returns a Provider serving the fixture data.
func NewProvider() *Provider {
	return &Provider{}
}

// SetErr makes every following request fail with err (nil restores normal operation).
func (p *Provider) SetErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// CodesCalls returns how many times CurrencyCodesDocument was called.
func (p *Provider) CodesCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.codesCalls
}

// RatesCalls returns how many times DailyRatesDocument was called.
func (p *Provider) RatesCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ratesCalls
}

// CurrencyCodesDocument returns the XML_valFull document.
func (p *Provider) CurrencyCodesDocument(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	p.codesCalls++
	err := p.err
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	return CurrencyCodesXML(), nil
}

// DailyRatesDocument returns the XML_daily document for the date.
// Dates without fixture rates produce a document with no Valute elements.
func (p *Provider) DailyRatesDocument(ctx context.Context, date time.Time) ([]byte, error) {
	p.mu.Lock()
	p.ratesCalls++
	err := p.err
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	return DailyRatesXML(date), nil
}

// CurrencyCodesXML renders the XML_valFull document.
func CurrencyCodesXML() []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="windows-1251"?>` + "\n")
	sb.WriteString(`<Valuta name="Foreign Currency Market Lib">` + "\n")
	for _, c := range currencies {
		fmt.Fprintf(&sb, "<Item ID=%q><Name>%s</Name><EngName>%s</EngName><Nominal>1</Nominal>"+
			"<ParentCode>%s    </ParentCode><ISO_Num_Code>%s</ISO_Num_Code><ISO_Char_Code>%s</ISO_Char_Code></Item>\n",
			c.id, c.name, c.engName, c.id, c.numCode, c.code)
	}
	// Retired currencies are listed without an ISO code.
	sb.WriteString(`<Item ID="R01720A"><Name>Украинский карбованец</Name><EngName>Ukrainian Karbovanets</EngName>` +
		`<Nominal>10000</Nominal><ParentCode>R01720    </ParentCode><ISO_Num_Code></ISO_Num_Code><ISO_Char_Code></ISO_Char_Code></Item>` + "\n")
	sb.WriteString("</Valuta>\n")
	return encode(sb.String())
}

// DailyRatesXML renders the XML_daily document for the date.
func DailyRatesXML(date time.Time) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="windows-1251"?>` + "\n")
	fmt.Fprintf(&sb, "<ValCurs Date=%q name=\"Foreign Currency Market\">\n", date.Format("02.01.2006"))
	rates := Rates[date.Format(time.DateOnly)]
	for _, c := range currencies {
		value, ok := rates[c.code]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "<Valute ID=%q><NumCode>%s</NumCode><CharCode>%s</CharCode><Nominal>1</Nominal>"+
			"<Name>%s</Name><Value>%s</Value></Valute>\n", c.id, c.numCode, c.code, c.name, value)
	}
	sb.WriteString("</ValCurs>\n")
	return encode(sb.String())
}

func encode(s string) []byte {
	data, err := charmap.Windows1251.NewEncoder().String(s)
	if err != nil {
		panic(fmt.Sprintf("encode fixture document: %v", err))
	}
	return []byte(data)
}

// NewServer starts an HTTP server that serves the Provider documents at the service paths.
// Failures set with SetErr are served as 503.
func NewServer(p *Provider) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/scripts/XML_valFull.asp", func(rw http.ResponseWriter, r *http.Request) {
		doc, err := p.CurrencyCodesDocument(r.Context())
		writeDocument(rw, doc, err)
	})
	mux.HandleFunc("/scripts/XML_daily.asp", func(rw http.ResponseWriter, r *http.Request) {
		date, err := time.Parse("02/01/2006", r.URL.Query().Get("date_req"))
		if err != nil {
			http.Error(rw, "bad date_req", http.StatusBadRequest)
			return
		}
		doc, err := p.DailyRatesDocument(r.Context(), date)
		writeDocument(rw, doc, err)
	})
	return httptest.NewServer(mux)
}

func writeDocument(rw http.ResponseWriter, doc []byte, err error) {
	if err != nil {
		http.Error(rw, err.Error(), http.StatusServiceUnavailable)
		return
	}
	rw.Header().Set("Content-Type", "application/xml; charset=windows-1251")
	_, _ = rw.Write(doc)
}
