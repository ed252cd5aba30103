/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cbr

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html/charset"
)

// Only the fields the client needs are declared.
type currencyCodesDocument struct {
	XMLName xml.Name `xml:"Valuta"`
	Items   []struct {
		ISOCharCode string `xml:"ISO_Char_Code"`
	} `xml:"Item"`
}

type dailyRatesDocument struct {
	XMLName xml.Name `xml:"ValCurs"`
	Valutes []struct {
		CharCode string `xml:"CharCode"`
		Value    string `xml:"Value"`
	} `xml:"Valute"`
}

// decodeDocument decodes the XML in whatever charset its declaration names (the service uses windows-1251).
func decodeDocument(data []byte, v interface{}) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	return dec.Decode(v)
}

// parseCurrencyCodes returns the non-empty ISO codes in document order, without duplicates.
func parseCurrencyCodes(data []byte) ([]string, error) {
	var doc currencyCodesDocument
	if err := decodeDocument(data, &doc); err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(doc.Items))
	seen := make(map[string]struct{}, len(doc.Items))
	for _, item := range doc.Items {
		code := strings.TrimSpace(item.ISOCharCode)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("no currency codes in document")
	}
	return codes, nil
}

// findRate returns the Value of the Valute with the code, normalized to use "." as decimal separator.
// found is false if the document has no such Valute.
func findRate(data []byte, code string) (text string, found bool, err error) {
	var doc dailyRatesDocument
	if err = decodeDocument(data, &doc); err != nil {
		return "", false, err
	}
	for _, v := range doc.Valutes {
		if strings.EqualFold(strings.TrimSpace(v.CharCode), code) {
			text = normalizeDecimal(v.Value)
			if _, err = parseRate(text); err != nil {
				return "", false, err
			}
			return text, true, nil
		}
	}
	return "", false, nil
}

func normalizeDecimal(s string) string {
	return strings.Replace(strings.TrimSpace(s), ",", ".", 1)
}

// parseRate parses a rate accepting either "," or "." as decimal separator.
func parseRate(s string) (decimal.Decimal, error) {
	s = normalizeDecimal(s)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty rate value")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid rate value %q: %w", s, err)
	}
	return d, nil
}
