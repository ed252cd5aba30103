/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package cbr is a client of the Central Bank of Russia currency rates service
// (https://www.cbr.ru/development/SXML/) that memoizes responses in a cache.
//
// Rates are handled as exact decimals (github.com/shopspring/decimal) all the way from the provider
// document through the cache to the caller. Every failure is reported as ErrUnavailable,
// additionally wrapping ErrNetwork, ErrParse or ErrRateNotFound. Nothing is retried.
package cbr
