/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cbr

import (
	"errors"
	"fmt"
)

// ErrUnavailable is wrapped by every error returned by Client.
var ErrUnavailable = errors.New("currency data unavailable")

// Failure kinds wrapped together with ErrUnavailable.
var (
	ErrNetwork      = errors.New("provider request failed")
	ErrParse        = errors.New("malformed provider document")
	ErrRateNotFound = errors.New("no rate for currency on date")
)

func unavailable(kind error, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, kind)
	}
	return fmt.Errorf("%w: %w: %v", ErrUnavailable, kind, cause)
}
