/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import "github.com/prometheus/client_golang/prometheus"

// Unit represents a service unit that can be started and stopped.
type Unit interface {
	// Start runs the unit. It may return at once or block for the unit's lifetime.
	// A failure is reported by writing to fatalErr. The channel must not be used after Start returns.
	Start(fatalErr chan<- error)

	// Stop halts the unit. It may be called even if Start has failed or was never called.
	Stop(gracefully bool) error
}

// MetricsRegisterer is an interface for objects that can register its own metrics.
type MetricsRegisterer interface {
	MustRegisterMetrics(reg prometheus.Registerer)
	UnregisterMetrics(reg prometheus.Registerer)
}
