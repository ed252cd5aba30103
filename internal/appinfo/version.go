/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package appinfo provides the name and version of the running binary.
package appinfo

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Name is the application name used in the User-Agent header, logs and metrics.
const Name = "cbrcache"

const develVersion = "v0.0.0-devel"

var (
	version     string
	versionOnce sync.Once
)

// Version returns the module version the binary was built from, or "v0.0.0-devel" for local builds.
func Version() string {
	versionOnce.Do(func() {
		buildInfo, _ := debug.ReadBuildInfo()
		version = extractVersion(buildInfo)
	})
	return version
}

// UserAgent returns the default User-Agent for outgoing requests, e.g. "cbrcache/v1.2.0".
func UserAgent() string {
	return Name + "/" + Version()
}

// NewBuildInfoCollector returns a gauge that always equals 1 and carries the version and Go version as labels.
func NewBuildInfoCollector(namespace string) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "build_info",
		Help:        "Build information of the running binary.",
		ConstLabels: prometheus.Labels{"version": Version(), "goversion": runtime.Version()},
	}, func() float64 { return 1 })
}

func extractVersion(buildInfo *debug.BuildInfo) string {
	if buildInfo == nil {
		return develVersion
	}
	switch v := buildInfo.Main.Version; v {
	case "", "(devel)":
		return develVersion
	default:
		return v
	}
}
