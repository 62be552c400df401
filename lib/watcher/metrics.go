// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package watcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPathsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kqfm",
		Subsystem: "watcher",
		Name:      "paths_registered_total",
		Help:      "Total number of paths read from the control stream and watched",
	})
	metricEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kqfm",
		Subsystem: "watcher",
		Name:      "events_total",
		Help:      "Total number of reported changes, per kind",
	}, []string{"kind"})
	metricInputBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kqfm",
		Subsystem: "watcher",
		Name:      "input_bytes_total",
		Help:      "Total number of bytes read from the control stream",
	})
	metricDumps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kqfm",
		Subsystem: "watcher",
		Name:      "dumps_total",
		Help:      "Total number of registry dumps written",
	})
	metricReportWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kqfm",
		Subsystem: "watcher",
		Name:      "report_write_errors_total",
		Help:      "Total number of change reports that could not be written",
	})
)
