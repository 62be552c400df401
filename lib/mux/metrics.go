// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package mux

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRegistrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kqfm",
		Subsystem: "mux",
		Name:      "registrations_total",
		Help:      "Total number of path registrations per backend",
	}, []string{"backend"})
	metricOverflows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kqfm",
		Subsystem: "mux",
		Name:      "overflows_total",
		Help:      "Total number of times the backend dropped events",
	}, []string{"backend"})
)
