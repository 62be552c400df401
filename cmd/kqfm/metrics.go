// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thejerf/suture/v4"

	"github.com/kqfm/kqfm/lib/svcutil"
)

// newMetricsService serves /metrics on addr. Failing to listen disables
// metrics without affecting the watcher.
func newMetricsService(addr string) suture.Service {
	return svcutil.AsService(func(ctx context.Context) error {
		handler := http.NewServeMux()
		handler.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ln, err := net.Listen("tcp", addr)
		if err != nil {
			l.Warnln("Metrics listener:", err)
			return svcutil.NoRestartErr(err)
		}
		l.Infoln("Serving metrics on", ln.Addr())

		stop := context.AfterFunc(ctx, func() { srv.Close() })
		defer stop()

		err = srv.Serve(ln)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}, "metrics")
}
