// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/thejerf/suture/v4"

	"github.com/kqfm/kqfm/lib/watcher"
)

type dumpService struct {
	loop *watcher.Loop
	sigs chan os.Signal
}

// newDumpService catches SIGUSR1 from the moment it is created, which is
// before anything is read from stdin.
func newDumpService(loop *watcher.Loop) suture.Service {
	s := &dumpService{
		loop: loop,
		sigs: make(chan os.Signal, 1),
	}
	signal.Notify(s.sigs, syscall.SIGUSR1)
	return s
}

func (s *dumpService) Serve(ctx context.Context) error {
	for {
		select {
		case <-s.sigs:
			l.Debugln("Registry dump requested")
			s.loop.RequestDump()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *dumpService) String() string {
	return "dumpService"
}
