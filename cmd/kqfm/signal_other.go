// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build !unix

package main

import (
	"context"

	"github.com/thejerf/suture/v4"

	"github.com/kqfm/kqfm/lib/svcutil"
	"github.com/kqfm/kqfm/lib/watcher"
)

// There is no SIGUSR1 here, so nothing ever asks for a dump.
func newDumpService(*watcher.Loop) suture.Service {
	return svcutil.AsService(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, "dumpService")
}
