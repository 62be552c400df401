// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package automaxprocs matches GOMAXPROCS to the container CPU quota when
// imported. The watcher loop itself is single threaded; the setting only
// bounds the runtime and the auxiliary services.
package automaxprocs

import (
	"github.com/kqfm/kqfm/lib/logger"

	"go.uber.org/automaxprocs/maxprocs"
)

var l = logger.DefaultLogger.NewFacility("maxprocs", "GOMAXPROCS adjustment")

func init() {
	if _, err := maxprocs.Set(maxprocs.Logger(l.Debugf)); err != nil {
		l.Debugln("Setting GOMAXPROCS:", err)
	}
}
