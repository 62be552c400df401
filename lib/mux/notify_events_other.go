// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd

// Catch all platforms that are not specifically handled to use the generic
// event types.

package mux

import (
	"github.com/kqfm/kqfm/lib/changes"

	"github.com/syncthing/notify"
)

var notifyTable = changes.Table[notify.Event]{
	{Native: notify.Remove, Kind: changes.Delete},
	{Native: notify.Write, Kind: changes.Write},
	{Native: notify.Create, Kind: changes.Link},
	{Native: notify.Rename, Kind: changes.Rename},
}
