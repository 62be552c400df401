// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package mux

import (
	"github.com/kqfm/kqfm/lib/changes"

	"github.com/syncthing/notify"
)

var notifyTable = changes.Table[notify.Event]{
	{Native: notify.InDeleteSelf, Kind: changes.Delete},
	{Native: notify.InModify | notify.InCreate | notify.InDelete | notify.InMovedFrom | notify.InMovedTo, Kind: changes.Write},
	{Native: notify.InAttrib, Kind: changes.Attrib},
	{Native: notify.InMoveSelf, Kind: changes.Rename},
}
