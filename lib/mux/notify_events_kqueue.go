// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build (darwin && kqueue) || (darwin && !cgo) || dragonfly || freebsd || netbsd || openbsd

package mux

import (
	"github.com/kqfm/kqfm/lib/changes"

	"github.com/syncthing/notify"
)

var notifyTable = changes.Table[notify.Event]{
	{Native: notify.NoteDelete, Kind: changes.Delete},
	{Native: notify.NoteWrite, Kind: changes.Write},
	{Native: notify.NoteExtend, Kind: changes.Extend},
	{Native: notify.NoteAttrib, Kind: changes.Attrib},
	{Native: notify.NoteLink, Kind: changes.Link},
	{Native: notify.NoteRename, Kind: changes.Rename},
	{Native: notify.NoteRevoke, Kind: changes.Revoke},
}
