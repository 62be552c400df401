// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package mux

import "golang.org/x/sys/unix"

// openPath opens path for event notification only, so the watch neither
// reads the file nor keeps its volume from being unmounted.
func openPath(path string) (int, error) {
	return unix.Open(path, unix.O_EVTONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
}
