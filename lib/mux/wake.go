// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package mux

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// A waker is a self pipe. Writing to it makes the read end ready, which
// lets another goroutine end a kernel wait.
type waker struct {
	r, w   int
	mut    sync.Mutex
	closed bool
}

func newWaker() (*waker, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, fmt.Errorf("couldn't create wakeup pipe: %w", err)
	}
	for _, fd := range p {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, fmt.Errorf("couldn't create wakeup pipe: %w", err)
		}
	}
	return &waker{r: p[0], w: p[1]}, nil
}

func (w *waker) wake() {
	w.mut.Lock()
	defer w.mut.Unlock()
	if w.closed {
		return
	}
	// A full pipe is already as awake as it gets.
	if _, err := unix.Write(w.w, []byte{0}); err != nil && !errors.Is(err, unix.EAGAIN) {
		l.Debugln("Wakeup:", err)
	}
}

func (w *waker) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(w.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (w *waker) close() {
	w.mut.Lock()
	defer w.mut.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	unix.Close(w.r)
	unix.Close(w.w)
}
