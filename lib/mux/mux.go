// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package mux waits on the control stream and on every watched path at
// once, and turns whatever becomes ready into one Event at a time.
package mux

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/kqfm/kqfm/lib/changes"
)

type EventType int

const (
	// Interrupted is returned when the wait was cut short by Interrupt or a
	// signal. It carries nothing and is never an error.
	Interrupted EventType = iota
	// InputReady means the control stream has data or has reached its end.
	InputReady
	// PathChanged means a watched path changed.
	PathChanged
)

func (t EventType) String() string {
	switch t {
	case Interrupted:
		return "Interrupted"
	case InputReady:
		return "InputReady"
	case PathChanged:
		return "PathChanged"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// An Event is one ready notification.
type Event struct {
	Type EventType

	// Set for InputReady. Ready is the number of bytes reported readable,
	// which may be zero when the backend can't tell.
	Ready int
	EOF   bool

	// Set for PathChanged.
	Token   any
	Changes changes.Kind
}

func (e Event) String() string {
	switch e.Type {
	case InputReady:
		return fmt.Sprintf("%v{ready=%d eof=%v}", e.Type, e.Ready, e.EOF)
	case PathChanged:
		return fmt.Sprintf("%v{%v %v}", e.Type, e.Token, e.Changes)
	default:
		return e.Type.String()
	}
}

// A Multiplexer is owned by a single goroutine, except for Interrupt which
// may be called from anywhere.
type Multiplexer interface {
	// Wait blocks until at least one event is ready and returns it.
	Wait() (Event, error)
	// Watch registers path for every kind of change. The token is handed
	// back in each PathChanged event for this registration. Registering
	// the same path twice creates two independent registrations.
	Watch(path string, token any) error
	// StopInput stops reporting the control stream, once it has ended.
	StopInput() error
	// Interrupt makes a blocked or the next Wait return Interrupted.
	Interrupt()
	Close() error
}

type Backend string

const (
	// Auto is Native where the platform has it and Notify elsewhere.
	Auto     Backend = "auto"
	Native   Backend = "native"
	Notify   Backend = "notify"
	FSNotify Backend = "fsnotify"
)

// Input is the control stream. Native backends poll the descriptor; the
// portable ones only have the buffered reader to go by.
type Input struct {
	Fd     int
	Reader *bufio.Reader
}

var (
	ErrUnsupported = errors.New("backend not supported on this platform")
	ErrClosed      = errors.New("multiplexer is closed")
)

// Open returns a multiplexer of the given backend watching in.
func Open(backend Backend, in Input) (Multiplexer, error) {
	switch backend {
	case Auto:
		m, err := openNative(in)
		if errors.Is(err, ErrUnsupported) {
			l.Debugln("No native backend, using notify")
			return openNotify(in)
		}
		return m, err
	case Native:
		return openNative(in)
	case Notify:
		return openNotify(in)
	case FSNotify:
		return openFSNotify(in)
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// A registration is one Watch call.
type registration struct {
	path  string
	token any
}
