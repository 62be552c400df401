// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package mux

import (
	"errors"
	"fmt"

	"github.com/kqfm/kqfm/lib/changes"

	"golang.org/x/sys/unix"
)

// On kqueue every change kind is a vnode note of its own.
var kqueueTable = changes.Table[uint32]{
	{Native: unix.NOTE_DELETE, Kind: changes.Delete},
	{Native: unix.NOTE_WRITE, Kind: changes.Write},
	{Native: unix.NOTE_EXTEND, Kind: changes.Extend},
	{Native: unix.NOTE_ATTRIB, Kind: changes.Attrib},
	{Native: unix.NOTE_LINK, Kind: changes.Link},
	{Native: unix.NOTE_RENAME, Kind: changes.Rename},
	{Native: unix.NOTE_REVOKE, Kind: changes.Revoke},
}

var noteAll = kqueueTable.Mask()

const kqueueBatch = 64

type kqueueMux struct {
	kq      int
	input   int
	waker   *waker
	watches map[uint64]registration
	events  []unix.Kevent_t
	pending []Event
	closed  bool
}

func openNative(in Input) (Multiplexer, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("couldn't get kqueue: %w", err)
	}
	unix.CloseOnExec(kq)

	w, err := newWaker()
	if err != nil {
		unix.Close(kq)
		return nil, err
	}

	m := &kqueueMux{
		kq:      kq,
		input:   in.Fd,
		waker:   w,
		watches: make(map[uint64]registration),
		events:  make([]unix.Kevent_t, kqueueBatch),
	}

	evs := make([]unix.Kevent_t, 2)
	unix.SetKevent(&evs[0], in.Fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_CLEAR)
	unix.SetKevent(&evs[1], w.r, unix.EVFILT_READ, unix.EV_ADD|unix.EV_CLEAR)
	if _, err := unix.Kevent(kq, evs, nil, nil); err != nil {
		m.Close()
		return nil, fmt.Errorf("couldn't set input event: %w", err)
	}
	return m, nil
}

func (m *kqueueMux) Watch(path string, token any) error {
	if m.closed {
		return ErrClosed
	}

	fd, err := openPath(path)
	if err != nil {
		return fmt.Errorf("couldn't open %s: %w", path, err)
	}

	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, unix.EVFILT_VNODE, unix.EV_ADD|unix.EV_CLEAR)
	ev.Fflags = noteAll
	if _, err := unix.Kevent(m.kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		unix.Close(fd)
		return fmt.Errorf("couldn't monitor %s: %w", path, err)
	}

	m.watches[uint64(fd)] = registration{path: path, token: token}
	metricRegistrations.WithLabelValues("kqueue").Inc()
	l.Debugln("Watching", path, "as", fd)
	return nil
}

func (m *kqueueMux) Wait() (Event, error) {
	if m.closed {
		return Event{}, ErrClosed
	}

	for len(m.pending) == 0 {
		n, err := unix.Kevent(m.kq, nil, m.events, nil)
		if errors.Is(err, unix.EINTR) {
			return Event{Type: Interrupted}, nil
		}
		if err != nil {
			return Event{}, fmt.Errorf("error checking kqueue: %w", err)
		}

		woken := false
		for _, ev := range m.events[:n] {
			if ev.Flags&unix.EV_ERROR != 0 {
				return Event{}, fmt.Errorf("error checking kqueue: %w", unix.Errno(ev.Data))
			}
			ident := uint64(ev.Ident)
			switch {
			case ev.Filter == unix.EVFILT_READ && ident == uint64(m.waker.r):
				m.waker.drain()
				woken = true
			case ev.Filter == unix.EVFILT_READ && m.input >= 0 && ident == uint64(m.input):
				m.pending = append(m.pending, Event{
					Type:  InputReady,
					Ready: int(ev.Data),
					EOF:   ev.Flags&unix.EV_EOF != 0,
				})
			case ev.Filter == unix.EVFILT_VNODE:
				reg, ok := m.watches[ident]
				if !ok {
					continue
				}
				l.Debugf("kqueue: %s fflags %#x", reg.path, ev.Fflags)
				// Fflags outside the table still report, with no labels.
				kind := kqueueTable.Translate(ev.Fflags)
				m.pending = append(m.pending, Event{Type: PathChanged, Token: reg.token, Changes: kind})
			}
		}
		if woken && len(m.pending) == 0 {
			return Event{Type: Interrupted}, nil
		}
	}

	ev := m.pending[0]
	m.pending = m.pending[1:]
	return ev, nil
}

func (m *kqueueMux) StopInput() error {
	if m.closed {
		return ErrClosed
	}
	if m.input < 0 {
		return nil
	}
	var ev unix.Kevent_t
	unix.SetKevent(&ev, m.input, unix.EVFILT_READ, unix.EV_DELETE)
	_, err := unix.Kevent(m.kq, []unix.Kevent_t{ev}, nil, nil)
	m.input = -1
	if err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("couldn't remove input event: %w", err)
	}
	return nil
}

func (m *kqueueMux) Interrupt() {
	m.waker.wake()
}

func (m *kqueueMux) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	for fd := range m.watches {
		unix.Close(int(fd))
	}
	m.watches = nil
	m.waker.close()
	return unix.Close(m.kq)
}
