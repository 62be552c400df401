// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package mux

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/kqfm/kqfm/lib/changes"

	"golang.org/x/sys/unix"
)

const (
	inotifyMask = unix.IN_MODIFY | unix.IN_ATTRIB | unix.IN_DELETE_SELF | unix.IN_MOVE_SELF |
		unix.IN_CREATE | unix.IN_DELETE | unix.IN_MOVED_FROM | unix.IN_MOVED_TO

	// Changes to the entries of a watched directory.
	inotifyEntryMask = unix.IN_CREATE | unix.IN_DELETE | unix.IN_MOVED_FROM | unix.IN_MOVED_TO

	inotifyBufferSize = 64 << 10
	epollBatch        = 16
)

// inotify has no notes for extension, links or deletion of a file that is
// still open somewhere, so those are told apart by the size and link count
// seen in the previous event.
type inotifyWatch struct {
	registration
	fd    int
	size  int64
	nlink uint64
}

func (w *inotifyWatch) translate(mask uint32) changes.Kind {
	var st unix.Stat_t
	statErr := unix.Fstat(w.fd, &st)
	nlink := uint64(st.Nlink)

	var kind changes.Kind
	if mask&unix.IN_MODIFY != 0 {
		kind |= changes.Write
		if statErr == nil && st.Size > w.size {
			kind |= changes.Extend
		}
	}
	if mask&unix.IN_ATTRIB != 0 {
		switch {
		case statErr != nil || nlink == w.nlink:
			kind |= changes.Attrib
		case nlink == 0:
			kind |= changes.Delete
		default:
			kind |= changes.Link
		}
	}
	if mask&inotifyEntryMask != 0 {
		kind |= changes.Write
		if statErr == nil && nlink != w.nlink {
			kind |= changes.Link
		}
	}
	if mask&unix.IN_DELETE_SELF != 0 {
		kind |= changes.Delete
	}
	if mask&unix.IN_MOVE_SELF != 0 {
		kind |= changes.Rename
	}
	if mask&unix.IN_UNMOUNT != 0 {
		kind |= changes.Revoke
	}

	if statErr == nil {
		w.size = st.Size
		w.nlink = nlink
	}
	return kind
}

type inotifyMux struct {
	epfd    int
	ifd     int
	input   int
	polled  bool
	waker   *waker
	watches map[int32][]*inotifyWatch
	buf     []byte
	events  [epollBatch]unix.EpollEvent
	pending []Event
	closed  bool
}

func openNative(in Input) (Multiplexer, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("couldn't get epoll: %w", err)
	}
	m := &inotifyMux{
		epfd:    epfd,
		ifd:     -1,
		input:   in.Fd,
		watches: make(map[int32][]*inotifyWatch),
		buf:     make([]byte, inotifyBufferSize),
	}

	m.ifd, err = unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("couldn't get inotify: %w", err)
	}
	m.waker, err = newWaker()
	if err != nil {
		m.Close()
		return nil, err
	}
	for _, fd := range []int{m.ifd, m.waker.r} {
		if err := m.poll(fd, unix.EPOLLIN); err != nil {
			m.Close()
			return nil, fmt.Errorf("couldn't set input event: %w", err)
		}
	}

	switch err := m.poll(in.Fd, unix.EPOLLIN|unix.EPOLLRDHUP); {
	case err == nil:
		m.polled = true
	case errors.Is(err, unix.EPERM):
		// Regular files and the like are always ready and can't be
		// polled. Everything in them can be read right away.
		l.Debugln("Input can't be polled, reading it to the end")
		m.pending = append(m.pending, Event{Type: InputReady, EOF: true})
	default:
		m.Close()
		return nil, fmt.Errorf("couldn't set input event: %w", err)
	}
	return m, nil
}

func (m *inotifyMux) poll(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (m *inotifyMux) Watch(path string, token any) error {
	if m.closed {
		return ErrClosed
	}

	fd, err := openPath(path)
	if err != nil {
		return fmt.Errorf("couldn't open %s: %w", path, err)
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return fmt.Errorf("couldn't open %s: %w", path, err)
	}

	wd, err := unix.InotifyAddWatch(m.ifd, path, inotifyMask)
	if err != nil {
		unix.Close(fd)
		return fmt.Errorf("couldn't monitor %s: %w", path, err)
	}

	w := &inotifyWatch{
		registration: registration{path: path, token: token},
		fd:           fd,
		size:         st.Size,
		nlink:        uint64(st.Nlink),
	}
	m.watches[int32(wd)] = append(m.watches[int32(wd)], w)
	metricRegistrations.WithLabelValues("inotify").Inc()
	l.Debugln("Watching", path, "as", wd)
	return nil
}

func (m *inotifyMux) Wait() (Event, error) {
	if m.closed {
		return Event{}, ErrClosed
	}

	for len(m.pending) == 0 {
		n, err := unix.EpollWait(m.epfd, m.events[:], -1)
		if errors.Is(err, unix.EINTR) {
			return Event{Type: Interrupted}, nil
		}
		if err != nil {
			return Event{}, fmt.Errorf("error checking epoll: %w", err)
		}

		woken := false
		for _, ev := range m.events[:n] {
			switch int(ev.Fd) {
			case m.waker.r:
				m.waker.drain()
				woken = true
			case m.ifd:
				if err := m.readInotify(); err != nil {
					return Event{}, err
				}
			case m.input:
				if m.input < 0 {
					continue
				}
				ready, err := unix.IoctlGetInt(m.input, unix.TIOCINQ)
				if err != nil {
					ready = 0
				}
				// Readable with nothing to read is the end of the stream
				// on ttys, which don't hang up.
				eof := ev.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 || ready == 0
				m.pending = append(m.pending, Event{Type: InputReady, Ready: ready, EOF: eof})
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

func (m *inotifyMux) readInotify() error {
	for {
		n, err := unix.Read(m.ifd, m.buf)
		switch {
		case errors.Is(err, unix.EAGAIN):
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		case err != nil:
			return fmt.Errorf("error checking inotify: %w", err)
		case n < unix.SizeofInotifyEvent:
			return fmt.Errorf("error checking inotify: short read of %d bytes", n)
		}

		for off := 0; off+unix.SizeofInotifyEvent <= n; {
			raw := (*unix.InotifyEvent)(unsafe.Pointer(&m.buf[off]))
			m.dispatch(raw.Wd, raw.Mask)
			off += unix.SizeofInotifyEvent + int(raw.Len)
		}
	}
}

func (m *inotifyMux) dispatch(wd int32, mask uint32) {
	if mask&unix.IN_Q_OVERFLOW != 0 {
		metricOverflows.WithLabelValues("inotify").Inc()
		l.Warnln("Inotify event queue overflowed, changes were lost")
		return
	}

	watches := m.watches[wd]
	for _, w := range watches {
		l.Debugf("inotify: %s mask %#x", w.path, mask)
		if kind := w.translate(mask); kind != 0 {
			m.pending = append(m.pending, Event{Type: PathChanged, Token: w.token, Changes: kind})
		}
	}

	if mask&unix.IN_IGNORED != 0 {
		l.Debugln("Watch", wd, "is gone")
		for _, w := range watches {
			unix.Close(w.fd)
		}
		delete(m.watches, wd)
	}
}

func (m *inotifyMux) StopInput() error {
	if m.closed {
		return ErrClosed
	}
	if m.input < 0 {
		return nil
	}
	input := m.input
	m.input = -1
	if !m.polled {
		return nil
	}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, input, nil); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("couldn't remove input event: %w", err)
	}
	return nil
}

func (m *inotifyMux) Interrupt() {
	if m.waker != nil {
		m.waker.wake()
	}
}

func (m *inotifyMux) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	for _, watches := range m.watches {
		for _, w := range watches {
			unix.Close(w.fd)
		}
	}
	m.watches = nil
	if m.waker != nil {
		m.waker.close()
	}
	if m.ifd >= 0 {
		unix.Close(m.ifd)
	}
	return unix.Close(m.epfd)
}
