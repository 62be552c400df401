// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package mux

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/kqfm/kqfm/lib/changes"

	"github.com/fsnotify/fsnotify"
)

var fsnotifyTable = changes.Table[fsnotify.Op]{
	{Native: fsnotify.Remove, Kind: changes.Delete},
	{Native: fsnotify.Write, Kind: changes.Write},
	{Native: fsnotify.Chmod, Kind: changes.Attrib},
	{Native: fsnotify.Create, Kind: changes.Link},
	{Native: fsnotify.Rename, Kind: changes.Rename},
}

type fsnotifyMux struct {
	*portable
	w *fsnotify.Watcher
}

func openFSNotify(in Input) (Multiplexer, error) {
	p, err := newPortable("fsnotify", in)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		p.close()
		return nil, fmt.Errorf("couldn't get fsnotify watcher: %w", err)
	}
	return &fsnotifyMux{portable: p, w: w}, nil
}

func (m *fsnotifyMux) Watch(path string, token any) error {
	key := filepath.Clean(path)
	return m.register(key, path, token, func() error {
		return m.w.Add(key)
	})
}

func (m *fsnotifyMux) Wait() (Event, error) {
	if m.closed {
		return Event{}, ErrClosed
	}
	m.input.release()

	for {
		if ev, ok := m.next(); ok {
			return ev, nil
		}

		ready, errs := m.input.channels()
		select {
		case ev := <-ready:
			m.input.received()
			return ev, nil
		case err := <-errs:
			return Event{}, fmt.Errorf("couldn't read input: %w", err)
		case fev, ok := <-m.w.Events:
			if !ok {
				return Event{}, ErrClosed
			}
			l.Debugln("fsnotify:", fev)
			m.changed(fev.Name, fsnotifyTable.Translate(fev.Op))
		case err, ok := <-m.w.Errors:
			if !ok {
				return Event{}, ErrClosed
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				metricOverflows.WithLabelValues("fsnotify").Inc()
				l.Warnln("Fsnotify event queue overflowed, changes were lost")
				continue
			}
			return Event{}, fmt.Errorf("error checking fsnotify: %w", err)
		case <-m.interrupt:
			return Event{Type: Interrupted}, nil
		}
	}
}

func (m *fsnotifyMux) Close() error {
	if m.closed {
		return nil
	}
	m.close()
	return m.w.Close()
}
