// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package mux

import (
	"fmt"
	"path/filepath"

	"github.com/syncthing/notify"
)

// Notify does not block on sending to channel, so the channel must be buffered.
// The actual number is magic.
const backendBuffer = 500

type notifyMux struct {
	*portable
	events chan notify.EventInfo
}

func openNotify(in Input) (Multiplexer, error) {
	p, err := newPortable("notify", in)
	if err != nil {
		return nil, err
	}
	return &notifyMux{
		portable: p,
		events:   make(chan notify.EventInfo, backendBuffer),
	}, nil
}

func (m *notifyMux) Watch(path string, token any) error {
	key, err := resolve(path)
	if err != nil {
		return fmt.Errorf("couldn't open %s: %w", path, err)
	}
	return m.register(key, path, token, func() error {
		return notify.Watch(key, m.events, notifyTable.Mask())
	})
}

// Event paths come back absolute and with symlinks resolved.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func (m *notifyMux) Wait() (Event, error) {
	if m.closed {
		return Event{}, ErrClosed
	}
	m.input.release()

	for {
		if ev, ok := m.next(); ok {
			return ev, nil
		}

		// Detect channel overflow
		if len(m.events) == backendBuffer {
		outer:
			for {
				select {
				case <-m.events:
				default:
					break outer
				}
			}
			metricOverflows.WithLabelValues("notify").Inc()
			l.Warnln("Notify event buffer overflowed, changes were lost")
		}

		ready, errs := m.input.channels()
		select {
		case ev := <-ready:
			m.input.received()
			return ev, nil
		case err := <-errs:
			return Event{}, fmt.Errorf("couldn't read input: %w", err)
		case ei := <-m.events:
			l.Debugf("notify: %s %v", ei.Path(), ei.Event())
			m.changed(ei.Path(), notifyTable.Translate(ei.Event()))
		case <-m.interrupt:
			return Event{Type: Interrupted}, nil
		}
	}
}

func (m *notifyMux) Close() error {
	if m.closed {
		return nil
	}
	m.close()
	notify.Stop(m.events)
	return nil
}
