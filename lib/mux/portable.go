// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package mux

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kqfm/kqfm/lib/changes"
)

var errNoReader = errors.New("portable backends need a buffered input reader")

// An inputPump learns about input readiness by blocking in a peek on the
// shared reader. After every report it leaves the reader alone until it is
// told to resume, so the loop can read from it without racing the pump.
type inputPump struct {
	r       *bufio.Reader
	ready   chan Event
	errs    chan error
	resume  chan struct{}
	stop    chan struct{}
	exited  chan struct{}
	owed    bool
	stopped bool
	once    sync.Once
}

func newInputPump(r *bufio.Reader) *inputPump {
	p := &inputPump{
		r:      r,
		ready:  make(chan Event),
		errs:   make(chan error),
		resume: make(chan struct{}),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go p.serve()
	return p
}

func (p *inputPump) serve() {
	defer close(p.exited)
	for {
		ev := Event{Type: InputReady}
		// Peeking one byte past what is buffered blocks until the stream
		// has something new to say.
		_, err := p.r.Peek(p.r.Buffered() + 1)
		switch {
		case err == nil, errors.Is(err, bufio.ErrBufferFull):
		case errors.Is(err, io.EOF):
			ev.EOF = true
		default:
			select {
			case p.errs <- err:
			case <-p.stop:
			}
			return
		}

		select {
		case p.ready <- ev:
		case <-p.stop:
			return
		}
		if ev.EOF {
			return
		}
		select {
		case <-p.resume:
		case <-p.stop:
			return
		}
	}
}

// release hands the reader back to the pump after the previous event was
// consumed.
func (p *inputPump) release() {
	if !p.owed {
		return
	}
	p.owed = false
	select {
	case p.resume <- struct{}{}:
	case <-p.exited:
	}
}

// channels returns what Wait selects on; both are nil once input stopped.
func (p *inputPump) channels() (<-chan Event, <-chan error) {
	if p.stopped {
		return nil, nil
	}
	return p.ready, p.errs
}

func (p *inputPump) received() {
	p.owed = true
}

// close stops the pump. A pump blocked in a read stays there until the
// stream produces data or ends.
func (p *inputPump) close() {
	p.stopped = true
	p.owed = false
	p.once.Do(func() { close(p.stop) })
}

// portable is shared by the backends that deliver changes on a channel.
type portable struct {
	name      string
	input     *inputPump
	interrupt chan struct{}
	watches   map[string][]registration
	pending   []Event
	closed    bool
}

func newPortable(name string, in Input) (*portable, error) {
	if in.Reader == nil {
		return nil, errNoReader
	}
	return &portable{
		name:      name,
		input:     newInputPump(in.Reader),
		interrupt: make(chan struct{}, 1),
		watches:   make(map[string][]registration),
	}, nil
}

// register records a registration under key, calling arm first when key
// has no backend watch yet. Missing paths fail like an open would.
func (p *portable) register(key, path string, token any, arm func() error) error {
	if p.closed {
		return ErrClosed
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("couldn't open %s: %w", path, err)
	}
	if _, ok := p.watches[key]; !ok {
		if err := arm(); err != nil {
			return fmt.Errorf("couldn't monitor %s: %w", path, err)
		}
	}
	p.watches[key] = append(p.watches[key], registration{path: path, token: token})
	metricRegistrations.WithLabelValues(p.name).Inc()
	l.Debugln(p.name, "watching", path, "as", key)
	return nil
}

// changed queues an event for every registration of name. Changes to an
// entry of a watched directory count as a write to the directory.
func (p *portable) changed(name string, kind changes.Kind) {
	if kind == 0 {
		return
	}
	regs, ok := p.watches[name]
	if !ok {
		regs, ok = p.watches[filepath.Dir(name)]
		kind = changes.Write
	}
	if !ok {
		return
	}
	for _, reg := range regs {
		p.pending = append(p.pending, Event{Type: PathChanged, Token: reg.token, Changes: kind})
	}
}

func (p *portable) next() (Event, bool) {
	if len(p.pending) == 0 {
		return Event{}, false
	}
	ev := p.pending[0]
	p.pending = p.pending[1:]
	return ev, true
}

func (p *portable) StopInput() error {
	if p.closed {
		return ErrClosed
	}
	p.input.close()
	return nil
}

func (p *portable) Interrupt() {
	select {
	case p.interrupt <- struct{}{}:
	default:
	}
}

func (p *portable) close() {
	p.closed = true
	p.input.close()
}
