// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package watcher runs the single threaded loop that registers the paths
// read from the control stream and reports their changes.
package watcher

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kqfm/kqfm/lib/lineparser"
	"github.com/kqfm/kqfm/lib/mux"
	"github.com/kqfm/kqfm/lib/registry"
	"github.com/kqfm/kqfm/lib/svcutil"

	"golang.org/x/time/rate"
)

const writeWarningInterval = time.Minute

type flusher interface {
	Flush() error
}

// A Loop owns the multiplexer, the parser and the registry. Only
// RequestDump may be called while Serve runs.
type Loop struct {
	mux      mux.Multiplexer
	parser   *lineparser.Parser
	registry *registry.Registry
	report   io.Writer
	diag     io.Writer

	inputStopped bool
	dump         atomic.Bool
	writeWarning *rate.Limiter

	errMut sync.Mutex
	err    error
}

// New returns a loop reading paths with p, watching them with m, writing a
// line per change to report and registry dumps to diag.
func New(m mux.Multiplexer, p *lineparser.Parser, report, diag io.Writer) *Loop {
	return &Loop{
		mux:          m,
		parser:       p,
		registry:     registry.New(),
		report:       report,
		diag:         diag,
		writeWarning: rate.NewLimiter(rate.Every(writeWarningInterval), 1),
	}
}

// Serve waits for and handles events until one of them fails or ctx is
// cancelled. Failures are returned as fatal errors.
func (lp *Loop) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, lp.mux.Interrupt)
	defer stop()

	for {
		ev, err := lp.mux.Wait()
		lp.dumpIfRequested()
		if err != nil {
			return lp.fatal(err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		switch ev.Type {
		case mux.Interrupted:
		case mux.InputReady:
			if err := lp.handleInput(ev); err != nil {
				return lp.fatal(err)
			}
		case mux.PathChanged:
			lp.handleChange(ev)
		default:
			l.Debugln("Ignoring", ev)
		}
	}
}

func (lp *Loop) String() string {
	return fmt.Sprintf("watcher.Loop@%p", lp)
}

// RequestDump asks the loop to write the registered paths to the
// diagnostic stream next time it wakes up, and wakes it up.
func (lp *Loop) RequestDump() {
	lp.dump.Store(true)
	lp.mux.Interrupt()
}

// Registry returns the registered paths.
func (lp *Loop) Registry() *registry.Registry {
	return lp.registry
}

// Err returns the fatal error Serve stopped with, if any.
func (lp *Loop) Err() error {
	lp.errMut.Lock()
	defer lp.errMut.Unlock()
	return lp.err
}

func (lp *Loop) fatal(err error) error {
	ferr := svcutil.AsFatalErr(err, svcutil.ExitError)
	lp.errMut.Lock()
	lp.err = ferr
	lp.errMut.Unlock()
	return ferr
}

func (lp *Loop) handleInput(ev mux.Event) error {
	before := lp.parser.Consumed()
	err := lp.parser.Consume(ev.Ready, ev.EOF, lp.register)
	metricInputBytes.Add(float64(lp.parser.Consumed() - before))
	if err != nil {
		return err
	}

	if lp.parser.EOF() && !lp.inputStopped {
		lp.inputStopped = true
		l.Debugln("End of input after", lp.registry.Len(), "paths")
		return lp.mux.StopInput()
	}
	return nil
}

func (lp *Loop) register(path string) error {
	_, err := lp.registry.Append(path, func(e *registry.Entry) error {
		return lp.mux.Watch(e.Path(), e)
	})
	if err != nil {
		return err
	}
	metricPathsRegistered.Inc()
	l.Debugln("Watching", path)
	return nil
}

func (lp *Loop) handleChange(ev mux.Event) {
	entry, ok := ev.Token.(*registry.Entry)
	if !ok {
		l.Debugln("Ignoring", ev)
		return
	}

	labels := ev.Changes.Labels()
	for _, label := range labels {
		metricEvents.WithLabelValues(strings.ToLower(label)).Inc()
	}

	line := entry.Path() + "\t" + strings.Join(labels, ",") + "\n"
	if _, err := io.WriteString(lp.report, line); err != nil {
		lp.writeFailed(err)
		return
	}
	if f, ok := lp.report.(flusher); ok {
		if err := f.Flush(); err != nil {
			lp.writeFailed(err)
		}
	}
}

// Reports are best effort; a consumer that went away must not stop the
// watcher.
func (lp *Loop) writeFailed(err error) {
	metricReportWriteErrors.Inc()
	if lp.writeWarning.Allow() {
		l.Warnln("Writing change report:", err)
	}
}

func (lp *Loop) dumpIfRequested() {
	if !lp.dump.Swap(false) {
		return
	}
	metricDumps.Inc()
	if _, err := lp.registry.WriteTo(lp.diag); err != nil {
		l.Debugln("Writing registry dump:", err)
	}
}
