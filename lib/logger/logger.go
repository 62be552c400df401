// Copyright (C) 2014 Jakob Borg. All rights reserved. Use of this source code
// is governed by an MIT-style license that can be found in the LICENSE file.

// Package logger implements a standardized logger with per facility debugging
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
)

const (
	DefaultFlags = log.Ltime | log.Ldate
	DebugFlags   = log.Ltime | log.Ldate | log.Lmicroseconds | log.Lshortfile
)

// TraceEnv names the environment variable holding the facilities to debug.
const TraceEnv = "KQFM_TRACE"

type Logger interface {
	Debugln(vals ...interface{})
	Debugf(format string, vals ...interface{})
	Infoln(vals ...interface{})
	Infof(format string, vals ...interface{})
	Warnln(vals ...interface{})
	Warnf(format string, vals ...interface{})
	ShouldDebug(facility string) bool
	SetDebug(facility string, enabled bool)
	NewFacility(facility, description string) Logger
}

type logger struct {
	logger *log.Logger
	debug  map[string]struct{} // only facility names with debugging enabled
	traces []string
	mut    sync.Mutex
}

// DefaultLogger logs to the diagnostic stream with a time prefix. Standard
// output is reserved for change reports.
var DefaultLogger = New()

func New() Logger {
	if os.Getenv("KQFM_LOGGER_DISCARD") != "" {
		// Hack to completely disable logging, for example when running
		// benchmarks.
		return newLogger(io.Discard, "")
	}
	return newLogger(controlStripper{os.Stderr}, os.Getenv(TraceEnv))
}

// NewWithWriter returns a logger writing to w, with the facilities named in
// trace enabled for debugging as if they had been given in KQFM_TRACE.
func NewWithWriter(w io.Writer, trace string) Logger {
	return newLogger(controlStripper{w}, trace)
}

func newLogger(w io.Writer, trace string) Logger {
	traces := strings.FieldsFunc(trace, func(r rune) bool {
		return strings.ContainsRune(",; ", r)
	})

	if len(traces) > 0 {
		if slices.Contains(traces, "all") {
			traces = []string{"all"}
		} else {
			slices.Sort(traces)
		}
	}

	return &logger{
		logger: log.New(w, "", DefaultFlags),
		traces: traces,
		debug:  make(map[string]struct{}),
	}
}

// Debugln logs a line with a DEBUG prefix.
func (l *logger) Debugln(vals ...interface{}) {
	l.debugln(3, vals...)
}

func (l *logger) debugln(level int, vals ...interface{}) {
	s := fmt.Sprintln(vals...)
	l.mut.Lock()
	defer l.mut.Unlock()
	l.logger.Output(level, "DEBUG: "+s)
}

// Debugf logs a formatted line with a DEBUG prefix.
func (l *logger) Debugf(format string, vals ...interface{}) {
	l.debugf(3, format, vals...)
}

func (l *logger) debugf(level int, format string, vals ...interface{}) {
	s := fmt.Sprintf(format, vals...)
	l.mut.Lock()
	defer l.mut.Unlock()
	l.logger.Output(level, "DEBUG: "+s)
}

// Infoln logs a line with an INFO prefix.
func (l *logger) Infoln(vals ...interface{}) {
	l.output("INFO: ", fmt.Sprintln(vals...))
}

// Infof logs a formatted line with an INFO prefix.
func (l *logger) Infof(format string, vals ...interface{}) {
	l.output("INFO: ", fmt.Sprintf(format, vals...))
}

// Warnln logs a line with a WARNING prefix.
func (l *logger) Warnln(vals ...interface{}) {
	l.output("WARNING: ", fmt.Sprintln(vals...))
}

// Warnf logs a formatted line with a WARNING prefix.
func (l *logger) Warnf(format string, vals ...interface{}) {
	l.output("WARNING: ", fmt.Sprintf(format, vals...))
}

func (l *logger) output(prefix, s string) {
	l.mut.Lock()
	defer l.mut.Unlock()
	l.logger.Output(3, prefix+s)
}

// ShouldDebug returns true if the given facility has debugging enabled.
func (l *logger) ShouldDebug(facility string) bool {
	l.mut.Lock()
	_, res := l.debug[facility]
	l.mut.Unlock()
	return res
}

// SetDebug enabled or disables debugging for the given facility name.
func (l *logger) SetDebug(facility string, enabled bool) {
	l.mut.Lock()
	defer l.mut.Unlock()
	if _, ok := l.debug[facility]; enabled && !ok {
		l.logger.SetFlags(DebugFlags)
		l.debug[facility] = struct{}{}
	} else if !enabled && ok {
		delete(l.debug, facility)
		if len(l.debug) == 0 {
			l.logger.SetFlags(DefaultFlags)
		}
	}
}

// isTraced returns whether the facility name is contained in KQFM_TRACE.
func (l *logger) isTraced(facility string) bool {
	if len(l.traces) > 0 {
		if l.traces[0] == "all" {
			return true
		}

		_, found := slices.BinarySearch(l.traces, facility)
		return found
	}

	return false
}

// NewFacility returns a new logger bound to the named facility.
func (l *logger) NewFacility(facility, description string) Logger {
	if l.isTraced(facility) {
		l.SetDebug(facility, true)
		l.debugf(2, "Debugging %s (%s)", facility, description)
	}

	return &facilityLogger{
		logger:   l,
		facility: facility,
	}
}

// A facilityLogger is a regular logger but bound to a facility name. The
// Debugln and Debugf methods are no-ops unless debugging has been enabled for
// this facility on the parent logger.
type facilityLogger struct {
	*logger
	facility string
}

// Debugln logs a line with a DEBUG prefix.
func (l *facilityLogger) Debugln(vals ...interface{}) {
	if !l.ShouldDebug(l.facility) {
		return
	}
	l.logger.debugln(3, vals...)
}

// Debugf logs a formatted line with a DEBUG prefix.
func (l *facilityLogger) Debugf(format string, vals ...interface{}) {
	if !l.ShouldDebug(l.facility) {
		return
	}
	l.logger.debugf(3, format, vals...)
}

// controlStripper is a Writer that replaces control characters
// with spaces.
type controlStripper struct {
	io.Writer
}

func (s controlStripper) Write(data []byte) (int, error) {
	for i, b := range data {
		if b == '\n' || b == '\r' {
			// Newlines are OK
			continue
		}
		if b < 32 {
			// Characters below 32 are control characters
			data[i] = ' '
		}
	}
	return s.Writer.Write(data)
}
