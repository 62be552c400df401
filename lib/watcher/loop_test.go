// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package watcher

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kqfm/kqfm/lib/changes"
	"github.com/kqfm/kqfm/lib/lineparser"
	"github.com/kqfm/kqfm/lib/mux"
	"github.com/kqfm/kqfm/lib/registry"
	"github.com/kqfm/kqfm/lib/svcutil"

	"github.com/d4l3k/messagediff"
	"github.com/thejerf/suture/v4"
)

var errEndOfScript = errors.New("end of script")

// A step produces the result of one Wait call. Steps run on the loop
// goroutine, so they can look at what the loop registered so far.
type step func(f *fakeMux) (mux.Event, error)

// fakeMux plays back a script of events. Once the script is exhausted Wait
// blocks until interrupted.
type fakeMux struct {
	script    []step
	watchErr  map[string]error
	watched   []string
	tokens    []any
	stopped   int
	interrupt chan struct{}
}

func newFakeMux(script ...step) *fakeMux {
	return &fakeMux{
		script:    script,
		watchErr:  make(map[string]error),
		interrupt: make(chan struct{}, 1),
	}
}

func (f *fakeMux) Wait() (mux.Event, error) {
	if len(f.script) == 0 {
		<-f.interrupt
		return mux.Event{Type: mux.Interrupted}, nil
	}
	s := f.script[0]
	f.script = f.script[1:]
	return s(f)
}

func (f *fakeMux) Watch(path string, token any) error {
	if err := f.watchErr[path]; err != nil {
		return err
	}
	f.watched = append(f.watched, path)
	f.tokens = append(f.tokens, token)
	return nil
}

func (f *fakeMux) StopInput() error {
	f.stopped++
	return nil
}

func (f *fakeMux) Interrupt() {
	select {
	case f.interrupt <- struct{}{}:
	default:
	}
}

func (*fakeMux) Close() error {
	return nil
}

func input(ready int, eof bool) step {
	return func(*fakeMux) (mux.Event, error) {
		return mux.Event{Type: mux.InputReady, Ready: ready, EOF: eof}, nil
	}
}

func change(i int, kind changes.Kind) step {
	return func(f *fakeMux) (mux.Event, error) {
		return mux.Event{Type: mux.PathChanged, Token: f.tokens[i], Changes: kind}, nil
	}
}

func fail(err error) step {
	return func(*fakeMux) (mux.Event, error) {
		return mux.Event{}, err
	}
}

func end() step {
	return fail(errEndOfScript)
}

type harness struct {
	mux    *fakeMux
	loop   *Loop
	report bytes.Buffer
	diag   bytes.Buffer
}

func newHarness(in string, script ...step) *harness {
	h := &harness{mux: newFakeMux(script...)}
	h.loop = New(h.mux, lineparser.New(strings.NewReader(in)), &h.report, &h.diag)
	return h
}

// run serves until the script ends and fails the test on any other error.
func (h *harness) run(t *testing.T) {
	t.Helper()
	if err := h.loop.Serve(context.Background()); !errors.Is(err, errEndOfScript) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestReportLine(t *testing.T) {
	h := newHarness("/tmp/a\n", input(7, false), change(0, changes.Write), end())
	h.run(t)

	if out := h.report.String(); out != "/tmp/a\tWRITE\n" {
		t.Errorf("unexpected report %q", out)
	}
	if h.diag.Len() != 0 {
		t.Errorf("unexpected diagnostics %q", h.diag.String())
	}
}

func TestReportEmptyFlags(t *testing.T) {
	h := newHarness("/tmp/a\n", input(7, false), change(0, 0), change(0, changes.Attrib), end())
	h.run(t)

	if out := h.report.String(); out != "/tmp/a\t\n/tmp/a\tATTRIB\n" {
		t.Errorf("unexpected report %q", out)
	}
}

func TestReportOrdersKinds(t *testing.T) {
	h := newHarness("/tmp/a\n",
		input(7, false),
		change(0, changes.Rename|changes.Write|changes.Delete),
		change(0, changes.All),
		end())
	h.run(t)

	expected := "/tmp/a\tDELETE,WRITE,RENAME\n" +
		"/tmp/a\tDELETE,WRITE,EXTEND,ATTRIB,LINK,RENAME,REVOKE\n"
	if out := h.report.String(); out != expected {
		t.Errorf("unexpected report %q", out)
	}
}

func TestRegistrationOrder(t *testing.T) {
	h := newHarness("/a\n/b\n/c\n/b\n", input(12, false), end())
	h.run(t)

	expected := []string{"/a", "/b", "/c", "/b"}
	if diff, equal := messagediff.PrettyDiff(expected, h.mux.watched); !equal {
		t.Errorf("unexpected watches:\n%s", diff)
	}
	if diff, equal := messagediff.PrettyDiff(expected, slices.Collect(h.loop.Registry().Paths())); !equal {
		t.Errorf("unexpected registry:\n%s", diff)
	}

	// Every registration carries its own registry entry.
	for i, token := range h.mux.tokens {
		entry, ok := token.(*registry.Entry)
		if !ok || entry.Path() != expected[i] {
			t.Errorf("%d: unexpected token %v", i, token)
		}
	}
	if h.mux.tokens[1] == h.mux.tokens[3] {
		t.Error("repeated path shares a registration")
	}
}

func TestChangesForEachRegistration(t *testing.T) {
	h := newHarness("/a\n/a\n",
		input(6, false),
		change(1, changes.Attrib),
		change(0, changes.Attrib),
		end())
	h.run(t)

	if out := h.report.String(); out != "/a\tATTRIB\n/a\tATTRIB\n" {
		t.Errorf("unexpected report %q", out)
	}
}

func TestDump(t *testing.T) {
	h := newHarness("/tmp/a\n/tmp/b\n")
	h.mux.script = []step{
		input(14, false),
		func(f *fakeMux) (mux.Event, error) {
			h.loop.RequestDump()
			<-f.interrupt
			return mux.Event{Type: mux.Interrupted}, nil
		},
		change(1, changes.Write),
		end(),
	}
	h.run(t)

	if out := h.diag.String(); out != "/tmp/a\n/tmp/b\n" {
		t.Errorf("unexpected dump %q", out)
	}
	if out := h.report.String(); out != "/tmp/b\tWRITE\n" {
		t.Errorf("events stopped after dump, report %q", out)
	}
}

func TestDumpEmptyRegistry(t *testing.T) {
	h := newHarness("")
	h.mux.script = []step{
		func(*fakeMux) (mux.Event, error) {
			h.loop.RequestDump()
			return mux.Event{Type: mux.Interrupted}, nil
		},
		end(),
	}
	h.run(t)

	if h.diag.Len() != 0 {
		t.Errorf("unexpected dump %q", h.diag.String())
	}
}

func TestDumpOnFailingWait(t *testing.T) {
	h := newHarness("/tmp/a\n")
	h.mux.script = []step{
		input(7, false),
		func(*fakeMux) (mux.Event, error) {
			h.loop.dump.Store(true)
			return mux.Event{}, errEndOfScript
		},
	}
	h.run(t)

	if out := h.diag.String(); out != "/tmp/a\n" {
		t.Errorf("unexpected dump %q", out)
	}
}

func TestOpenFailureIsFatal(t *testing.T) {
	errOpen := errors.New("couldn't open /missing: no such file or directory")
	h := newHarness("/a\n/missing\n/b\n", input(15, false), change(0, changes.Write))
	h.mux.watchErr["/missing"] = errOpen

	err := h.loop.Serve(context.Background())
	if !errors.Is(err, errOpen) {
		t.Fatalf("unexpected error %v", err)
	}
	var ferr *svcutil.FatalErr
	if !errors.As(err, &ferr) || ferr.Status != svcutil.ExitError {
		t.Errorf("error is not fatal: %v", err)
	}
	if h.loop.Err() != err {
		t.Errorf("Err() = %v, expected %v", h.loop.Err(), err)
	}

	if diff, equal := messagediff.PrettyDiff([]string{"/a"}, h.mux.watched); !equal {
		t.Errorf("unexpected watches:\n%s", diff)
	}
	if n := h.loop.Registry().Len(); n != 1 {
		t.Errorf("registry holds %d paths, expected 1", n)
	}
	if h.report.Len() != 0 {
		t.Errorf("unexpected report %q", h.report.String())
	}
}

func TestWaitErrorIsFatal(t *testing.T) {
	errWait := errors.New("error checking kqueue: bad file descriptor")
	h := newHarness("", fail(errWait))

	err := h.loop.Serve(context.Background())
	if !errors.Is(err, errWait) || !errors.Is(err, suture.ErrTerminateSupervisorTree) {
		t.Errorf("unexpected error %v", err)
	}
	if status, cause := svcutil.StatusFor(err); status != svcutil.ExitError || cause != errWait {
		t.Errorf("unexpected exit status %v, %v", status, cause)
	}
}

func TestRegistersAcrossEOF(t *testing.T) {
	h := newHarness("/a\n/b",
		input(5, true),
		input(0, true),
		change(1, changes.Delete),
		end())
	h.run(t)

	if diff, equal := messagediff.PrettyDiff([]string{"/a", "/b"}, h.mux.watched); !equal {
		t.Errorf("unexpected watches:\n%s", diff)
	}
	if h.mux.stopped != 1 {
		t.Errorf("input stopped %d times, expected once", h.mux.stopped)
	}
	if out := h.report.String(); out != "/b\tDELETE\n" {
		t.Errorf("unexpected report %q", out)
	}
}

func TestPartialLineWaits(t *testing.T) {
	// The reported count covers only part of the stream; the rest of the
	// final line shows up with the end of stream.
	h := newHarness("/a\n/bc")
	h.mux.script = []step{
		input(4, false),
		func(f *fakeMux) (mux.Event, error) {
			if len(f.watched) != 1 {
				t.Errorf("partial line registered early: %v", f.watched)
			}
			return mux.Event{Type: mux.InputReady, EOF: true}, nil
		},
		end(),
	}
	h.run(t)

	if diff, equal := messagediff.PrettyDiff([]string{"/a", "/bc"}, h.mux.watched); !equal {
		t.Errorf("unexpected watches:\n%s", diff)
	}
}

type failingWriter struct {
	writes int
}

func (w *failingWriter) Write([]byte) (int, error) {
	w.writes++
	return 0, errors.New("broken pipe")
}

func TestReportWriteFailureIsNotFatal(t *testing.T) {
	fm := newFakeMux(input(3, false), change(0, changes.Write), change(0, changes.Write), end())
	report := &failingWriter{}
	var diag bytes.Buffer
	loop := New(fm, lineparser.New(strings.NewReader("/a\n")), report, &diag)

	if err := loop.Serve(context.Background()); !errors.Is(err, errEndOfScript) {
		t.Fatalf("unexpected error %v", err)
	}
	if report.writes != 2 {
		t.Errorf("attempted %d writes, expected 2", report.writes)
	}
}

func TestReportIsFlushed(t *testing.T) {
	var out bytes.Buffer
	report := bufio.NewWriter(&out)
	fm := newFakeMux(input(3, false), change(0, changes.Link), end())
	loop := New(fm, lineparser.New(strings.NewReader("/a\n")), report, &bytes.Buffer{})

	if err := loop.Serve(context.Background()); !errors.Is(err, errEndOfScript) {
		t.Fatalf("unexpected error %v", err)
	}
	if out.String() != "/a\tLINK\n" {
		t.Errorf("report not flushed, got %q", out.String())
	}
}

func TestContextCancel(t *testing.T) {
	h := newHarness("")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- h.loop.Serve(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error %v", err)
		}
		if h.loop.Err() != nil {
			t.Errorf("cancellation recorded as fatal: %v", h.loop.Err())
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
