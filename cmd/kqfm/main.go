// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command kqfm takes newline delimited filenames to watch on stdin and
// reports their changes on stdout, one line per change:
//
//	PATH<TAB>FLAGS
//
// where FLAGS is a comma separated list of DELETE, WRITE, EXTEND, ATTRIB,
// LINK, RENAME and REVOKE. Sending SIGUSR1 lists the watched paths on
// stderr.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/thejerf/suture/v4"

	_ "github.com/kqfm/kqfm/lib/automaxprocs"
	"github.com/kqfm/kqfm/lib/build"
	"github.com/kqfm/kqfm/lib/lineparser"
	"github.com/kqfm/kqfm/lib/logger"
	"github.com/kqfm/kqfm/lib/mux"
	"github.com/kqfm/kqfm/lib/svcutil"
	"github.com/kqfm/kqfm/lib/watcher"
)

const description = "Takes newline delimited filenames to watch on stdin and reports changes on stdout."

var l = logger.DefaultLogger.NewFacility("main", "Main package")

type CLI struct {
	Backend       string           `help:"Change notification backend (${enum})" enum:"auto,native,notify,fsnotify" default:"auto" env:"KQFM_BACKEND"`
	MetricsListen string           `help:"Serve Prometheus metrics over HTTP on this address" placeholder:"ADDR" env:"KQFM_METRICS_LISTEN"`
	Version       kong.VersionFlag `help:"Show version and exit"`

	// Operands are accepted and ignored.
	Ignored []string `arg:"" optional:"" hidden:""`
}

type exitCode int

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin *os.File, stdout, stderr io.Writer) int {
	params, code, ok := parseArgs(args, stdout, stderr)
	if !ok {
		return code
	}
	l.Debugln(build.LongVersion)

	parser := lineparser.New(stdin)
	m, err := mux.Open(mux.Backend(params.Backend), mux.Input{
		Fd:     int(stdin.Fd()),
		Reader: parser.Reader(),
	})
	if err != nil {
		fmt.Fprintf(stderr, "kqfm: %v\n", err)
		return svcutil.ExitError.AsInt()
	}
	defer m.Close()
	l.Debugln("Using backend", params.Backend)

	// Every report is a single line, written and flushed on its own.
	report := bufio.NewWriter(stdout)
	loop := watcher.New(m, parser, report, stderr)

	mainService := suture.New("main", svcutil.SpecWithDebugLogger(l))
	mainService.Add(newDumpService(loop))
	mainService.Add(loop)
	if params.MetricsListen != "" {
		mainService.Add(newMetricsService(params.MetricsListen))
	}

	err = mainService.Serve(context.Background())
	if lerr := loop.Err(); lerr != nil {
		err = lerr
	}
	status, cause := svcutil.StatusFor(err)
	if cause != nil {
		fmt.Fprintf(stderr, "kqfm: %v\n", cause)
	}
	return status.AsInt()
}

// parseArgs returns the parsed options, or the status to exit with right
// away when ok is false. Help, unknown options and bad values all print
// the usage and exit successfully.
func parseArgs(args []string, stdout, stderr io.Writer) (params CLI, code int, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ec, isExit := r.(exitCode)
			if !isExit {
				panic(r)
			}
			code, ok = int(ec), false
		}
	}()

	parser, err := kong.New(&params,
		kong.Name("kqfm"),
		kong.Description(description),
		kong.Vars{"version": build.LongVersion},
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { panic(exitCode(code)) }),
	)
	if err != nil {
		panic(err)
	}

	if _, err := parser.Parse(args); err != nil {
		fmt.Fprintf(stderr, "kqfm: %v\n", err)
		var perr *kong.ParseError
		if errors.As(err, &perr) {
			perr.Context.PrintUsage(false)
		}
		return params, svcutil.ExitSuccess.AsInt(), false
	}
	return params, 0, true
}
