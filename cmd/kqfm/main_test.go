// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/kqfm/kqfm/lib/build"
)

func TestHelpExitsZero(t *testing.T) {
	for _, arg := range []string{"-h", "--help"} {
		var stdout, stderr bytes.Buffer
		if code := run([]string{arg}, nil, &stdout, &stderr); code != 0 {
			t.Errorf("%s: exit code %d", arg, code)
		}
		if out := stdout.String(); !strings.Contains(out, "Usage: kqfm") || !strings.Contains(out, "Takes newline delimited filenames") {
			t.Errorf("%s: unexpected usage %q", arg, out)
		}
	}
}

func TestUnknownOptionPrintsUsage(t *testing.T) {
	for _, args := range [][]string{{"--bogus"}, {"-x"}, {"--backend", "kqueue2"}} {
		var stdout, stderr bytes.Buffer
		if code := run(args, nil, &stdout, &stderr); code != 0 {
			t.Errorf("%v: exit code %d", args, code)
		}
		if !strings.Contains(stdout.String(), "Usage: kqfm") {
			t.Errorf("%v: no usage printed, got %q", args, stdout.String())
		}
		if !strings.HasPrefix(stderr.String(), "kqfm: ") {
			t.Errorf("%v: no error printed, got %q", args, stderr.String())
		}
	}
}

func TestVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--version"}, nil, &stdout, &stderr); code != 0 {
		t.Errorf("exit code %d", code)
	}
	if !strings.Contains(stdout.String(), build.LongVersion) {
		t.Errorf("unexpected version output %q", stdout.String())
	}
}

func TestParseDefaults(t *testing.T) {
	t.Setenv("KQFM_BACKEND", "")
	os.Unsetenv("KQFM_BACKEND")
	t.Setenv("KQFM_METRICS_LISTEN", "127.0.0.1:9090")

	params, _, ok := parseArgs([]string{"ignored", "operands"}, &bytes.Buffer{}, &bytes.Buffer{})
	if !ok {
		t.Fatal("parse failed")
	}
	if params.Backend != "auto" {
		t.Errorf("unexpected backend %q", params.Backend)
	}
	if params.MetricsListen != "127.0.0.1:9090" {
		t.Errorf("environment not applied, got %q", params.MetricsListen)
	}
}

func TestParseBackend(t *testing.T) {
	t.Setenv("KQFM_BACKEND", "notify")

	params, _, ok := parseArgs(nil, &bytes.Buffer{}, &bytes.Buffer{})
	if !ok || params.Backend != "notify" {
		t.Errorf("environment not applied, got %q", params.Backend)
	}

	params, _, ok = parseArgs([]string{"--backend=fsnotify"}, &bytes.Buffer{}, &bytes.Buffer{})
	if !ok || params.Backend != "fsnotify" {
		t.Errorf("flag did not override environment, got %q", params.Backend)
	}
}
