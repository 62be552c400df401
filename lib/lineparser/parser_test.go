// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package lineparser

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/d4l3k/messagediff"
)

// chunkReader hands out one chunk per Read, like a pipe that had the chunk
// written to it. Reading past the last chunk fails the test unless the
// stream has been closed, since a real pipe would block there.
type chunkReader struct {
	t      *testing.T
	chunks []string
	closed bool
}

func (c *chunkReader) Read(bs []byte) (int, error) {
	if len(c.chunks) == 0 {
		if c.closed {
			return 0, io.EOF
		}
		c.t.Fatal("read would block")
		return 0, errors.New("would block")
	}
	n := copy(bs, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if c.chunks[0] == "" {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func consume(t *testing.T, p *Parser, ready int, eof bool) []string {
	t.Helper()
	var paths []string
	if err := p.Consume(ready, eof, func(path string) error {
		paths = append(paths, path)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	return paths
}

func expectPaths(t *testing.T, expected, actual []string) {
	t.Helper()
	if diff, equal := messagediff.PrettyDiff(expected, actual); !equal {
		t.Errorf("unexpected paths:\n%s", diff)
	}
}

func TestSingleLine(t *testing.T) {
	p := New(&chunkReader{t: t, chunks: []string{"/tmp/a\n"}})
	expectPaths(t, []string{"/tmp/a"}, consume(t, p, 7, false))
	if p.EOF() {
		t.Error("EOF reported on an open stream")
	}
}

func TestUnterminatedFinalLine(t *testing.T) {
	p := New(strings.NewReader("/tmp/a\n/tmp/b"))
	expectPaths(t, []string{"/tmp/a", "/tmp/b"}, consume(t, p, 13, true))
	if !p.EOF() {
		t.Error("EOF not reported")
	}

	// Nothing more comes out of an ended stream.
	expectPaths(t, nil, consume(t, p, 10, true))
}

func TestUnterminatedLineWaitsForEOF(t *testing.T) {
	p := New(strings.NewReader("/tmp/a\n/tmp/b"))
	expectPaths(t, []string{"/tmp/a"}, consume(t, p, 7, false))
	expectPaths(t, []string{"/tmp/b"}, consume(t, p, 0, true))
}

func TestPartialLineDoesNotBlock(t *testing.T) {
	src := &chunkReader{t: t, chunks: []string{"/tmp/a\n/tm"}}
	p := New(src)
	expectPaths(t, []string{"/tmp/a"}, consume(t, p, 10, false))

	src.chunks = append(src.chunks, "p/b\n")
	expectPaths(t, []string{"/tmp/b"}, consume(t, p, 4, false))
}

func TestBufferedLinesAreDrained(t *testing.T) {
	// Both lines arrive in one read even though only the first was
	// reported; the second must not be left stranded in the buffer.
	p := New(&chunkReader{t: t, chunks: []string{"/a\n/b\n"}})
	expectPaths(t, []string{"/a", "/b"}, consume(t, p, 3, false))

	// With nothing buffered and nothing reported, nothing is read.
	expectPaths(t, nil, consume(t, p, 0, false))
}

func TestUnderReportedCountAtEOF(t *testing.T) {
	p := New(strings.NewReader("/a\n/b\n/c"))
	expectPaths(t, []string{"/a", "/b", "/c"}, consume(t, p, 2, true))
}

func TestOverReportedCount(t *testing.T) {
	p := New(&chunkReader{t: t, chunks: []string{"/a\n"}, closed: true})
	expectPaths(t, []string{"/a"}, consume(t, p, 100, false))
	if !p.EOF() {
		t.Error("EOF not reported")
	}
}

func TestEmptyLinesAreIgnored(t *testing.T) {
	p := New(strings.NewReader("\n/a\n\n/b\n\n"))
	expectPaths(t, []string{"/a", "/b"}, consume(t, p, 0, true))
}

func TestLongLine(t *testing.T) {
	long := "/" + strings.Repeat("x", BufferSize+10)
	p := New(strings.NewReader(long + "\n/short\n"))
	expectPaths(t, []string{long, "/short"}, consume(t, p, len(long)+8, false))
}

func TestPathsAreLiteral(t *testing.T) {
	p := New(strings.NewReader(" spaced path \n\ttab\r\n"))
	expectPaths(t, []string{" spaced path ", "\ttab\r"}, consume(t, p, 0, true))
}

type errorReader struct{}

func (errorReader) Read([]byte) (int, error) {
	return 0, errors.New("input/output error")
}

func TestReadError(t *testing.T) {
	p := New(errorReader{})
	err := p.Consume(10, false, func(string) error {
		t.Error("unexpected path")
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "couldn't read input") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCallbackErrorStops(t *testing.T) {
	errStop := errors.New("couldn't open")
	p := New(strings.NewReader("/a\n/b\n/c\n"))

	var seen []string
	err := p.Consume(9, false, func(path string) error {
		seen = append(seen, path)
		if path == "/b" {
			return errStop
		}
		return nil
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("unexpected error %v", err)
	}
	expectPaths(t, []string{"/a", "/b"}, seen)
}

func TestConsumed(t *testing.T) {
	p := New(strings.NewReader("/a\n/b\n"))
	consume(t, p, 0, true)
	if n := p.Consumed(); n != 6 {
		t.Errorf("consumed %d bytes, expected 6", n)
	}
}
