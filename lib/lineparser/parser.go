// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package lineparser decodes newline delimited paths from the control
// stream as readiness notifications for it arrive.
package lineparser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// BufferSize comfortably holds the longest path any supported platform
// accepts. Longer lines are still read, but with a blocking read.
const BufferSize = 16 << 10

// A Parser reads paths from a stream. It is not safe for concurrent use.
type Parser struct {
	src *countingReader
	r   *bufio.Reader
	eof bool
}

func New(r io.Reader) *Parser {
	src := &countingReader{Reader: r}
	return &Parser{
		src: src,
		r:   bufio.NewReaderSize(src, BufferSize),
	}
}

// Reader returns the buffered reader the parser consumes from. Readiness
// sources that have no kernel notification for the stream may peek it, as
// long as they never do so while Consume runs.
func (p *Parser) Reader() *bufio.Reader {
	return p.r
}

// Consumed returns the number of bytes taken from the stream so far.
func (p *Parser) Consumed() int64 {
	return p.src.n
}

// EOF reports whether the end of the stream has been reached.
func (p *Parser) EOF() bool {
	return p.eof
}

// Consume decodes paths after a readiness notification and calls fn for each
// of them as soon as it is complete. Reading stops once ready further bytes
// have been taken from the stream and no complete line remains buffered, or,
// when eofSignaled is set, once the stream has actually ended. The reported
// count is imprecise around the end of the stream, so the stream's own end
// marker is authoritative when eofSignaled is given.
//
// A final line without a terminator is accepted at the end of the stream.
// Empty lines produce no path. Errors from fn are returned as is; read
// errors other than the end of the stream are wrapped.
func (p *Parser) Consume(ready int, eofSignaled bool, fn func(path string) error) error {
	start := p.src.n
	for !p.eof {
		if !eofSignaled && !p.lineBuffered() && !p.bufferFull() {
			if p.src.n-start >= int64(ready) {
				return nil
			}
			// Pull in the bytes we were told about, without waiting for
			// more than that.
			_, err := p.r.Peek(p.r.Buffered() + 1)
			switch {
			case err == nil:
				continue
			case errors.Is(err, io.EOF):
				// The stream ended before the reported count was reached;
				// what is buffered is the final line.
			case errors.Is(err, bufio.ErrBufferFull):
			default:
				return fmt.Errorf("couldn't read input: %w", err)
			}
		}
		if err := p.readLine(fn); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) readLine(fn func(string) error) error {
	line, err := p.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("couldn't read input: %w", err)
		}
		p.eof = true
	}
	path := strings.TrimSuffix(line, "\n")
	if path == "" {
		return nil
	}
	return fn(path)
}

// lineBuffered reports whether a complete line can be read without touching
// the underlying stream.
func (p *Parser) lineBuffered() bool {
	n := p.r.Buffered()
	if n == 0 {
		return false
	}
	buf, _ := p.r.Peek(n)
	return bytes.IndexByte(buf, '\n') >= 0
}

func (p *Parser) bufferFull() bool {
	return p.r.Buffered() >= p.r.Size()
}

type countingReader struct {
	io.Reader
	n int64
}

func (c *countingReader) Read(bs []byte) (int, error) {
	n, err := c.Reader.Read(bs)
	c.n += int64(n)
	return n, err
}
