// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package registry keeps the ordered, append only set of watched paths.
//
// Entries are only ever added at the tail and never modified or removed, so
// iterating is safe from any goroutine while a single goroutine appends.
package registry

import (
	"bytes"
	"io"
	"iter"
	"strings"
	"sync/atomic"
)

// An Entry is one registered path.
type Entry struct {
	path string
	next atomic.Pointer[Entry]
}

// Path returns the path as it was registered.
func (e *Entry) Path() string {
	return e.path
}

func (e *Entry) String() string {
	return e.path
}

// A Registry is the list of watched paths, oldest first. The zero value is
// an empty registry ready for use. Append must not be called concurrently.
type Registry struct {
	head  atomic.Pointer[Entry]
	tail  *Entry
	count atomic.Int64
}

func New() *Registry {
	return &Registry{}
}

// Append creates the entry for path and links it at the end of the
// registry. The arm function, when given, is called with the new entry
// before it is linked; if it fails the entry is dropped and never becomes
// visible to Paths or WriteTo.
func (r *Registry) Append(path string, arm func(*Entry) error) (*Entry, error) {
	e := &Entry{path: strings.Clone(path)}
	if arm != nil {
		if err := arm(e); err != nil {
			return nil, err
		}
	}

	if r.tail == nil {
		r.head.Store(e)
	} else {
		r.tail.next.Store(e)
	}
	r.tail = e
	r.count.Add(1)
	return e, nil
}

// Len returns the number of registered paths.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Paths iterates over the registered paths, oldest first.
func (r *Registry) Paths() iter.Seq[string] {
	return func(yield func(string) bool) {
		for e := r.head.Load(); e != nil; e = e.next.Load() {
			if !yield(e.path) {
				return
			}
		}
	}
}

// WriteTo writes every registered path followed by a newline to w, oldest
// first, in a single write.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for path := range r.Paths() {
		buf.WriteString(path)
		buf.WriteByte('\n')
	}
	if buf.Len() == 0 {
		return 0, nil
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}
