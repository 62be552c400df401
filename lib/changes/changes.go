// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package changes describes the kinds of change a watched path can undergo
// and renders them in the fixed order used on the report stream.
package changes

import "strings"

// A Kind is a set of change kinds.
type Kind uint8

const (
	Delete Kind = 1 << iota
	Write
	Extend
	Attrib
	Link
	Rename
	Revoke
)

// All is the set of every change kind.
const All = Delete | Write | Extend | Attrib | Link | Rename | Revoke

// The rendering order is part of the output format and must not follow the
// bit values or the order in which the kinds were observed.
var labels = [...]struct {
	kind  Kind
	label string
}{
	{Delete, "DELETE"},
	{Write, "WRITE"},
	{Extend, "EXTEND"},
	{Attrib, "ATTRIB"},
	{Link, "LINK"},
	{Rename, "RENAME"},
	{Revoke, "REVOKE"},
}

// Labels returns the label of every kind in k, in rendering order.
func (k Kind) Labels() []string {
	if k == 0 {
		return nil
	}
	names := make([]string, 0, len(labels))
	for _, desc := range labels {
		if k&desc.kind != 0 {
			names = append(names, desc.label)
		}
	}
	return names
}

// String returns the comma separated labels of k. The empty set renders as
// the empty string.
func (k Kind) String() string {
	return strings.Join(k.Labels(), ",")
}

// Render is a convenience for k.String().
func Render(k Kind) string {
	return k.String()
}

// A Bit associates a set of native notification bits with the change kinds
// they stand for.
type Bit[T ~uint32] struct {
	Native T
	Kind   Kind
}

// A Table translates native notification masks into change kinds.
type Table[T ~uint32] []Bit[T]

// Translate returns the kinds for every entry of the table that has at least
// one of its native bits present in bits.
func (t Table[T]) Translate(bits T) Kind {
	var k Kind
	for _, b := range t {
		if bits&b.Native != 0 {
			k |= b.Kind
		}
	}
	return k
}

// Mask returns the union of all native bits in the table, suitable for
// registering interest in everything the table can translate.
func (t Table[T]) Mask() T {
	var mask T
	for _, b := range t {
		mask |= b.Native
	}
	return mask
}
