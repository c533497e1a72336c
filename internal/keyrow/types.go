// Copyright (C) 2024 Darrenzzy, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package keyrow implements the row-oriented key encoder, the append-only
// row table, and the hash table that back the fast path of a Grouper. It
// is deliberately independent of the public rowgroup package's types so
// that the public package can depend on it without an import cycle; the
// rowgroup package adapts its own ColumnView/KeyType into the Column/
// ColumnMetadata shapes declared here.
package keyrow

import "fmt"

// Kind mirrors rowgroup.Kind; see that type's docs for the classification
// rules. It is redeclared here to avoid a dependency on the parent package.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindFixedWidth
	KindDictionary
	KindBinary
	KindLargeBinary
)

// ColumnMetadata describes one column of the key schema for encoding
// purposes.
type ColumnMetadata struct {
	Kind      Kind
	ByteWidth int // meaningful for KindFixedWidth and KindDictionary
}

// fixedPayloadWidth returns the fixed-region width in bytes this column
// contributes, or -1 if the column is variable-length.
func (m ColumnMetadata) fixedPayloadWidth() int {
	switch m.Kind {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindFixedWidth, KindDictionary:
		return m.ByteWidth
	default:
		return -1
	}
}

func (m ColumnMetadata) isVariableLength() bool {
	return m.Kind == KindBinary || m.Kind == KindLargeBinary
}

// lengthPrefixWidth is the size, in bytes, of the per-row length field
// stored in a variable column's header: 4 bytes for binary-like columns,
// 8 bytes for large-binary-like columns (spec's 32-bit vs. 64-bit length).
func (m ColumnMetadata) lengthPrefixWidth() int {
	if m.Kind == KindLargeBinary {
		return 8
	}
	return 4
}

// Column is a per-mini-batch accessor over one column's rows, with row
// index 0 of the accessor aligned to the first row of the mini-batch
// (offset already applied by the caller). Valid may be nil, meaning every
// row is valid.
type Column struct {
	Meta     ColumnMetadata
	Valid    func(i int) bool
	Fixed    func(i int) []byte
	Variable func(i int) []byte
}

func (c Column) isValid(i int) bool {
	return c.Valid == nil || c.Valid(i)
}

// UnsupportedKeyTypeError is returned when a column's Kind is not one of
// the enumerated kinds.
type UnsupportedKeyTypeError struct {
	Column int
	Kind   Kind
}

func (e *UnsupportedKeyTypeError) Error() string {
	return fmt.Sprintf("keyrow: unsupported key kind %d at column %d", e.Kind, e.Column)
}
