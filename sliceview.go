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

package rowgroup

import "github.com/Darrenzzy/rowgroup/internal/keyrow"

// SliceColumn is a plain-slice-backed ColumnView, useful for tests and
// for callers who don't already have their own column container.
type SliceColumn struct {
	KeyType  KeyType
	Null     []bool // nil means no column is ever null
	Payload  [][]byte
	Scalar   bool
	Dict     Dictionary
	length   int
}

// NewSliceColumn builds a SliceColumn of the given logical length whose
// per-row payload is produced by payload(i).
func NewSliceColumn(t KeyType, length int, null func(i int) bool, payload func(i int) []byte) SliceColumn {
	c := SliceColumn{KeyType: t, length: length}
	if null != nil {
		c.Null = make([]bool, length)
		for i := 0; i < length; i++ {
			c.Null[i] = null(i)
		}
	}
	c.Payload = make([][]byte, length)
	for i := 0; i < length; i++ {
		if c.Null != nil && c.Null[i] {
			continue
		}
		c.Payload[i] = payload(i)
	}
	return c
}

func (c SliceColumn) Type() KeyType   { return c.KeyType }
func (c SliceColumn) Len() int        { return c.length }
func (c SliceColumn) IsScalar() bool  { return c.Scalar }
func (c SliceColumn) Dictionary() Dictionary { return c.Dict }

func (c SliceColumn) IsValid(i int) bool {
	if c.Null == nil {
		return true
	}
	return !c.Null[i]
}

func (c SliceColumn) Fixed(i int) []byte    { return c.Payload[i] }
func (c SliceColumn) Variable(i int) []byte { return c.Payload[i] }

// SliceBatch is a plain-slice-backed BatchView.
type SliceBatch struct {
	Cols []ColumnView
	N    int
}

func (b SliceBatch) NumColumns() int        { return len(b.Cols) }
func (b SliceBatch) Len() int               { return b.N }
func (b SliceBatch) Column(i int) ColumnView { return b.Cols[i] }

// stringDictionary is a trivial Dictionary that compares by pointer
// identity; two handles are equal only if they are the same
// *stringDictionary. No test in this package uses it.
type stringDictionary struct {
	values []string
}

func (d *stringDictionary) Equal(other Dictionary) bool {
	o, ok := other.(*stringDictionary)
	return ok && o == d
}

// decodedColumnView adapts one keyrow.DecodedColumn (as produced by
// Encoder.DecodeFixed/DecodeVariable) back into a ColumnView, for use by
// Uniques().
type decodedColumnView struct {
	t    KeyType
	dec  keyrow.DecodedColumn
	dict Dictionary
}

func (c decodedColumnView) Type() KeyType  { return c.t }
func (c decodedColumnView) Len() int       { return len(c.dec.Valid) }
func (c decodedColumnView) IsScalar() bool { return false }
func (c decodedColumnView) IsValid(i int) bool {
	return c.dec.Valid[i]
}

func (c decodedColumnView) Fixed(i int) []byte {
	w := c.dec.Meta.ByteWidth
	if c.t.Kind == KindBool {
		w = 1
	}
	if w <= 0 || c.dec.Fixed == nil {
		return nil
	}
	return c.dec.Fixed[i*w : (i+1)*w]
}

func (c decodedColumnView) Variable(i int) []byte {
	if c.dec.Variable == nil {
		return nil
	}
	return c.dec.Variable[i]
}

func (c decodedColumnView) Dictionary() Dictionary { return c.dict }

// decodedBatchView adapts the per-column decode output of a Grouper's
// Uniques() call into a BatchView.
type decodedBatchView struct {
	cols []ColumnView
	n    int
}

func newDecodedBatchView(keyTypes []KeyType, decoded []keyrow.DecodedColumn, dicts []Dictionary) *decodedBatchView {
	cols := make([]ColumnView, len(keyTypes))
	n := 0
	for i, t := range keyTypes {
		var d Dictionary
		if dicts != nil {
			d = dicts[i]
		}
		cols[i] = decodedColumnView{t: t, dec: decoded[i], dict: d}
		n = len(decoded[i].Valid)
	}
	return &decodedBatchView{cols: cols, n: n}
}

func (b *decodedBatchView) NumColumns() int         { return len(b.cols) }
func (b *decodedBatchView) Len() int                { return b.n }
func (b *decodedBatchView) Column(i int) ColumnView { return b.cols[i] }
