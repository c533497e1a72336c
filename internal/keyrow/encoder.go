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

package keyrow

import "encoding/binary"

// rowAlignment is the machine-word boundary variable-length rows are
// padded to, per spec.md §4.1/§4.2.
const rowAlignment = 8

// RowMetadata fixes the per-column layout of a row image: which columns
// land in the fixed region (and at what offset), which are variable, and
// whether the whole row format is fixed- or variable-length.
type RowMetadata struct {
	Columns             []ColumnMetadata
	FixedLength         bool
	NullPrefixBytes     int
	FixedRegionOffsets  []int // per-column offset within the fixed region; -1 for variable columns
	FixedRegionWidth    int
	VarColumns          []int // indices of variable-length columns, encoding order
	FixedRowWidth       int   // total row width when FixedLength, already aligned
}

func alignUp(n, align int) int {
	if r := n % align; r != 0 {
		n += align - r
	}
	return n
}

// Plan fixes a RowMetadata for the given column schema, per spec.md
// §4.1's plan(column_metadata[]) operation.
func Plan(columns []ColumnMetadata) (RowMetadata, error) {
	for i, c := range columns {
		switch c.Kind {
		case KindNull, KindBool, KindFixedWidth, KindDictionary, KindBinary, KindLargeBinary:
		default:
			return RowMetadata{}, &UnsupportedKeyTypeError{Column: i, Kind: c.Kind}
		}
	}

	m := RowMetadata{
		Columns:            columns,
		NullPrefixBytes:    (len(columns) + 7) / 8,
		FixedRegionOffsets: make([]int, len(columns)),
		FixedLength:        true,
	}
	offset := 0
	for i, c := range columns {
		if c.isVariableLength() {
			m.FixedLength = false
			m.FixedRegionOffsets[i] = -1
			m.VarColumns = append(m.VarColumns, i)
			continue
		}
		m.FixedRegionOffsets[i] = offset
		offset += c.fixedPayloadWidth()
	}
	m.FixedRegionWidth = offset
	if m.FixedLength {
		m.FixedRowWidth = alignUp(m.NullPrefixBytes+m.FixedRegionWidth, rowAlignment)
	}
	return m, nil
}

// varHeaderWidth returns the total width, in bytes, of the per-row length
// header for all variable columns (4 or 8 bytes each, per column kind).
func (m RowMetadata) varHeaderWidth() int {
	w := 0
	for _, vi := range m.VarColumns {
		w += m.Columns[vi].lengthPrefixWidth()
	}
	return w
}

// Encoder packs and unpacks row images for a fixed key schema.
type Encoder struct {
	Metadata RowMetadata
}

// NewEncoder plans a RowMetadata for columns and returns an Encoder for it.
func NewEncoder(columns []ColumnMetadata) (*Encoder, error) {
	m, err := Plan(columns)
	if err != nil {
		return nil, err
	}
	return &Encoder{Metadata: m}, nil
}

// Measure writes, into out[0:n], the byte length row i will consume,
// per spec.md §4.1's measure(batch, out_offsets[0..n]). The caller is
// responsible for turning these into a prefix-summed offsets array if it
// needs one; Encode itself only needs per-row destination slices.
func (e *Encoder) Measure(cols []Column, n int, out []int) {
	m := &e.Metadata
	base := m.NullPrefixBytes + m.FixedRegionWidth
	if m.FixedLength {
		for i := 0; i < n; i++ {
			out[i] = m.FixedRowWidth
		}
		return
	}
	header := base + m.varHeaderWidth()
	for i := 0; i < n; i++ {
		total := header
		for _, vi := range m.VarColumns {
			if cols[vi].isValid(i) {
				total += len(cols[vi].Variable(i))
			}
		}
		out[i] = alignUp(total, rowAlignment)
	}
}

// Encode writes each row's image into dest[i][:], which must already be
// sized to the length Measure reported for that row, per spec.md §4.1's
// encode(batch, out_row_pointers[0..n]).
func (e *Encoder) Encode(cols []Column, n int, dest [][]byte) error {
	for i := 0; i < n; i++ {
		if err := e.encodeRow(cols, i, dest[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeRow(cols []Column, i int, buf []byte) error {
	m := &e.Metadata
	for b := 0; b < m.NullPrefixBytes; b++ {
		buf[b] = 0
	}
	for ci, cm := range m.Columns {
		if cm.Kind != KindNull && !cols[ci].isValid(i) {
			buf[ci/8] |= 1 << uint(ci%8)
			continue
		}
		switch cm.Kind {
		case KindNull:
			// no payload, and no null bit either: a null-typed column
			// always compares equal, so its bit is left clear.
		case KindBool:
			off := m.NullPrefixBytes + m.FixedRegionOffsets[ci]
			v := byte(0)
			if cols[ci].Fixed(i)[0] != 0 {
				v = 1
			}
			buf[off] = v
		case KindFixedWidth, KindDictionary:
			off := m.NullPrefixBytes + m.FixedRegionOffsets[ci]
			copy(buf[off:off+cm.ByteWidth], cols[ci].Fixed(i))
		case KindBinary, KindLargeBinary:
			// encoded below, once offsets for the whole row are known
		default:
			return &UnsupportedKeyTypeError{Column: ci, Kind: cm.Kind}
		}
	}
	if m.FixedLength {
		return nil
	}
	lenOff := m.NullPrefixBytes + m.FixedRegionWidth
	payOff := lenOff + m.varHeaderWidth()
	for _, vi := range m.VarColumns {
		cm := m.Columns[vi]
		var payload []byte
		if cols[vi].isValid(i) {
			payload = cols[vi].Variable(i)
		}
		if cm.lengthPrefixWidth() == 8 {
			binary.LittleEndian.PutUint64(buf[lenOff:], uint64(len(payload)))
		} else {
			binary.LittleEndian.PutUint32(buf[lenOff:], uint32(len(payload)))
		}
		lenOff += cm.lengthPrefixWidth()
		copy(buf[payOff:payOff+len(payload)], payload)
		payOff += len(payload)
	}
	return nil
}

// EncodeSelected measures and encodes the rows named by selection (or all
// n rows, in order, if selection is nil) directly into dest, per spec.md
// §4.1's encode_selected.
func (e *Encoder) EncodeSelected(dest *RowTable, cols []Column, n int, selection []int) error {
	remapped := make([]Column, len(cols))
	indices := make([]int, n)
	for i := 0; i < n; i++ {
		if selection != nil {
			indices[i] = selection[i]
		} else {
			indices[i] = i
		}
	}
	for ci := range cols {
		remapped[ci] = remapIndirect(cols[ci], indices)
	}
	lengths := make([]int, n)
	e.Measure(remapped, n, lengths)
	// Each row is encoded right after its Reserve, since a later Reserve
	// may move the table's storage.
	for i := 0; i < n; i++ {
		if err := e.encodeRow(remapped, i, dest.Reserve(lengths[i])); err != nil {
			return err
		}
	}
	return nil
}

func remapIndirect(c Column, indices []int) Column {
	return Column{
		Meta: c.Meta,
		Valid: func(i int) bool {
			if c.Valid == nil {
				return true
			}
			return c.Valid(indices[i])
		},
		Fixed: func(i int) []byte {
			return c.Fixed(indices[i])
		},
		Variable: func(i int) []byte {
			return c.Variable(indices[i])
		},
	}
}

// DecodedColumn holds the decoded output of one key column across a
// contiguous range of row ids.
type DecodedColumn struct {
	Valid    []bool
	Fixed    []byte   // width*n bytes, valid only when Meta has a positive fixed width
	Variable [][]byte // n entries, valid only for variable-length columns
	Meta     ColumnMetadata
}

// DecodeFixed inverts the null-bitmap and fixed-region bytes of rows
// [start, start+n) back into prepared output columns, per spec.md §4.1's
// decode_fixed. Variable-length column payloads are left unset; call
// DecodeVariable to fill those in.
func (e *Encoder) DecodeFixed(rows *RowTable, start, n int) []DecodedColumn {
	m := &e.Metadata
	cols := make([]DecodedColumn, len(m.Columns))
	for ci, cm := range m.Columns {
		cols[ci].Meta = cm
		cols[ci].Valid = make([]bool, n)
		if w := cm.fixedPayloadWidth(); w > 0 {
			cols[ci].Fixed = make([]byte, w*n)
		}
	}
	for r := 0; r < n; r++ {
		row := rows.RowBytes(start + r)
		for ci, cm := range m.Columns {
			valid := row[ci/8]&(1<<uint(ci%8)) == 0
			cols[ci].Valid[r] = valid
			if !valid {
				continue
			}
			w := cm.fixedPayloadWidth()
			if w <= 0 {
				continue
			}
			off := m.NullPrefixBytes + m.FixedRegionOffsets[ci]
			copy(cols[ci].Fixed[r*w:(r+1)*w], row[off:off+w])
		}
	}
	return cols
}

// DecodeVariable fills in the Variable payloads of cols (as produced by
// DecodeFixed) for rows [start, start+n), per spec.md §4.1's
// decode_variable. It is a no-op for fixed-length schemas.
func (e *Encoder) DecodeVariable(rows *RowTable, start, n int, cols []DecodedColumn) {
	m := &e.Metadata
	if m.FixedLength {
		return
	}
	for _, vi := range m.VarColumns {
		if cols[vi].Variable == nil {
			cols[vi].Variable = make([][]byte, n)
		}
	}
	for r := 0; r < n; r++ {
		row := rows.RowBytes(start + r)
		lenOff := m.NullPrefixBytes + m.FixedRegionWidth
		payOff := lenOff + m.varHeaderWidth()
		for _, vi := range m.VarColumns {
			cm := m.Columns[vi]
			var length int
			if cm.lengthPrefixWidth() == 8 {
				length = int(binary.LittleEndian.Uint64(row[lenOff:]))
			} else {
				length = int(binary.LittleEndian.Uint32(row[lenOff:]))
			}
			lenOff += cm.lengthPrefixWidth()
			if cols[vi].Valid[r] {
				buf := make([]byte, length)
				copy(buf, row[payOff:payOff+length])
				cols[vi].Variable[r] = buf
			}
			payOff += length
		}
	}
}
