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

// Dictionary is the shared, externally-owned dictionary a KindDictionary
// column's indices refer to. The grouper binds a Dictionary on the first
// batch it sees for a given key column and compares (never unifies)
// subsequent batches' dictionaries against it; a mismatch fails with
// UnsupportedDictionaryError.
type Dictionary interface {
	// Equal reports whether two dictionary handles refer to the same
	// value space, so that raw indices are comparable without
	// re-resolving values.
	Equal(other Dictionary) bool
}

// ColumnView is a read-only, uniform accessor over one column of a batch,
// per spec.md §3's "Column view" triple (null bitmap, fixed buffer,
// optional variable buffer) plus a logical offset/length. All slicing
// performed by this package is logical: ColumnView implementations must
// not copy their backing buffers.
type ColumnView interface {
	// Type reports the column's logical key type.
	Type() KeyType
	// Len reports the number of logical rows exposed by this view.
	Len() int
	// IsScalar reports whether this column is a scalar broadcast over
	// the batch rather than a true per-row array; the grouper expands
	// scalars to arrays of Len() identical values (spec.md §4.4).
	IsScalar() bool
	// IsValid reports whether row i holds a non-null value. Implementations
	// for non-nullable columns may unconditionally return true.
	IsValid(i int) bool
	// Fixed returns the raw fixed-width payload for row i: 1 byte
	// (0 or 1) for KindBool, ByteWidth little-endian bytes for
	// KindFixedWidth and KindDictionary. It is not called for KindNull,
	// KindBinary, or KindLargeBinary columns.
	Fixed(i int) []byte
	// Variable returns the raw variable-length payload for row i. It is
	// only called for KindBinary and KindLargeBinary columns.
	Variable(i int) []byte
	// Dictionary returns the shared dictionary handle bound to this
	// column. It is only called for KindDictionary columns.
	Dictionary() Dictionary
}

// BatchView is an ordered list of column views sharing a common logical
// length, i.e. spec.md §3's "Batch view".
type BatchView interface {
	NumColumns() int
	Len() int
	Column(i int) ColumnView
}

// MemoryPool is the allocator collaborator from spec.md §6: allocate
// caller-released buffers of a given size/alignment or bit length.
type MemoryPool interface {
	Allocate(nbytes, alignment int) []byte
	AllocateBitmap(nbits int) []byte
	Release(buf []byte)
}

// CPUInfo reports a bitmask of hardware SIMD features available to the
// hash/compare kernels, per spec.md §6.
type CPUInfo interface {
	HardwareFlags() uint64
}

// TakeFunc gathers values by index, the "take operator" collaborator used
// only by ApplyGroupings (spec.md §6). indices[i] == -1 is never produced
// by this package's own callers but implementations should treat negative
// indices as "no bounds check needed" per the upstream take semantics.
type TakeFunc func(values any, indices []int32) (any, error)

// Uint32Builder produces the uint32 group-id output arrays, matching
// spec.md §6's "array builder for uint32" collaborator.
type Uint32Builder interface {
	Append(v uint32)
	AppendNull()
	Build() (values []uint32, validity []bool)
}

// SliceUint32Builder is a minimal Uint32Builder backed by plain slices, a
// reasonable starting point for callers who don't already have an
// array-builder type. Nothing else in this package uses it.
type SliceUint32Builder struct {
	values   []uint32
	validity []bool
	anyNull  bool
}

func (b *SliceUint32Builder) Append(v uint32) {
	b.values = append(b.values, v)
	b.validity = append(b.validity, true)
}

func (b *SliceUint32Builder) AppendNull() {
	b.values = append(b.values, 0)
	b.validity = append(b.validity, false)
	b.anyNull = true
}

func (b *SliceUint32Builder) Build() ([]uint32, []bool) {
	if !b.anyNull {
		return b.values, nil
	}
	return b.values, b.validity
}
