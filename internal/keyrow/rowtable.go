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

import "golang.org/x/exp/slices"

// simdTailPadding is the tail padding RowTable reserves past its last row
// when the caller passes a non-positive tailPadding (the fallback grouper
// and tests that pass 0), mirroring the tail-padding vm/malloc.go reserves
// past every allocated block.
const simdTailPadding = 64

// Allocator is the subset of rowgroup.MemoryPool that RowTable's backing
// growth needs. A rowgroup.MemoryPool value satisfies this interface
// structurally; passing nil falls back to ordinary Go heap growth.
type Allocator interface {
	Allocate(nbytes, alignment int) []byte
	Release(buf []byte)
}

// RowTable is an append-only store of encoded row images, indexed by row
// id 0..Len()-1. Row id i is always the group id the row was first
// associated with, per spec.md §4.3's invariant that a group's canonical
// row lives at row-table index == group id.
type RowTable struct {
	buf         []byte
	offsets     []int // len() == Len()+1; offsets[i]:offsets[i+1] is row i
	fixed       bool
	stride      int // meaningful only when fixed
	alloc       Allocator
	tailPadding int
}

// NewRowTable constructs an empty RowTable for the row layout m describes.
// alloc, if non-nil, backs the table's growth (spec.md §5's "output arrays
// own their own buffers, allocated from the configured pool"); nil falls
// back to ordinary Go heap growth. tailPadding is the number of scratch
// bytes reserved past the logical end of buf so wide-chunk compare kernels
// never read past the allocation (see ProbeWidth); tailPadding <= 0 uses
// simdTailPadding.
func NewRowTable(m RowMetadata, alloc Allocator, tailPadding int) *RowTable {
	if tailPadding <= 0 {
		tailPadding = simdTailPadding
	}
	t := &RowTable{fixed: m.FixedLength, alloc: alloc, tailPadding: tailPadding}
	if m.FixedLength {
		t.stride = m.FixedRowWidth
	} else {
		t.offsets = append(t.offsets, 0)
	}
	return t
}

// Len reports the number of rows stored.
func (t *RowTable) Len() int {
	if t.fixed {
		if t.stride == 0 {
			return 0
		}
		return len(t.buf) / t.stride
	}
	return len(t.offsets) - 1
}

// Reserve grows the table by one row of nbytes and returns a slice over
// its (uninitialized) backing storage for the caller to fill in. The
// returned slice is only valid until the next call to Reserve.
func (t *RowTable) Reserve(nbytes int) []byte {
	start := len(t.buf)
	required := start + nbytes + t.tailPadding
	if required > cap(t.buf) {
		t.grow(required)
	}
	t.buf = t.buf[:start+nbytes]
	if !t.fixed {
		t.offsets = append(t.offsets, start+nbytes)
	}
	return t.buf[start : start+nbytes]
}

// grow ensures cap(t.buf) >= required, backed by alloc when present.
func (t *RowTable) grow(required int) {
	if t.alloc == nil {
		t.buf = slices.Grow(t.buf, required-len(t.buf))
		return
	}
	newCap := required
	if c := cap(t.buf); c*2 > newCap {
		newCap = c * 2
	}
	newBuf := t.alloc.Allocate(newCap, 8)
	n := copy(newBuf, t.buf)
	old := t.buf
	t.buf = newBuf[:n]
	if old != nil {
		t.alloc.Release(old)
	}
}

// RowBytes returns the encoded image of row i.
func (t *RowTable) RowBytes(i int) []byte {
	if t.fixed {
		return t.buf[i*t.stride : (i+1)*t.stride]
	}
	return t.buf[t.offsets[i]:t.offsets[i+1]]
}

// Reset discards all rows while retaining the underlying allocation.
func (t *RowTable) Reset() {
	t.buf = t.buf[:0]
	if !t.fixed {
		t.offsets = t.offsets[:1]
	}
}

// TruncateTo discards every row at index n and beyond, restoring the
// table to the state it was in after exactly n rows had been reserved.
// Used to unwind a partially-applied mini-batch on encode failure.
func (t *RowTable) TruncateTo(n int) {
	if t.fixed {
		t.buf = t.buf[:n*t.stride]
		return
	}
	t.buf = t.buf[:t.offsets[n]]
	t.offsets = t.offsets[:n+1]
}
