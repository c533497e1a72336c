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

import (
	"fmt"
	"unsafe"

	"github.com/google/uuid"
)

// Grouper assigns dense group ids to key tuples drawn from a fixed key
// schema, per spec.md §4.4. Implementations are single-threaded and
// non-reentrant: a single Grouper must never be used concurrently.
type Grouper interface {
	// ID identifies this instance for the caller's own logging/tracing
	// correlation; it plays no role in the grouping algorithm.
	ID() uuid.UUID
	// Populate inserts the keys of batch[offset:offset+length] without
	// materializing an id array.
	Populate(batch BatchView, offset, length int) error
	// Consume inserts the keys of batch[offset:offset+length] and
	// returns a dense group-id array of the same length; no id is ever
	// null.
	Consume(batch BatchView, offset, length int) ([]uint32, error)
	// Lookup reports the group id of each row of batch[offset:offset+length]
	// without inserting; validity[i] is false where the key was not
	// already present, in which case values[i] is unspecified (zero by
	// convention).
	Lookup(batch BatchView, offset, length int) (values []uint32, validity []bool, err error)
	// NumGroups reports the current distinct-key count.
	NumGroups() uint32
	// Uniques returns one row per group, in first-insertion order, with
	// any bound dictionaries attached verbatim.
	Uniques() (BatchView, error)
	// Reset drops all groups. Dictionaries bound on the first batch are
	// retained.
	Reset()
}

// hostLittleEndian reports whether the running process is little-endian.
// The fast path's row images are compared as raw bytes under a
// little-endian assumption (spec.md §9 "Endianness"), so this gate
// determines whether NewGrouper may ever select it.
var hostLittleEndian = func() bool {
	var x uint16 = 1
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// canUseFastPath reports whether keyTypes is eligible for the fast path:
// little-endian host and no large-binary-like column (spec.md §4.4).
func canUseFastPath(keyTypes []KeyType) bool {
	if !hostLittleEndian {
		return false
	}
	for _, t := range keyTypes {
		if t.Kind == KindLargeBinary {
			return false
		}
	}
	return true
}

// NewGrouper constructs a Grouper for keyTypes, dispatching to the fast
// path when eligible and to the fallback path otherwise, per spec.md
// §6's `Grouper::make`.
func NewGrouper(keyTypes []KeyType, pool MemoryPool, cpu CPUInfo) (Grouper, error) {
	if len(keyTypes) == 0 {
		return nil, fmt.Errorf("%w: key schema must have at least one column", ErrInvalidArgument)
	}
	if canUseFastPath(keyTypes) {
		return newFastGrouper(keyTypes, pool, cpu)
	}
	return newFallbackGrouper(keyTypes, pool)
}

// validateBatch checks the common batch/offset/length shape contract
// every Grouper entry point shares (and so the general RowSegmenter,
// through its Grouper; the other segmenter variants check only offset,
// length and column count).
func validateBatch(batch BatchView, keyTypes []KeyType, offset, length int) error {
	if offset < 0 || length < 0 {
		return fmt.Errorf("%w: negative offset or length", ErrInvalidArgument)
	}
	if batch.NumColumns() != len(keyTypes) {
		return fmt.Errorf("%w: batch has %d columns, schema has %d", ErrInvalidArgument, batch.NumColumns(), len(keyTypes))
	}
	if offset+length > batch.Len() {
		return fmt.Errorf("%w: offset+length %d exceeds batch length %d", ErrInvalidArgument, offset+length, batch.Len())
	}
	for i, t := range keyTypes {
		col := batch.Column(i)
		// Nullable is advisory (see KeyType), so only Kind and ByteWidth
		// have to match the schema.
		if ct := col.Type(); ct.Kind != t.Kind || ct.ByteWidth != t.ByteWidth {
			return fmt.Errorf("%w: column %d has type %s, schema expects %s", ErrInvalidArgument, i, col.Type(), t)
		}
	}
	return nil
}
