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

	"github.com/google/uuid"

	"github.com/Darrenzzy/rowgroup/internal/keyrow"
)

const (
	miniBatchMin = 128
	miniBatchMax = 1024
)

func toKeyrowMetadata(keyTypes []KeyType) []keyrow.ColumnMetadata {
	out := make([]keyrow.ColumnMetadata, len(keyTypes))
	for i, t := range keyTypes {
		out[i] = keyrow.ColumnMetadata{Kind: keyrow.Kind(t.Kind), ByteWidth: t.ByteWidth}
	}
	return out
}

// fastGrouper is the Grouper implementation selected when the key schema
// contains no large-binary column and the host is little-endian
// (spec.md §4.4 "Fast path"). It drives internal/keyrow's Encoder,
// RowTable and HashTable exactly as their doc comments describe.
type fastGrouper struct {
	id         uuid.UUID
	keyTypes   []KeyType
	encoder    *keyrow.Encoder
	rows       *keyrow.RowTable
	table      *keyrow.HashTable
	pool       MemoryPool
	cpu        CPUInfo
	flags      uint64 // cpu.HardwareFlags(), resolved once at construction
	probeWidth int    // keyrow.ProbeWidth(flags); feeds RowsEqual and the RowTable's tail padding

	dictionaries []Dictionary // bound on first batch per dictionary column, nil otherwise
}

// hardwareFlagsOf reports cpu's hardware flags, or 0 (the scalar-kernel
// default) if cpu is nil.
func hardwareFlagsOf(cpu CPUInfo) uint64 {
	if cpu == nil {
		return 0
	}
	return cpu.HardwareFlags()
}

func newFastGrouper(keyTypes []KeyType, pool MemoryPool, cpu CPUInfo) (*fastGrouper, error) {
	for ci, t := range keyTypes {
		if t.Kind == KindLargeBinary {
			return nil, &UnsupportedLargeOffsetsError{Column: ci}
		}
	}
	enc, err := keyrow.NewEncoder(toKeyrowMetadata(keyTypes))
	if err != nil {
		return nil, translateKeyrowError(err, keyTypes)
	}
	flags := hardwareFlagsOf(cpu)
	probeWidth := keyrow.ProbeWidth(flags)
	return &fastGrouper{
		id:           uuid.New(),
		keyTypes:     keyTypes,
		encoder:      enc,
		rows:         keyrow.NewRowTable(enc.Metadata, pool, probeWidth),
		table:        keyrow.NewHashTable(miniBatchMin),
		pool:         pool,
		cpu:          cpu,
		flags:        flags,
		probeWidth:   probeWidth,
		dictionaries: make([]Dictionary, len(keyTypes)),
	}, nil
}

// allocRowBuffer draws a scratch row-image buffer from g.pool (spec.md §5:
// "output arrays own their own buffers, allocated from the configured
// pool"), falling back to the Go heap when no pool was configured.
func (g *fastGrouper) allocRowBuffer(n int) []byte {
	if g.pool == nil {
		return make([]byte, n)
	}
	return g.pool.Allocate(n, 8)
}

func (g *fastGrouper) releaseRowBuffer(buf []byte) {
	if g.pool != nil {
		g.pool.Release(buf)
	}
}

// ID identifies this grouper instance, for callers that want to
// correlate logging or tracing across calls; it plays no role in the
// grouping algorithm itself.
func (g *fastGrouper) ID() uuid.UUID { return g.id }

func translateKeyrowError(err error, keyTypes []KeyType) error {
	if ute, ok := err.(*keyrow.UnsupportedKeyTypeError); ok {
		return &UnsupportedKeyTypeError{Column: ute.Column, Type: keyTypes[ute.Column]}
	}
	return err
}

// bindDictionaries checks (and, on first sight, records) the dictionary
// handle of every KindDictionary column of batch against what was bound
// previously, per spec.md §4.1 "Dictionary contributes... bound on
// first batch, unchanged thereafter; mismatch fails with
// UnsupportedDictionary".
func (g *fastGrouper) bindDictionaries(batch BatchView) error {
	for ci, t := range g.keyTypes {
		if t.Kind != KindDictionary {
			continue
		}
		d := batch.Column(ci).Dictionary()
		if g.dictionaries[ci] == nil {
			g.dictionaries[ci] = d
			continue
		}
		if !g.dictionaries[ci].Equal(d) {
			return &UnsupportedDictionaryError{Column: ci}
		}
	}
	return nil
}

// buildColumns wraps batch's key columns as keyrow.Column accessors over
// the absolute row range [base, base+n), materializing scalar columns to
// the single broadcast value per spec.md §4.4 "Scalar broadcast".
func buildColumns(batch BatchView, keyTypes []KeyType, base int) []keyrow.Column {
	cols := make([]keyrow.Column, len(keyTypes))
	for ci := range keyTypes {
		cv := batch.Column(ci)
		scalar := cv.IsScalar()
		index := func(i int) int {
			if scalar {
				return 0
			}
			return base + i
		}
		cols[ci] = keyrow.Column{
			Meta: keyrow.ColumnMetadata{Kind: keyrow.Kind(keyTypes[ci].Kind), ByteWidth: keyTypes[ci].ByteWidth},
			Valid: func(i int) bool {
				return cv.IsValid(index(i))
			},
			Fixed: func(i int) []byte {
				return cv.Fixed(index(i))
			},
			Variable: func(i int) []byte {
				return cv.Variable(index(i))
			},
		}
	}
	return cols
}

// miniBatchRamp tracks the doubling-up-to-max mini-batch size within one
// Populate/Consume/Lookup call (spec.md §4.4 "Mini-batching"). SPEC_FULL.md
// resolves the ramp-lifetime Open Question in favor of restarting the
// ramp on every call rather than carrying it across calls on the same
// grouper.
type miniBatchRamp struct {
	size int
}

func newMiniBatchRamp() *miniBatchRamp {
	return &miniBatchRamp{size: miniBatchMin}
}

// next returns the chunk size to use for the upcoming mini-batch,
// capped at what remains of the range, and advances the ramp.
func (r *miniBatchRamp) next(remaining int) int {
	n := r.size
	if n > remaining {
		n = remaining
	}
	if r.size < miniBatchMax {
		r.size *= 2
		if r.size > miniBatchMax {
			r.size = miniBatchMax
		}
	}
	return n
}

// mode controls whether process inserts new keys and whether it
// materializes an id/validity array.
type processMode int

const (
	modePopulate processMode = iota
	modeConsume
	modeLookup
)

func (g *fastGrouper) process(batch BatchView, offset, length int, mode processMode) ([]uint32, []bool, error) {
	if err := validateBatch(batch, g.keyTypes, offset, length); err != nil {
		return nil, nil, err
	}
	if err := g.bindDictionaries(batch); err != nil {
		return nil, nil, err
	}

	var ids []uint32
	var validity []bool
	if mode != modePopulate {
		ids = make([]uint32, length)
	}
	if mode == modeLookup {
		validity = make([]bool, length)
	}

	// Encode failures roll back any rows this call already committed, so
	// that a failed Populate/Consume/Lookup leaves the grouper exactly as
	// it was before the call (spec.md §9's allocation-failure Open
	// Question, resolved in favor of rollback-on-failure).
	rowsBefore := g.rows.Len()
	groupsBefore := g.table.NumGroups()
	rollback := func() {
		g.rows.TruncateTo(rowsBefore)
		g.table.TruncateTo(groupsBefore)
	}

	ramp := newMiniBatchRamp()
	lengths := make([]int, 0, miniBatchMax)
	written := 0
	for written < length {
		n := ramp.next(length - written)
		base := offset + written
		cols := buildColumns(batch, g.keyTypes, base)

		if cap(lengths) < n {
			lengths = make([]int, n)
		}
		lengths = lengths[:n]
		g.encoder.Measure(cols, n, lengths)

		for i := 0; i < n; i++ {
			rowCols := shiftColumns(cols, i)
			buf := g.allocRowBuffer(lengths[i])
			if err := g.encoder.Encode(rowCols, 1, [][]byte{buf}); err != nil {
				g.releaseRowBuffer(buf)
				rollback()
				return nil, nil, translateKeyrowError(err, g.keyTypes)
			}
			hash := keyrow.HashRow(buf, g.flags)
			gid, found := g.table.Probe(hash, func(candidate uint32) bool {
				return keyrow.RowsEqual(g.rows.RowBytes(int(candidate)), buf, g.probeWidth)
			})
			switch {
			case found:
				if mode != modePopulate {
					ids[written+i] = gid
					if mode == modeLookup {
						validity[written+i] = true
					}
				}
				g.releaseRowBuffer(buf)
			case mode == modeLookup:
				// absent: ids/validity already zero-valued
				g.releaseRowBuffer(buf)
			default:
				dst := g.rows.Reserve(len(buf))
				copy(dst, buf)
				g.releaseRowBuffer(buf)
				newID := g.table.Insert(hash)
				debugAssert(int(newID) == g.rows.Len()-1, "group id %d does not match row table index %d", newID, g.rows.Len()-1)
				if int(newID) != g.rows.Len()-1 {
					rollback()
					return nil, nil, fmt.Errorf("rowgroup: internal invariant violated: group id %d does not match row table index %d", newID, g.rows.Len()-1)
				}
				if mode != modePopulate {
					ids[written+i] = newID
				}
			}
		}
		written += n
	}
	return ids, validity, nil
}

func shiftColumns(cols []keyrow.Column, i int) []keyrow.Column {
	out := make([]keyrow.Column, len(cols))
	for ci, c := range cols {
		c := c
		out[ci] = keyrow.Column{
			Meta: c.Meta,
			Valid: func(int) bool {
				if c.Valid == nil {
					return true
				}
				return c.Valid(i)
			},
			Fixed: func(int) []byte {
				return c.Fixed(i)
			},
			Variable: func(int) []byte {
				return c.Variable(i)
			},
		}
	}
	return out
}

func (g *fastGrouper) Populate(batch BatchView, offset, length int) error {
	_, _, err := g.process(batch, offset, length, modePopulate)
	return err
}

func (g *fastGrouper) Consume(batch BatchView, offset, length int) ([]uint32, error) {
	ids, _, err := g.process(batch, offset, length, modeConsume)
	return ids, err
}

func (g *fastGrouper) Lookup(batch BatchView, offset, length int) ([]uint32, []bool, error) {
	return g.process(batch, offset, length, modeLookup)
}

func (g *fastGrouper) NumGroups() uint32 {
	return uint32(g.table.NumGroups())
}

func (g *fastGrouper) Uniques() (BatchView, error) {
	n := g.rows.Len()
	decoded := g.encoder.DecodeFixed(g.rows, 0, n)
	g.encoder.DecodeVariable(g.rows, 0, n, decoded)
	return newDecodedBatchView(g.keyTypes, decoded, g.dictionaries), nil
}

func (g *fastGrouper) Reset() {
	g.rows.Reset()
	g.table.Reset()
}
