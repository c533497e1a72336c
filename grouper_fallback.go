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
	"github.com/google/uuid"

	"github.com/Darrenzzy/rowgroup/internal/keyrow"
)

// fallbackGrouper is the Grouper implementation selected for
// big-endian hosts or schemas containing a large-binary-like column
// (spec.md §4.4 "Fallback path"). It encodes each row with the same
// length-prefixed byte layout the fast path uses, but resolves equality
// through a Go map over the encoded byte string instead of a hash table
// with a comparator callback; key_bytes/offsets (spec.md's terms for
// the retained encoding) are simply the underlying keyrow.RowTable,
// which already stores rows contiguously, with prefix-summed offsets for
// variable-length layouts and a fixed stride otherwise.
type fallbackGrouper struct {
	id       uuid.UUID
	keyTypes []KeyType
	encoder  *keyrow.Encoder
	rows     *keyrow.RowTable
	index    map[string]uint32
	pool     MemoryPool

	dictionaries []Dictionary
}

func newFallbackGrouper(keyTypes []KeyType, pool MemoryPool) (*fallbackGrouper, error) {
	enc, err := keyrow.NewEncoder(toKeyrowMetadata(keyTypes))
	if err != nil {
		return nil, translateKeyrowError(err, keyTypes)
	}
	return &fallbackGrouper{
		id:           uuid.New(),
		keyTypes:     keyTypes,
		encoder:      enc,
		rows:         keyrow.NewRowTable(enc.Metadata, pool, 0),
		index:        make(map[string]uint32),
		pool:         pool,
		dictionaries: make([]Dictionary, len(keyTypes)),
	}, nil
}

// allocRowBuffer and releaseRowBuffer mirror fastGrouper's pool-backed
// scratch row buffer (spec.md §5).
func (g *fallbackGrouper) allocRowBuffer(n int) []byte {
	if g.pool == nil {
		return make([]byte, n)
	}
	return g.pool.Allocate(n, 8)
}

func (g *fallbackGrouper) releaseRowBuffer(buf []byte) {
	if g.pool != nil {
		g.pool.Release(buf)
	}
}

// ID identifies this grouper instance; see fastGrouper.ID.
func (g *fallbackGrouper) ID() uuid.UUID { return g.id }

func (g *fallbackGrouper) bindDictionaries(batch BatchView) error {
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

func (g *fallbackGrouper) process(batch BatchView, offset, length int, mode processMode) ([]uint32, []bool, error) {
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

	// Encode failures roll back any rows this call already committed; see
	// fastGrouper.process for the rationale (spec.md §9).
	rowsBefore := g.rows.Len()
	var insertedKeys []string
	rollback := func() {
		g.rows.TruncateTo(rowsBefore)
		for _, k := range insertedKeys {
			delete(g.index, k)
		}
	}

	cols := buildColumns(batch, g.keyTypes, offset)
	lengths := make([]int, length)
	g.encoder.Measure(cols, length, lengths)

	for i := 0; i < length; i++ {
		rowCols := shiftColumns(cols, i)
		buf := g.allocRowBuffer(lengths[i])
		if err := g.encoder.Encode(rowCols, 1, [][]byte{buf}); err != nil {
			g.releaseRowBuffer(buf)
			rollback()
			return nil, nil, translateKeyrowError(err, g.keyTypes)
		}
		// key's string conversion copies buf's contents, so buf can be
		// released back to the pool as soon as key is computed.
		key := string(buf)
		g.releaseRowBuffer(buf)
		gid, found := g.index[key]
		switch {
		case found:
			if mode != modePopulate {
				ids[i] = gid
				if mode == modeLookup {
					validity[i] = true
				}
			}
		case mode == modeLookup:
			// absent
		default:
			dst := g.rows.Reserve(len(key))
			copy(dst, key)
			newID := uint32(len(g.index))
			g.index[key] = newID
			insertedKeys = append(insertedKeys, key)
			if mode != modePopulate {
				ids[i] = newID
			}
		}
	}
	return ids, validity, nil
}

func (g *fallbackGrouper) Populate(batch BatchView, offset, length int) error {
	_, _, err := g.process(batch, offset, length, modePopulate)
	return err
}

func (g *fallbackGrouper) Consume(batch BatchView, offset, length int) ([]uint32, error) {
	ids, _, err := g.process(batch, offset, length, modeConsume)
	return ids, err
}

func (g *fallbackGrouper) Lookup(batch BatchView, offset, length int) ([]uint32, []bool, error) {
	return g.process(batch, offset, length, modeLookup)
}

func (g *fallbackGrouper) NumGroups() uint32 {
	return uint32(len(g.index))
}

func (g *fallbackGrouper) Uniques() (BatchView, error) {
	n := g.rows.Len()
	decoded := g.encoder.DecodeFixed(g.rows, 0, n)
	g.encoder.DecodeVariable(g.rows, 0, n, decoded)
	return newDecodedBatchView(g.keyTypes, decoded, g.dictionaries), nil
}

func (g *fallbackGrouper) Reset() {
	g.rows.Reset()
	g.index = make(map[string]uint32)
}
