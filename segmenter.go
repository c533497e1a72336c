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
	"bytes"

	"github.com/google/uuid"
)

// Segment is one maximal contiguous run of equal-keyed rows within a
// batch, per spec.md §3.
type Segment struct {
	Offset          int
	Length          int
	IsOpenEnd       bool
	ExtendsPrevious bool
}

// RowSegmenter reports contiguous runs of equal-keyed rows across a
// stream of batches, carrying continuation state between calls
// (spec.md §4.5). A single RowSegmenter must not be used concurrently.
type RowSegmenter interface {
	// ID identifies this instance; see Grouper.ID.
	ID() uuid.UUID
	// Segment scans batch[offset:offset+length] and returns its
	// segments in order.
	Segment(batch BatchView, offset, length int) ([]Segment, error)
	// Reset returns the segmenter to its initial state (no saved key).
	Reset()
}

// NewRowSegmenter dispatches to one of the three variants of spec.md
// §4.5 based on the shape of keyTypes.
func NewRowSegmenter(keyTypes []KeyType, nullableKeys bool, pool MemoryPool, cpu CPUInfo) (RowSegmenter, error) {
	if len(keyTypes) == 0 {
		return &noKeysSegmenter{id: uuid.New(), first: true}, nil
	}
	if len(keyTypes) == 1 && !nullableKeys && keyTypes[0].Kind == KindFixedWidth {
		return &simpleKeySegmenter{id: uuid.New(), width: keyTypes[0].ByteWidth, first: true}, nil
	}
	g, err := NewGrouper(keyTypes, pool, cpu)
	if err != nil {
		return nil, err
	}
	return &anyKeysSegmenter{id: uuid.New(), keyTypes: keyTypes, pool: pool, cpu: cpu, grouper: g, savedID: absentGroupID}, nil
}

// absentGroupID is the segmenter-internal sentinel meaning "no previous
// key observed"; it is never returned to callers as a group id
// (spec.md §3, §9 "Sentinel discipline").
const absentGroupID = ^uint32(0)

// noKeysSegmenter implements spec.md §4.5 variant 1: no key columns.
type noKeysSegmenter struct {
	id    uuid.UUID
	first bool
}

func (s *noKeysSegmenter) ID() uuid.UUID { return s.id }

func (s *noKeysSegmenter) Segment(batch BatchView, offset, length int) ([]Segment, error) {
	if offset < 0 || length < 0 || offset+length > batch.Len() {
		return nil, ErrInvalidArgument
	}
	if length == 0 {
		return nil, nil
	}
	return []Segment{{Offset: offset, Length: length, IsOpenEnd: true, ExtendsPrevious: true}}, nil
}

func (s *noKeysSegmenter) Reset() { s.first = true }

// simpleKeySegmenter implements spec.md §4.5 variant 2: a single
// non-nullable fixed-width key, compared by memcmp over raw bytes.
type simpleKeySegmenter struct {
	id      uuid.UUID
	width   int
	lastKey []byte
	hasLast bool
	first   bool
}

func (s *simpleKeySegmenter) ID() uuid.UUID { return s.id }

func (s *simpleKeySegmenter) Segment(batch BatchView, offset, length int) ([]Segment, error) {
	if err := validateSegmenterBatch(batch, offset, length, 1); err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	col := batch.Column(0)
	keyAt := func(i int) []byte { return col.Fixed(offset + i) }

	var segs []Segment
	runStart := 0
	for i := 1; i <= length; i++ {
		if i < length && bytes.Equal(keyAt(i), keyAt(runStart)) {
			continue
		}
		extends := false
		if runStart == 0 {
			extends = !s.hasLast || bytes.Equal(keyAt(0), s.lastKey)
		}
		segs = append(segs, Segment{
			Offset:          offset + runStart,
			Length:          i - runStart,
			IsOpenEnd:       i == length,
			ExtendsPrevious: extends,
		})
		runStart = i
	}

	last := keyAt(length - 1)
	s.lastKey = append(s.lastKey[:0], last...)
	s.hasLast = true
	return segs, nil
}

func (s *simpleKeySegmenter) Reset() {
	s.lastKey = nil
	s.hasLast = false
}

// anyKeysSegmenter implements spec.md §4.5 variant 3: the general case,
// wrapping a fresh grouper that is reset between batches.
type anyKeysSegmenter struct {
	id       uuid.UUID
	keyTypes []KeyType
	pool     MemoryPool
	cpu      CPUInfo
	grouper  Grouper
	savedID  uint32
}

func (s *anyKeysSegmenter) ID() uuid.UUID { return s.id }

func (s *anyKeysSegmenter) Segment(batch BatchView, offset, length int) ([]Segment, error) {
	if err := validateSegmenterBatch(batch, offset, length, len(s.keyTypes)); err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}

	extendsFirst := s.savedID == absentGroupID
	if !extendsFirst {
		firstIDs, err := s.grouper.Consume(batch, offset, 1)
		if err != nil {
			return nil, err
		}
		extendsFirst = firstIDs[0] == s.savedID
	}

	s.grouper.Reset()
	ids, err := s.grouper.Consume(batch, offset, length)
	if err != nil {
		return nil, err
	}

	var segs []Segment
	runStart := 0
	for i := 1; i <= length; i++ {
		if i < length && ids[i] == ids[runStart] {
			continue
		}
		extends := extendsFirst
		if runStart != 0 {
			extends = false
		}
		segs = append(segs, Segment{
			Offset:          offset + runStart,
			Length:          i - runStart,
			IsOpenEnd:       i == length,
			ExtendsPrevious: extends,
		})
		runStart = i
	}

	s.savedID = ids[length-1]
	return segs, nil
}

func (s *anyKeysSegmenter) Reset() {
	s.grouper.Reset()
	s.savedID = absentGroupID
}

func validateSegmenterBatch(batch BatchView, offset, length, numCols int) error {
	if offset < 0 || length < 0 {
		return ErrInvalidArgument
	}
	if offset+length > batch.Len() {
		return ErrInvalidArgument
	}
	if batch.NumColumns() != numCols {
		return ErrInvalidArgument
	}
	return nil
}
