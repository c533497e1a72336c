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
	"reflect"
	"testing"
)

// Scenario 3 of spec.md §8, run once through the fixed-width fast
// segmenter and once through the general segmenter (forcing the latter
// by declaring the key nullable, which routes past the simple-key
// variant) to confirm both variants agree.
func TestSegmenterScenario3(t *testing.T) {
	for _, nullable := range []bool{false, true} {
		batch1 := SliceBatch{Cols: []ColumnView{int32Column([]int32{1, 1, 2}, nullable, nil)}, N: 3}
		batch2 := SliceBatch{Cols: []ColumnView{int32Column([]int32{2, 2, 3}, nullable, nil)}, N: 3}

		s, err := NewRowSegmenter([]KeyType{{Kind: KindFixedWidth, ByteWidth: 4, Nullable: nullable}}, nullable, nil, nil)
		if err != nil {
			t.Fatal(err)
		}

		segs1, err := s.Segment(batch1, 0, batch1.N)
		if err != nil {
			t.Fatal(err)
		}
		want1 := []Segment{
			{Offset: 0, Length: 2, IsOpenEnd: false, ExtendsPrevious: true},
			{Offset: 2, Length: 1, IsOpenEnd: true, ExtendsPrevious: false},
		}
		if !reflect.DeepEqual(segs1, want1) {
			t.Fatalf("nullable=%v: batch1 segments = %+v, want %+v", nullable, segs1, want1)
		}

		segs2, err := s.Segment(batch2, 0, batch2.N)
		if err != nil {
			t.Fatal(err)
		}
		want2 := []Segment{
			{Offset: 0, Length: 2, IsOpenEnd: false, ExtendsPrevious: true},
			{Offset: 2, Length: 1, IsOpenEnd: true, ExtendsPrevious: false},
		}
		if !reflect.DeepEqual(segs2, want2) {
			t.Fatalf("nullable=%v: batch2 segments = %+v, want %+v", nullable, segs2, want2)
		}
	}
}

func TestSegmenterNoKeys(t *testing.T) {
	s, err := NewRowSegmenter(nil, false, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	batch := SliceBatch{N: 5}
	segs, err := s.Segment(batch, 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	want := []Segment{{Offset: 0, Length: 5, IsOpenEnd: true, ExtendsPrevious: true}}
	if !reflect.DeepEqual(segs, want) {
		t.Fatalf("segments = %+v, want %+v", segs, want)
	}
}

func TestSegmenterResetClearsState(t *testing.T) {
	s, err := NewRowSegmenter([]KeyType{{Kind: KindFixedWidth, ByteWidth: 4}}, false, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	batch := SliceBatch{Cols: []ColumnView{int32Column([]int32{9}, false, nil)}, N: 1}
	if _, err := s.Segment(batch, 0, 1); err != nil {
		t.Fatal(err)
	}
	s.Reset()
	segs, err := s.Segment(batch, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !segs[0].ExtendsPrevious {
		t.Fatalf("after Reset, first segment should again default ExtendsPrevious=true, got %+v", segs[0])
	}
}
