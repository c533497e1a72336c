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

	"github.com/Darrenzzy/rowgroup/internal/keyrow"
	"github.com/Darrenzzy/rowgroup/internal/pool"
)

// fixedCPUInfo reports a caller-chosen flag set, for tests that want a
// specific hash/compare kernel without depending on the test host's actual
// hardware.
type fixedCPUInfo uint64

func (f fixedCPUInfo) HardwareFlags() uint64 { return uint64(f) }

func int32Key() KeyType { return KeyType{Kind: KindFixedWidth, ByteWidth: 4} }

func le4(v int32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func int32Column(values []int32, nullable bool, nulls []bool) SliceColumn {
	var nullFn func(int) bool
	if nullable {
		nullFn = func(i int) bool { return nulls != nil && nulls[i] }
	}
	return NewSliceColumn(int32Key(), len(values), nullFn, func(i int) []byte {
		return le4(values[i])
	})
}

func utf8Column(values []string) SliceColumn {
	return NewSliceColumn(KeyType{Kind: KindBinary}, len(values), nil, func(i int) []byte {
		return []byte(values[i])
	})
}

func decodeInt32Uniques(t *testing.T, b BatchView, col int) []int32 {
	t.Helper()
	cv := b.Column(col)
	out := make([]int32, b.Len())
	for i := 0; i < b.Len(); i++ {
		if !cv.IsValid(i) {
			continue
		}
		raw := cv.Fixed(i)
		out[i] = int32(raw[0]) | int32(raw[1])<<8 | int32(raw[2])<<16 | int32(raw[3])<<24
	}
	return out
}

func decodeStringUniques(t *testing.T, b BatchView, col int) []string {
	t.Helper()
	cv := b.Column(col)
	out := make([]string, b.Len())
	for i := 0; i < b.Len(); i++ {
		out[i] = string(cv.Variable(i))
	}
	return out
}

// Scenario 1 of spec.md §8.
func TestGrouperScenario1(t *testing.T) {
	values := []int32{3, 1, 3, 1, 2}
	batch := SliceBatch{Cols: []ColumnView{int32Column(values, false, nil)}, N: len(values)}

	g, err := NewGrouper([]KeyType{int32Key()}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ids, err := g.Consume(batch, 0, batch.N)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint32{0, 1, 0, 1, 2}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	if g.NumGroups() != 3 {
		t.Fatalf("num_groups = %d, want 3", g.NumGroups())
	}
	uniq, err := g.Uniques()
	if err != nil {
		t.Fatal(err)
	}
	got := decodeInt32Uniques(t, uniq, 0)
	wantUniq := []int32{3, 1, 2}
	if !reflect.DeepEqual(got, wantUniq) {
		t.Fatalf("uniques = %v, want %v", got, wantUniq)
	}
}

// Scenario 2 of spec.md §8.
func TestGrouperScenario2TwoColumnKey(t *testing.T) {
	ints := []int32{1, 1, 1, 2}
	strs := []string{"a", "b", "a", "a"}
	batch := SliceBatch{
		Cols: []ColumnView{int32Column(ints, false, nil), utf8Column(strs)},
		N:    len(ints),
	}

	keyTypes := []KeyType{int32Key(), {Kind: KindBinary}}
	g, err := NewGrouper(keyTypes, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ids, err := g.Consume(batch, 0, batch.N)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint32{0, 1, 0, 2}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}

	uniq, err := g.Uniques()
	if err != nil {
		t.Fatal(err)
	}
	gotInts := decodeInt32Uniques(t, uniq, 0)
	gotStrs := decodeStringUniques(t, uniq, 1)
	wantInts := []int32{1, 1, 2}
	wantStrs := []string{"a", "b", "a"}
	if !reflect.DeepEqual(gotInts, wantInts) || !reflect.DeepEqual(gotStrs, wantStrs) {
		t.Fatalf("uniques = (%v, %v), want (%v, %v)", gotInts, gotStrs, wantInts, wantStrs)
	}
}

// Scenario 4 of spec.md §8: null-key semantics.
func TestGrouperScenario4NullKeys(t *testing.T) {
	values := []int32{0, 0, 1, 0}
	nulls := []bool{true, true, false, true}
	batch := SliceBatch{Cols: []ColumnView{int32Column(values, true, nulls)}, N: len(values)}

	g, err := NewGrouper([]KeyType{{Kind: KindFixedWidth, ByteWidth: 4, Nullable: true}}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ids, err := g.Consume(batch, 0, batch.N)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint32{0, 0, 1, 0}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	if g.NumGroups() != 2 {
		t.Fatalf("num_groups = %d, want 2", g.NumGroups())
	}
}

// Scenario 5 of spec.md §8: lookup miss.
func TestGrouperScenario5LookupMiss(t *testing.T) {
	seed := []int32{1, 2, 3}
	seedBatch := SliceBatch{Cols: []ColumnView{int32Column(seed, false, nil)}, N: len(seed)}

	g, err := NewGrouper([]KeyType{int32Key()}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Consume(seedBatch, 0, seedBatch.N); err != nil {
		t.Fatal(err)
	}

	probe := []int32{2, 4, 1}
	probeBatch := SliceBatch{Cols: []ColumnView{int32Column(probe, false, nil)}, N: len(probe)}
	values, validity, err := g.Lookup(probeBatch, 0, probeBatch.N)
	if err != nil {
		t.Fatal(err)
	}
	wantValues := []uint32{1, 0, 0}
	wantValid := []bool{true, false, true}
	if !reflect.DeepEqual(validity, wantValid) {
		t.Fatalf("validity = %v, want %v", validity, wantValid)
	}
	if values[0] != wantValues[0] || values[2] != wantValues[2] {
		t.Fatalf("values = %v, want matching entries at valid positions %v", values, wantValues)
	}
}

func TestGrouperPopulateConsumeEquivalence(t *testing.T) {
	values := []int32{5, 5, 7, 5, 9}
	batch := SliceBatch{Cols: []ColumnView{int32Column(values, false, nil)}, N: len(values)}

	pg, err := NewGrouper([]KeyType{int32Key()}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := pg.Populate(batch, 0, batch.N); err != nil {
		t.Fatal(err)
	}
	pu, err := pg.Uniques()
	if err != nil {
		t.Fatal(err)
	}

	cg, err := NewGrouper([]KeyType{int32Key()}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cg.Consume(batch, 0, batch.N); err != nil {
		t.Fatal(err)
	}
	cu, err := cg.Uniques()
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(decodeInt32Uniques(t, pu, 0), decodeInt32Uniques(t, cu, 0)) {
		t.Fatalf("populate and consume produced different unique sets")
	}
}

func TestGrouperResetIdempotence(t *testing.T) {
	values := []int32{1, 2, 3}
	batch := SliceBatch{Cols: []ColumnView{int32Column(values, false, nil)}, N: len(values)}

	g, err := NewGrouper([]KeyType{int32Key()}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Consume(batch, 0, batch.N); err != nil {
		t.Fatal(err)
	}
	g.Reset()
	g.Reset()
	if g.NumGroups() != 0 {
		t.Fatalf("num_groups after reset = %d, want 0", g.NumGroups())
	}
}

func TestGrouperEqualityIffEqualID(t *testing.T) {
	values := []int32{1, 2, 1, 3, 2, 1}
	batch := SliceBatch{Cols: []ColumnView{int32Column(values, false, nil)}, N: len(values)}

	g, err := NewGrouper([]KeyType{int32Key()}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ids, err := g.Consume(batch, 0, batch.N)
	if err != nil {
		t.Fatal(err)
	}
	for i := range values {
		for j := range values {
			wantEqual := values[i] == values[j]
			gotEqual := ids[i] == ids[j]
			if wantEqual != gotEqual {
				t.Fatalf("row %d vs %d: values equal=%v but ids equal=%v", i, j, wantEqual, gotEqual)
			}
		}
	}
}

func TestGrouperDeterminism(t *testing.T) {
	values := []int32{4, 1, 4, 2, 1, 9, 2}
	batch := SliceBatch{Cols: []ColumnView{int32Column(values, false, nil)}, N: len(values)}

	run := func() []uint32 {
		g, err := NewGrouper([]KeyType{int32Key()}, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		ids, err := g.Consume(batch, 0, batch.N)
		if err != nil {
			t.Fatal(err)
		}
		return ids
	}
	a, b := run(), run()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("non-deterministic ids: %v vs %v", a, b)
	}
}

// TestGrouperDrawsFromConfiguredPool checks that a Grouper given a real
// MemoryPool actually allocates from it, rather than silently falling
// through to the Go heap (spec.md §5).
func TestGrouperDrawsFromConfiguredPool(t *testing.T) {
	values := make([]int32, 200)
	for i := range values {
		values[i] = int32(i % 37)
	}
	batch := SliceBatch{Cols: []ColumnView{int32Column(values, false, nil)}, N: len(values)}

	// Two pages: the per-row scratch buffer holds one page while the row
	// table grows, so the row table's storage needs a second one.
	arena := pool.NewArena(2)
	g, err := NewGrouper([]KeyType{int32Key()}, arena, fixedCPUInfo(keyrow.FlagAVX2))
	if err != nil {
		t.Fatal(err)
	}
	ids, err := g.Consume(batch, 0, batch.N)
	if err != nil {
		t.Fatal(err)
	}
	if g.NumGroups() != 37 {
		t.Fatalf("num groups = %d, want 37", g.NumGroups())
	}
	if arena.PagesInUse() == 0 {
		t.Fatal("grouper should have drawn at least one page from the configured pool")
	}
	for i := range values {
		for j := range values {
			wantEqual := values[i] == values[j]
			gotEqual := ids[i] == ids[j]
			if wantEqual != gotEqual {
				t.Fatalf("row %d vs %d: values equal=%v but ids equal=%v", i, j, wantEqual, gotEqual)
			}
		}
	}
}
