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

import (
	"bytes"
	"testing"

	"github.com/Darrenzzy/rowgroup/internal/pool"
)

func TestRowTableFixedStride(t *testing.T) {
	m, err := Plan([]ColumnMetadata{{Kind: KindFixedWidth, ByteWidth: 4}})
	if err != nil {
		t.Fatal(err)
	}
	rows := NewRowTable(m, nil, 0)
	rows2 := [][]byte{{1, 2, 3, 4, 0, 0, 0, 0}, {5, 6, 7, 8, 0, 0, 0, 0}}
	for _, r := range rows2 {
		copy(rows.Reserve(len(r)), r)
	}
	if rows.Len() != 2 {
		t.Fatalf("len = %d, want 2", rows.Len())
	}
	if !bytes.Equal(rows.RowBytes(0), rows2[0]) || !bytes.Equal(rows.RowBytes(1), rows2[1]) {
		t.Fatal("row bytes mismatch")
	}
}

func TestRowTableVariableOffsets(t *testing.T) {
	m, err := Plan([]ColumnMetadata{{Kind: KindBinary}})
	if err != nil {
		t.Fatal(err)
	}
	rows := NewRowTable(m, nil, 0)
	a := []byte("hello!!!") // 8-byte aligned payload, arbitrary content
	b := []byte("worldwid")
	copy(rows.Reserve(len(a)), a)
	copy(rows.Reserve(len(b)), b)

	if rows.Len() != 2 {
		t.Fatalf("len = %d, want 2", rows.Len())
	}
	if !bytes.Equal(rows.RowBytes(0), a) {
		t.Fatal("row 0 mismatch")
	}
	if !bytes.Equal(rows.RowBytes(1), b) {
		t.Fatal("row 1 mismatch")
	}
}

func TestRowTableTruncateTo(t *testing.T) {
	m, err := Plan([]ColumnMetadata{{Kind: KindBinary}})
	if err != nil {
		t.Fatal(err)
	}
	rows := NewRowTable(m, nil, 0)
	a, b, c := []byte("hello!!!"), []byte("worldwid"), []byte("abcdefgh")
	copy(rows.Reserve(len(a)), a)
	copy(rows.Reserve(len(b)), b)
	rows.TruncateTo(1)
	if rows.Len() != 1 {
		t.Fatalf("len after truncate = %d, want 1", rows.Len())
	}
	if !bytes.Equal(rows.RowBytes(0), a) {
		t.Fatal("row 0 should survive truncation unchanged")
	}
	copy(rows.Reserve(len(c)), c)
	if rows.Len() != 2 || !bytes.Equal(rows.RowBytes(1), c) {
		t.Fatal("table should accept new rows after truncation")
	}
}

func TestRowTableGrowsFromAllocator(t *testing.T) {
	m, err := Plan([]ColumnMetadata{{Kind: KindBinary}})
	if err != nil {
		t.Fatal(err)
	}
	arena := pool.NewArena(4)
	rows := NewRowTable(m, arena, 8)
	for i := 0; i < 64; i++ {
		row := bytes.Repeat([]byte{byte(i)}, 8)
		copy(rows.Reserve(len(row)), row)
	}
	if rows.Len() != 64 {
		t.Fatalf("len = %d, want 64", rows.Len())
	}
	if arena.PagesInUse() == 0 {
		t.Fatal("RowTable growth should have drawn at least one page from the arena")
	}
	for i := 0; i < 64; i++ {
		want := bytes.Repeat([]byte{byte(i)}, 8)
		if !bytes.Equal(rows.RowBytes(i), want) {
			t.Fatalf("row %d = %v, want %v", i, rows.RowBytes(i), want)
		}
	}
}

func TestRowTableReset(t *testing.T) {
	m, err := Plan([]ColumnMetadata{{Kind: KindFixedWidth, ByteWidth: 4}})
	if err != nil {
		t.Fatal(err)
	}
	rows := NewRowTable(m, nil, 0)
	copy(rows.Reserve(8), []byte{1, 2, 3, 4, 0, 0, 0, 0})
	rows.Reset()
	if rows.Len() != 0 {
		t.Fatalf("len after reset = %d, want 0", rows.Len())
	}
	copy(rows.Reserve(8), []byte{9, 9, 9, 9, 0, 0, 0, 0})
	if rows.Len() != 1 {
		t.Fatalf("len after reset+reserve = %d, want 1", rows.Len())
	}
}
