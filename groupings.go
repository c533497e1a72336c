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

// Groupings is the offsets/permutation pair produced by MakeGroupings,
// per spec.md §4.6. permutation[offsets[g]:offsets[g+1]] enumerates, in
// ascending original-index order, the positions i with ids[i] == g.
type Groupings struct {
	Offsets     []int
	Permutation []int32
}

// MakeGroupings partitions row positions by group id using one counting
// pass, a prefix sum, and one placement pass, per spec.md §4.6. validity
// may be nil to mean every id is present; otherwise a false entry fails
// the call with InvalidIds, matching the source's "or if nulls are
// present" clause.
func MakeGroupings(ids []uint32, numGroups uint32, validity []bool) (Groupings, error) {
	if validity != nil {
		for _, v := range validity {
			if !v {
				return Groupings{}, &InvalidIdsError{Reason: "ids array contains a null"}
			}
		}
	}
	counts := make([]int, numGroups)
	for _, id := range ids {
		if id >= numGroups {
			return Groupings{}, &InvalidIdsError{Reason: "id out of range [0, num_groups)"}
		}
		counts[id]++
	}

	offsets := make([]int, numGroups+1)
	for g := uint32(0); g < numGroups; g++ {
		offsets[g+1] = offsets[g] + counts[g]
	}

	cursor := make([]int, numGroups)
	copy(cursor, offsets[:numGroups])
	permutation := make([]int32, len(ids))
	for i, id := range ids {
		permutation[cursor[id]] = int32(i)
		cursor[id]++
	}

	return Groupings{Offsets: offsets, Permutation: permutation}, nil
}

// ApplyGroupings gathers values by g's permutation via take, so that the
// returned array, re-sliced by g.Offsets, holds each group's members in
// original row order, per spec.md §4.6.
func ApplyGroupings(g Groupings, values any, take TakeFunc) (any, error) {
	return take(values, g.Permutation)
}
