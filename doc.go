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

// Package rowgroup implements a columnar row-grouping engine: given a
// sequence of batches of equal-length key columns, it assigns every row a
// dense group id such that two rows receive the same id iff their key
// tuples compare equal.
//
// A Grouper supports three modes of operation (Populate, Consume, Lookup),
// materializing the distinct keys in first-appearance order via Uniques. A
// RowSegmenter wraps a Grouper (or a specialized fast path) to report runs
// of equal-keyed rows across a stream of batches.
//
// Column data containers, memory allocation, CPU feature detection, and
// take/gather are modeled as collaborator interfaces (see interfaces.go)
// rather than owned by this package.
package rowgroup
