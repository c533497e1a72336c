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
	"errors"
	"fmt"
)

// ErrInvalidArgument is wrapped by errors reporting a batch shape mismatch
// or a negative offset/length passed to Populate/Consume/Lookup.
var ErrInvalidArgument = errors.New("rowgroup: invalid argument")

// ErrNotImplementedDictionaryUnification names the case of two batches
// presenting different dictionaries for the same dictionary-typed key
// column; this package never attempts to unify them (spec.md Non-goals).
// The groupers report that case as *UnsupportedDictionaryError, and no
// code path in this package returns this sentinel.
var ErrNotImplementedDictionaryUnification = errors.New("rowgroup: unifying differing dictionaries is not implemented")

// UnsupportedKeyTypeError is returned when a column's logical Kind is not
// one of the kinds enumerated by Kind.
type UnsupportedKeyTypeError struct {
	Column int
	Type   KeyType
}

func (e *UnsupportedKeyTypeError) Error() string {
	return fmt.Sprintf("rowgroup: unsupported key type %s at column %d", e.Type, e.Column)
}

// UnsupportedDictionaryError is returned when a batch's dictionary for a
// KindDictionary column differs from the one bound on the first batch.
type UnsupportedDictionaryError struct {
	Column int
}

func (e *UnsupportedDictionaryError) Error() string {
	return fmt.Sprintf("rowgroup: dictionary for column %d differs from the one bound on the first batch", e.Column)
}

// UnsupportedLargeOffsetsError is returned when the fast path is requested
// for a schema containing a KindLargeBinary column.
type UnsupportedLargeOffsetsError struct {
	Column int
}

func (e *UnsupportedLargeOffsetsError) Error() string {
	return fmt.Sprintf("rowgroup: large-offset binary column %d is not supported by the fast grouper", e.Column)
}

// InvalidIdsError is returned by MakeGroupings when the ids array contains
// an id outside [0, numGroups) or a null.
type InvalidIdsError struct {
	Reason string
}

func (e *InvalidIdsError) Error() string {
	return fmt.Sprintf("rowgroup: invalid group ids: %s", e.Reason)
}
