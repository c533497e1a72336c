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

import "fmt"

// Kind classifies the physical encoding of a key column, per spec.md §3.
type Kind uint8

const (
	// KindNull columns carry no payload; every value, including every
	// row, compares equal to every other.
	KindNull Kind = iota
	// KindBool columns contribute one byte (0 or 1) of payload in the
	// row image's fixed region; the value is not bit-packed.
	KindBool
	// KindFixedWidth columns contribute ByteWidth bytes verbatim.
	KindFixedWidth
	// KindDictionary columns contribute a ByteWidth-byte dictionary
	// index; value equality is delegated to the bound Dictionary.
	KindDictionary
	// KindBinary columns contribute a 32-bit length prefix plus bytes.
	KindBinary
	// KindLargeBinary columns contribute a 64-bit length prefix plus
	// bytes; rejected by the fast path (spec.md Non-goals).
	KindLargeBinary
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindFixedWidth:
		return "fixed-width"
	case KindDictionary:
		return "dictionary"
	case KindBinary:
		return "binary"
	case KindLargeBinary:
		return "large-binary"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// KeyType describes the logical type of one column of the key schema.
type KeyType struct {
	Kind Kind
	// ByteWidth is the payload width in bytes for KindFixedWidth and
	// KindDictionary columns. It is ignored for all other kinds.
	ByteWidth int
	// Nullable indicates whether rows of this column may be null. It is
	// advisory only: the encoder always reserves a null bit per column
	// so that null handling doesn't depend on schema metadata being
	// accurate.
	Nullable bool
}

func (t KeyType) String() string {
	switch t.Kind {
	case KindFixedWidth, KindDictionary:
		return fmt.Sprintf("%s(%d)", t.Kind, t.ByteWidth)
	default:
		return t.Kind.String()
	}
}

// fixedPayloadWidth returns the number of fixed-region bytes this type
// contributes to a row image, or -1 if the type is variable-length.
func (t KeyType) fixedPayloadWidth() int {
	switch t.Kind {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindFixedWidth, KindDictionary:
		return t.ByteWidth
	case KindBinary, KindLargeBinary:
		return -1
	default:
		return -1
	}
}

func (t KeyType) isVariableLength() bool {
	return t.Kind == KindBinary || t.Kind == KindLargeBinary
}
