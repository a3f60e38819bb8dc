// Package packedref implements the arena+index packing used to address a
// slot in one of the table families from generated kernel code and from the
// MPI wire format: a 64-bit value carrying a table index in its high bits
// and an entry index in its low 24 bits.
package packedref

import (
	"fmt"
	"math"
)

// entryBits is the width of the entry field; tableBits is what remains.
const entryBits = 24
const entryMask = 1<<entryBits - 1

// MaxEntry is the largest entry index a single table may address.
const MaxEntry = 1<<entryBits - 1

// MaxTable is the largest table index that may be packed.
const MaxTable = 1<<(64-entryBits) - 1

// Ref is a decoded (table, entry) pair.
type Ref struct {
	Table int64
	Entry int64
}

// Packed is the 64-bit encoded form stored in const_i64/state_i64 tables.
type Packed int64

// Encode packs a table/entry pair into its 64-bit wire form.
func Encode(table, entry int64) Packed {
	if table < 0 || table > MaxTable {
		panic(fmt.Sprintf("packedref: table index %d out of range", table))
	}
	if entry < 0 || entry > MaxEntry {
		panic(fmt.Sprintf("packedref: entry index %d out of range", entry))
	}
	return Packed(table<<entryBits | (entry & entryMask))
}

// Decode unpacks a Packed reference into its table and entry indices.
func Decode(p Packed) Ref {
	u := uint64(p)
	return Ref{
		Table: int64(u >> entryBits),
		Entry: int64(u & entryMask),
	}
}

// EncodeI32ToF32 reinterprets a 32-bit integer's bit pattern as a float32,
// the type-pun used to smuggle a spike index into a float32 wire payload
// alongside ordinary state values.
func EncodeI32ToF32(i int32) float32 {
	return math.Float32frombits(uint32(i))
}

// DecodeF32ToI32 is the inverse of EncodeI32ToF32.
func DecodeF32ToI32(f float32) int32 {
	return int32(math.Float32bits(f))
}
