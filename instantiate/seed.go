package instantiate

import "github.com/edensim/eden/packedref"

// MixSeed combines the simulation-wide RNG seed with a neuron's global ID
// into the 32-bit value stored in that work item's RNG seed constant:
// reverse the seed's bit order, XOR in the gid, and reinterpret the result
// as a float32 the same way packedref type-puns a spike index into a
// float32 table lane.
func MixSeed(simSeed int64, gid int64) float32 {
	reversed := bitReverse32(uint32(simSeed))
	mixed := reversed ^ uint32(gid)
	return packedref.EncodeI32ToF32(int32(mixed))
}

// bitReverse32 reverses the bit order of a 32-bit word.
func bitReverse32(x uint32) uint32 {
	var r uint32
	for i := 0; i < 32; i++ {
		r <<= 1
		r |= x & 1
		x >>= 1
	}
	return r
}
