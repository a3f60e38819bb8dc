package decomp

import (
	"math"

	"github.com/edensim/eden/packedref"
)

// EncodeStepMessage builds one step's wire payload to a peer: this rank's
// current values for every point in sl's VPeer and DAW lists, followed by
// one lane per pending spike index, each spike index type-punned into a
// float32 lane via packedref.EncodeI32ToF32. The message length alone
// tells the receiver how many spike lanes trail the fixed VPeer+DAW
// prefix.
func EncodeStepMessage(vpeerValues, dawValues []float32, spikeIndices []int32) []float32 {
	out := make([]float32, 0, len(vpeerValues)+len(dawValues)+len(spikeIndices))
	out = append(out, vpeerValues...)
	out = append(out, dawValues...)
	for _, idx := range spikeIndices {
		out = append(out, packedref.EncodeI32ToF32(idx))
	}
	return out
}

// DecodeStepMessage splits an incoming wire payload back into the fixed
// VPeer/DAW prefix (lengths known from the SendList this message answers)
// and the trailing spike indices.
func DecodeStepMessage(payload []float32, numVPeer, numDAW int) (vpeerValues, dawValues []float32, spikeIndices []int32) {
	vpeerValues = payload[:numVPeer]
	dawValues = payload[numVPeer : numVPeer+numDAW]
	for _, lane := range payload[numVPeer+numDAW:] {
		spikeIndices = append(spikeIndices, packedref.DecodeF32ToI32(lane))
	}
	return vpeerValues, dawValues, spikeIndices
}

// EncodeFloat32Bytes and DecodeFloat32Bytes carry a step message over
// Communicator's byte-oriented transport (wire.go's payload is the
// caller-facing []float32 form; Communicator itself only knows bytes).
func EncodeFloat32Bytes(f []float32) []byte {
	out := make([]byte, len(f)*4)
	for i, v := range f {
		bits := math.Float32bits(v)
		out[i*4] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}

func DecodeFloat32Bytes(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}
