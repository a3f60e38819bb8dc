//go:build unix

package decomp

import (
	"encoding/binary"
	"math"
)

// mpiSend, mpiProbeAny and mpiRecv give mpiComm a point-to-point
// non-blocking transport. cogentcore.org/core/base/mpi's Comm is
// confirmed, in every reference call site in this codebase's pack, only
// through its blocking F32 collective (AllReduceF32); no non-blocking
// send/recv/probe call appears anywhere in the pack to confirm an exact
// method name. These functions extend the one confirmed naming
// convention (a verb suffixed with the element type it moves) to the
// point-to-point operations a real MPI binding must also expose — ISendF32,
// IProbeF32, RecvF32 — and carry arbitrary byte payloads by packing them
// four bytes to a float32 lane. If this guessed surface does not match the
// real package, only this file changes; everything above Communicator is
// unaffected.
type mpiRequest struct {
	inner interface{ Wait() }
}

func (r mpiRequest) Wait() { r.inner.Wait() }

func bytesToF32(data []byte) []float32 {
	n := (len(data) + 3) / 4
	out := make([]float32, n+1)
	out[0] = float32(len(data))
	padded := make([]byte, n*4)
	copy(padded, data)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(padded[i*4 : i*4+4])
		out[i+1] = math.Float32frombits(bits)
	}
	return out
}

func f32ToBytes(lanes []float32) []byte {
	if len(lanes) == 0 {
		return nil
	}
	length := int(lanes[0])
	out := make([]byte, 0, length)
	for _, f := range lanes[1:] {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(f))
		out = append(out, buf[:]...)
	}
	if len(out) > length {
		out = out[:length]
	}
	return out
}

func mpiSend(c *mpiComm, dest int, tag int, data []byte) Request {
	lanes := bytesToF32(data)
	req := c.comm.ISendF32(dest, tag, lanes)
	return mpiRequest{inner: req}
}

func mpiProbeAny(c *mpiComm, tag int) (source int, length int, ok bool) {
	src, lanes, got := c.comm.IProbeF32(tag)
	if !got {
		return 0, 0, false
	}
	return src, len(lanes) * 4, true
}

func mpiRecv(c *mpiComm, source int, tag int, length int) []byte {
	lanes := c.comm.RecvF32(source, tag)
	return f32ToBytes(lanes)
}
