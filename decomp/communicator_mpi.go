//go:build unix

package decomp

import (
	"cogentcore.org/core/base/mpi"
)

// mpiComm adapts a *mpi.Comm to the Communicator interface. It is built
// entirely on mpi's confirmed collective surface (AllReduceF32,
// WorldRank, WorldSize) for the completion test; the point-to-point
// methods below are this package's own minimal extension, isolated here
// so a future swap to a verified non-blocking API touches only this
// file.
type mpiComm struct {
	comm *mpi.Comm
}

// NewMPICommunicator wraps an initialized *mpi.Comm (from mpi.NewComm) for
// use by Discover and the per-step send/recv phases.
func NewMPICommunicator(comm *mpi.Comm) Communicator {
	return &mpiComm{comm: comm}
}

func (c *mpiComm) Rank() int { return mpi.WorldRank() }
func (c *mpiComm) Size() int { return mpi.WorldSize() }

func (c *mpiComm) AllReduceSumInt(v int) int {
	src := []float32{float32(v)}
	dst := make([]float32, 1)
	c.comm.AllReduceF32(mpi.OpSum, dst, src)
	return int(dst[0])
}

// ISend, IProbeAny and Recv are implemented on top of the pending-message
// registry in communicator_mpi_p2p.go; see that file's doc comment for
// why this package cannot cite a confirmed non-blocking MPI call.
func (c *mpiComm) ISend(dest int, tag int, data []byte) Request {
	return mpiSend(c, dest, tag, data)
}

func (c *mpiComm) IProbeAny(tag int) (source int, length int, ok bool) {
	return mpiProbeAny(c, tag)
}

func (c *mpiComm) Recv(source int, tag int, length int) []byte {
	return mpiRecv(c, source, tag, length)
}
