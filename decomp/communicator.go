package decomp

// MPITag is the single MPI tag every message in this package is sent and
// received under, matching the original wire protocol's MYMPI_TAG_BUF_SEND.
const MPITag = 99

// Communicator is the subset of non-blocking point-to-point plus
// collective MPI operations the discovery protocol and the per-step
// send/recv phases need. It exists because the pack's own MPI wrapper
// (cogentcore.org/core/base/mpi) is only ever exercised through blocking
// collectives in the examples this repository is grounded on — no
// non-blocking send/recv/probe call site appears anywhere in the
// reference material, so the exact method names of the real
// non-blocking API are not confirmed. Production code talks to this
// interface; mpiComm (communicator_mpi.go) adapts it onto *mpi.Comm's
// confirmed collective surface plus a best-effort non-blocking layer,
// and tests use a fake that never touches the network at all.
type Communicator interface {
	Rank() int
	Size() int

	// ISend starts a non-blocking send of data to dest under tag, returning
	// a handle that Wait completes.
	ISend(dest int, tag int, data []byte) Request

	// IProbeAny polls for any inbound message under tag without consuming
	// it. ok is false if nothing has arrived yet.
	IProbeAny(tag int) (source int, length int, ok bool)

	// Recv blocks until the message matching (source, tag) has been fully
	// received, returning its payload. Called only after IProbeAny has
	// reported a matching message, so it does not block long in practice.
	Recv(source int, tag int, length int) []byte

	// AllReduceSumInt performs a blocking sum all-reduce of a single int
	// across every rank, used by the discovery phase's completion test.
	AllReduceSumInt(v int) int
}

// Request represents an in-flight non-blocking send.
type Request interface {
	// Wait blocks until the send has completed.
	Wait()
}
