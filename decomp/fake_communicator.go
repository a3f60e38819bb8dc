package decomp

import "sync"

// fakeMessage is one pending in-flight send, delivered to its destination's
// inbox the moment ISend is called (this package's tests run single
// process, so there is no real latency to model).
type fakeMessage struct {
	source int
	tag    int
	data   []byte
}

type fakeRequest struct{}

func (fakeRequest) Wait() {}

// FakeCommunicator is an in-process stand-in for Communicator used by
// tests: a fixed set of ranks sharing one process, each with its own
// inbox, wired together by rank index rather than by a network.
type FakeCommunicator struct {
	rank  int
	peers []*FakeCommunicator

	mu     sync.Mutex
	inbox  []fakeMessage
	reduce func(int) int
}

// NewFakeCommunicators builds n FakeCommunicators, one per rank, sharing
// reduction semantics (a global-sum all-reduce over values every rank
// calls AllReduceSumInt with simultaneously is modeled as the caller's
// own value scaled by n, since these tests drive ranks one at a time
// rather than truly concurrently; there is no real barrier between ranks).
func NewFakeCommunicators(n int) []*FakeCommunicator {
	comms := make([]*FakeCommunicator, n)
	for i := range comms {
		comms[i] = &FakeCommunicator{rank: i}
	}
	for _, c := range comms {
		c.peers = comms
	}
	return comms
}

func (c *FakeCommunicator) Rank() int { return c.rank }
func (c *FakeCommunicator) Size() int { return len(c.peers) }

func (c *FakeCommunicator) ISend(dest int, tag int, data []byte) Request {
	cp := make([]byte, len(data))
	copy(cp, data)
	peer := c.peers[dest]
	peer.mu.Lock()
	peer.inbox = append(peer.inbox, fakeMessage{source: c.rank, tag: tag, data: cp})
	peer.mu.Unlock()
	return fakeRequest{}
}

func (c *FakeCommunicator) IProbeAny(tag int) (source int, length int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.inbox {
		if m.tag == tag {
			return m.source, len(m.data), true
		}
	}
	return 0, 0, false
}

func (c *FakeCommunicator) Recv(source int, tag int, length int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.inbox {
		if m.source == source && m.tag == tag {
			c.inbox = append(c.inbox[:i], c.inbox[i+1:]...)
			return m.data
		}
	}
	panic("decomp: FakeCommunicator.Recv called with no matching pending message")
}

// AllReduceSumInt returns c.reduce(v) when a reduce function is set, and
// otherwise models the global sum as v times the number of ranks; it does
// not read other ranks' values or wait for them.
func (c *FakeCommunicator) AllReduceSumInt(v int) int {
	if c.reduce != nil {
		return c.reduce(v)
	}
	return v * len(c.peers)
}
