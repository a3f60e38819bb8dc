package decomp

import "fmt"

// discoverTag is the tag recv-list discovery messages travel under,
// distinct from MPITag which is reserved for the per-step state exchange
// once discovery has completed.
const discoverTag = 98

type peerState int

const (
	pending peerState = iota
	probed
	received
)

// Discover runs the two-phase sparse peer-discovery protocol: each rank
// sends its recv list to every peer it needs data from, while
// simultaneously listening for unsolicited recv lists from peers that
// need data from it. It returns, for every peer that asked this rank for
// something, the SendList describing what to serve them each step.
//
// needs maps peer rank -> the RecvList this rank wants from that peer.
// Every rank in the communicator must call Discover, even one with an
// empty needs map, since it may still be asked for data by others.
func Discover(comm Communicator, needs map[int]*RecvList) (map[int]*SendList, error) {
	rank := comm.Rank()
	sendLists := make(map[int]*SendList)

	outstanding := make(map[int]Request)
	for peer, rl := range needs {
		if peer == rank {
			continue
		}
		payload := EncodeRecvList(rl)
		outstanding[peer] = comm.ISend(peer, discoverTag, payload)
	}

	// owed counts this rank's recv-list sends that have not yet completed;
	// it starts at the number of peers other than this rank in needs and
	// drops by one as each send's Wait returns. Only the global sum of
	// every rank's owed count reaching zero proves the sparse pattern has
	// settled.
	owed := len(outstanding)
	states := make(map[int]peerState)
	for peer := range outstanding {
		states[peer] = pending
	}

	for {
		if source, length, ok := comm.IProbeAny(discoverTag); ok {
			data := comm.Recv(source, discoverTag, length)
			sl, err := DecodeRecvListAsSendList(source, data)
			if err != nil {
				return nil, fmt.Errorf("decomp: discovery from rank %d: %w", source, err)
			}
			sendLists[source] = sl
		}

		for peer, req := range outstanding {
			if states[peer] == pending {
				req.Wait()
				states[peer] = received
				owed--
				delete(outstanding, peer)
			}
		}

		if comm.AllReduceSumInt(owed) == 0 {
			break
		}
	}

	return sendLists, nil
}
