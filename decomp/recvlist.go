package decomp

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/edensim/eden/model"
)

// RecvList is everything one rank needs to receive from one peer: the
// remote points whose voltage or data-writer value this rank mirrors
// locally, and the remote spike sources this rank's synapses listen to.
// Built incrementally during instantiation, one entry per cross-rank
// reference encountered.
type RecvList struct {
	Peer   int
	VPeer  []RecvEntry
	DAW    []RecvEntry
	Spikes []RecvEntry
}

// RecvEntry names a remote point and the local table entry the
// instantiator left a placeholder in, to be rewritten once the mirror
// buffer it belongs to is allocated.
type RecvEntry struct {
	Point      model.PointOnCell
	LocalEntry int
}

// SendList is the symbolic description of what this rank must transmit to
// one peer each step: the local points that peer's RecvList named.
type SendList struct {
	Peer   int
	VPeer  []model.PointOnCell
	DAW    []model.PointOnCell
	Spikes []model.PointOnCell
}

// EncodeRecvList serializes a RecvList to the header-plus-lines text
// format exchanged during discovery: one header line with three counts,
// then that many newline-delimited point descriptions per section, in
// VPeer/DAW/Spikes order.
func EncodeRecvList(rl *RecvList) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d %d %d\n", len(rl.VPeer), len(rl.DAW), len(rl.Spikes))
	for _, e := range rl.VPeer {
		fmt.Fprintf(&b, "%s\n", e.Point.String())
	}
	for _, e := range rl.DAW {
		fmt.Fprintf(&b, "%s\n", e.Point.String())
	}
	for _, e := range rl.Spikes {
		fmt.Fprintf(&b, "%s\n", e.Point.String())
	}
	return b.Bytes()
}

// DecodeRecvListAsSendList parses the header-plus-lines text a peer sent
// describing what it needs from us, into the SendList this rank must now
// serve for that peer each step.
func DecodeRecvListAsSendList(peer int, data []byte) (*SendList, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	if !scanner.Scan() {
		return nil, fmt.Errorf("decomp: recv-list message from rank %d missing header line", peer)
	}
	counts := strings.Fields(scanner.Text())
	if len(counts) != 3 {
		return nil, fmt.Errorf("decomp: recv-list header from rank %d has %d fields, want 3", peer, len(counts))
	}
	n := make([]int, 3)
	for i, c := range counts {
		v, err := strconv.Atoi(c)
		if err != nil {
			return nil, fmt.Errorf("decomp: recv-list header from rank %d: %w", peer, err)
		}
		n[i] = v
	}
	sections := make([][]model.PointOnCell, 3)
	for i, count := range n {
		sections[i] = make([]model.PointOnCell, count)
		for j := 0; j < count; j++ {
			if !scanner.Scan() {
				return nil, fmt.Errorf("decomp: recv-list from rank %d truncated in section %d", peer, i)
			}
			p, err := parsePointOnCell(scanner.Text())
			if err != nil {
				return nil, fmt.Errorf("decomp: recv-list from rank %d: %w", peer, err)
			}
			sections[i][j] = p
		}
	}
	return &SendList{Peer: peer, VPeer: sections[0], DAW: sections[1], Spikes: sections[2]}, nil
}

// parsePointOnCell parses the "%s[%d]/%d@%.3f" form model.PointOnCell.String
// produces. fmt's scanning verbs have no bracket-exclusion form, so this
// walks the string by hand instead of via Sscanf.
func parsePointOnCell(s string) (model.PointOnCell, error) {
	open := strings.IndexByte(s, '[')
	close := strings.IndexByte(s, ']')
	slash := strings.IndexByte(s, '/')
	at := strings.IndexByte(s, '@')
	if open < 0 || close < open || slash < close || at < slash {
		return model.PointOnCell{}, fmt.Errorf("malformed point %q", s)
	}
	pop := s[:open]
	cell, err := strconv.Atoi(s[open+1 : close])
	if err != nil {
		return model.PointOnCell{}, fmt.Errorf("malformed point %q: %w", s, err)
	}
	seg, err := strconv.Atoi(s[slash+1 : at])
	if err != nil {
		return model.PointOnCell{}, fmt.Errorf("malformed point %q: %w", s, err)
	}
	frac, err := strconv.ParseFloat(s[at+1:], 64)
	if err != nil {
		return model.PointOnCell{}, fmt.Errorf("malformed point %q: %w", s, err)
	}
	return model.PointOnCell{Population: pop, CellInstance: cell, Segment: seg, FractionAlong: frac}, nil
}
