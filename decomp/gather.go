package decomp

import (
	"cogentcore.org/core/base/mpi"
	"cogentcore.org/core/tensor/table"
	"cogentcore.org/core/tensor/tensormpi"
)

// GatherSendListSizes is a diagnostics-only operation, off the per-step hot
// path: it gathers every rank's total outgoing message size (in float32
// lanes, summed across that rank's SendLists) onto rank 0 so an operator
// can see per-rank message-size imbalance in the domain decomposition.
func GatherSendListSizes(comm *mpi.Comm, sendLists map[int]*SendList) *table.Table {
	total := 0
	for _, sl := range sendLists {
		total += len(sl.VPeer) + len(sl.DAW) + len(sl.Spikes)
	}

	local := table.NewTable()
	local.AddIntColumn("SendListSize")
	local.SetNumRows(1)
	local.Column("SendListSize").SetInt(total, 0)

	all := table.NewTable()
	tensormpi.GatherTableRows(all, local, comm)
	return all
}
