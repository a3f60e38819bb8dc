package decomp

import "testing"

func TestPartitionEvenDivision(t *testing.T) {
	ranges := Partition(100, 4)
	want := []Range{{0, 25}, {25, 50}, {50, 75}, {75, 100}}
	for i, r := range ranges {
		if r != want[i] {
			t.Errorf("rank %d: got %+v, want %+v", i, r, want[i])
		}
	}
}

func TestPartitionRemainderGoesToFirstRanks(t *testing.T) {
	ranges := Partition(10, 3)
	want := []Range{{0, 4}, {4, 7}, {7, 10}}
	for i, r := range ranges {
		if r != want[i] {
			t.Errorf("rank %d: got %+v, want %+v", i, r, want[i])
		}
	}
}

func TestPartitionCoversEveryNeuronExactlyOnce(t *testing.T) {
	const total = 97
	const ranks = 5
	ranges := Partition(total, ranks)
	seen := make([]bool, total)
	for _, r := range ranges {
		for gid := r.Start; gid < r.End; gid++ {
			if seen[gid] {
				t.Fatalf("gid %d assigned twice", gid)
			}
			seen[gid] = true
		}
	}
	for gid, ok := range seen {
		if !ok {
			t.Errorf("gid %d never assigned", gid)
		}
	}
}

func TestPartitionPanicsOnZeroRanks(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for zero rank count")
		}
	}()
	Partition(10, 0)
}

func TestRankOfAgreesWithPartition(t *testing.T) {
	const total = 97
	const ranks = 5
	ranges := Partition(total, ranks)
	for rank, r := range ranges {
		for gid := r.Start; gid < r.End; gid++ {
			if got := RankOf(gid, total, ranks); got != rank {
				t.Errorf("RankOf(%d) = %d, want %d", gid, got, rank)
			}
		}
	}
}
