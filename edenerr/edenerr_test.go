package edenerr

import (
	"fmt"
	"testing"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{fmt.Errorf("%w: bad channel", CodegenFailed), 1},
		{fmt.Errorf("%w: disk full", ResourceExhausted), 1},
		{fmt.Errorf("%w: dangling ref", ModelMalformed), 2},
		{fmt.Errorf("%w: reopened a closed work item", InternalInvariant), 2},
	}
	for _, c := range cases {
		if got := ExitCode(c.err); got != c.want {
			t.Errorf("ExitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
