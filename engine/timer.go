package engine

import "time"

// Timer accumulates wall-clock time spent in one phase across every step,
// the same running-total shape leabra's timer.Time/FunTimerStart gives
// each layer-function phase, simplified to the one field the engine's own
// TimerReport-style summary needs.
type Timer struct {
	total   time.Duration
	started time.Time
}

func newTimer() *Timer { return &Timer{} }

func (t *Timer) start() { t.started = time.Now() }

func (t *Timer) stop() { t.total += time.Since(t.started) }

// Total returns the accumulated duration across every start/stop pair.
func (t *Timer) Total() time.Duration { return t.total }
