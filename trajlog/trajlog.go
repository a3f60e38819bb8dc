// Package trajlog writes trajectory log files: one tab-separated,
// fixed-width row per non-initialization step, time in seconds first and
// then one column per logged column of the data writer, matching
// original_source/eden/TrajectoryLogger.h's FixedWidthNumberPrinter
// format exactly (%+16.8g, trailing tab).
package trajlog

import (
	"bufio"
	"fmt"
	"os"

	"github.com/edensim/eden/edenerr"
	"github.com/edensim/eden/instantiate"
	"github.com/edensim/eden/model"
	"github.com/edensim/eden/units"
)

// columnSource tells Writer how to fetch one column's current native-unit
// value every step.
type columnSource struct {
	scale float64 // multiplies the native value to reach the requested unit

	// local, when true, reads directly from a cell type's "now" scalar
	// state slice at scalarIdx. Otherwise the value is read from the
	// rank-level value mirror at (peer, mirrorSlot).
	local     bool
	cellType  string
	scalarIdx int

	peer       int
	mirrorSlot int
}

// Column is one resolved, ready-to-sample data writer column.
type Column struct {
	ID     string
	source columnSource
}

// NowReader supplies the current "now" scalar state slice for a cell
// type, so Writer can read a local column without importing engine —
// engine imports trajlog, so the dependency cannot run the other way.
type NowReader interface {
	ScalarNow(cellType string) []float32
}

// MirrorReader supplies the current rank-level value-mirror slice for a
// remote peer, so Writer can read a column mirrored in from another rank.
type MirrorReader interface {
	ValueMirror(peer int) []float32
}

// Open resolves dw's columns against in (for local points, and for remote
// points via the recv-list bookkeeping resolveDataWriterColumn populated)
// and creates the log file at dw.Path. Only rank 0 should call Open — it
// is the sole writer of every trajectory file, per the "rank 0 owns every
// trajectory log file" convention instantiate.Instantiator.
// resolveDataWriterColumn uses to decide when to record a DAW recv entry.
func Open(dw *model.DataWriter, in *instantiate.Instantiator, sys *units.System) (*Writer, error) {
	f, err := os.Create(dw.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: creating trajectory log %s: %v", edenerr.ResourceExhausted, dw.Path, err)
	}
	w := &Writer{path: dw.Path, f: f, bw: bufio.NewWriter(f)}

	for _, col := range dw.Columns {
		c, err := resolveColumn(col, in, sys)
		if err != nil {
			f.Close()
			return nil, err
		}
		w.columns = append(w.columns, c)
	}
	return w, nil
}

// Writer owns one open trajectory log file and the resolved columns it
// samples every non-initialization step.
type Writer struct {
	path    string
	f       *os.File
	bw      *bufio.Writer
	columns []Column
}

func resolveColumn(col model.DataWriterColumn, in *instantiate.Instantiator, sys *units.System) (Column, error) {
	scale, serr := columnScale(col, sys)
	if serr != nil {
		return Column{}, serr
	}

	if cellType, _, row, err := in.LocalVoltage(col.Target); err == nil {
		return Column{ID: col.ColumnID, source: columnSource{
			scale: scale, local: true, cellType: cellType, scalarIdx: row,
		}}, nil
	}

	peer, slot, err := in.DAWMirrorSlot(col.Target)
	if err != nil {
		return Column{}, fmt.Errorf("%w: data writer column %q: %v", edenerr.InternalInvariant, col.ColumnID, err)
	}
	return Column{ID: col.ColumnID, source: columnSource{
		scale: scale, local: false, peer: peer, mirrorSlot: slot,
	}}, nil
}

func columnScale(col model.DataWriterColumn, sys *units.System) (float64, error) {
	if col.UnitName == "" {
		return 1, nil
	}
	u, err := units.ByName(col.UnitName)
	if err != nil {
		return 0, fmt.Errorf("%w: data writer column %q: %v", edenerr.ModelMalformed, col.ColumnID, err)
	}
	native := sys.Native(u.Dim)
	return units.ConvertTo(1, native, u), nil
}

// WriteRow samples every column's current value and appends one
// tab-separated, 16-character fixed-width row: time in seconds, then each
// column, each formatted "%+16.8g" followed by a tab. Called once per
// non-initialization step (spec.md §4.6 Log phase).
func (w *Writer) WriteRow(timeMs float64, now NowReader, mirrors MirrorReader) error {
	timeSec := units.ConvertTo(timeMs, units.Default().Native(units.Time), units.Seconds)
	fmt.Fprintf(w.bw, "%+16.8g\t", timeSec)
	for _, c := range w.columns {
		var v float32
		if c.source.local {
			v = now.ScalarNow(c.source.cellType)[c.source.scalarIdx]
		} else {
			v = mirrors.ValueMirror(c.source.peer)[c.source.mirrorSlot]
		}
		fmt.Fprintf(w.bw, "%+16.8g\t", float64(v)*c.source.scale)
	}
	_, err := fmt.Fprint(w.bw, "\n")
	return err
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		return err
	}
	return w.f.Close()
}
