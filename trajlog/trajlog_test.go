package trajlog

import (
	"bufio"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/edensim/eden/model"
	"github.com/edensim/eden/units"
)

type fakeNow struct{ v map[string][]float32 }

func (f fakeNow) ScalarNow(cellType string) []float32 { return f.v[cellType] }

type fakeMirror struct{ v map[int][]float32 }

func (f fakeMirror) ValueMirror(peer int) []float32 { return f.v[peer] }

func TestWriteRowFormatsFixedWidth(t *testing.T) {
	path := t.TempDir() + "/out.log"
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := &Writer{path: path, f: f, bw: bufio.NewWriter(f)}
	w.columns = []Column{
		{ID: "v", source: columnSource{scale: 1, local: true, cellType: "Soma", scalarIdx: 0}},
		{ID: "remote", source: columnSource{scale: 2, local: false, peer: 1, mirrorSlot: 0}},
	}

	now := fakeNow{v: map[string][]float32{"Soma": {-0.069}}}
	mir := fakeMirror{v: map[int][]float32{1: {3.5}}}

	if err := w.WriteRow(20.0, now, mir); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := strings.TrimRight(string(data), "\n")
	fields := strings.Split(line, "\t")
	// time column + 2 data columns + trailing empty field from the final tab.
	if len(fields) != 4 {
		t.Fatalf("got %d tab-separated fields in %q, want 4", len(fields), line)
	}
	wantTimeSec, wantRemote := 0.02, 7.0
	gotTime := parseField(t, fields[0])
	if math.Abs(gotTime-wantTimeSec) > 1e-9 {
		t.Errorf("time field = %v, want %v (20ms in seconds)", gotTime, wantTimeSec)
	}
	gotRemote := parseField(t, fields[2])
	if math.Abs(gotRemote-wantRemote) > 1e-6 {
		t.Errorf("remote column = %v, want %v (3.5 * scale 2)", gotRemote, wantRemote)
	}
	if len(fields[0]) > 16 {
		t.Errorf("time field %q exceeds the 16-character fixed width", fields[0])
	}
}

func parseField(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		t.Fatalf("parsing field %q: %v", s, err)
	}
	return v
}

func TestColumnScaleDefaultsToOne(t *testing.T) {
	sys := units.Default()
	scale, err := columnScale(model.DataWriterColumn{ColumnID: "v"}, sys)
	if err != nil {
		t.Fatal(err)
	}
	if scale != 1 {
		t.Errorf("columnScale with empty unit name = %v, want 1", scale)
	}
}

func TestColumnScaleConvertsToRequestedUnit(t *testing.T) {
	sys := units.Default()
	scale, err := columnScale(model.DataWriterColumn{ColumnID: "v", UnitName: "V"}, sys)
	if err != nil {
		t.Fatal(err)
	}
	// native voltage is mV; 1 native mV expressed in V is 0.001.
	if scale != 0.001 {
		t.Errorf("columnScale(V) = %v, want 0.001", scale)
	}
}
