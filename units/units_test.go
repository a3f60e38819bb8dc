package units

import "testing"

func TestDefaultSystemScaleFactors(t *testing.T) {
	sys := Default()
	volt := Unit{Name: "V", Dim: Voltage, ToSIFactor: 1.0}
	if got := sys.ScaleFactor(volt); got != 1000 {
		t.Errorf("ScaleFactor(V) = %v, want 1000", got)
	}
	mv := sys.Native(Voltage)
	if got := sys.ScaleFactor(mv); got != 1 {
		t.Errorf("ScaleFactor(mV) = %v, want 1", got)
	}
}

func TestScaleFactorPanicsOnUnregisteredDimension(t *testing.T) {
	sys := &System{native: map[Dimension]Unit{}}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unregistered dimension")
		}
	}()
	sys.ScaleFactor(Unit{Name: "mV", Dim: Voltage, ToSIFactor: 1e-3})
}

func TestConvertTo(t *testing.T) {
	ms := Unit{Name: "ms", Dim: Time, ToSIFactor: 1e-3}
	got := ConvertTo(1500, ms, Seconds)
	if got != 1.5 {
		t.Errorf("ConvertTo(1500ms, sec) = %v, want 1.5", got)
	}
}

func TestConvertToPanicsOnDimensionMismatch(t *testing.T) {
	mv := Unit{Name: "mV", Dim: Voltage, ToSIFactor: 1e-3}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for mismatched dimensions")
		}
	}()
	ConvertTo(1.0, mv, Seconds)
}

func TestDimensionString(t *testing.T) {
	cases := map[Dimension]string{
		Voltage:       "voltage",
		Time:          "time",
		Dimensionless: "dimensionless",
	}
	for d, want := range cases {
		if got := d.String(); got != want {
			t.Errorf("Dimension(%d).String() = %q, want %q", d, got, want)
		}
	}
}
