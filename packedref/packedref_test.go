package packedref

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Ref{
		{Table: 0, Entry: 0},
		{Table: 1, Entry: 1},
		{Table: 42, Entry: MaxEntry},
		{Table: MaxTable, Entry: 0},
	}
	for _, c := range cases {
		p := Encode(c.Table, c.Entry)
		got := Decode(p)
		if got != c {
			t.Errorf("Encode/Decode(%+v) = %+v, want %+v", c, got, c)
		}
	}
}

func TestEncodePanicsOnOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for out-of-range entry")
		}
	}()
	Encode(0, MaxEntry+1)
}

func TestI32F32RoundTrip(t *testing.T) {
	vals := []int32{0, 1, -1, 12345, -987654}
	for _, v := range vals {
		f := EncodeI32ToF32(v)
		got := DecodeF32ToI32(f)
		if got != v {
			t.Errorf("round trip for %d = %d", v, got)
		}
	}
}
