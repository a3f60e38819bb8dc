package decomp

import "testing"

func TestEncodeDecodeStepMessageRoundTrip(t *testing.T) {
	vpeer := []float32{-65.2, -64.9}
	daw := []float32{0.003}
	spikes := []int32{7, 42}

	payload := EncodeStepMessage(vpeer, daw, spikes)
	if len(payload) != len(vpeer)+len(daw)+len(spikes) {
		t.Fatalf("payload length %d, want %d", len(payload), len(vpeer)+len(daw)+len(spikes))
	}

	gotV, gotD, gotS := DecodeStepMessage(payload, len(vpeer), len(daw))
	for i := range vpeer {
		if gotV[i] != vpeer[i] {
			t.Errorf("vpeer[%d] = %v, want %v", i, gotV[i], vpeer[i])
		}
	}
	for i := range daw {
		if gotD[i] != daw[i] {
			t.Errorf("daw[%d] = %v, want %v", i, gotD[i], daw[i])
		}
	}
	for i := range spikes {
		if gotS[i] != spikes[i] {
			t.Errorf("spike[%d] = %v, want %v", i, gotS[i], spikes[i])
		}
	}
}

func TestFloat32BytesRoundTrip(t *testing.T) {
	in := []float32{1.5, -2.25, 0, 3.14159}
	b := EncodeFloat32Bytes(in)
	if len(b) != len(in)*4 {
		t.Fatalf("byte length %d, want %d", len(b), len(in)*4)
	}
	out := DecodeFloat32Bytes(b)
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}
