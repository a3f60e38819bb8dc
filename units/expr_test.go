package units

import "testing"

func TestEvalConstExprArithmetic(t *testing.T) {
	cases := map[string]float64{
		"120.0":        120.0,
		"1 + 2 * 3":    7,
		"(1 + 2) * 3":  9,
		"-5":           -5,
		"10 / 2 - 1":   4,
		"  3.5e2  ":    350,
		"-(2 + 3) * 2": -10,
	}
	for expr, want := range cases {
		got, err := EvalConstExpr(expr)
		if err != nil {
			t.Fatalf("EvalConstExpr(%q): %v", expr, err)
		}
		if got != want {
			t.Errorf("EvalConstExpr(%q) = %v, want %v", expr, got, want)
		}
	}
}

func TestEvalConstExprErrors(t *testing.T) {
	for _, expr := range []string{"1 +", "(1 + 2", "1 / 0", "abc"} {
		if _, err := EvalConstExpr(expr); err == nil {
			t.Errorf("EvalConstExpr(%q): expected error", expr)
		}
	}
}
