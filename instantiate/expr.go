package instantiate

import "github.com/edensim/eden/units"

// evalConstExpr evaluates a LEMS-derived arithmetic expression string into a
// float64, the same closed-arithmetic evaluator the Kernel Emitter uses to
// compute scalar prototype values (units.EvalConstExpr) — kept as a local
// alias since every call site in this package already reads naturally as
// "evaluate this projection/input field".
func evalConstExpr(expr string) (float64, error) {
	return units.EvalConstExpr(expr)
}

// constDecayTau evaluates a synapse type's DecayTauExpr, defaulting to 1 ms
// when unset so a synapse type that never specifies one keeps this
// package's previous implicit 1/ms decay rate.
func constDecayTau(expr string) (float32, error) {
	if expr == "" {
		return 1.0, nil
	}
	v, err := evalConstExpr(expr)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}
