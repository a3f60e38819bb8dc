package kernel

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/edensim/eden/units"
)

// sanitizeIdent turns a LEMS component or variable identifier into a valid,
// collision-free C identifier.
func sanitizeIdent(name string) string {
	return strcase.ToSnake(name)
}

// scaleFactor renders the compile-time constant that converts a literal
// expressed in `from` units into the engine's native unit for from.Dim, as
// a parenthesized C multiplier suffix. Returns "" when from is already
// native (factor 1), so callers don't clutter generated source with
// `* 1.0`.
func scaleFactor(sys *units.System, from units.Unit) string {
	f := sys.ScaleFactor(from)
	if f == 1 {
		return ""
	}
	return fmt.Sprintf(" * %.17g", f)
}

// lowerExpr renders a LEMS-derived infix expression (already reduced to
// infix text by the upstream parser) as a parenthesized C sub-expression,
// optionally scaled into native units.
func lowerExpr(sys *units.System, expr string, unit units.Unit) string {
	e := strings.TrimSpace(expr)
	if e == "" {
		e = "0.0"
	}
	return "(" + e + ")" + scaleFactor(sys, unit)
}

// onStartGuard wraps body in the `if (initial_state)` guard OnStart
// assignments execute under.
func onStartGuard(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return "    if (initial_state) {\n" + indent(body, "        ") + "    }\n"
}

// forwardEulerStep renders `nextVar = nowVar + dt * (derivExpr);`, the
// continuous-dynamics integration rule every non-cable state variable
// uses.
func forwardEulerStep(nextVar, nowVar, derivExpr string) string {
	return fmt.Sprintf("    %s = %s + dt * (%s);\n", nextVar, nowVar, derivExpr)
}

// onCondition renders an OnCondition trigger: when condExpr holds, run
// assignStmts (each already a complete `var = expr;` C statement writing to
// `next`) and, if eventFlagVar is non-empty, set it.
func onCondition(condExpr string, assignStmts []string, eventFlagVar string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "    if (%s) {\n", condExpr)
	for _, s := range assignStmts {
		fmt.Fprintf(&b, "        %s\n", s)
	}
	if eventFlagVar != "" {
		fmt.Fprintf(&b, "        %s = 1;\n", eventFlagVar)
	}
	b.WriteString("    }\n")
	return b.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		if l == "" {
			continue
		}
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n") + "\n"
}
