package simplex

import "github.com/cespare-student/reluplex/internal/ratio"

// Result is the outcome of a Check call.
type Result struct {
	SAT        bool
	Derivation Derivation // populated only when !SAT
}

// Check implements the Simplex Check procedure (spec §4.3): repeatedly find
// an out-of-bound basic variable and pivot it back into range using Bland's
// rule for both the leaving and entering variable, until every basic
// variable is in bound (SAT) or a row witnesses infeasibility (UNSAT). A
// variable whose bounds have crossed (emptyBounds) is UNSAT at once, with an
// empty derivation.
func (tb *Tableau) Check() Result {
	for v := range tb.names {
		if tb.emptyBounds(v) {
			return Result{}
		}
	}
	for {
		ri, idx, belowLower := tb.findOutOfBound()
		if ri < 0 {
			return Result{SAT: true}
		}
		entering, increasing := tb.findEnteringVar(ri, belowLower)
		if entering < 0 {
			return Result{Derivation: tb.rowDerivation(ri)}
		}
		tb.pivot(ri, idx, entering, belowLower, increasing)
	}
}

// findOutOfBound returns the row index and variable index of the
// smallest-index basic variable currently outside its bounds (Bland's rule,
// spec §4.3 step 1/4), and whether it is below its lower bound (as opposed
// to above its upper bound). Returns ri = -1 if every basic variable is in
// bound.
func (tb *Tableau) findOutOfBound() (ri, idx int, belowLower bool) {
	best := -1
	bestRow := -1
	bestBelow := false
	for i, r := range tb.rows {
		v := r.basic
		if tb.inBound(v) {
			continue
		}
		if best == -1 || v < best {
			below := tb.lower[v].has && tb.value[v].Less(tb.lower[v].val)
			best = v
			bestRow = i
			bestBelow = below
		}
	}
	if best == -1 {
		return -1, -1, false
	}
	return bestRow, best, bestBelow
}

// findEnteringVar implements spec §4.3 steps 2-4: given basic variable
// xi (row ri) out of bound in the direction recorded by belowLower, find the
// smallest-index non-basic variable xj whose coefficient in the row lets
// increasing/decreasing it move xi toward feasibility, respecting xj's own
// bounds. Returns entering = -1 if no such variable exists (infeasible row).
func (tb *Tableau) findEnteringVar(ri int, belowLower bool) (entering int, increasing bool) {
	r := tb.rows[ri]
	entering = -1
	var cols []int
	for v := range r.coeffs {
		cols = append(cols, v)
	}
	sortInts(cols)
	for _, xj := range cols {
		aij := r.coeffs[xj]
		if aij.IsZero() {
			continue
		}
		// belowLower: need to increase xi, so need aij*delta(xj) > 0.
		// above-upper (the symmetric case): need to decrease xi, so the
		// sign test below is simply negated.
		wantPositiveDelta := (belowLower && aij.Sign() > 0) || (!belowLower && aij.Sign() < 0)
		if wantPositiveDelta {
			if tb.upper[xj].has && tb.value[xj].Equal(tb.upper[xj].val) {
				continue
			}
			if entering < 0 || xj < entering {
				entering, increasing = xj, true
			}
		} else {
			if tb.lower[xj].has && tb.value[xj].Equal(tb.lower[xj].val) {
				continue
			}
			if entering < 0 || xj < entering {
				entering, increasing = xj, false
			}
		}
	}
	return entering, increasing
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// pivot exchanges basic variable xi (row ri) with non-basic entering
// variable xj (spec §4.3 step 3): xi is driven to the bound it violated,
// xj becomes basic in xi's place, and every row is rewritten by Gaussian
// elimination on xj's column so I1 continues to hold.
func (tb *Tableau) pivot(ri, xi, xj int, belowLower, _ bool) {
	target := tb.lower[xi].val
	if !belowLower {
		target = tb.upper[xi].val
	}

	r := tb.rows[ri]
	aij := r.coeffs[xj]

	// Rewrite row ri to express xj in terms of the rest: xj = (xi -
	// Σ_{v≠xj} a_v·v) / aij. First compute the delta needed and propagate
	// it, using the existing non-basic-assignment machinery, then swap the
	// basic/non-basic roles and rebuild the row in xj's column.
	delta := target.Sub(tb.value[xi])

	// Express the new row for xj (basic) in terms of the OLD non-basics
	// minus xi (now non-basic): from xi = Σ a_v·v, solve for xj:
	// xj = (xi - Σ_{v≠xj} a_v·v) / aij.
	newCoeffs := make(map[int]ratio.Ratio, len(r.coeffs))
	for v, a := range r.coeffs {
		if v == xj {
			continue
		}
		newCoeffs[v] = a.Neg().Div(aij)
	}
	newCoeffs[xi] = ratio.FromInt64(1).Div(aij)

	// Substitute the new xj-row into every OTHER row that references xj,
	// so those rows stay expressed purely over non-basic variables.
	for k := range tb.rows {
		if k == ri {
			continue
		}
		other := tb.rows[k]
		c, ok := other.coeffs[xj]
		if !ok {
			continue
		}
		delete(other.coeffs, xj)
		for v, a := range newCoeffs {
			other.coeffs[v] = other.coeffs[v].Add(c.Mul(a))
		}
		tb.rows[k] = other
	}

	tb.rows[ri] = row{basic: xj, coeffs: newCoeffs}
	delete(tb.rowOf, xi)
	tb.rowOf[xj] = ri
	tb.basic[xi] = false
	tb.basic[xj] = true

	// Apply the delta to xi's (now non-basic) value, propagating through
	// all rows including the rewritten ones, then recompute xj's (now
	// basic) value from the new row.
	tb.setNonBasic(xi, tb.value[xi].Add(delta))
	tb.recomputeBasic(ri)
}
