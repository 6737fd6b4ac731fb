// Package simplex implements the general-simplex-with-bounds decision
// procedure over linear inequality atoms (spec §4.3): a tableau of basic and
// non-basic variables, each carrying a lower/upper bound, checked for
// feasibility by Bland's-rule pivoting.
package simplex

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare-student/reluplex/ast"
	"github.com/cespare-student/reluplex/internal/ratio"
)

// Eps is the tolerance used for bound comparisons (spec §4.3 "Numeric
// semantics"). Exact rational arithmetic is used throughout (internal/ratio),
// so Eps is needed only where a quantity is explicitly defined in terms of
// it: weakening a strict inequality to a non-strict one (ast.Ineq.Negate)
// and the ReLUplex pair-satisfaction check (package reluplex). Bound
// comparisons inside Simplex itself are exact, strictly stronger than the
// ε-tolerant comparison spec §4.3 permits.
var Eps = ratio.FromFrac(1, 1000000000)

// bound is one side of a variable's interval; has == false (see noBound)
// means "no bound in this direction." Rather than threading *Ratio
// everywhere, bounds track a boolean alongside the value.
type bound struct {
	has bool
	val ratio.Ratio
}

func noBound() bound { return bound{} }

func finiteBound(v ratio.Ratio) bound { return bound{has: true, val: v} }

// row is one tableau equation: basic = Σ coeff·nonBasicVar.
type row struct {
	basic int
	// coeffs maps non-basic variable index to its coefficient in this row.
	coeffs map[int]ratio.Ratio
}

func (r row) eval(val func(int) ratio.Ratio) ratio.Ratio {
	sum := ratio.Zero
	for v, c := range r.coeffs {
		sum = sum.Add(c.Mul(val(v)))
	}
	return sum
}

// Tableau is the mutable state of a single Simplex invocation: the variable
// universe, which ones are basic, their rows, bounds and current values
// (spec §3 "Bounds environment", §4.3).
type Tableau struct {
	// names maps a variable's dense index (0-based) to its source name
	// (an ast.Term.Var string, or a synthesized slack name).
	names []string
	index map[string]int

	lower []bound
	upper []bound
	value []ratio.Ratio

	basic []bool
	rowOf map[int]int // basic var index -> row index
	rows  []row

	// atomOf records, per slack variable, the Ineq atom whose row it
	// represents, used to build derivation sets on UNSAT (spec §4.3
	// "Failure modes").
	atomOf map[int]ast.Ineq

	// nextSlack is a monotonic counter for synthesized slack names,
	// never rewound by Restore: deriving a slack's name from the live
	// row count instead would let a name freed by a case-split rollback
	// get handed straight back out to an unrelated atom added afterward,
	// aliasing its dense index (and stale bounds) onto the new row.
	nextSlack int
}

// NewTableau builds an empty tableau with no variables.
func NewTableau() *Tableau {
	return &Tableau{
		index:  map[string]int{},
		rowOf:  map[int]int{},
		atomOf: map[int]ast.Ineq{},
	}
}

// varIndex returns the dense index for name, allocating a fresh non-basic
// variable (unbounded, value 0) if name hasn't been seen before.
func (tb *Tableau) varIndex(name string) int {
	if idx, ok := tb.index[name]; ok {
		return idx
	}
	idx := len(tb.names)
	tb.names = append(tb.names, name)
	tb.index[name] = idx
	tb.lower = append(tb.lower, noBound())
	tb.upper = append(tb.upper, noBound())
	tb.value = append(tb.value, ratio.Zero)
	tb.basic = append(tb.basic, false)
	return idx
}

// NumVars reports how many dense variable slots (original plus slack) the
// tableau currently has.
func (tb *Tableau) NumVars() int { return len(tb.names) }

// VarNames returns the source-level variable names the tableau tracks,
// excluding synthesized slack variables.
func (tb *Tableau) VarNames() []string {
	var out []string
	for _, name := range tb.names {
		if strings.HasPrefix(name, "__slack") {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Value returns the current value assigned to a variable by name. Panics if
// the name is unknown.
func (tb *Tableau) Value(name string) ratio.Ratio {
	idx, ok := tb.index[name]
	if !ok {
		panic(fmt.Sprintf("simplex: unknown variable %q", name))
	}
	return tb.value[idx]
}

// AddAtom installs a linear atom Σcᵢxᵢ ≥ bound into the tableau (spec §4.3
// "Reduction to equalities"): a fresh slack basic variable s is introduced
// with row s = Σcᵢxᵢ and bound s ≥ bound. Any xᵢ that is currently basic is
// replaced by its own row, so the new row is over non-basic variables only.
func (tb *Tableau) AddAtom(a ast.Ineq) {
	coeffs := make(map[int]ratio.Ratio, len(a.Terms))
	for _, t := range a.Terms {
		xi := tb.varIndex(t.Var)
		if tb.basic[xi] {
			for v, c := range tb.rows[tb.rowOf[xi]].coeffs {
				coeffs[v] = coeffs[v].Add(t.Coeff.Mul(c))
			}
			continue
		}
		coeffs[xi] = coeffs[xi].Add(t.Coeff)
	}
	slackName := fmt.Sprintf("__slack%d", tb.nextSlack)
	tb.nextSlack++
	s := tb.varIndex(slackName)
	tb.basic[s] = true
	tb.atomOf[s] = a
	ri := len(tb.rows)
	tb.rows = append(tb.rows, row{basic: s, coeffs: coeffs})
	tb.rowOf[s] = ri

	tb.tightenLower(s, a.Bound)
	tb.recomputeBasic(ri)
}

// SetLower asserts a lower bound on the named variable (allocating it if
// new), tightening it if a lower bound already exists.
func (tb *Tableau) SetLower(name string, v ratio.Ratio) {
	idx := tb.varIndex(name)
	tb.tightenLower(idx, v)
}

// SetUpper asserts an upper bound on the named variable (allocating it if
// new), tightening it if an upper bound already exists.
func (tb *Tableau) SetUpper(name string, v ratio.Ratio) {
	idx := tb.varIndex(name)
	tb.tightenUpper(idx, v)
}

func (tb *Tableau) tightenLower(idx int, v ratio.Ratio) {
	if !tb.lower[idx].has || v.Greater(tb.lower[idx].val) {
		tb.lower[idx] = finiteBound(v)
	}
	tb.reclamp(idx)
}

func (tb *Tableau) tightenUpper(idx int, v ratio.Ratio) {
	if !tb.upper[idx].has || v.Less(tb.upper[idx].val) {
		tb.upper[idx] = finiteBound(v)
	}
	tb.reclamp(idx)
}

// reclamp re-enforces I2 for a non-basic variable after its bounds changed
// (spec §4.3 "Bound updates"): pull its value back inside [lower, upper] and
// propagate the delta through every row it appears in so basic values stay
// consistent with I1.
func (tb *Tableau) reclamp(idx int) {
	if tb.basic[idx] {
		tb.recomputeBasic(tb.rowOf[idx])
		return
	}
	want := tb.value[idx]
	if tb.lower[idx].has && want.Less(tb.lower[idx].val) {
		want = tb.lower[idx].val
	}
	if tb.upper[idx].has && want.Greater(tb.upper[idx].val) {
		want = tb.upper[idx].val
	}
	if want.Equal(tb.value[idx]) {
		return
	}
	tb.setNonBasic(idx, want)
}

// setNonBasic assigns a new value to a non-basic variable, updating every
// basic variable whose row references it so I1 (basic = Σcoeff·nonbasic)
// keeps holding.
func (tb *Tableau) setNonBasic(idx int, newVal ratio.Ratio) {
	delta := newVal.Sub(tb.value[idx])
	tb.value[idx] = newVal
	if delta.IsZero() {
		return
	}
	for _, r := range tb.rows {
		c, ok := r.coeffs[idx]
		if !ok {
			continue
		}
		tb.value[r.basic] = tb.value[r.basic].Add(c.Mul(delta))
	}
}

// recomputeBasic recomputes row ri's basic variable value from scratch from
// its non-basic dependencies.
func (tb *Tableau) recomputeBasic(ri int) {
	r := tb.rows[ri]
	tb.value[r.basic] = r.eval(func(v int) ratio.Ratio { return tb.value[v] })
}

// inBound reports whether idx's current value is within its bounds (spec
// §4.3 step 1 "in bound" test). The comparison is exact, like every other
// bound comparison in this package, so a bound weakened by Eps to encode a
// strict inequality is not undone by a tolerance here.
func (tb *Tableau) inBound(idx int) bool {
	v := tb.value[idx]
	if tb.lower[idx].has && v.Less(tb.lower[idx].val) {
		return false
	}
	if tb.upper[idx].has && v.Greater(tb.upper[idx].val) {
		return false
	}
	return true
}

// emptyBounds reports whether idx's lower bound now exceeds its upper
// bound, meaning the interval is empty (spec §4.3 "Tightening a bound whose
// interval becomes empty is immediate UNSAT").
func (tb *Tableau) emptyBounds(idx int) bool {
	return tb.lower[idx].has && tb.upper[idx].has && tb.lower[idx].val.Greater(tb.upper[idx].val)
}

// Derivation is the set of originating atoms implicated in an UNSAT result
// (spec §4.3 "Failure modes"): the atoms whose slack variable participated
// in the infeasible row. ReLUplex unions it across case-split branches (spec
// §4.4 step 6) and the driver narrows its blocking clause to it.
type Derivation struct {
	Atoms []ast.Ineq
}

func (d Derivation) String() string {
	parts := make([]string, len(d.Atoms))
	for i, a := range d.Atoms {
		parts[i] = a.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, " /\\ ")
}

// Union merges two derivations into one, deduplicating by string form.
func Union(a, b Derivation) Derivation {
	seen := map[string]bool{}
	var out []ast.Ineq
	for _, d := range [][]ast.Ineq{a.Atoms, b.Atoms} {
		for _, atom := range d {
			k := atom.Key()
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, atom)
		}
	}
	return Derivation{Atoms: out}
}

// rowDerivation collects the atoms of every row variable referenced, directly
// or as the row's own basic slack, in row ri's infeasibility witness: the
// row's own atom (if it has one) plus the atoms of any non-basic variables
// in the row that also originated as slacks (relevant once rows have been
// combined by prior pivots).
func (tb *Tableau) rowDerivation(ri int) Derivation {
	r := tb.rows[ri]
	var atoms []ast.Ineq
	if a, ok := tb.atomOf[r.basic]; ok {
		atoms = append(atoms, a)
	}
	for v := range r.coeffs {
		if a, ok := tb.atomOf[v]; ok {
			atoms = append(atoms, a)
		}
	}
	return Derivation{Atoms: atoms}
}

// Checkpoint is an opaque snapshot of the tableau's bounds, values, basic
// partition and rows, restorable via Restore (spec §4.4 step 6, §9
// "explicit stack of checkpoints").
type Checkpoint struct {
	lower []bound
	upper []bound
	value []ratio.Ratio
	basic []bool
	rowOf map[int]int
	rows  []row
}

// Snapshot captures the tableau's current state.
func (tb *Tableau) Snapshot() Checkpoint {
	cp := Checkpoint{
		lower: append([]bound(nil), tb.lower...),
		upper: append([]bound(nil), tb.upper...),
		value: append([]ratio.Ratio(nil), tb.value...),
		basic: append([]bool(nil), tb.basic...),
		rowOf: make(map[int]int, len(tb.rowOf)),
		rows:  make([]row, len(tb.rows)),
	}
	for k, v := range tb.rowOf {
		cp.rowOf[k] = v
	}
	for i, r := range tb.rows {
		coeffs := make(map[int]ratio.Ratio, len(r.coeffs))
		for k, v := range r.coeffs {
			coeffs[k] = v
		}
		cp.rows[i] = row{basic: r.basic, coeffs: coeffs}
	}
	return cp
}

// Restore rolls the tableau back to a previously captured checkpoint. Names,
// indices, atomOf and nextSlack are append-only across a solver run and are
// intentionally not rolled back; what Restore must preserve is that
// lower/upper/value/basic stay exactly as long as names/index, since every
// other method indexes all of them by the same dense variable index. So
// Restore overwrites the bound/value/basic state for every variable that
// existed at snapshot time, and leaves any variable allocated after it
// (necessarily a slack row rolled back below) in place with neutral bounds:
// such a variable is never named again (nextSlack doesn't rewind) and no
// restored row references it, so it sits inert rather than aliasing a dense
// index onto an unrelated atom the way reusing a row-count-derived name
// would.
func (tb *Tableau) Restore(cp Checkpoint) {
	n := len(cp.lower)
	copy(tb.lower[:n], cp.lower)
	copy(tb.upper[:n], cp.upper)
	copy(tb.value[:n], cp.value)
	copy(tb.basic[:n], cp.basic)
	for i := n; i < len(tb.names); i++ {
		tb.lower[i] = noBound()
		tb.upper[i] = noBound()
		tb.value[i] = ratio.Zero
		tb.basic[i] = false
	}
	tb.rowOf = make(map[int]int, len(cp.rowOf))
	for k, v := range cp.rowOf {
		tb.rowOf[k] = v
	}
	tb.rows = make([]row, len(cp.rows))
	for i, r := range cp.rows {
		coeffs := make(map[int]ratio.Ratio, len(r.coeffs))
		for k, v := range r.coeffs {
			coeffs[k] = v
		}
		tb.rows[i] = row{basic: r.basic, coeffs: coeffs}
	}
}
