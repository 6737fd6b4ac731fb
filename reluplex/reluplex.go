// Package reluplex decides feasibility of a conjunction of linear atoms
// together with a set of rectifier (ReLU) pairs, by case-splitting each
// pair's mode and delegating the linear part to package simplex (spec
// §4.4).
package reluplex

import (
	"fmt"

	"github.com/cespare-student/reluplex/ast"
	"github.com/cespare-student/reluplex/internal/ratio"
	"github.com/cespare-student/reluplex/simplex"
)

// Pair is a rectifier relation y = max(0, x) to be decided (spec §3
// "Relu").
type Pair struct {
	X, Y string
}

// Status is the three-way outcome of a Solve call (spec §4.4, §6).
type Status int

const (
	UNSAT Status = iota
	SAT
	UNKNOWN
)

func (s Status) String() string {
	switch s {
	case SAT:
		return "SAT"
	case UNSAT:
		return "UNSAT"
	case UNKNOWN:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

// Result is the outcome of a Solve call.
type Result struct {
	Status Status
	// Alpha holds the satisfying assignment when Status == SAT.
	Alpha map[string]ratio.Ratio
	// Derivation holds the conflict witness when Status == UNSAT.
	Derivation simplex.Derivation
	// Reason is a human-readable explanation when Status == UNKNOWN (spec
	// §7 "a human-readable reason on UNKNOWN").
	Reason string
}

// Budget bounds the number of ReLUplex steps a single top-level Solve
// invocation (across every case-split branch) may take: C·n² for the n
// given to NewBudget and a fixed constant C. One unit is spent on each
// entry to the solve loop and on each repair attempt; the pivots performed
// inside simplex.Check are not counted. It is shared by reference across the
// whole recursive case-split tree — a checkpoint/pop does not refund spent
// budget.
type Budget struct {
	remaining int
	exceeded  bool
}

// NewBudget builds a Budget sized for numVars variables, per spec §4.4.
func NewBudget(numVars int) *Budget {
	const c = 50
	return &Budget{remaining: c * numVars * numVars}
}

func (b *Budget) consume() bool {
	if b.remaining <= 0 {
		b.exceeded = true
		return false
	}
	b.remaining--
	return true
}

// Input is a ReLUplex query: a tableau already populated with the linear
// atoms of the cube, plus the rectifier pairs to decide (spec §4.4).
type Input struct {
	Tableau *simplex.Tableau
	Pairs   []Pair
}

// mode records a pair's committed branch, if any (spec §4.4 "Fixed branch
// taken").
type mode int

const (
	unresolved mode = iota
	active          // x >= 0, y = x
	inactive        // x <= 0, y = 0
)

// Solve implements the ReLUplex Loop (spec §4.4). It mutates in.Tableau in
// place; callers that need the pre-solve tableau should snapshot it first.
func Solve(in Input, budget *Budget) Result {
	// Every y is permanently bounded below by 0 (spec §3 "ReLU pairs"),
	// independent of which mode (if any) is eventually committed.
	for _, p := range in.Pairs {
		in.Tableau.SetLower(p.Y, ratio.Zero)
	}
	modes := make([]mode, len(in.Pairs))
	return solve(in.Tableau, in.Pairs, modes, budget)
}

func solve(tb *simplex.Tableau, pairs []Pair, modes []mode, budget *Budget) Result {
	if !budget.consume() {
		return Result{Status: UNKNOWN, Reason: "pivot budget exceeded"}
	}

	res := tb.Check()
	if !res.SAT {
		return Result{Status: UNSAT, Derivation: res.Derivation}
	}

	violated := firstViolatedPair(tb, pairs)
	if violated < 0 {
		return Result{Status: SAT, Alpha: snapshotAlpha(tb, pairs)}
	}

	p := pairs[violated]
	if modes[violated] != unresolved {
		// A fixed branch was violated by bound propagation alone (a
		// sibling pivot moved x/y out from under a committed mode); this
		// is an UNSAT of the current branch, not a fresh case-split.
		return Result{Status: UNSAT, Derivation: simplex.Derivation{}}
	}

	repairCp := tb.Snapshot()
	if attemptRepairPivot(tb, p, budget) {
		return solve(tb, pairs, modes, budget)
	}
	tb.Restore(repairCp)

	return caseSplit(tb, pairs, modes, violated, budget)
}

// firstViolatedPair scans pairs in insertion order (spec §4.4 step 5
// "first violated pair (deterministic, by insertion order)") and returns the
// index of the first one not currently satisfied, or -1 if all are
// satisfied.
func firstViolatedPair(tb *simplex.Tableau, pairs []Pair) int {
	for i, p := range pairs {
		if pairSatisfied(tb, p) {
			continue
		}
		return i
	}
	return -1
}

// pairSatisfied implements spec §4.4 step 3's satisfaction test: vx >= 0
// and vy = vx, or vx <= 0 and vy = 0, up to simplex.Eps.
func pairSatisfied(tb *simplex.Tableau, p Pair) bool {
	vx := tb.Value(p.X)
	vy := tb.Value(p.Y)
	eps := simplex.Eps
	if !vx.Less(eps.Neg()) && approxEqual(vy, vx, eps) {
		return true
	}
	if !vx.Greater(eps) && approxEqual(vy, ratio.Zero, eps) {
		return true
	}
	return false
}

func approxEqual(a, b, eps ratio.Ratio) bool {
	return a.Sub(b).Abs().LessEq(eps)
}

// attemptRepairPivot implements spec §4.4 step 5's repair pivot: adjust y to
// the value dictated by x's current value (y := max(0, vx)) by asserting it
// as a tightened bound and re-running Check, without committing to a mode.
// Returns whether the repair succeeded (Check stayed SAT and the pair is now
// satisfied).
func attemptRepairPivot(tb *simplex.Tableau, p Pair, budget *Budget) bool {
	if !budget.consume() {
		return false
	}
	vx := tb.Value(p.X)
	target := vx
	if target.Sign() < 0 {
		target = ratio.Zero
	}
	tb.SetLower(p.Y, target)
	tb.SetUpper(p.Y, target)
	res := tb.Check()
	return res.SAT && pairSatisfied(tb, p)
}

// caseSplit implements spec §4.4 step 6: push a checkpoint, try the active
// branch, and on failure pop back and try the inactive branch, returning the
// union of both branches' derivations if both fail. The union is not
// filtered: atoms the active branch added for the split (y - x >= 0 and
// x - y >= 0) stay in it when Simplex named them.
func caseSplit(tb *simplex.Tableau, pairs []Pair, modes []mode, idx int, budget *Budget) Result {
	p := pairs[idx]
	cp := tb.Snapshot()

	modes[idx] = active
	tb.SetLower(p.X, ratio.Zero)
	tb.AddAtom(ast.NewIneq([]ast.Term{{Coeff: ratio.FromInt64(1), Var: p.Y}, {Coeff: ratio.FromInt64(-1), Var: p.X}}, ratio.Zero))
	tb.AddAtom(ast.NewIneq([]ast.Term{{Coeff: ratio.FromInt64(-1), Var: p.Y}, {Coeff: ratio.FromInt64(1), Var: p.X}}, ratio.Zero))
	activeRes := solve(tb, pairs, modes, budget)
	if activeRes.Status != UNSAT {
		return activeRes
	}

	tb.Restore(cp)
	modes[idx] = inactive
	tb.SetUpper(p.X, ratio.Zero)
	tb.SetLower(p.Y, ratio.Zero)
	tb.SetUpper(p.Y, ratio.Zero)
	inactiveRes := solve(tb, pairs, modes, budget)
	if inactiveRes.Status != UNSAT {
		return inactiveRes
	}

	tb.Restore(cp)
	modes[idx] = unresolved
	return Result{
		Status:     UNSAT,
		Derivation: simplex.Union(activeRes.Derivation, inactiveRes.Derivation),
	}
}

// snapshotAlpha reads off the final variable assignment for every variable
// mentioned by a pair, plus any variable the tableau otherwise tracks, so
// callers (package driver) can report a complete real-valued model (spec §6
// "assignment: map variable→real").
func snapshotAlpha(tb *simplex.Tableau, pairs []Pair) map[string]ratio.Ratio {
	seen := map[string]bool{}
	alpha := map[string]ratio.Ratio{}
	record := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		alpha[name] = tb.Value(name)
	}
	for _, p := range pairs {
		record(p.X)
		record(p.Y)
	}
	for _, name := range tb.VarNames() {
		record(name)
	}
	return alpha
}
