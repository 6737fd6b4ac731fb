// Package driver implements the DPLL(T) outer loop (spec §4.5): it
// Tseitin-encodes a formula, asks the DPLL SAT core for a model, extracts
// the model's theory cube, hands it to ReLUplex, and on theory conflict adds
// a blocking clause and iterates until the boolean search space is
// exhausted or a theory-consistent model is found.
package driver

import (
	"fmt"
	"sort"

	"github.com/cespare-student/reluplex/ast"
	"github.com/cespare-student/reluplex/cnf"
	"github.com/cespare-student/reluplex/internal/ratio"
	"github.com/cespare-student/reluplex/reluplex"
	"github.com/cespare-student/reluplex/simplex"
	"github.com/cespare-student/reluplex/tseitin"
)

// Status mirrors reluplex.Status at the driver's boundary (spec §6 "tagged
// result"), kept as a distinct type so package driver's public API doesn't
// leak the internal ReLUplex package.
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

// Result is the entry point's tagged result (spec §6).
type Result struct {
	Status Status
	// Assignment holds the real-valued variable assignment when Status ==
	// SAT (spec §6 "assignment: map variable→real").
	Assignment map[string]ratio.Ratio
	// TheoryModel maps every theory atom that occurred in the formula to
	// its truth value under the accepted model: all theory atoms, not
	// only the ones ReLUplex consumed. Keyed by Atom.Key() rather than by
	// Atom itself:
	// Ineq holds a slice, so an Atom interface value is not always a valid
	// map key (see ast.Atom.Key's doc).
	TheoryModel map[string]AtomAssignment
	// Reason explains an UNKNOWN outcome (spec §7).
	Reason string
	// Iterations counts the number of SAT-core calls made, for
	// diagnostics and for bounding tests against P5 (spec §8).
	Iterations int
}

// maxIterations bounds the DPLL(T) loop per spec §8 P5: "≤ 2^|theory
// atoms|". Formulas in practice have far fewer theory atoms than boolean
// variables, so this is generous; it exists purely as an internal-invariant
// backstop (spec §7), not a tuning knob.
func maxIterations(numTheoryAtoms int) int {
	if numTheoryAtoms > 30 {
		return 1 << 30 // avoid overflow; practically unreachable anyway
	}
	return 1 << uint(numTheoryAtoms)
}

// Solve implements the DPLL(T) Driver loop (spec §4.5).
func Solve(f ast.Formula) Result {
	problem, vm, _ := tseitin.Encode(f)

	numTheoryAtoms := len(vm.Atom)
	limit := maxIterations(numTheoryAtoms)

	for iter := 1; iter <= limit; iter++ {
		m, ok := cnf.Solve(problem)
		if !ok {
			return Result{Status: UNSAT, Iterations: iter}
		}

		cube := theoryCube(m, vm)
		tb, pairs := buildReLUplexInput(cube)
		budget := reluplex.NewBudget(tb.NumVars() + len(pairs)*2 + 10)
		res := reluplex.Solve(reluplex.Input{Tableau: tb, Pairs: pairs}, budget)

		switch res.Status {
		case reluplex.SAT:
			return Result{
				Status:      SAT,
				Assignment:  res.Alpha,
				TheoryModel: theoryModel(m, vm),
				Iterations:  iter,
			}
		case reluplex.UNKNOWN:
			return Result{Status: UNKNOWN, Reason: res.Reason, Iterations: iter}
		case reluplex.UNSAT:
			clause := blockingClause(cube, res.Derivation)
			if clauseAlreadyPresent(problem, clause) {
				panic("driver: blocking clause repeated without boolean progress")
			}
			problem.Clauses = append(problem.Clauses, clause)
		}
	}
	return Result{Status: UNKNOWN, Reason: "exceeded iteration bound without convergence", Iterations: limit}
}

// AtomAssignment pairs a theory atom with its truth value under a model,
// the value type of Result.TheoryModel.
type AtomAssignment struct {
	Atom  ast.Atom
	Value bool
}

// cubeEntry is one theory atom assigned a truth value by the boolean model
// (spec §4.5 step 4 "theory cube").
type cubeEntry struct {
	id    int
	atom  ast.Atom
	value bool
}

// theoryCube extracts the theory cube in ascending variable-id order (spec
// §4.5 step 4). vm.Atom is a map, whose iteration order Go randomizes per
// run; ranging over it directly would make "first violated pair" (spec
// §4.4 step 5, SPEC supplement 5) — and therefore which pair ReLUplex
// reports a witness or conflict for — vary between runs of the same query.
func theoryCube(m cnf.Model, vm *tseitin.VarMap) []cubeEntry {
	ids := make([]int, 0, len(vm.Atom))
	for id := range vm.Atom {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var cube []cubeEntry
	for _, id := range ids {
		atom := vm.Atom[id]
		switch m[id] {
		case cnf.True:
			cube = append(cube, cubeEntry{id: id, atom: atom, value: true})
		case cnf.False:
			cube = append(cube, cubeEntry{id: id, atom: atom, value: false})
		}
	}
	return cube
}

func theoryModel(m cnf.Model, vm *tseitin.VarMap) map[string]AtomAssignment {
	out := make(map[string]AtomAssignment, len(vm.Atom))
	for id, atom := range vm.Atom {
		out[atom.Key()] = AtomAssignment{Atom: atom, Value: m[id] == cnf.True}
	}
	return out
}

// buildReLUplexInput translates a theory cube into a Simplex tableau and a
// ReLUplex pair list (spec §4.5 step 4): positive Ineqs are added directly,
// negative Ineqs are negated first (spec §4.3's ε-weakened complement).
// Positive Relus become pairs; negative Relus are turned into the pair's
// contrapositive Ineq via negativeReluWitness, since by this point we only
// have the interned Relu atom and its boolean value, not the original
// formula context.
func buildReLUplexInput(cube []cubeEntry) (*simplex.Tableau, []reluplex.Pair) {
	tb := simplex.NewTableau()
	var pairs []reluplex.Pair
	for _, c := range cube {
		switch a := c.atom.(type) {
		case ast.Ineq:
			if c.value {
				tb.AddAtom(a)
			} else {
				tb.AddAtom(a.Negate(simplex.Eps))
			}
		case ast.Relu:
			if c.value {
				pairs = append(pairs, reluplex.Pair{X: a.X, Y: a.Y})
			} else {
				tb.AddAtom(negativeReluWitness(a))
			}
		default:
			panic(fmt.Sprintf("driver: unsupported theory atom type %T", c.atom))
		}
	}
	return tb, pairs
}

// negativeReluWitness returns an Ineq asserting a point that violates y =
// max(0, x) by a margin of Eps, used when a Relu atom is the negative
// literal of the cube (spec §4.5 step 4 "adding their contrapositive as an
// Ineq pair asserting a point violating y = max(0, x)"). It asserts the
// single inequality y - x >= Eps. That excludes the active mode (y = x) and
// the inactive mode at x > -Eps, but not the inactive mode with x <= -Eps:
// x = -1, y = 0 satisfies both this witness and y = max(0, x).
func negativeReluWitness(a ast.Relu) ast.Ineq {
	return ast.NewIneq(
		[]ast.Term{{Coeff: ratio.FromInt64(1), Var: a.Y}, {Coeff: ratio.FromInt64(-1), Var: a.X}},
		simplex.Eps,
	)
}

// blockingClause builds the clause forbidding exactly this theory-
// inconsistent cube (spec §4.5 step 7): the disjunction of the negations of
// the theory literals in the cube, narrowed to the derivation subset when
// ReLUplex supplied one.
func blockingClause(cube []cubeEntry, deriv simplex.Derivation) cnf.Clause {
	// Derivation only ever names Ineq atoms (it is Simplex's own
	// conflict witness); a Relu cube entry's mode commitment is never
	// itself represented there, so narrowing to the derivation subset
	// must keep every Relu literal unconditionally or the blocking
	// clause could fail to exclude the inconsistent cube.
	relevant := cube
	if len(deriv.Atoms) > 0 {
		keep := map[string]bool{}
		for _, a := range deriv.Atoms {
			keep[a.Key()] = true
		}
		var filtered []cubeEntry
		for _, c := range cube {
			if _, isRelu := c.atom.(ast.Relu); isRelu || keep[c.atom.Key()] {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			relevant = filtered
		}
	}
	clause := make(cnf.Clause, len(relevant))
	for i, c := range relevant {
		clause[i] = cnf.NewLiteral(c.id, !c.value)
	}
	return clause
}

func clauseAlreadyPresent(problem cnf.CNF, clause cnf.Clause) bool {
	want := clauseKey(clause)
	for _, existing := range problem.Clauses {
		if clauseKey(existing) == want {
			return true
		}
	}
	return false
}

func clauseKey(c cnf.Clause) string {
	lits := append(cnf.Clause(nil), c...)
	sortLiterals(lits)
	s := ""
	for _, l := range lits {
		s += fmt.Sprintf("%d,", l)
	}
	return s
}

func sortLiterals(lits cnf.Clause) {
	for i := 1; i < len(lits); i++ {
		for j := i; j > 0 && lits[j-1] > lits[j]; j-- {
			lits[j-1], lits[j] = lits[j], lits[j-1]
		}
	}
}
