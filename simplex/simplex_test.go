package simplex

import (
	"math/rand"
	"testing"

	"github.com/cespare-student/reluplex/ast"
	"github.com/cespare-student/reluplex/internal/ratio"
)

func r(n int64) ratio.Ratio { return ratio.FromInt64(n) }

func term(c int64, v string) ast.Term { return ast.Term{Coeff: r(c), Var: v} }

// scenario 1 (spec §8): x + y >= 5 and 0<=x<=... with relu(x,y) handled
// elsewhere; here we only check the linear part is satisfiable with a
// witness like x=2.5, y=2.5, i.e. x>=0, y>=0, x+y>=5 is SAT.
func TestCheckSatisfiesSimpleSystem(t *testing.T) {
	tb := NewTableau()
	tb.AddAtom(ast.NewIneq([]ast.Term{term(1, "x"), term(1, "y")}, r(5)))
	tb.SetLower("x", r(0))
	tb.SetLower("y", r(0))
	tb.SetUpper("x", r(10))
	tb.SetUpper("y", r(10))

	res := tb.Check()
	if !res.SAT {
		t.Fatalf("expected SAT, got UNSAT with derivation %v", res.Derivation)
	}
	sum := tb.Value("x").Add(tb.Value("y"))
	if sum.Less(r(5)) {
		t.Fatalf("x+y = %s, want >= 5", sum)
	}
}

// scenario 3 (spec §8): y >= 1, x <= 0, y = x is UNSAT. We model "y = x" as
// two inequalities (y >= x and x >= y) the way the driver will from a Relu
// active-branch row.
func TestCheckDetectsInfeasibility(t *testing.T) {
	tb := NewTableau()
	tb.AddAtom(ast.NewIneq([]ast.Term{term(1, "y")}, r(1)))
	tb.SetUpper("x", r(0))
	tb.AddAtom(ast.NewIneq([]ast.Term{term(1, "y"), term(-1, "x")}, r(0)))
	tb.AddAtom(ast.NewIneq([]ast.Term{term(-1, "y"), term(1, "x")}, r(0)))

	res := tb.Check()
	if res.SAT {
		t.Fatalf("expected UNSAT (y>=1, x<=0, y=x), got SAT: x=%s y=%s", tb.Value("x"), tb.Value("y"))
	}
	if len(res.Derivation.Atoms) == 0 {
		t.Fatal("expected a non-empty derivation on UNSAT")
	}
}

// P2: whenever Check returns SAT, every row equation holds exactly and
// every bound is satisfied within Eps.
func TestCheckSoundness(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 200; trial++ {
		tb := NewTableau()
		numAtoms := rng.Intn(4) + 1
		vars := []string{"x", "y", "z"}
		ok := true
		for i := 0; i < numAtoms; i++ {
			nterms := rng.Intn(2) + 1
			var terms []ast.Term
			for j := 0; j < nterms; j++ {
				c := int64(rng.Intn(5) - 2)
				if c == 0 {
					c = 1
				}
				terms = append(terms, term(c, vars[rng.Intn(len(vars))]))
			}
			b := int64(rng.Intn(11) - 5)
			tb.AddAtom(ast.NewIneq(terms, r(b)))
		}
		for _, v := range vars {
			tb.SetLower(v, r(-10))
			tb.SetUpper(v, r(10))
		}
		res := tb.Check()
		if !res.SAT {
			continue
		}
		ok = ok && checkRowsHoldExactly(t, tb)
		if !ok {
			t.Fatalf("trial %d: row equations violated after SAT", trial)
		}
		for _, v := range vars {
			idx := tb.index[v]
			if !tb.inBound(idx) {
				t.Fatalf("trial %d: var %s = %s out of its declared bound", trial, v, tb.value[idx])
			}
		}
	}
}

func checkRowsHoldExactly(t *testing.T, tb *Tableau) bool {
	t.Helper()
	for _, row := range tb.rows {
		got := row.eval(func(v int) ratio.Ratio { return tb.value[v] })
		if !got.Equal(tb.value[row.basic]) {
			t.Errorf("row for basic var %q: got %s, want %s", tb.names[row.basic], got, tb.value[row.basic])
			return false
		}
	}
	return true
}

// P3: Simplex completeness on bounded, feasible-by-construction systems.
func TestCheckCompletenessOnFeasibleSystems(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	vars := []string{"a", "b", "c", "d"}
	for trial := 0; trial < 300; trial++ {
		plant := make([]ratio.Ratio, len(vars))
		for i := range plant {
			plant[i] = r(int64(rng.Intn(9) - 4))
		}
		tb := NewTableau()
		numAtoms := rng.Intn(6) + 1
		for i := 0; i < numAtoms; i++ {
			nterms := rng.Intn(3) + 1
			var terms []ast.Term
			var lhs ratio.Ratio
			used := map[string]bool{}
			for j := 0; j < nterms; j++ {
				v := vars[rng.Intn(len(vars))]
				if used[v] {
					continue
				}
				used[v] = true
				c := int64(rng.Intn(5) - 2)
				if c == 0 {
					c = 1
				}
				terms = append(terms, term(c, v))
				for k, name := range vars {
					if name == v {
						lhs = lhs.Add(r(c).Mul(plant[k]))
					}
				}
			}
			if len(terms) == 0 {
				continue
			}
			// bound is <= the plant's value for this row, so the plant
			// remains a feasible witness.
			bound := lhs.Sub(r(int64(rng.Intn(3))))
			tb.AddAtom(ast.NewIneq(terms, bound))
		}
		for _, v := range vars {
			tb.SetLower(v, r(-100))
			tb.SetUpper(v, r(100))
		}
		res := tb.Check()
		if !res.SAT {
			t.Fatalf("trial %d: expected SAT on a feasible-by-construction system, got UNSAT: %v", trial, res.Derivation)
		}
	}
}

// A Snapshot/Restore cycle that rolls back rows added after the snapshot
// must not let a later AddAtom collide with (or inherit bounds from) one
// of the rolled-back rows' slack variables, even though the live row count
// returns to what it was at snapshot time.
func TestAddAtomAfterRestoreDoesNotAliasRolledBackSlack(t *testing.T) {
	tb := NewTableau()
	tb.AddAtom(ast.NewIneq([]ast.Term{term(1, "p")}, r(0)))
	cp := tb.Snapshot()

	// A branch that adds two more rows (and thus two more slacks) before
	// failing; Restore rolls the row count back to what it was at cp.
	tb.AddAtom(ast.NewIneq([]ast.Term{term(1, "q")}, r(1)))
	tb.AddAtom(ast.NewIneq([]ast.Term{term(1, "s")}, r(2)))
	tb.Restore(cp)

	tb.AddAtom(ast.NewIneq([]ast.Term{term(1, "t")}, r(3)))
	res := tb.Check()
	if !res.SAT {
		t.Fatalf("expected SAT, got UNSAT with derivation %v", res.Derivation)
	}
	if got := tb.Value("t"); got.Less(r(3)) {
		t.Fatalf("t = %s, want >= 3 (bound must come from the post-restore atom, not a rolled-back one)", got)
	}
}

func TestTightenBoundToEmptyIntervalIsImmediateUNSAT(t *testing.T) {
	tb := NewTableau()
	tb.SetLower("x", r(5))
	tb.SetUpper("x", r(1))
	idx := tb.index["x"]
	if !tb.emptyBounds(idx) {
		t.Fatal("expected empty-interval detection after tightening bounds past each other")
	}
	if tb.Check().SAT {
		t.Fatal("expected Check to report UNSAT for an empty bound interval")
	}
}
