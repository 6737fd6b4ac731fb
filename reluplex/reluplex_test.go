package reluplex

import (
	"testing"

	"github.com/cespare-student/reluplex/ast"
	"github.com/cespare-student/reluplex/internal/ratio"
	"github.com/cespare-student/reluplex/simplex"
	"github.com/kr/pretty"
)

func r(n int64) ratio.Ratio { return ratio.FromInt64(n) }

func ineq(terms []ast.Term, bound ratio.Ratio) ast.Ineq {
	return ast.NewIneq(terms, bound)
}

func term(c int64, v string) ast.Term { return ast.Term{Coeff: r(c), Var: v} }

func solveFresh(t *testing.T, setup func(tb *simplex.Tableau), pairs []Pair) Result {
	t.Helper()
	tb := simplex.NewTableau()
	setup(tb)
	budget := NewBudget(tb.NumVars() + 10)
	return Solve(Input{Tableau: tb, Pairs: pairs}, budget)
}

// scenario 1 (spec §8): x+y>=5 and relu(x,y) -> SAT, witness x=y=2.5 (active
// branch).
func TestScenario1SAT(t *testing.T) {
	res := solveFresh(t, func(tb *simplex.Tableau) {
		tb.AddAtom(ineq([]ast.Term{term(1, "x"), term(1, "y")}, r(5)))
	}, []Pair{{X: "x", Y: "y"}})

	if res.Status != SAT {
		t.Fatalf("expected SAT, got %s (%s)", res.Status, res.Reason)
	}
	vx, vy := res.Alpha["x"], res.Alpha["y"]
	if vx.Sign() < 0 || vy.Sub(vx).Abs().Greater(simplex.Eps) {
		t.Fatalf("expected active-branch witness x=y>=0, got x=%s y=%s", vx, vy)
	}
}

// scenario 2 (spec §8): x<=0, y<0 (strict, weakened by eps), relu(x,y) ->
// UNSAT.
func TestScenario2UNSAT(t *testing.T) {
	res := solveFresh(t, func(tb *simplex.Tableau) {
		tb.AddAtom(ineq([]ast.Term{term(-1, "x")}, r(0)))
		tb.AddAtom(ineq([]ast.Term{term(-1, "y")}, simplex.Eps))
	}, []Pair{{X: "x", Y: "y"}})

	if res.Status != UNSAT {
		t.Fatalf("expected UNSAT, got %s", res.Status)
	}
}

// scenario 3 (spec §8): relu(x,y), y>=1, x<=0 -> UNSAT.
func TestScenario3UNSAT(t *testing.T) {
	res := solveFresh(t, func(tb *simplex.Tableau) {
		tb.AddAtom(ineq([]ast.Term{term(1, "y")}, r(1)))
		tb.AddAtom(ineq([]ast.Term{term(-1, "x")}, r(0)))
	}, []Pair{{X: "x", Y: "y"}})

	if res.Status != UNSAT {
		t.Fatalf("expected UNSAT, got %s", res.Status)
	}
}

// scenario 4 (spec §8): relu(x,y), x=y (via two inequalities) -> SAT with
// any x=y>=0.
func TestScenario4SAT(t *testing.T) {
	res := solveFresh(t, func(tb *simplex.Tableau) {
		tb.AddAtom(ineq([]ast.Term{term(1, "x"), term(-1, "y")}, r(0)))
		tb.AddAtom(ineq([]ast.Term{term(-1, "x"), term(1, "y")}, r(0)))
	}, []Pair{{X: "x", Y: "y"}})

	if res.Status != SAT {
		t.Fatalf("expected SAT, got %s (%s)", res.Status, res.Reason)
	}
	if res.Alpha["x"].Sign() < 0 {
		t.Fatalf("expected x >= 0, got %s", res.Alpha["x"])
	}
	if !res.Alpha["x"].Equal(res.Alpha["y"]) {
		t.Fatalf("expected x == y, got x=%s y=%s", res.Alpha["x"], res.Alpha["y"])
	}
}

// scenario 6 (spec §8): relu(x,y), relu(y,z), x-z>=0, x<=1 -> SAT with
// x=y=z=1.
func TestScenario6SAT(t *testing.T) {
	res := solveFresh(t, func(tb *simplex.Tableau) {
		tb.AddAtom(ineq([]ast.Term{term(1, "x"), term(-1, "z")}, r(0)))
		tb.AddAtom(ineq([]ast.Term{term(-1, "x")}, r(-1)))
	}, []Pair{{X: "x", Y: "y"}, {X: "y", Y: "z"}})

	if res.Status != SAT {
		t.Fatalf("expected SAT, got %s (%s)", res.Status, res.Reason)
	}
	for _, v := range []string{"x", "y", "z"} {
		if res.Alpha[v].Sign() < 0 {
			t.Fatalf("expected %s >= 0, got %s", v, res.Alpha[v])
		}
	}
}

// P4: whenever Solve returns SAT, every declared pair satisfies y ≈ max(0,
// x) within Eps.
func TestSolveSoundness(t *testing.T) {
	cases := []struct {
		name  string
		setup func(tb *simplex.Tableau)
		pairs []Pair
	}{
		{"scenario1", func(tb *simplex.Tableau) {
			tb.AddAtom(ineq([]ast.Term{term(1, "x"), term(1, "y")}, r(5)))
		}, []Pair{{X: "x", Y: "y"}}},
		{"scenario4", func(tb *simplex.Tableau) {
			tb.AddAtom(ineq([]ast.Term{term(1, "x"), term(-1, "y")}, r(0)))
			tb.AddAtom(ineq([]ast.Term{term(-1, "x"), term(1, "y")}, r(0)))
		}, []Pair{{X: "x", Y: "y"}}},
		{"scenario6", func(tb *simplex.Tableau) {
			tb.AddAtom(ineq([]ast.Term{term(1, "x"), term(-1, "z")}, r(0)))
			tb.AddAtom(ineq([]ast.Term{term(-1, "x")}, r(-1)))
		}, []Pair{{X: "x", Y: "y"}, {X: "y", Y: "z"}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res := solveFresh(t, c.setup, c.pairs)
			if res.Status != SAT {
				t.Fatalf("expected SAT, got %s\n%# v", res.Status, pretty.Formatter(res))
			}
			for _, p := range c.pairs {
				vx, vy := res.Alpha[p.X], res.Alpha[p.Y]
				if vx.Sign() >= 0 {
					if vy.Sub(vx).Abs().Greater(simplex.Eps) {
						t.Fatalf("pair (%s,%s): x=%s >= 0 but y=%s != x\n%# v", p.X, p.Y, vx, vy, pretty.Formatter(res))
					}
				} else {
					if vy.Abs().Greater(simplex.Eps) {
						t.Fatalf("pair (%s,%s): x=%s < 0 but y=%s != 0\n%# v", p.X, p.Y, vx, vy, pretty.Formatter(res))
					}
				}
			}
		})
	}
}

func TestBudgetExhaustionReturnsUnknown(t *testing.T) {
	tb := simplex.NewTableau()
	tb.AddAtom(ineq([]ast.Term{term(1, "x"), term(1, "y")}, r(5)))
	budget := &Budget{remaining: 0}
	res := Solve(Input{Tableau: tb, Pairs: []Pair{{X: "x", Y: "y"}}}, budget)
	if res.Status != UNKNOWN {
		t.Fatalf("expected UNKNOWN on exhausted budget, got %s", res.Status)
	}
}
