package cnf

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// loadFixtures loads every testdata/*.cnf fixture, with the expected
// verdict encoded in the filename via .sat.cnf / .unsat.cnf suffixes.
func loadFixtures(t *testing.T) []struct {
	name string
	f    CNF
	sat  bool
} {
	filenames, err := filepath.Glob("testdata/*.cnf")
	if err != nil {
		t.Fatal(err)
	}
	var tests []struct {
		name string
		f    CNF
		sat  bool
	}
	for _, filename := range filenames {
		data, err := os.Open(filename)
		if err != nil {
			t.Fatal(err)
		}
		f, err := ParseDIMACS(data)
		data.Close()
		if err != nil {
			t.Fatalf("bad fixture %s: %s", filename, err)
		}
		name := filepath.Base(filename)
		var sat bool
		switch {
		case strings.HasSuffix(filename, ".sat.cnf"):
			sat = true
		case strings.HasSuffix(filename, ".unsat.cnf"):
			sat = false
		default:
			t.Fatalf("bad testdata filename (want .sat.cnf or .unsat.cnf): %q", filename)
		}
		tests = append(tests, struct {
			name string
			f    CNF
			sat  bool
		}{name, f, sat})
	}
	return tests
}

func TestFixtures(t *testing.T) {
	for _, tt := range loadFixtures(t) {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Solve(tt.f)
			if ok != tt.sat {
				t.Fatalf("Solve: got ok=%v, want ok=%v", ok, tt.sat)
			}
			if ok && !isModel(tt.f, m) {
				t.Fatalf("Solve returned a model that doesn't satisfy the formula: %v", m)
			}
		})
	}
}

func isModel(f CNF, m Model) bool {
clauseLoop:
	for _, cls := range f.Clauses {
		for _, l := range cls {
			if m.Holds(l) {
				continue clauseLoop
			}
		}
		return false
	}
	return true
}

func TestRandomized(t *testing.T) {
	for _, tt := range []struct {
		numVars, numClauses, numSeeds int
	}{
		{2, 2, 20},
		{3, 10, 100},
		{5, 10, 500},
		{8, 20, 500},
	} {
		for seed := 0; seed < tt.numSeeds; seed++ {
			f := makeRandomSatisfiable(int64(seed), tt.numVars, tt.numClauses)
			m, ok := Solve(f)
			if !ok {
				t.Fatalf("[vars=%d,clauses=%d,seed=%d] got UNSAT for a formula built from a satisfying assignment", tt.numVars, tt.numClauses, seed)
			}
			if !isModel(f, m) {
				t.Fatalf("[vars=%d,clauses=%d,seed=%d] got invalid model %v", tt.numVars, tt.numClauses, seed, m)
			}
		}
	}
}

// makeRandomSatisfiable builds a random CNF over numVars variables that is
// satisfied by a planted random assignment: each clause contains at least
// one literal consistent with the plant.
func makeRandomSatisfiable(seed int64, numVars, numClauses int) CNF {
	rng := rand.New(rand.NewSource(seed))
	plant := make([]bool, numVars)
	for v := range plant {
		plant[v] = rng.Intn(2) == 1
	}
	f := CNF{NumVars: numVars}
	for i := 0; i < numClauses; i++ {
		size := rng.Intn(numVars) + 1
		vars := rng.Perm(numVars)[:size]
		fixedIdx := rng.Intn(size)
		cls := make(Clause, size)
		for j, v := range vars {
			lit := Literal(v + 1)
			var positive bool
			if j == fixedIdx {
				positive = plant[v]
			} else {
				positive = rng.Intn(2) == 1
			}
			if !positive {
				lit = -lit
			}
			cls[j] = lit
		}
		f.Clauses = append(f.Clauses, cls)
	}
	return f
}

func TestNotAndScenarioModel(t *testing.T) {
	// spec §8 scenario 5: Tseitin of "not (p and q)" yields an aux t1 for
	// "p and q" with clauses {-t1,p},{-t1,q},{t1,-p,-q} plus the root unit
	// {-t1}; DPLL must find a model with t1=false (here t1 is var 3).
	f := CNF{
		NumVars: 3,
		Clauses: []Clause{
			{-3, 1},
			{-3, 2},
			{3, -1, -2},
			{-3},
		},
	}
	m, ok := Solve(f)
	if !ok {
		t.Fatal("expected SAT")
	}
	if m[3] != False {
		t.Fatalf("expected t1 (var 3) = false, got %s", m[3])
	}
	if !isModel(f, m) {
		t.Fatalf("model does not satisfy formula: %v", m)
	}
}
