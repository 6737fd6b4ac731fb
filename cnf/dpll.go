package cnf

import (
	"fmt"
	"sort"
)

// Solve decides satisfiability of f by chronological backtracking over an
// explicit decision trail, with unit propagation and pure-literal elimination (spec §4.2). It returns a total
// model over every variable in [1, f.NumVars] if satisfiable, or ok=false
// if not.
//
// Decisions are made over the first unassigned variable in ascending
// variable-id order (spec §4.2 "Decision": a fixed deterministic order),
// trying true then false; there is no variable-activity heuristic and no
// learned-clause database (any clause learning happens one level up, in
// package driver, which appends blocking clauses and calls Solve again).
//
// The two-watched-literal propagation scheme below drops a watch-list-size
// decision heuristic (nondeterministic across equally-sized alternatives,
// which spec §4.2 rules out) in favor of the fixed order above.
func Solve(f CNF) (Model, bool) {
	sv := newSolver(f)
	if sv.trivial != Unassigned {
		if sv.trivial == False {
			return nil, false
		}
		return sv.buildModel(), true
	}
	ok := sv.solve()
	if !ok {
		return nil, false
	}
	return sv.buildModel(), true
}

type solver struct {
	numVars int
	trivial Assignment // set if simplification alone decided the formula

	fixed             map[int]Assignment // vars decided by simplify() alone
	simplifiedClauses []Clause           // residual clauses after simplify()

	origVars []int // solver-internal index -> original 1-based var id
	assigned []Assignment

	watches [][]int // per literal (see encLit), clause indices watching it
	clauses []watchedClause

	decisions    []decision
	implications []literal
	propIndex    int

	numDecisions    int64
	numImplications int64
}

// literal is an internal, zero-based encoding: 2*varIndex, +1 if negated,
// a packed representation cheap to use as a watch-list index.
type literal uint32

func encLit(varIndex int, negated bool) literal {
	l := literal(varIndex) << 1
	if negated {
		l ^= 1
	}
	return l
}

func (l literal) varIndex() int  { return int(l >> 1) }
func (l literal) negated() bool  { return l&1 == 1 }
func (l literal) complement() literal { return l ^ 1 }

// assn returns the Assignment that satisfies l.
func (l literal) assn() Assignment {
	if l.negated() {
		return False
	}
	return True
}

type watchedClause struct {
	lits []literal // watched literals are lits[0] and lits[1] (if len>=2)
}

type decision struct {
	implicationIdx int
	lit            literal
	tried          bool // both polarities attempted
}

func newSolver(f CNF) *solver {
	sv := simplify(f)
	if sv.trivial != Unassigned {
		return sv
	}

	varSeen := make(map[int]bool)
	for _, cls := range sv.simplifiedClauses {
		for _, l := range cls {
			varSeen[l.Var()] = true
		}
	}
	for v := 1; v <= sv.numVars; v++ {
		if !varSeen[v] {
			continue
		}
		if _, ok := sv.fixed[v]; ok {
			continue
		}
		sv.origVars = append(sv.origVars, v)
	}
	sort.Ints(sv.origVars)

	indexOf := make(map[int]int, len(sv.origVars))
	for i, v := range sv.origVars {
		indexOf[v] = i
	}

	sv.assigned = make([]Assignment, len(sv.origVars))
	sv.watches = make([][]int, len(sv.origVars)*2)
	sv.clauses = make([]watchedClause, len(sv.simplifiedClauses))
	for i, cls := range sv.simplifiedClauses {
		wc := watchedClause{lits: make([]literal, len(cls))}
		for j, l := range cls {
			enc := encLit(indexOf[l.Var()], !l.Positive())
			wc.lits[j] = enc
			if j < 2 {
				sv.watches[enc] = append(sv.watches[enc], i)
			}
		}
		sv.clauses[i] = wc
	}
	return sv
}

// simplify performs a unit-propagation and pure-literal fixpoint over f,
// returning the residual clause set (vars fixed by this pass removed) plus
// the fixed assignments themselves: a preprocessing pass run once before
// the watched-literal machinery is built, covering both unit propagation
// and pure-literal assignment (spec §4.2).
func simplify(f CNF) *solver {
	sv := &solver{numVars: f.NumVars, fixed: make(map[int]Assignment)}
	clauses := make([]Clause, len(f.Clauses))
	for i, cls := range f.Clauses {
		seen := make(map[Literal]bool)
		var c Clause
		for _, l := range cls {
			if l.Var() == 0 {
				panic("cnf: variable id 0 is reserved (DIMACS terminator)")
			}
			if seen[l] {
				continue
			}
			seen[l] = true
			c = append(c, l)
		}
		clauses[i] = c
	}

	changed := true
	for changed {
		changed = false
		if len(clauses) == 0 {
			sv.trivial = True
			break
		}

		// Unit propagation.
		var kept []Clause
		for _, cls := range clauses {
			if len(cls) == 0 {
				sv.trivial = False
				return sv
			}
			if len(cls) == 1 {
				l := cls[0]
				assn := True
				if !l.Positive() {
					assn = False
				}
				if existing, ok := sv.fixed[l.Var()]; ok && existing != assn {
					sv.trivial = False
					return sv
				}
				sv.fixed[l.Var()] = assn
				changed = true
				continue
			}
			var reduced Clause
			satisfied := false
			for _, l := range cls {
				if assn, ok := sv.fixed[l.Var()]; ok {
					changed = true
					if (assn == True) == l.Positive() {
						satisfied = true
						break
					}
					continue // literal is false, drop it
				}
				reduced = append(reduced, l)
			}
			if satisfied {
				continue
			}
			kept = append(kept, reduced)
		}
		clauses = kept
	}

	// Pure-literal elimination: any variable occurring in the residual
	// clauses with only one polarity can be assigned that polarity and
	// dropped, since every remaining clause it touches is then satisfied.
	for {
		polarity := make(map[int]int) // var -> bitmask: 1=seen positive, 2=seen negative
		for _, cls := range clauses {
			for _, l := range cls {
				if l.Positive() {
					polarity[l.Var()] |= 1
				} else {
					polarity[l.Var()] |= 2
				}
			}
		}
		progressed := false
		for v, mask := range polarity {
			if mask == 1 {
				sv.fixed[v] = True
				progressed = true
			} else if mask == 2 {
				sv.fixed[v] = False
				progressed = true
			}
		}
		if !progressed {
			break
		}
		var kept []Clause
		for _, cls := range clauses {
			satisfied := false
			var reduced Clause
			for _, l := range cls {
				if assn, ok := sv.fixed[l.Var()]; ok {
					if (assn == True) == l.Positive() {
						satisfied = true
						break
					}
					continue
				}
				reduced = append(reduced, l)
			}
			if !satisfied {
				kept = append(kept, reduced)
			}
		}
		clauses = kept
		if len(clauses) == 0 {
			sv.trivial = True
			break
		}
	}

	sv.simplifiedClauses = clauses
	return sv
}

func (sv *solver) buildModel() Model {
	m := make(Model, sv.numVars+1)
	for v, a := range sv.fixed {
		m[v] = a
	}
	for i, v := range sv.origVars {
		a := sv.assigned[i]
		if a == Unassigned {
			a = True // unconstrained var: pick arbitrarily
		}
		m[v] = a
	}
	for v := 1; v <= sv.numVars; v++ {
		if m[v] == Unassigned {
			m[v] = True
		}
	}
	return m
}

func (sv *solver) solve() bool {
	for {
		v, ok := sv.pickUnassigned()
		if !ok {
			return true
		}
		lit := encLit(v, false) // try true first
		sv.assign(lit)
		sv.numDecisions++
		sv.decisions = append(sv.decisions, decision{
			implicationIdx: len(sv.implications),
			lit:            lit,
		})
		sv.propIndex = len(sv.implications)
		sv.implications = append(sv.implications, lit)

		for !sv.bcp() {
			if !sv.resolveConflict() {
				return false
			}
		}
	}
}

// pickUnassigned returns the lowest solver-internal index not yet assigned
// (spec §4.2: "the first unassigned variable in a fixed deterministic
// order"). origVars is already sorted ascending by construction.
func (sv *solver) pickUnassigned() (int, bool) {
	for i, a := range sv.assigned {
		if a == Unassigned {
			return i, true
		}
	}
	return 0, false
}

func (sv *solver) assign(l literal) {
	sv.assigned[l.varIndex()] = l.assn()
}

func (sv *solver) unassign(l literal) {
	sv.assigned[l.varIndex()] = Unassigned
}

// bcp performs boolean constraint propagation via the watched-literal
// scheme: it returns false (a conflict) the first time some clause's last
// unwatched literal is also false.
func (sv *solver) bcp() bool {
	for sv.propIndex < len(sv.implications) {
		imps := sv.implications[sv.propIndex:]
		sv.propIndex = len(sv.implications)
		for _, impliedLit := range imps {
			falseLit := impliedLit.complement()
			watchers := sv.watches[falseLit]
			i := 0
			for i < len(watchers) {
				ci := watchers[i]
				cls := sv.clauses[ci]
				if cls.lits[0] == falseLit {
					cls.lits[0], cls.lits[1] = cls.lits[1], cls.lits[0]
				} else if cls.lits[1] != falseLit {
					panic("cnf: watch invariant violated")
				}
				other := cls.lits[0]
				if sv.assigned[other.varIndex()] == other.assn() {
					i++
					continue // clause already satisfied by the other watch
				}
				replaced := false
				for j := 2; j < len(cls.lits); j++ {
					cand := cls.lits[j]
					a := sv.assigned[cand.varIndex()]
					if a == cand.complement().assn() {
						continue // already false
					}
					sv.watches[cand] = append(sv.watches[cand], ci)
					watchers[i], watchers[len(watchers)-1] = watchers[len(watchers)-1], watchers[i]
					watchers = watchers[:len(watchers)-1]
					sv.watches[falseLit] = watchers
					cls.lits[1], cls.lits[j] = cls.lits[j], cls.lits[1]
					sv.clauses[ci] = cls
					replaced = true
					break
				}
				if replaced {
					continue
				}
				i++
				if sv.assigned[other.varIndex()] != Unassigned {
					return false // both watches false: conflict
				}
				sv.assign(other)
				sv.numImplications++
				sv.implications = append(sv.implications, other)
			}
		}
	}
	return true
}

// resolveConflict flips the most recent decision not yet tried both ways,
// rolling back everything implied since. Returns false if every decision
// has already been tried both ways (UNSAT).
func (sv *solver) resolveConflict() bool {
	di := -1
	for i := len(sv.decisions) - 1; i >= 0; i-- {
		if !sv.decisions[i].tried {
			di = i
			break
		}
	}
	if di == -1 {
		return false
	}
	d := sv.decisions[di]
	for i := len(sv.implications) - 1; i > d.implicationIdx; i-- {
		sv.unassign(sv.implications[i])
	}
	sv.implications = sv.implications[:d.implicationIdx+1]
	flipped := d.lit.complement()
	sv.implications[len(sv.implications)-1] = flipped
	sv.unassign(d.lit)
	sv.assign(flipped)
	sv.decisions = sv.decisions[:di+1]
	sv.decisions[di] = decision{implicationIdx: d.implicationIdx, lit: flipped, tried: true}
	sv.propIndex = d.implicationIdx
	return true
}

func (sv *solver) String() string {
	return fmt.Sprintf("decisions=%d implications=%d", sv.numDecisions, sv.numImplications)
}
