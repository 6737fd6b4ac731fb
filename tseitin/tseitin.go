// Package tseitin converts a propositional AST into an equisatisfiable CNF
// by introducing a fresh auxiliary propositional variable for each And and
// Or subformula (spec §4.1); Not reuses its operand's variable, negated.
package tseitin

import (
	"github.com/cespare-student/reluplex/ast"
	"github.com/cespare-student/reluplex/cnf"
)

// VarMap records what each CNF variable id means, recovering the
// atom/subformula vocabulary a satisfying assignment is stated over (spec
// §3 "the mapping from auxiliary variable-id to the subformula it
// represents must be preserved").
type VarMap struct {
	// PropVar maps a variable id to the opaque propositional name it was
	// allocated for, for ast.Var leaves.
	PropVar map[int]ast.Var
	// Atom maps a variable id to the theory atom it was allocated for,
	// for ast.AtomLeaf leaves. Because atoms are interned (spec §3), this
	// map inverts cleanly: the driver recovers exactly the theory cube
	// from a model by looking up each true/false variable here.
	Atom map[int]ast.Atom
	// Aux maps a variable id introduced for an And or Or node of the
	// desugared formula back to that subformula, per the Tseitin
	// contract. Implies and Iff are rewritten by ast.Desugar before the
	// walk, and Not never gets a variable of its own.
	Aux map[int]ast.Formula

	byAtomKey map[string]int
}

// AtomVar returns the variable id standing for atom a, if a appears
// anywhere in the encoded formula.
func (vm *VarMap) AtomVar(a ast.Atom) (int, bool) {
	id, ok := vm.byAtomKey[a.Key()]
	return id, ok
}

// Encode implements the Tseitin Encoder contract (spec §4.1): given a
// formula f, it returns the equisatisfiable CNF, the id<->subformula
// mapping, and the literal representing f's own truth value (asserted as a
// unit clause in the returned CNF, so callers don't usually need it — it is
// returned for completeness and for tests that want to check the
// definitional clauses in isolation).
func Encode(f ast.Formula) (cnf.CNF, *VarMap, cnf.Literal) {
	vm := &VarMap{
		PropVar:   map[int]ast.Var{},
		Atom:      map[int]ast.Atom{},
		Aux:       map[int]ast.Formula{},
		byAtomKey: map[string]int{},
	}
	e := &encoder{
		next:    1,
		propVar: make(map[ast.Var]int),
		atomVar: make(map[string]int),
		vm:      vm,
	}
	desugared := ast.Desugar(f)
	root := e.walk(desugared)
	e.clauses = append(e.clauses, cnf.Clause{root})
	return cnf.CNF{NumVars: e.next - 1, Clauses: e.clauses}, e.vm, root
}

type encoder struct {
	next    int
	propVar map[ast.Var]int
	atomVar map[string]int
	clauses []cnf.Clause
	vm      *VarMap
}

func (e *encoder) freshVar() int {
	v := e.next
	e.next++
	return v
}

func (e *encoder) lit(v int, positive bool) cnf.Literal {
	return cnf.NewLiteral(v, positive)
}

// walk is the post-order Tseitin translation (spec §4.1 step b). Not is
// handled by negating the child's representative literal in place, without
// allocating a variable or emitting clauses of its own: Atom leaves and Var
// leaves already "reuse their interned identifier as their literal" (spec
// §4.1), and for compound children it is simply cheaper and, per spec §8
// scenario 5, the behavior the contract actually specifies (a bare Not
// never introduces a variable that does not otherwise exist).
func (e *encoder) walk(f ast.Formula) cnf.Literal {
	switch v := f.(type) {
	case ast.Var:
		id, ok := e.propVar[v]
		if !ok {
			id = e.freshVar()
			e.propVar[v] = id
			e.vm.PropVar[id] = v
		}
		return e.lit(id, true)

	case ast.AtomLeaf:
		k := v.Atom.Key()
		id, ok := e.atomVar[k]
		if !ok {
			id = e.freshVar()
			e.atomVar[k] = id
			e.vm.Atom[id] = v.Atom
			e.vm.byAtomKey[k] = id
		}
		return e.lit(id, true)

	case ast.Not:
		return e.walk(v.X).Negate()

	case ast.And:
		l, r := e.walk(v.L), e.walk(v.R)
		t := e.freshVar()
		e.vm.Aux[t] = f
		tPos, tNeg := e.lit(t, true), e.lit(t, false)
		e.clauses = append(e.clauses,
			cnf.Clause{tNeg, l},
			cnf.Clause{tNeg, r},
			cnf.Clause{l.Negate(), r.Negate(), tPos},
		)
		return tPos

	case ast.Or:
		l, r := e.walk(v.L), e.walk(v.R)
		t := e.freshVar()
		e.vm.Aux[t] = f
		tPos, tNeg := e.lit(t, true), e.lit(t, false)
		e.clauses = append(e.clauses,
			cnf.Clause{tNeg, l, r},
			cnf.Clause{l.Negate(), tPos},
			cnf.Clause{r.Negate(), tPos},
		)
		return tPos

	default:
		// Encode always runs ast.Desugar first, which eliminates Implies
		// and Iff, so walk never sees them; reaching here means a caller
		// bypassed Desugar or the AST grew a node kind walk doesn't know.
		panic("tseitin: unsupported formula node (did you skip ast.Desugar?)")
	}
}
