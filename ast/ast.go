// Package ast is the algebraic representation of boolean connectives over
// theory atoms (spec §3 "Propositional AST") plus interning and a normal
// form conversion used by the Tseitin encoder. The formula type is a tagged
// variant dispatched by type switch, not an open class hierarchy (spec §9).
package ast

import "fmt"

// Formula is a node of the propositional AST: Var, Not, And, Or, Implies,
// Iff, or an AtomLeaf wrapping a theory Atom.
type Formula interface {
	formula()
}

// Var is an opaque propositional variable name (not a theory atom).
type Var string

func (Var) formula() {}

// Not is logical negation.
type Not struct{ X Formula }

func (Not) formula() {}

// And is logical conjunction.
type And struct{ L, R Formula }

func (And) formula() {}

// Or is logical disjunction.
type Or struct{ L, R Formula }

func (Or) formula() {}

// Implies is L -> R.
type Implies struct{ L, R Formula }

func (Implies) formula() {}

// Iff is L <-> R.
type Iff struct{ L, R Formula }

func (Iff) formula() {}

// AtomLeaf wraps an interned theory Atom as a formula leaf.
type AtomLeaf struct{ Atom Atom }

func (AtomLeaf) formula() {}

// Interner deduplicates theory atoms by structural equality so that every
// occurrence of, e.g., Ineq([(1,x)], 5) anywhere in a formula produces the
// identical Atom value, which downstream (Tseitin, CNF) treats as one SAT
// literal. Scoped to one call the way the Tseitin fresh-name counter is
// threaded through a walk (spec §9) rather than held as a process-wide
// global.
type Interner struct {
	byKey map[string]Atom
}

// NewInterner returns an empty Interner.
func NewInterner() *Interner {
	return &Interner{byKey: make(map[string]Atom)}
}

// Intern returns the canonical Atom structurally equal to a, registering a
// if this is the first occurrence.
func (in *Interner) Intern(a Atom) Atom {
	k := key(a)
	if existing, ok := in.byKey[k]; ok {
		return existing
	}
	in.byKey[k] = a
	return a
}

// Leaf interns a and wraps it as a Formula leaf.
func (in *Interner) Leaf(a Atom) Formula {
	return AtomLeaf{Atom: in.Intern(a)}
}

// Desugar eliminates Implies and Iff, rewriting them in terms of And, Or
// and Not (spec §4.1 step a: "push negations inward to NNF eliminating
// Implies, Iff"). It recurses into every child but otherwise leaves And, Or
// and Not exactly as given: Tseitin's post-order walk (package tseitin)
// handles an existing Not by negating its operand's representative literal
// rather than by a variable of its own, so there is no need to distribute
// Not over And/Or the way a textbook NNF would — doing so would replace,
// e.g., Not{And{p,q}} with Or{Not p, Not q} and lose the fact that "p and
// q" is itself a named subformula, which the Tseitin contract (spec §4.1,
// scenario 5 of §8) requires to keep its own auxiliary variable.
func Desugar(f Formula) Formula {
	switch v := f.(type) {
	case Var, AtomLeaf:
		return v
	case Not:
		return Not{X: Desugar(v.X)}
	case And:
		return And{L: Desugar(v.L), R: Desugar(v.R)}
	case Or:
		return Or{L: Desugar(v.L), R: Desugar(v.R)}
	case Implies:
		// L -> R == ¬L ∨ R
		return Or{L: Not{X: Desugar(v.L)}, R: Desugar(v.R)}
	case Iff:
		// L <-> R == (¬L ∨ R) ∧ (L ∨ ¬R)
		l, r := Desugar(v.L), Desugar(v.R)
		return And{
			L: Or{L: Not{X: l}, R: r},
			R: Or{L: l, R: Not{X: r}},
		}
	default:
		panic(fmt.Sprintf("ast: unsupported formula node %T", f))
	}
}
