package ast

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare-student/reluplex/internal/ratio"
)

// Atom is the fixed theory vocabulary consumed by the solver (spec §3):
// exactly two kinds, Ineq and Relu. Atoms are value-typed and compare equal
// by structural equality so that, once interned, a single Go value can
// stand in for a SAT literal and a theory literal.
type Atom interface {
	atom()
	String() string

	// Key returns a canonical, comparable representation of the atom,
	// suitable as a map key (Ineq holds a slice, so the interface value
	// itself is not always comparable). Two atoms are structurally equal
	// iff their Key values match.
	Key() string
}

// Term is one (coefficient, variable) summand of an Ineq.
type Term struct {
	Coeff ratio.Ratio
	Var   string
}

// Ineq is the linear inequality atom Σ cᵢ·xᵢ ≥ bound (spec §3). Terms is
// kept sorted by Var name so that two structurally-equal inequalities
// (same terms, same bound, any input order) intern to the same key.
type Ineq struct {
	Terms []Term
	Bound ratio.Ratio
}

func (Ineq) atom() {}

// Key implements Atom.
func (i Ineq) Key() string { return key(i) }

func (i Ineq) String() string {
	var b strings.Builder
	for n, t := range i.Terms {
		if n > 0 {
			b.WriteString(" + ")
		}
		fmt.Fprintf(&b, "%s*%s", t.Coeff, t.Var)
	}
	fmt.Fprintf(&b, " >= %s", i.Bound)
	return b.String()
}

// NewIneq builds an Ineq, canonicalizing term order and merging duplicate
// variables by summing their coefficients, so that structurally equivalent
// inequalities intern identically regardless of how the caller listed
// terms.
func NewIneq(terms []Term, bound ratio.Ratio) Ineq {
	byVar := make(map[string]ratio.Ratio, len(terms))
	var order []string
	for _, t := range terms {
		if _, ok := byVar[t.Var]; !ok {
			order = append(order, t.Var)
		}
		byVar[t.Var] = byVar[t.Var].Add(t.Coeff)
	}
	sort.Strings(order)
	merged := make([]Term, 0, len(order))
	for _, v := range order {
		c := byVar[v]
		if c.IsZero() {
			continue
		}
		merged = append(merged, Term{Coeff: c, Var: v})
	}
	return Ineq{Terms: merged, Bound: bound}
}

// Negate returns the atom for the strict complement of i, i.e. the
// inequality asserting "not (Σcᵢxᵢ ≥ bound)", which is "Σ(-cᵢ)xᵢ ≥ -bound +
// ε" (spec §4.3: strict inequalities are encoded by weakening to ≥ b+ε).
func (i Ineq) Negate(eps ratio.Ratio) Ineq {
	neg := make([]Term, len(i.Terms))
	for n, t := range i.Terms {
		neg[n] = Term{Coeff: t.Coeff.Neg(), Var: t.Var}
	}
	return NewIneq(neg, i.Bound.Neg().Add(eps))
}

// Relu is the rectifier atom y = max(0, x) (spec §3).
type Relu struct {
	X, Y string
}

func (Relu) atom() {}

// Key implements Atom.
func (r Relu) Key() string { return key(r) }

func (r Relu) String() string { return fmt.Sprintf("relu(%s, %s)", r.X, r.Y) }

// key produces a canonical, comparable representation of an atom so the
// package-level interner (see Interner in ast.go) can recognize structural
// duplicates regardless of how they were constructed.
func key(a Atom) string {
	switch v := a.(type) {
	case Ineq:
		var b strings.Builder
		b.WriteString("ineq:")
		for _, t := range v.Terms {
			fmt.Fprintf(&b, "%s*%s;", t.Coeff, t.Var)
		}
		fmt.Fprintf(&b, ">=%s", v.Bound)
		return b.String()
	case Relu:
		return fmt.Sprintf("relu:%s,%s", v.X, v.Y)
	default:
		panic(fmt.Sprintf("ast: unsupported atom type %T", a))
	}
}
