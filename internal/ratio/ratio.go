// Package ratio provides the exact-rational scalar type used by the
// Simplex and ReLUplex solvers. Pivoting and bound comparisons need exact
// arithmetic (spec §9: "Exact rationals are strongly preferred for
// correctness of pivoting and bound comparisons"), so this wraps
// math/big.Rat rather than a floating epsilon scheme.
package ratio

import (
	"fmt"
	"math/big"
)

// A Ratio is an exact rational number. The zero value is 0.
type Ratio struct {
	r big.Rat
}

// Zero is the additive identity.
var Zero = Ratio{}

// FromInt64 builds a Ratio equal to n.
func FromInt64(n int64) Ratio {
	var z Ratio
	z.r.SetInt64(n)
	return z
}

// FromFloat64 builds a Ratio approximating f exactly as a big.Rat would
// (f's IEEE-754 bit pattern is represented exactly; no float epsilon is
// introduced). Used when ingesting atom coefficients and bounds given as
// decimal literals (see parseNumber in cmd/reluplex).
func FromFloat64(f float64) Ratio {
	var z Ratio
	if z.r.SetFloat64(f) == nil {
		panic(fmt.Sprintf("ratio: %v is not representable (NaN or Inf)", f))
	}
	return z
}

// FromFrac builds num/den.
func FromFrac(num, den int64) Ratio {
	var z Ratio
	z.r.SetFrac64(num, den)
	return z
}

func (a Ratio) Add(b Ratio) Ratio {
	var z Ratio
	z.r.Add(&a.r, &b.r)
	return z
}

func (a Ratio) Sub(b Ratio) Ratio {
	var z Ratio
	z.r.Sub(&a.r, &b.r)
	return z
}

func (a Ratio) Mul(b Ratio) Ratio {
	var z Ratio
	z.r.Mul(&a.r, &b.r)
	return z
}

// Div returns a/b. It panics if b is zero; callers are expected to have
// already rejected zero pivot coefficients (the Simplex column-selection
// step never selects a zero aij as a pivot).
func (a Ratio) Div(b Ratio) Ratio {
	if b.Sign() == 0 {
		panic("ratio: division by zero")
	}
	var z Ratio
	z.r.Quo(&a.r, &b.r)
	return z
}

func (a Ratio) Neg() Ratio {
	var z Ratio
	z.r.Neg(&a.r)
	return z
}

// Sign returns -1, 0 or +1.
func (a Ratio) Sign() int { return a.r.Sign() }

// Cmp returns -1, 0 or +1 as a compares less than, equal to, or greater
// than b.
func (a Ratio) Cmp(b Ratio) int { return a.r.Cmp(&b.r) }

func (a Ratio) Less(b Ratio) bool    { return a.Cmp(b) < 0 }
func (a Ratio) LessEq(b Ratio) bool  { return a.Cmp(b) <= 0 }
func (a Ratio) Greater(b Ratio) bool { return a.Cmp(b) > 0 }
func (a Ratio) Equal(b Ratio) bool   { return a.Cmp(b) == 0 }
func (a Ratio) IsZero() bool         { return a.Sign() == 0 }

// Abs returns the absolute value of a.
func (a Ratio) Abs() Ratio {
	if a.Sign() < 0 {
		return a.Neg()
	}
	return a
}

// Float64 returns the nearest float64 to a, for display purposes only
// (assignments returned to callers per §6 are maps to real numbers; a
// float64 is the natural Go representation of "real").
func (a Ratio) Float64() float64 {
	f, _ := a.r.Float64()
	return f
}

func (a Ratio) String() string { return a.r.RatString() }

// GoString supports "%#v" formatting used by kr/pretty in test failure
// dumps.
func (a Ratio) GoString() string { return "ratio.Ratio(" + a.r.RatString() + ")" }
