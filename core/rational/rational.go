// Package rational provides an exact fraction type for musical duration
// arithmetic. Every duration computation in the score model goes through
// Rational so that measure totals can be checked exactly; floating point
// appears only in the final Float64 projection used for reporting.
package rational

import (
	"fmt"
)

// Rational is an exact fraction, always stored in lowest terms with a
// positive denominator. The zero value is 0/1 and is valid: an unset
// denominator is read as 1 everywhere, so Rational{} and Zero behave
// identically.
type Rational struct {
	// Num is the signed numerator.
	Num int64 `json:"num"`

	// Den is the denominator, always > 0 after normalization.
	Den int64 `json:"den"`
}

// den is the effective denominator, mapping the zero value's unset
// denominator to 1.
func (r Rational) den() int64 {
	if r.Den == 0 {
		return 1
	}
	return r.Den
}

// Zero is the rational number 0/1.
var Zero = Rational{Num: 0, Den: 1}

// New creates a normalized Rational from a numerator and denominator.
// A zero denominator returns an error; sign is carried by the numerator.
func New(num, den int64) (Rational, error) {
	if den == 0 {
		return Zero, fmt.Errorf("rational: zero denominator (num=%d)", num)
	}
	return normalize(num, den), nil
}

// MustNew is New for compile-time-known operands. It panics on a zero
// denominator and is intended for constants and tests.
func MustNew(num, den int64) Rational {
	r, err := New(num, den)
	if err != nil {
		panic(err)
	}
	return r
}

// FromInt creates a Rational from an integer.
func FromInt(n int64) Rational {
	return Rational{Num: n, Den: 1}
}

// normalize reduces num/den to lowest terms and moves the sign to the
// numerator. den must be nonzero.
func normalize(num, den int64) Rational {
	if den < 0 {
		num, den = -num, -den
	}
	if num == 0 {
		return Rational{Num: 0, Den: 1}
	}
	g := gcd(abs(num), den)
	return Rational{Num: num / g, Den: den / g}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Add returns r + o.
func (r Rational) Add(o Rational) Rational {
	return normalize(r.Num*o.den()+o.Num*r.den(), r.den()*o.den())
}

// Sub returns r - o.
func (r Rational) Sub(o Rational) Rational {
	return normalize(r.Num*o.den()-o.Num*r.den(), r.den()*o.den())
}

// Mul returns r * o.
func (r Rational) Mul(o Rational) Rational {
	return normalize(r.Num*o.Num, r.den()*o.den())
}

// Div returns r / o. Dividing by zero returns an error.
func (r Rational) Div(o Rational) (Rational, error) {
	if o.Num == 0 {
		return Zero, fmt.Errorf("rational: division by zero (%s / 0)", r)
	}
	return normalize(r.Num*o.den(), r.den()*o.Num), nil
}

// Cmp compares r and o, returning -1, 0, or +1. Rational ordering is a
// total order.
func (r Rational) Cmp(o Rational) int {
	lhs := r.Num * o.den()
	rhs := o.Num * r.den()
	switch {
	case lhs < rhs:
		return -1
	case lhs > rhs:
		return 1
	default:
		return 0
	}
}

// Equal reports whether r and o represent the same value.
func (r Rational) Equal(o Rational) bool {
	return r.Cmp(o) == 0
}

// IsZero reports whether r is zero.
func (r Rational) IsZero() bool {
	return r.Num == 0
}

// IsNegative reports whether r is below zero.
func (r Rational) IsNegative() bool {
	return r.Num < 0
}

// Float64 returns the lossy floating-point projection of r. It exists for
// reporting only; no arithmetic path may consume its result.
func (r Rational) Float64() float64 {
	return float64(r.Num) / float64(r.den())
}

// Divisions converts r (a quarter-note-relative value) into integer ticks
// at the given divisions-per-quarter resolution. The second return is true
// when the conversion is exact; otherwise the result is rounded to nearest
// and the caller is expected to surface aggregate error through the
// semantic validator.
func (r Rational) Divisions(perQuarter int) (int, bool) {
	if perQuarter <= 0 {
		return 0, false
	}
	den := r.den()
	num := r.Num * int64(perQuarter)
	if num%den == 0 {
		return int(num / den), true
	}
	// Round half away from zero.
	q := num / den
	rem := num % den
	if abs(rem)*2 >= den {
		if num < 0 {
			q--
		} else {
			q++
		}
	}
	return int(q), false
}

// String returns "num/den", or just "num" for integers.
func (r Rational) String() string {
	if r.den() == 1 {
		return fmt.Sprintf("%d", r.Num)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}
