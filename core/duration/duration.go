// Package duration models notated durations: a base duration class, a dot
// count, and an optional stack of tuplet ratios. All derived values are
// computed in exact rational arithmetic.
package duration

import (
	"fmt"

	"github.com/FocuswithJustin/Partitura/core/rational"
)

// Base is a notated duration class.
type Base string

// Base duration constants, longest to shortest.
const (
	BaseMaxima  Base = "maxima"
	BaseLonga   Base = "longa"
	BaseBreve   Base = "breve"
	BaseWhole   Base = "whole"
	BaseHalf    Base = "half"
	BaseQuarter Base = "quarter"
	BaseEighth  Base = "eighth"
	Base16th    Base = "16th"
	Base32nd    Base = "32nd"
	Base64th    Base = "64th"
	Base128th   Base = "128th"
	Base256th   Base = "256th"
)

// quarterValues maps each base to its quarter-note-relative value.
var quarterValues = map[Base]rational.Rational{
	BaseMaxima:  rational.FromInt(32),
	BaseLonga:   rational.FromInt(16),
	BaseBreve:   rational.FromInt(8),
	BaseWhole:   rational.FromInt(4),
	BaseHalf:    rational.FromInt(2),
	BaseQuarter: rational.FromInt(1),
	BaseEighth:  rational.MustNew(1, 2),
	Base16th:    rational.MustNew(1, 4),
	Base32nd:    rational.MustNew(1, 8),
	Base64th:    rational.MustNew(1, 16),
	Base128th:   rational.MustNew(1, 32),
	Base256th:   rational.MustNew(1, 64),
}

// Bases lists all base duration classes from longest to shortest.
var Bases = []Base{
	BaseMaxima, BaseLonga, BaseBreve, BaseWhole, BaseHalf, BaseQuarter,
	BaseEighth, Base16th, Base32nd, Base64th, Base128th, Base256th,
}

// IsValid returns true if the base is a known duration class.
func (b Base) IsValid() bool {
	_, ok := quarterValues[b]
	return ok
}

// QuarterValue returns the quarter-note-relative value of the base.
// Unknown bases return zero.
func (b Base) QuarterValue() rational.Rational {
	return quarterValues[b]
}

// ParseBase parses a MusicXML note-type name into a Base.
func ParseBase(s string) (Base, error) {
	b := Base(s)
	if !b.IsValid() {
		return "", fmt.Errorf("duration: unknown base %q", s)
	}
	return b, nil
}

// TupletRatio is an actual:normal tuplet ratio: actual notes played in the
// time of normal notes.
type TupletRatio struct {
	// Actual is the number of notes actually played.
	Actual int `json:"actual"`

	// Normal is the number of notes the actual notes occupy the time of.
	Normal int `json:"normal"`
}

// Multiplier returns the duration multiplier normal/actual.
func (t TupletRatio) Multiplier() (rational.Rational, error) {
	if t.Actual <= 0 || t.Normal <= 0 {
		return rational.Zero, fmt.Errorf("duration: invalid tuplet ratio %d:%d", t.Actual, t.Normal)
	}
	return rational.New(int64(t.Normal), int64(t.Actual))
}

// Duration is a fully specified notated duration.
type Duration struct {
	// Base is the duration class (whole, quarter, ...).
	Base Base `json:"base"`

	// Dots is the augmentation dot count. Practical range is 0-3.
	Dots int `json:"dots,omitempty"`

	// Tuplets is the tuplet ratio stack; nested tuplets multiply, outermost
	// first.
	Tuplets []TupletRatio `json:"tuplets,omitempty"`
}

// New creates a Duration with no tuplet modification.
func New(base Base, dots int) (Duration, error) {
	if !base.IsValid() {
		return Duration{}, fmt.Errorf("duration: unknown base %q", base)
	}
	if dots < 0 || dots > 3 {
		return Duration{}, fmt.Errorf("duration: dot count %d out of range", dots)
	}
	return Duration{Base: base, Dots: dots}, nil
}

// QuarterValue computes the exact quarter-note-relative value:
// base value x (2 - 2^-dots) x product of normal/actual for each tuplet.
func (d Duration) QuarterValue() (rational.Rational, error) {
	if !d.Base.IsValid() {
		return rational.Zero, fmt.Errorf("duration: unknown base %q", d.Base)
	}
	if d.Dots < 0 {
		return rational.Zero, fmt.Errorf("duration: negative dot count %d", d.Dots)
	}

	v := d.Base.QuarterValue()
	v = v.Mul(dotFactor(d.Dots))

	for _, t := range d.Tuplets {
		m, err := t.Multiplier()
		if err != nil {
			return rational.Zero, err
		}
		v = v.Mul(m)
	}
	return v, nil
}

// dotFactor returns (2 - 2^-dots) as an exact rational: 1, 3/2, 7/4, 15/8...
func dotFactor(dots int) rational.Rational {
	num := int64(1)<<(dots+1) - 1
	den := int64(1) << dots
	return rational.MustNew(num, den)
}

// Divisions converts the duration into integer ticks at the given
// divisions-per-quarter resolution. The second return is true when exact.
func (d Duration) Divisions(perQuarter int) (int, bool, error) {
	v, err := d.QuarterValue()
	if err != nil {
		return 0, false, err
	}
	ticks, exact := v.Divisions(perQuarter)
	return ticks, exact, nil
}

// String renders the duration for reports, e.g. "quarter.", "eighth 3:2".
func (d Duration) String() string {
	s := string(d.Base)
	for i := 0; i < d.Dots; i++ {
		s += "."
	}
	for _, t := range d.Tuplets {
		s += fmt.Sprintf(" %d:%d", t.Actual, t.Normal)
	}
	return s
}
