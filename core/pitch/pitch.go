// Package pitch models musical pitch: a step letter, a chromatic alteration
// (rational, so quarter tones survive), and an octave. Derived values cover
// MIDI numbers, frequency, and enharmonic respelling.
package pitch

import (
	"fmt"
	"math"

	"github.com/FocuswithJustin/Partitura/core/rational"
)

// Step is one of the seven letter names.
type Step string

// Step constants.
const (
	StepC Step = "C"
	StepD Step = "D"
	StepE Step = "E"
	StepF Step = "F"
	StepG Step = "G"
	StepA Step = "A"
	StepB Step = "B"
)

// stepSemitones maps each step to its semitone offset above C.
var stepSemitones = map[Step]int{
	StepC: 0, StepD: 2, StepE: 4, StepF: 5, StepG: 7, StepA: 9, StepB: 11,
}

// Steps lists the seven steps in ascending order from C.
var Steps = []Step{StepC, StepD, StepE, StepF, StepG, StepA, StepB}

// IsValid returns true if the step is one of the seven letters.
func (s Step) IsValid() bool {
	_, ok := stepSemitones[s]
	return ok
}

// Pitch is a spelled pitch. The zero value is not valid; use New or Parse.
type Pitch struct {
	// Step is the letter name.
	Step Step `json:"step"`

	// Alter is the chromatic alteration in semitones. Fractional values
	// represent microtones (1/2 is a quarter-tone sharp).
	Alter rational.Rational `json:"alter"`

	// Octave is the scientific octave number; middle C is C4.
	Octave int `json:"octave"`
}

// New creates a pitch with an integral alteration.
func New(step Step, alter int, octave int) (Pitch, error) {
	if !step.IsValid() {
		return Pitch{}, fmt.Errorf("pitch: invalid step %q", step)
	}
	return Pitch{Step: step, Alter: rational.FromInt(int64(alter)), Octave: octave}, nil
}

// NewMicrotonal creates a pitch with an exact rational alteration.
func NewMicrotonal(step Step, alter rational.Rational, octave int) (Pitch, error) {
	if !step.IsValid() {
		return Pitch{}, fmt.Errorf("pitch: invalid step %q", step)
	}
	return Pitch{Step: step, Alter: alter, Octave: octave}, nil
}

// Equal reports whether two pitches have the same spelling.
func (p Pitch) Equal(o Pitch) bool {
	return p.Step == o.Step && p.Alter.Equal(o.Alter) && p.Octave == o.Octave
}

// SoundsLike reports whether two pitches are enharmonically equivalent,
// ignoring spelling.
func (p Pitch) SoundsLike(o Pitch) bool {
	return p.chromatic().Equal(o.chromatic())
}

// chromatic returns the exact chromatic position in semitones above C-1
// (MIDI origin).
func (p Pitch) chromatic() rational.Rational {
	base := int64((p.Octave+1)*12 + stepSemitones[p.Step])
	return rational.FromInt(base).Add(p.Alter)
}

// MIDINumber returns the nearest MIDI note number. Microtonal alterations
// round to the closest semitone.
func (p Pitch) MIDINumber() int {
	c := p.chromatic()
	ticks, _ := c.Divisions(1)
	return ticks
}

// Frequency returns the equal-tempered frequency in Hz with A4 = 440.
// This is a reporting projection and uses floating point.
func (p Pitch) Frequency() float64 {
	semisFromA4 := p.chromatic().Float64() - 69.0
	return 440.0 * math.Pow(2, semisFromA4/12.0)
}

// Enharmonic returns an equivalent spelling with the accidental flipped:
// sharps respell as flats on the next step up, flats as sharps on the next
// step down. Naturals and microtonal alterations return the pitch unchanged.
func (p Pitch) Enharmonic() Pitch {
	if p.Alter.Den != 1 {
		return p
	}
	switch {
	case p.Alter.Num > 0:
		return p.respellUp()
	case p.Alter.Num < 0:
		return p.respellDown()
	default:
		return p
	}
}

func (p Pitch) respellUp() Pitch {
	idx := stepIndex(p.Step)
	next := Steps[(idx+1)%7]
	octave := p.Octave
	if next == StepC {
		octave++
	}
	gap := int64(stepSemitones[next] - stepSemitones[p.Step])
	if gap < 0 {
		gap += 12
	}
	return Pitch{Step: next, Alter: p.Alter.Sub(rational.FromInt(gap)), Octave: octave}
}

func (p Pitch) respellDown() Pitch {
	idx := stepIndex(p.Step)
	prev := Steps[(idx+6)%7]
	octave := p.Octave
	if prev == StepB {
		octave--
	}
	gap := int64(stepSemitones[p.Step] - stepSemitones[prev])
	if gap < 0 {
		gap += 12
	}
	return Pitch{Step: prev, Alter: p.Alter.Add(rational.FromInt(gap)), Octave: octave}
}

func stepIndex(s Step) int {
	for i, step := range Steps {
		if step == s {
			return i
		}
	}
	return 0
}

// String renders the pitch in scientific notation, e.g. "C4", "F#3", "Bb-1".
// Microtonal alterations render the raw alter value, e.g. "C(+1/2)4".
func (p Pitch) String() string {
	acc := ""
	switch {
	case p.Alter.Den != 1:
		sign := "+"
		if p.Alter.IsNegative() {
			sign = ""
		}
		acc = fmt.Sprintf("(%s%s)", sign, p.Alter)
	case p.Alter.Num == 1:
		acc = "#"
	case p.Alter.Num == 2:
		acc = "x"
	case p.Alter.Num == -1:
		acc = "b"
	case p.Alter.Num == -2:
		acc = "bb"
	case p.Alter.Num != 0:
		acc = fmt.Sprintf("(%+d)", p.Alter.Num)
	}
	return fmt.Sprintf("%s%s%d", p.Step, acc, p.Octave)
}
