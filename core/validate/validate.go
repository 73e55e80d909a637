// Package validate checks a fully assembled score graph against musical
// well-formedness invariants. The validator is stateless and pure: it reads
// the graph, mutates nothing, and returns typed violations. Violations are
// data, not errors; a score with violations is still usable.
package validate

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/Partitura/core/score"
)

// Kind classifies a semantic violation.
type Kind string

// Violation kind constants.
const (
	// DurationSum is a measure/voice whose note divisions do not add up to
	// the expected measure length.
	DurationSum Kind = "duration_sum"

	// TiePitch is a completed tie connecting notes of different pitch.
	TiePitch Kind = "tie_pitch"

	// BeamContinuity is a beam group with fewer than two primary notes, or
	// a secondary level outside the primary level's note range.
	BeamContinuity Kind = "beam_continuity"

	// ChordCoherence is a chord whose members disagree on voice, staff, or
	// duration.
	ChordCoherence Kind = "chord_coherence"

	// TupletRatio is a tuplet with a degenerate or pathological ratio.
	TupletRatio Kind = "tuplet_ratio"

	// StaffNumber is a note placed on a staff outside the declared range.
	StaffNumber Kind = "staff_number"

	// MissingNote is a spanner or measure referencing a note ID that does
	// not exist in the part.
	MissingNote Kind = "missing_note"
)

// Violation is one semantic defect with a human-locatable context.
type Violation struct {
	Kind         Kind         `json:"kind"`
	PartID       string       `json:"part_id,omitempty"`
	PartIndex    int          `json:"part_index"`
	MeasureIndex int          `json:"measure_index,omitempty"`
	Voice        int          `json:"voice,omitempty"`
	Staff        int          `json:"staff,omitempty"`
	NoteID       score.NoteID `json:"note_id,omitempty"`
	Detail       string       `json:"detail"`
}

// String renders the violation for reports.
func (v Violation) String() string {
	return fmt.Sprintf("[%s] part %s measure %d voice %d: %s",
		v.Kind, v.PartID, v.MeasureIndex, v.Voice, v.Detail)
}

// Check is a single named invariant check over one part.
type Check struct {
	Name string
	Fn   func(partIndex int, p *score.Part) []Violation
}

// Validator runs a configurable set of independent checks.
type Validator struct {
	checks []Check
}

// New creates a validator with the full default check set.
func New() *Validator {
	return &Validator{checks: DefaultChecks()}
}

// NewWithChecks creates a validator running only the given checks.
func NewWithChecks(checks ...Check) *Validator {
	return &Validator{checks: checks}
}

// DefaultChecks returns every built-in check.
func DefaultChecks() []Check {
	return []Check{
		{Name: "duration-sum", Fn: checkDurationSums},
		{Name: "tie", Fn: checkTies},
		{Name: "beam", Fn: checkBeams},
		{Name: "chord", Fn: checkChords},
		{Name: "tuplet", Fn: checkTuplets},
		{Name: "staff-number", Fn: checkStaffNumbers},
	}
}

// Result is the outcome of validating one score.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// OK returns true when no violations were found.
func (r *Result) OK() bool {
	return len(r.Violations) == 0
}

// CountKind returns the number of violations of a given kind.
func (r *Result) CountKind(kind Kind) int {
	n := 0
	for _, v := range r.Violations {
		if v.Kind == kind {
			n++
		}
	}
	return n
}

// Report renders a text summary suitable for a test runner or CLI.
func (r *Result) Report() string {
	if r.OK() {
		return "validation: OK (0 violations)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "validation: %d violation(s)\n", len(r.Violations))
	for _, v := range r.Violations {
		b.WriteString("  ")
		b.WriteString(v.String())
		b.WriteString("\n")
	}
	return b.String()
}

// Validate runs all configured checks over every part of the score.
func (v *Validator) Validate(s *score.Score) *Result {
	result := &Result{}
	for pi, p := range s.Parts {
		for _, check := range v.checks {
			result.Violations = append(result.Violations, check.Fn(pi, p)...)
		}
	}
	return result
}

// Validate runs the default validator. Convenience wrapper.
func Validate(s *score.Score) *Result {
	return New().Validate(s)
}
