// Package spanner resolves start/stop markers scattered across a part's
// notes into validated, cross-referenced relationships: ties, slurs,
// tuplets, and beam groups. Resolution is a single pass in document order;
// a stop can only match a start seen earlier in the same pass. Open records
// are scoped to one part and fully drained (resolved or reported orphaned)
// before the part is returned.
package spanner

import (
	"fmt"

	"github.com/FocuswithJustin/Partitura/core/pitch"
	"github.com/FocuswithJustin/Partitura/core/score"
)

// Kind identifies the spanner category.
type Kind string

// Spanner kind constants.
const (
	KindTie    Kind = "tie"
	KindSlur   Kind = "slur"
	KindTuplet Kind = "tuplet"
	KindBeam   Kind = "beam"
)

// ViolationKind classifies a spanner resolution defect.
type ViolationKind string

// Violation kind constants.
const (
	// OrphanedStart is a start marker never matched by end of part.
	OrphanedStart ViolationKind = "orphaned_start"

	// OrphanedStop is a stop marker with no pending start.
	OrphanedStop ViolationKind = "orphaned_stop"

	// DuplicateStart is a start marker while the same key is already open.
	DuplicateStart ViolationKind = "duplicate_start"

	// PitchMismatch is a tie stop whose pitch spelling differs from the
	// pending start (an enharmonic mismatch is a defect, not a match).
	PitchMismatch ViolationKind = "pitch_mismatch"

	// LevelGap is a secondary beam present without the level below it.
	LevelGap ViolationKind = "level_gap"
)

// Violation reports a resolution defect. Violations never abort resolution;
// the surrounding part remains usable.
type Violation struct {
	Kind     ViolationKind  `json:"kind"`
	Spanner  Kind           `json:"spanner"`
	NoteID   score.NoteID   `json:"note_id,omitempty"`
	Location score.Location `json:"location"`
	Detail   string         `json:"detail,omitempty"`
}

// String renders the violation for reports.
func (v Violation) String() string {
	s := fmt.Sprintf("%s %s at measure %d note %d (voice %d, staff %d)",
		v.Spanner, v.Kind,
		v.Location.MeasureIndex, v.Location.NoteIndex,
		v.Location.Voice, v.Location.Staff)
	if v.Detail != "" {
		s += ": " + v.Detail
	}
	return s
}

// tieKey identifies a pending tie: ties connect same-pitch notes within one
// voice and staff.
type tieKey struct {
	pitch string
	voice int
	staff int
}

// pendingTie is the transient record between a tie start and its stop.
type pendingTie struct {
	noteID   score.NoteID
	location score.Location
	pitch    pitch.Pitch
}

// slurKey identifies an open slur: numbered slot 1-6 within one voice.
type slurKey struct {
	number int
	voice  int
}

// slurStart is the transient record between a slur start and its stop.
type slurStart struct {
	noteID    score.NoteID
	location  score.Location
	placement string
}

// tupletStart accumulates member notes between a tuplet start and its stop.
type tupletStart struct {
	number      int
	actualNotes int
	normalNotes int
	voice       int
	location    score.Location
	noteIDs     []score.NoteID
}
