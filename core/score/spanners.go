package score

import (
	"github.com/FocuswithJustin/Partitura/core/duration"
	"github.com/FocuswithJustin/Partitura/core/pitch"
)

// CompletedTie is a resolved tie connecting two same-pitch notes.
type CompletedTie struct {
	// StartNote and EndNote identify the tied notes.
	StartNote NoteID `json:"start_note"`
	EndNote   NoteID `json:"end_note"`

	// Start and End locate the tied notes in the part.
	Start Location `json:"start"`
	End   Location `json:"end"`

	// Pitch is the shared pitch of both notes.
	Pitch pitch.Pitch `json:"pitch"`

	// CrossesMeasure is true when the tie spans a barline.
	CrossesMeasure bool `json:"crosses_measure"`
}

// SlurPair is a resolved slur between two notes.
type SlurPair struct {
	// Number is the slur slot (1-6) the pair was matched under.
	Number int `json:"number"`

	StartNote NoteID   `json:"start_note"`
	EndNote   NoteID   `json:"end_note"`
	Start     Location `json:"start"`
	End       Location `json:"end"`

	// Placement is above/below, carried from the start marker.
	Placement string `json:"placement,omitempty"`
}

// Tuplet is a resolved tuplet bracket with its full member list.
type Tuplet struct {
	// Number is the bracket slot the tuplet was matched under.
	Number int `json:"number"`

	// Ratio is the actual:normal ratio.
	Ratio duration.TupletRatio `json:"ratio"`

	// NoteIDs lists every member note in document order.
	NoteIDs []NoteID `json:"note_ids"`

	Start Location `json:"start"`
	End   Location `json:"end"`
}

// BeamGroup is a maximal run of consecutive beamed notes in one voice and
// staff. Level 1 is the primary beam; each higher level must cover a
// note-index subrange of the level below.
type BeamGroup struct {
	Voice int `json:"voice"`
	Staff int `json:"staff"`

	// Levels maps beam level to the member notes at that level, in document
	// order.
	Levels map[int][]NoteID `json:"levels"`
}

// PrimaryNotes returns the level-1 member list.
func (g *BeamGroup) PrimaryNotes() []NoteID {
	return g.Levels[1]
}

// MaxLevel returns the deepest beam level present in the group.
func (g *BeamGroup) MaxLevel() int {
	max := 0
	for level := range g.Levels {
		if level > max {
			max = level
		}
	}
	return max
}
