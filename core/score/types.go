// Package score defines the assembled score graph: Score, Part, Measure, and
// the note elements they own. Entities are held by opaque identifier and
// looked up through the owning container; spanners reference notes by ID and
// never hold direct links, which keeps the graph acyclic.
package score

import (
	"github.com/google/uuid"

	"github.com/FocuswithJustin/Partitura/core/duration"
	"github.com/FocuswithJustin/Partitura/core/pitch"
)

// NoteID is an opaque note identifier.
type NoteID string

// NewNoteID returns a fresh unique note identifier.
func NewNoteID() NoteID {
	return NoteID(uuid.New().String())
}

// NoteType distinguishes the three kinds of note element.
type NoteType string

// Note type constants.
const (
	NotePitched   NoteType = "pitched"
	NoteUnpitched NoteType = "unpitched"
	NoteRest      NoteType = "rest"
)

// validNoteTypes is the set of valid note types.
var validNoteTypes = map[NoteType]bool{
	NotePitched:   true,
	NoteUnpitched: true,
	NoteRest:      true,
}

// IsValid returns true if the note type is valid.
func (n NoteType) IsValid() bool {
	return validNoteTypes[n]
}

// StartStop is the polarity of a spanner marker.
type StartStop string

// Marker polarity constants.
const (
	Start StartStop = "start"
	Stop  StartStop = "stop"
)

// SlurMarker is an unresolved slur start/stop attached to a note at parse
// time. Number distinguishes concurrently open slurs (1-6).
type SlurMarker struct {
	Type      StartStop `json:"type"`
	Number    int       `json:"number"`
	Placement string    `json:"placement,omitempty"`
}

// TupletMarker is an unresolved tuplet bracket start/stop. The ratio rides
// on the start marker.
type TupletMarker struct {
	Type        StartStop `json:"type"`
	Number      int       `json:"number"`
	ActualNotes int       `json:"actual_notes,omitempty"`
	NormalNotes int       `json:"normal_notes,omitempty"`
}

// BeamValue is the per-level beam state of a note.
type BeamValue string

// Beam value constants.
const (
	BeamBegin       BeamValue = "begin"
	BeamContinue    BeamValue = "continue"
	BeamEnd         BeamValue = "end"
	BeamForwardHook BeamValue = "forward hook"
	BeamBackHook    BeamValue = "backward hook"
)

// Beam is one beam level entry on a note. Level 1 is the primary
// (eighth-note) beam; higher levels are secondary beams.
type Beam struct {
	Level int       `json:"level"`
	Value BeamValue `json:"value"`
}

// Note is a single note, rest, or unpitched percussion event. Notes never
// embed other notes; a chord is a run of notes sharing voice, staff, and
// duration, with every note after the first flagged ChordMember.
type Note struct {
	// ID is the opaque note identifier.
	ID NoteID `json:"id"`

	// Type is pitched, unpitched, or rest.
	Type NoteType `json:"type"`

	// Pitch is present for pitched notes; for unpitched notes it carries
	// the display position. Nil for rests.
	Pitch *pitch.Pitch `json:"pitch,omitempty"`

	// Duration is the notated duration (base, dots, tuplet ratios).
	Duration duration.Duration `json:"duration"`

	// DurationDivisions is the duration in integer ticks at the prevailing
	// divisions-per-quarter grid.
	DurationDivisions int `json:"duration_divisions"`

	// Voice the note belongs to (1-indexed).
	Voice int `json:"voice"`

	// Staff the note is placed on (1-indexed).
	Staff int `json:"staff"`

	// Grace marks a grace note; grace notes contribute zero to measure
	// duration sums.
	Grace bool `json:"grace,omitempty"`

	// ChordMember marks a note sounding together with the preceding note.
	ChordMember bool `json:"chord_member,omitempty"`

	// Ties are the unresolved tie markers (start/stop) on this note.
	Ties []StartStop `json:"ties,omitempty"`

	// Slurs are the unresolved slur markers on this note.
	Slurs []SlurMarker `json:"slurs,omitempty"`

	// Tuplets are the unresolved tuplet bracket markers on this note.
	Tuplets []TupletMarker `json:"tuplets,omitempty"`

	// Beams are the per-level beam states of this note.
	Beams []Beam `json:"beams,omitempty"`

	// Articulations are articulation names (staccato, accent, ...).
	Articulations []string `json:"articulations,omitempty"`

	// Ornaments are ornament names (trill-mark, mordent, ...).
	Ornaments []string `json:"ornaments,omitempty"`
}

// IsRest returns true for rest elements.
func (n *Note) IsRest() bool {
	return n.Type == NoteRest
}

// BeamLevel returns the beam value at the given level and whether the note
// carries that level at all.
func (n *Note) BeamLevel(level int) (BeamValue, bool) {
	for _, b := range n.Beams {
		if b.Level == level {
			return b.Value, true
		}
	}
	return "", false
}

// TimeSignature is a measure's meter.
type TimeSignature struct {
	Beats    int `json:"beats"`
	BeatType int `json:"beat_type"`
}

// KeySignature is a measure's key, expressed as a count of sharps (positive)
// or flats (negative) on the circle of fifths.
type KeySignature struct {
	Fifths int    `json:"fifths"`
	Mode   string `json:"mode,omitempty"`
}

// Clef is a staff clef assignment.
type Clef struct {
	Sign  string `json:"sign"`
	Line  int    `json:"line,omitempty"`
	Staff int    `json:"staff,omitempty"`
}

// Direction is a performance direction (dynamics, words, wedges). It is
// anchored before the note at NoteIndex within its measure so document order
// reproduces on export.
type Direction struct {
	Kind      string `json:"kind"`
	Text      string `json:"text,omitempty"`
	Placement string `json:"placement,omitempty"`
	Voice     int    `json:"voice,omitempty"`
	Staff     int    `json:"staff,omitempty"`
	NoteIndex int    `json:"note_index"`
}

// Barline is an explicit barline within or at the edge of a measure.
type Barline struct {
	Location string `json:"location"`
	Style    string `json:"style,omitempty"`
	Repeat   string `json:"repeat,omitempty"`
}

// Location pins a note inside the score for reporting: which measure, which
// note slot within the measure, and the note's voice and staff.
type Location struct {
	MeasureIndex int `json:"measure_index"`
	NoteIndex    int `json:"note_index"`
	Voice        int `json:"voice"`
	Staff        int `json:"staff"`
}
