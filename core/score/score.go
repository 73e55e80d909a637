package score

import (
	"fmt"

	"github.com/FocuswithJustin/Partitura/core/rational"
)

// Measure is one measure of one part. It owns its element order; notes are
// stored on the part and referenced here by ID.
type Measure struct {
	// Number is the printed measure number (usually 1-indexed, pickup
	// measures may be 0).
	Number int `json:"number"`

	// Divisions is the divisions-per-quarter grid in effect. Zero means
	// "inherited from the previous measure".
	Divisions int `json:"divisions,omitempty"`

	// Time is the time signature in effect, if declared here.
	Time *TimeSignature `json:"time,omitempty"`

	// Key is the key signature declared here, if any.
	Key *KeySignature `json:"key,omitempty"`

	// Clefs declared in this measure.
	Clefs []Clef `json:"clefs,omitempty"`

	// StaffCount is the declared staff count, if declared here.
	StaffCount int `json:"staff_count,omitempty"`

	// NoteIDs lists the measure's notes in document order.
	NoteIDs []NoteID `json:"note_ids,omitempty"`

	// Directions anchored in this measure.
	Directions []Direction `json:"directions,omitempty"`

	// Barlines declared in this measure.
	Barlines []Barline `json:"barlines,omitempty"`
}

// Part is a single instrument part: its measures, its notes, and the
// completed spanners that were resolved over them.
type Part struct {
	// ID is the part identifier (e.g., "P1").
	ID string `json:"id"`

	// Name is the human-readable part name.
	Name string `json:"name,omitempty"`

	// Measures in document order.
	Measures []*Measure `json:"measures,omitempty"`

	// Notes holds every note of the part, keyed by ID.
	Notes map[NoteID]*Note `json:"notes,omitempty"`

	// Completed spanners, in resolution order.
	Ties    []CompletedTie `json:"ties,omitempty"`
	Slurs   []SlurPair     `json:"slurs,omitempty"`
	Tuplets []Tuplet       `json:"tuplets,omitempty"`
	Beams   []BeamGroup    `json:"beams,omitempty"`
}

// NewPart creates an empty part.
func NewPart(id, name string) *Part {
	return &Part{
		ID:    id,
		Name:  name,
		Notes: make(map[NoteID]*Note),
	}
}

// AddMeasure appends a measure and returns it.
func (p *Part) AddMeasure(number int) *Measure {
	m := &Measure{Number: number}
	p.Measures = append(p.Measures, m)
	return m
}

// AddNote registers the note with the part and appends its ID to the given
// measure. The measure index must be valid.
func (p *Part) AddNote(measureIndex int, n *Note) error {
	if measureIndex < 0 || measureIndex >= len(p.Measures) {
		return fmt.Errorf("part %s: measure index %d out of range", p.ID, measureIndex)
	}
	if n.ID == "" {
		n.ID = NewNoteID()
	}
	if _, exists := p.Notes[n.ID]; exists {
		return fmt.Errorf("part %s: duplicate note ID %s", p.ID, n.ID)
	}
	if p.Notes == nil {
		p.Notes = make(map[NoteID]*Note)
	}
	p.Notes[n.ID] = n
	p.Measures[measureIndex].NoteIDs = append(p.Measures[measureIndex].NoteIDs, n.ID)
	return nil
}

// Note looks a note up by ID.
func (p *Part) Note(id NoteID) (*Note, bool) {
	n, ok := p.Notes[id]
	return n, ok
}

// MeasureNotes returns the notes of a measure in document order. Unknown
// IDs are skipped; the validator reports them separately.
func (p *Part) MeasureNotes(measureIndex int) []*Note {
	if measureIndex < 0 || measureIndex >= len(p.Measures) {
		return nil
	}
	m := p.Measures[measureIndex]
	notes := make([]*Note, 0, len(m.NoteIDs))
	for _, id := range m.NoteIDs {
		if n, ok := p.Notes[id]; ok {
			notes = append(notes, n)
		}
	}
	return notes
}

// DivisionsAt returns the divisions-per-quarter grid in effect at the given
// measure, walking backward to the most recent declaration.
func (p *Part) DivisionsAt(measureIndex int) int {
	for i := measureIndex; i >= 0 && i < len(p.Measures); i-- {
		if p.Measures[i].Divisions > 0 {
			return p.Measures[i].Divisions
		}
	}
	return 0
}

// TimeAt returns the time signature in effect at the given measure.
func (p *Part) TimeAt(measureIndex int) *TimeSignature {
	for i := measureIndex; i >= 0 && i < len(p.Measures); i-- {
		if p.Measures[i].Time != nil {
			return p.Measures[i].Time
		}
	}
	return nil
}

// StaffCountAt returns the declared staff count in effect at the given
// measure, defaulting to 1.
func (p *Part) StaffCountAt(measureIndex int) int {
	for i := measureIndex; i >= 0 && i < len(p.Measures); i-- {
		if p.Measures[i].StaffCount > 0 {
			return p.Measures[i].StaffCount
		}
	}
	return 1
}

// ExpectedMeasureDivisions returns the expected tick total of a measure:
// time signature beats/beatType expressed in quarters, times the divisions
// grid. The second return is false when no time signature or divisions grid
// is in effect.
func (p *Part) ExpectedMeasureDivisions(measureIndex int) (int, bool) {
	ts := p.TimeAt(measureIndex)
	div := p.DivisionsAt(measureIndex)
	if ts == nil || div <= 0 || ts.BeatType <= 0 {
		return 0, false
	}
	// beats/beatType in whole notes, times 4 for quarters.
	quarters := rational.MustNew(int64(ts.Beats)*4, int64(ts.BeatType))
	ticks, exact := quarters.Divisions(div)
	return ticks, exact
}

// Score is the top-level graph.
type Score struct {
	// Title is the movement or work title.
	Title string `json:"title,omitempty"`

	// Composer attribution.
	Composer string `json:"composer,omitempty"`

	// Software is the encoding software declaration, if any.
	Software string `json:"software,omitempty"`

	// SourceFormat records where the graph came from ("MusicXML", "SMF").
	SourceFormat string `json:"source_format,omitempty"`

	// Parts in document order.
	Parts []*Part `json:"parts,omitempty"`
}

// AddPart appends a part.
func (s *Score) AddPart(p *Part) {
	s.Parts = append(s.Parts, p)
}

// Part looks a part up by ID.
func (s *Score) Part(id string) (*Part, bool) {
	for _, p := range s.Parts {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// NoteCount returns the total number of notes across all parts.
func (s *Score) NoteCount() int {
	total := 0
	for _, p := range s.Parts {
		total += len(p.Notes)
	}
	return total
}
