package spanner

import (
	"testing"

	"github.com/FocuswithJustin/Partitura/core/duration"
	"github.com/FocuswithJustin/Partitura/core/pitch"
	"github.com/FocuswithJustin/Partitura/core/score"
)

// buildPart creates a part with one measure per slice of notes.
func buildPart(t *testing.T, measures ...[]*score.Note) *score.Part {
	t.Helper()
	p := score.NewPart("P1", "Test")
	for mi, notes := range measures {
		m := p.AddMeasure(mi + 1)
		if mi == 0 {
			m.Divisions = 4
			m.Time = &score.TimeSignature{Beats: 4, BeatType: 4}
		}
		for _, n := range notes {
			if err := p.AddNote(mi, n); err != nil {
				t.Fatalf("AddNote: %v", err)
			}
		}
	}
	return p
}

func note(t *testing.T, spelled string, voice int) *score.Note {
	t.Helper()
	pt, err := pitch.Parse(spelled)
	if err != nil {
		t.Fatalf("pitch.Parse(%q): %v", spelled, err)
	}
	d, err := duration.New(duration.BaseQuarter, 0)
	if err != nil {
		t.Fatalf("duration.New: %v", err)
	}
	return &score.Note{
		ID:                score.NewNoteID(),
		Type:              score.NotePitched,
		Pitch:             &pt,
		Duration:          d,
		DurationDivisions: 4,
		Voice:             voice,
		Staff:             1,
	}
}

func rest(t *testing.T, voice int) *score.Note {
	t.Helper()
	d, err := duration.New(duration.BaseQuarter, 0)
	if err != nil {
		t.Fatalf("duration.New: %v", err)
	}
	return &score.Note{
		ID:                score.NewNoteID(),
		Type:              score.NoteRest,
		Duration:          d,
		DurationDivisions: 4,
		Voice:             voice,
		Staff:             1,
	}
}

func countKind(violations []Violation, kind ViolationKind) int {
	n := 0
	for _, v := range violations {
		if v.Kind == kind {
			n++
		}
	}
	return n
}

func TestTieResolution(t *testing.T) {
	a := note(t, "C4", 1)
	a.Ties = []score.StartStop{score.Start}
	b := note(t, "C4", 1)
	b.Ties = []score.StartStop{score.Stop}

	p := buildPart(t, []*score.Note{a, b})
	violations := Resolve(p)

	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	if len(p.Ties) != 1 {
		t.Fatalf("got %d ties, want 1", len(p.Ties))
	}
	tie := p.Ties[0]
	if tie.StartNote != a.ID || tie.EndNote != b.ID {
		t.Error("tie connects the wrong notes")
	}
	if tie.CrossesMeasure {
		t.Error("tie within one measure should not cross")
	}
}

func TestTieCrossesMeasure(t *testing.T) {
	a := note(t, "C4", 1)
	a.Ties = []score.StartStop{score.Start}
	b := note(t, "C4", 1)
	b.Ties = []score.StartStop{score.Stop}

	p := buildPart(t, []*score.Note{a}, []*score.Note{b})
	violations := Resolve(p)

	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	if len(p.Ties) != 1 {
		t.Fatalf("got %d ties, want 1", len(p.Ties))
	}
	if !p.Ties[0].CrossesMeasure {
		t.Error("tie across a barline should set CrossesMeasure")
	}
}

func TestTieOrphanedStart(t *testing.T) {
	a := note(t, "C4", 1)
	a.Ties = []score.StartStop{score.Start}

	p := buildPart(t, []*score.Note{a})
	violations := Resolve(p)

	if got := countKind(violations, OrphanedStart); got != 1 {
		t.Errorf("got %d orphaned starts, want 1 (violations: %v)", got, violations)
	}
	if len(p.Ties) != 0 {
		t.Error("an orphaned start must not produce a completed tie")
	}
}

func TestTieOrphanedStop(t *testing.T) {
	a := note(t, "C4", 1)
	a.Ties = []score.StartStop{score.Stop}

	p := buildPart(t, []*score.Note{a})
	violations := Resolve(p)

	if got := countKind(violations, OrphanedStop); got != 1 {
		t.Errorf("got %d orphaned stops, want 1 (violations: %v)", got, violations)
	}
}

func TestTieDuplicateStart(t *testing.T) {
	a := note(t, "C4", 1)
	a.Ties = []score.StartStop{score.Start}
	b := note(t, "C4", 1)
	b.Ties = []score.StartStop{score.Start}

	p := buildPart(t, []*score.Note{a, b})
	violations := Resolve(p)

	if got := countKind(violations, DuplicateStart); got != 1 {
		t.Errorf("got %d duplicate starts, want 1", got)
	}
}

func TestTieEnharmonicMismatch(t *testing.T) {
	a := note(t, "C#4", 1)
	a.Ties = []score.StartStop{score.Start}
	b := note(t, "Db4", 1)
	b.Ties = []score.StartStop{score.Stop}

	p := buildPart(t, []*score.Note{a, b})
	violations := Resolve(p)

	if got := countKind(violations, PitchMismatch); got != 1 {
		t.Errorf("got %d pitch mismatches, want 1 (violations: %v)", got, violations)
	}
	if len(p.Ties) != 0 {
		t.Error("an enharmonic mismatch must not be silently accepted")
	}
	// The pending record was consumed; no extra orphan report.
	if got := countKind(violations, OrphanedStart); got != 0 {
		t.Errorf("enharmonic mismatch should consume the pending tie, got %d orphans", got)
	}
}

func TestTieVoiceSeparation(t *testing.T) {
	// Same pitch, different voices: two independent ties.
	a1 := note(t, "C4", 1)
	a1.Ties = []score.StartStop{score.Start}
	a2 := note(t, "C4", 2)
	a2.Ties = []score.StartStop{score.Start}
	b1 := note(t, "C4", 1)
	b1.Ties = []score.StartStop{score.Stop}
	b2 := note(t, "C4", 2)
	b2.Ties = []score.StartStop{score.Stop}

	p := buildPart(t, []*score.Note{a1, a2}, []*score.Note{b1, b2})
	violations := Resolve(p)

	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	if len(p.Ties) != 2 {
		t.Fatalf("got %d ties, want 2", len(p.Ties))
	}
}

func TestSlurResolution(t *testing.T) {
	a := note(t, "C4", 1)
	a.Slurs = []score.SlurMarker{{Type: score.Start, Number: 1, Placement: "above"}}
	mid := note(t, "D4", 1)
	b := note(t, "E4", 1)
	b.Slurs = []score.SlurMarker{{Type: score.Stop, Number: 1}}

	p := buildPart(t, []*score.Note{a, mid, b})
	violations := Resolve(p)

	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	if len(p.Slurs) != 1 {
		t.Fatalf("got %d slurs, want 1", len(p.Slurs))
	}
	slur := p.Slurs[0]
	if slur.StartNote != a.ID || slur.EndNote != b.ID {
		t.Error("slur connects the wrong notes")
	}
	if slur.Placement != "above" {
		t.Errorf("placement = %q, want above", slur.Placement)
	}
}

func TestSlurNesting(t *testing.T) {
	// Slur 1 spans the phrase; slur 2 nests inside it.
	n1 := note(t, "C4", 1)
	n1.Slurs = []score.SlurMarker{{Type: score.Start, Number: 1}}
	n2 := note(t, "D4", 1)
	n2.Slurs = []score.SlurMarker{{Type: score.Start, Number: 2}}
	n3 := note(t, "E4", 1)
	n3.Slurs = []score.SlurMarker{{Type: score.Stop, Number: 2}}
	n4 := note(t, "F4", 1)
	n4.Slurs = []score.SlurMarker{{Type: score.Stop, Number: 1}}

	p := buildPart(t, []*score.Note{n1, n2, n3, n4})
	violations := Resolve(p)

	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	if len(p.Slurs) != 2 {
		t.Fatalf("got %d slurs, want 2", len(p.Slurs))
	}
}

func TestSlurSameNumberReopen(t *testing.T) {
	a := note(t, "C4", 1)
	a.Slurs = []score.SlurMarker{{Type: score.Start, Number: 1}}
	b := note(t, "D4", 1)
	b.Slurs = []score.SlurMarker{{Type: score.Start, Number: 1}}

	p := buildPart(t, []*score.Note{a, b})
	violations := Resolve(p)

	if got := countKind(violations, DuplicateStart); got != 1 {
		t.Errorf("got %d duplicate starts, want 1", got)
	}
}

func TestSlurStopThenStartOnSameNote(t *testing.T) {
	// A note that ends one slur and begins the next under the same number.
	a := note(t, "C4", 1)
	a.Slurs = []score.SlurMarker{{Type: score.Start, Number: 1}}
	b := note(t, "D4", 1)
	b.Slurs = []score.SlurMarker{
		{Type: score.Stop, Number: 1},
		{Type: score.Start, Number: 1},
	}
	c := note(t, "E4", 1)
	c.Slurs = []score.SlurMarker{{Type: score.Stop, Number: 1}}

	p := buildPart(t, []*score.Note{a, b, c})
	violations := Resolve(p)

	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	if len(p.Slurs) != 2 {
		t.Fatalf("got %d slurs, want 2", len(p.Slurs))
	}
}

func TestTupletResolution(t *testing.T) {
	n1 := note(t, "C4", 1)
	n1.Tuplets = []score.TupletMarker{{Type: score.Start, Number: 1, ActualNotes: 3, NormalNotes: 2}}
	n2 := note(t, "D4", 1)
	n3 := note(t, "E4", 1)
	n3.Tuplets = []score.TupletMarker{{Type: score.Stop, Number: 1}}

	p := buildPart(t, []*score.Note{n1, n2, n3})
	violations := Resolve(p)

	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	if len(p.Tuplets) != 1 {
		t.Fatalf("got %d tuplets, want 1", len(p.Tuplets))
	}
	tup := p.Tuplets[0]
	if tup.Ratio.Actual != 3 || tup.Ratio.Normal != 2 {
		t.Errorf("ratio = %d:%d, want 3:2", tup.Ratio.Actual, tup.Ratio.Normal)
	}
	if len(tup.NoteIDs) != 3 {
		t.Fatalf("got %d members, want 3", len(tup.NoteIDs))
	}
	want := []score.NoteID{n1.ID, n2.ID, n3.ID}
	for i, id := range want {
		if tup.NoteIDs[i] != id {
			t.Errorf("member %d = %s, want %s", i, tup.NoteIDs[i], id)
		}
	}
}

func TestTupletOrphanedStop(t *testing.T) {
	n := note(t, "C4", 1)
	n.Tuplets = []score.TupletMarker{{Type: score.Stop, Number: 1}}

	p := buildPart(t, []*score.Note{n})
	violations := Resolve(p)

	if len(violations) != 1 {
		t.Fatalf("got %d violations, want exactly 1", len(violations))
	}
	if violations[0].Kind != OrphanedStop || violations[0].Spanner != KindTuplet {
		t.Errorf("violation = %v, want tuplet orphaned_stop", violations[0])
	}
}

func TestMatchedStreamNoOrphans(t *testing.T) {
	// N matched pairs of each kind resolve to exactly N completions.
	const pairs = 5
	var notes []*score.Note
	for i := 0; i < pairs; i++ {
		a := note(t, "C4", 1)
		a.Ties = []score.StartStop{score.Start}
		a.Slurs = []score.SlurMarker{{Type: score.Start, Number: 1}}
		a.Tuplets = []score.TupletMarker{{Type: score.Start, Number: 1, ActualNotes: 3, NormalNotes: 2}}
		b := note(t, "C4", 1)
		b.Ties = []score.StartStop{score.Stop}
		b.Slurs = []score.SlurMarker{{Type: score.Stop, Number: 1}}
		b.Tuplets = []score.TupletMarker{{Type: score.Stop, Number: 1}}
		notes = append(notes, a, b)
	}

	p := buildPart(t, notes)
	violations := Resolve(p)

	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	if len(p.Ties) != pairs || len(p.Slurs) != pairs || len(p.Tuplets) != pairs {
		t.Errorf("completions = %d ties, %d slurs, %d tuplets; want %d each",
			len(p.Ties), len(p.Slurs), len(p.Tuplets), pairs)
	}
}

func TestBeamGroupRun(t *testing.T) {
	n1 := note(t, "C4", 1)
	n1.Beams = []score.Beam{{Level: 1, Value: score.BeamBegin}}
	n2 := note(t, "D4", 1)
	n2.Beams = []score.Beam{{Level: 1, Value: score.BeamContinue}}
	n3 := note(t, "E4", 1)
	n3.Beams = []score.Beam{{Level: 1, Value: score.BeamEnd}}

	p := buildPart(t, []*score.Note{n1, n2, n3})
	violations := Resolve(p)

	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	if len(p.Beams) != 1 {
		t.Fatalf("got %d beam groups, want 1", len(p.Beams))
	}
	if got := len(p.Beams[0].PrimaryNotes()); got != 3 {
		t.Errorf("primary beam has %d notes, want 3", got)
	}
}

func TestBeamSecondaryLevels(t *testing.T) {
	// Two sixteenths beamed at levels 1 and 2, then an eighth at level 1.
	n1 := note(t, "C4", 1)
	n1.Beams = []score.Beam{{Level: 1, Value: score.BeamBegin}, {Level: 2, Value: score.BeamBegin}}
	n2 := note(t, "D4", 1)
	n2.Beams = []score.Beam{{Level: 1, Value: score.BeamContinue}, {Level: 2, Value: score.BeamEnd}}
	n3 := note(t, "E4", 1)
	n3.Beams = []score.Beam{{Level: 1, Value: score.BeamEnd}}

	p := buildPart(t, []*score.Note{n1, n2, n3})
	violations := Resolve(p)

	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	if len(p.Beams) != 1 {
		t.Fatalf("got %d beam groups, want 1", len(p.Beams))
	}
	g := p.Beams[0]
	if got := len(g.Levels[1]); got != 3 {
		t.Errorf("level 1 has %d notes, want 3", got)
	}
	if got := len(g.Levels[2]); got != 2 {
		t.Errorf("level 2 has %d notes, want 2", got)
	}
	if g.MaxLevel() != 2 {
		t.Errorf("MaxLevel = %d, want 2", g.MaxLevel())
	}
}

func TestBeamBrokenByRest(t *testing.T) {
	n1 := note(t, "C4", 1)
	n1.Beams = []score.Beam{{Level: 1, Value: score.BeamBegin}}
	n2 := note(t, "D4", 1)
	n2.Beams = []score.Beam{{Level: 1, Value: score.BeamContinue}}
	r := rest(t, 1)
	n3 := note(t, "E4", 1)
	n3.Beams = []score.Beam{{Level: 1, Value: score.BeamBegin}}
	n4 := note(t, "F4", 1)
	n4.Beams = []score.Beam{{Level: 1, Value: score.BeamEnd}}

	p := buildPart(t, []*score.Note{n1, n2, r, n3, n4})
	Resolve(p)

	if len(p.Beams) != 2 {
		t.Fatalf("got %d beam groups, want 2 (rest breaks the run)", len(p.Beams))
	}
}

func TestBeamLevelGap(t *testing.T) {
	// Level 3 without level 2 is a gap.
	n1 := note(t, "C4", 1)
	n1.Beams = []score.Beam{{Level: 1, Value: score.BeamBegin}, {Level: 3, Value: score.BeamBegin}}
	n2 := note(t, "D4", 1)
	n2.Beams = []score.Beam{{Level: 1, Value: score.BeamEnd}}

	p := buildPart(t, []*score.Note{n1, n2})
	violations := Resolve(p)

	if got := countKind(violations, LevelGap); got != 1 {
		t.Errorf("got %d level gaps, want 1 (violations: %v)", got, violations)
	}
}

func TestBeamOrphanedContinue(t *testing.T) {
	n := note(t, "C4", 1)
	n.Beams = []score.Beam{{Level: 1, Value: score.BeamContinue}}

	p := buildPart(t, []*score.Note{n})
	violations := Resolve(p)

	if got := countKind(violations, OrphanedStop); got != 1 {
		t.Errorf("got %d orphaned stops, want 1", got)
	}
}

func TestBeamVoiceSeparation(t *testing.T) {
	// Interleaved voices each get their own group.
	a1 := note(t, "C5", 1)
	a1.Beams = []score.Beam{{Level: 1, Value: score.BeamBegin}}
	b1 := note(t, "C3", 2)
	b1.Beams = []score.Beam{{Level: 1, Value: score.BeamBegin}}
	a2 := note(t, "D5", 1)
	a2.Beams = []score.Beam{{Level: 1, Value: score.BeamEnd}}
	b2 := note(t, "D3", 2)
	b2.Beams = []score.Beam{{Level: 1, Value: score.BeamEnd}}

	p := buildPart(t, []*score.Note{a1, b1, a2, b2})
	violations := Resolve(p)

	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
	if len(p.Beams) != 2 {
		t.Fatalf("got %d beam groups, want 2", len(p.Beams))
	}
}

func TestResolveEmptyPart(t *testing.T) {
	p := score.NewPart("P1", "")
	if violations := Resolve(p); len(violations) != 0 {
		t.Errorf("empty part produced violations: %v", violations)
	}
}

func TestViolationString(t *testing.T) {
	v := Violation{
		Kind: OrphanedStop, Spanner: KindTie,
		Location: score.Location{MeasureIndex: 2, NoteIndex: 1, Voice: 1, Staff: 1},
		Detail:   "no pending tie for C4",
	}
	got := v.String()
	want := "tie orphaned_stop at measure 2 note 1 (voice 1, staff 1): no pending tie for C4"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
