// Package diff compares two score graphs structurally and reports every
// point of divergence. Comparison is order-aware: parts, measures, and
// notes are aligned by index, never by content matching, so a missing
// note shifts everything after it and shows up as a run of differences
// rather than being silently absorbed.
package diff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/FocuswithJustin/Partitura/core/score"
)

// Kind classifies a single difference.
type Kind string

const (
	// PartCount means the two scores have different numbers of parts.
	PartCount Kind = "part_count"

	// MeasureCount means a part pair has different numbers of measures.
	MeasureCount Kind = "measure_count"

	// NoteCount means a measure pair has different numbers of notes.
	NoteCount Kind = "note_count"

	// NoteField means an aligned note pair disagrees on a field
	// (pitch, duration, voice, staff, chord membership, and so on).
	NoteField Kind = "note_field"

	// Attribute means a measure pair disagrees on divisions, time
	// signature, key signature, clefs, or staff count.
	Attribute Kind = "attribute"

	// Spanner means the resolved spanner sets differ (tie, slur,
	// tuplet, or beam counts or endpoints).
	Spanner Kind = "spanner"

	// DirectionDiff means a measure pair disagrees on attached
	// directions.
	DirectionDiff Kind = "direction"

	// BarlineDiff means a measure pair disagrees on barlines.
	BarlineDiff Kind = "barline"

	// Metadata means the scores disagree on title, composer, or
	// another document-level field.
	Metadata Kind = "metadata"
)

// Difference is one point of divergence between the two graphs.
// Index fields are -1 when they do not apply.
type Difference struct {
	Kind         Kind   `json:"kind"`
	PartID       string `json:"part_id,omitempty"`
	PartIndex    int    `json:"part_index"`
	MeasureIndex int    `json:"measure_index"`
	NoteIndex    int    `json:"note_index"`
	Field        string `json:"field,omitempty"`
	Want         string `json:"want"`
	Got          string `json:"got"`
}

func (d Difference) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", d.Kind)
	if d.PartID != "" {
		fmt.Fprintf(&b, " part %s", d.PartID)
	} else if d.PartIndex >= 0 {
		fmt.Fprintf(&b, " part #%d", d.PartIndex)
	}
	if d.MeasureIndex >= 0 {
		fmt.Fprintf(&b, " measure %d", d.MeasureIndex+1)
	}
	if d.NoteIndex >= 0 {
		fmt.Fprintf(&b, " note %d", d.NoteIndex)
	}
	if d.Field != "" {
		fmt.Fprintf(&b, " %s", d.Field)
	}
	fmt.Fprintf(&b, ": want %s, got %s", d.Want, d.Got)
	return b.String()
}

// Result holds every difference found between two scores.
type Result struct {
	Differences []Difference `json:"differences"`
}

// Equal reports whether no differences were found.
func (r *Result) Equal() bool {
	return len(r.Differences) == 0
}

// CountKind returns how many differences have the given kind.
func (r *Result) CountKind(kind Kind) int {
	n := 0
	for _, d := range r.Differences {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Report renders a human-readable summary, one difference per line.
func (r *Result) Report() string {
	if r.Equal() {
		return "diff: scores are structurally identical"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "diff: %d difference(s)\n", len(r.Differences))
	for _, d := range r.Differences {
		b.WriteString("  ")
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// Compare walks both scores in document order and records every
// structural difference. The first score is treated as the reference
// ("want") and the second as the candidate ("got").
func Compare(want, got *score.Score) *Result {
	c := &comparer{}
	c.compareScores(want, got)
	return &Result{Differences: c.diffs}
}

type comparer struct {
	diffs []Difference
}

func (c *comparer) add(d Difference) {
	c.diffs = append(c.diffs, d)
}

func (c *comparer) compareScores(want, got *score.Score) {
	c.compareMetadata(want, got)

	if len(want.Parts) != len(got.Parts) {
		c.add(Difference{
			Kind: PartCount, PartIndex: -1, MeasureIndex: -1, NoteIndex: -1,
			Want: fmt.Sprintf("%d", len(want.Parts)),
			Got:  fmt.Sprintf("%d", len(got.Parts)),
		})
	}
	n := min(len(want.Parts), len(got.Parts))
	for i := 0; i < n; i++ {
		c.comparePart(i, want.Parts[i], got.Parts[i])
	}
}

func (c *comparer) compareMetadata(want, got *score.Score) {
	fields := []struct {
		name string
		a, b string
	}{
		{"title", want.Title, got.Title},
		{"composer", want.Composer, got.Composer},
	}
	for _, f := range fields {
		if f.a != f.b {
			c.add(Difference{
				Kind: Metadata, PartIndex: -1, MeasureIndex: -1, NoteIndex: -1,
				Field: f.name,
				Want:  quote(f.a), Got: quote(f.b),
			})
		}
	}
}

func (c *comparer) comparePart(partIndex int, want, got *score.Part) {
	base := Difference{
		PartID: want.ID, PartIndex: partIndex,
		MeasureIndex: -1, NoteIndex: -1,
	}

	if want.ID != got.ID {
		d := base
		d.Kind = Metadata
		d.Field = "part id"
		d.Want, d.Got = quote(want.ID), quote(got.ID)
		c.add(d)
	}
	if want.Name != got.Name {
		d := base
		d.Kind = Metadata
		d.Field = "part name"
		d.Want, d.Got = quote(want.Name), quote(got.Name)
		c.add(d)
	}

	if len(want.Measures) != len(got.Measures) {
		d := base
		d.Kind = MeasureCount
		d.Want = fmt.Sprintf("%d", len(want.Measures))
		d.Got = fmt.Sprintf("%d", len(got.Measures))
		c.add(d)
	}
	n := min(len(want.Measures), len(got.Measures))
	for i := 0; i < n; i++ {
		c.compareMeasure(base, i, want, got)
	}

	c.compareSpanners(base, want, got)
}

func (c *comparer) compareMeasure(base Difference, mi int, wantPart, gotPart *score.Part) {
	want := wantPart.Measures[mi]
	got := gotPart.Measures[mi]
	base.MeasureIndex = mi

	c.compareAttributes(base, want, got)
	c.compareDirections(base, want, got)
	c.compareBarlines(base, want, got)

	if len(want.NoteIDs) != len(got.NoteIDs) {
		d := base
		d.Kind = NoteCount
		d.Want = fmt.Sprintf("%d", len(want.NoteIDs))
		d.Got = fmt.Sprintf("%d", len(got.NoteIDs))
		c.add(d)
	}
	n := min(len(want.NoteIDs), len(got.NoteIDs))
	for i := 0; i < n; i++ {
		wn, wok := wantPart.Note(want.NoteIDs[i])
		gn, gok := gotPart.Note(got.NoteIDs[i])
		if !wok || !gok {
			continue
		}
		c.compareNote(base, i, wn, gn)
	}
}

func (c *comparer) compareAttributes(base Difference, want, got *score.Measure) {
	base.Kind = Attribute

	if want.Divisions != got.Divisions {
		d := base
		d.Field = "divisions"
		d.Want = fmt.Sprintf("%d", want.Divisions)
		d.Got = fmt.Sprintf("%d", got.Divisions)
		c.add(d)
	}
	if ws, gs := timeString(want.Time), timeString(got.Time); ws != gs {
		d := base
		d.Field = "time signature"
		d.Want, d.Got = ws, gs
		c.add(d)
	}
	if ws, gs := keyString(want.Key), keyString(got.Key); ws != gs {
		d := base
		d.Field = "key signature"
		d.Want, d.Got = ws, gs
		c.add(d)
	}
	if ws, gs := clefString(want.Clefs), clefString(got.Clefs); ws != gs {
		d := base
		d.Field = "clefs"
		d.Want, d.Got = ws, gs
		c.add(d)
	}
	if want.StaffCount != got.StaffCount {
		d := base
		d.Field = "staff count"
		d.Want = fmt.Sprintf("%d", want.StaffCount)
		d.Got = fmt.Sprintf("%d", got.StaffCount)
		c.add(d)
	}
}

func (c *comparer) compareDirections(base Difference, want, got *score.Measure) {
	base.Kind = DirectionDiff
	if len(want.Directions) != len(got.Directions) {
		d := base
		d.Field = "count"
		d.Want = fmt.Sprintf("%d", len(want.Directions))
		d.Got = fmt.Sprintf("%d", len(got.Directions))
		c.add(d)
		return
	}
	for i := range want.Directions {
		w, g := want.Directions[i], got.Directions[i]
		if w.Kind != g.Kind || w.Text != g.Text || w.Placement != g.Placement ||
			w.Voice != g.Voice || w.Staff != g.Staff || w.NoteIndex != g.NoteIndex {
			d := base
			d.Field = fmt.Sprintf("direction %d", i)
			d.Want = directionString(w)
			d.Got = directionString(g)
			c.add(d)
		}
	}
}

func (c *comparer) compareBarlines(base Difference, want, got *score.Measure) {
	base.Kind = BarlineDiff
	if len(want.Barlines) != len(got.Barlines) {
		d := base
		d.Field = "count"
		d.Want = fmt.Sprintf("%d", len(want.Barlines))
		d.Got = fmt.Sprintf("%d", len(got.Barlines))
		c.add(d)
		return
	}
	for i := range want.Barlines {
		if want.Barlines[i] != got.Barlines[i] {
			d := base
			d.Field = fmt.Sprintf("barline %d", i)
			d.Want = barlineString(want.Barlines[i])
			d.Got = barlineString(got.Barlines[i])
			c.add(d)
		}
	}
}

func (c *comparer) compareNote(base Difference, ni int, want, got *score.Note) {
	base.Kind = NoteField
	base.NoteIndex = ni

	check := func(field, w, g string) {
		if w != g {
			d := base
			d.Field = field
			d.Want, d.Got = w, g
			c.add(d)
		}
	}

	check("type", string(want.Type), string(got.Type))
	check("pitch", pitchString(want), pitchString(got))
	check("duration", want.Duration.String(), got.Duration.String())
	check("duration divisions",
		fmt.Sprintf("%d", want.DurationDivisions),
		fmt.Sprintf("%d", got.DurationDivisions))
	check("voice", fmt.Sprintf("%d", want.Voice), fmt.Sprintf("%d", got.Voice))
	check("staff", fmt.Sprintf("%d", want.Staff), fmt.Sprintf("%d", got.Staff))
	check("grace", fmt.Sprintf("%t", want.Grace), fmt.Sprintf("%t", got.Grace))
	check("chord", fmt.Sprintf("%t", want.ChordMember), fmt.Sprintf("%t", got.ChordMember))
	check("articulations", strings.Join(want.Articulations, ","), strings.Join(got.Articulations, ","))
	check("ornaments", strings.Join(want.Ornaments, ","), strings.Join(got.Ornaments, ","))
}

// compareSpanners compares the resolved spanner sets of a part pair by
// count and by sorted endpoint signatures. Signatures use locations,
// not note IDs, because IDs are regenerated on every import.
func (c *comparer) compareSpanners(base Difference, want, got *score.Part) {
	base.Kind = Spanner

	pairs := []struct {
		field string
		a, b  []string
	}{
		{"ties", tieSignatures(want), tieSignatures(got)},
		{"slurs", slurSignatures(want), slurSignatures(got)},
		{"tuplets", tupletSignatures(want), tupletSignatures(got)},
		{"beams", beamSignatures(want), beamSignatures(got)},
	}
	for _, p := range pairs {
		if len(p.a) != len(p.b) {
			d := base
			d.Field = p.field
			d.Want = fmt.Sprintf("%d", len(p.a))
			d.Got = fmt.Sprintf("%d", len(p.b))
			c.add(d)
			continue
		}
		for i := range p.a {
			if p.a[i] != p.b[i] {
				d := base
				d.Field = p.field
				d.Want, d.Got = p.a[i], p.b[i]
				c.add(d)
			}
		}
	}
}

func tieSignatures(p *score.Part) []string {
	sigs := make([]string, 0, len(p.Ties))
	for _, t := range p.Ties {
		sigs = append(sigs, fmt.Sprintf("%s %s->%s",
			t.Pitch.String(), locString(t.Start), locString(t.End)))
	}
	sort.Strings(sigs)
	return sigs
}

func slurSignatures(p *score.Part) []string {
	sigs := make([]string, 0, len(p.Slurs))
	for _, s := range p.Slurs {
		sigs = append(sigs, fmt.Sprintf("#%d %s->%s",
			s.Number, locString(s.Start), locString(s.End)))
	}
	sort.Strings(sigs)
	return sigs
}

func tupletSignatures(p *score.Part) []string {
	sigs := make([]string, 0, len(p.Tuplets))
	for _, t := range p.Tuplets {
		sigs = append(sigs, fmt.Sprintf("%d:%d x%d %s->%s",
			t.Ratio.Actual, t.Ratio.Normal, len(t.NoteIDs),
			locString(t.Start), locString(t.End)))
	}
	sort.Strings(sigs)
	return sigs
}

func beamSignatures(p *score.Part) []string {
	sigs := make([]string, 0, len(p.Beams))
	for _, b := range p.Beams {
		sigs = append(sigs, fmt.Sprintf("v%d s%d n%d max%d",
			b.Voice, b.Staff, len(b.PrimaryNotes()), b.MaxLevel()))
	}
	sort.Strings(sigs)
	return sigs
}

func locString(l score.Location) string {
	return fmt.Sprintf("m%d.%d", l.MeasureIndex+1, l.NoteIndex)
}

func pitchString(n *score.Note) string {
	if n.Pitch == nil {
		return "(none)"
	}
	return n.Pitch.String()
}

func timeString(t *score.TimeSignature) string {
	if t == nil {
		return "(none)"
	}
	return fmt.Sprintf("%d/%d", t.Beats, t.BeatType)
}

func keyString(k *score.KeySignature) string {
	if k == nil {
		return "(none)"
	}
	if k.Mode != "" {
		return fmt.Sprintf("%d %s", k.Fifths, k.Mode)
	}
	return fmt.Sprintf("%d", k.Fifths)
}

func clefString(clefs []score.Clef) string {
	if len(clefs) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(clefs))
	for _, cl := range clefs {
		parts = append(parts, fmt.Sprintf("%s%d@%d", cl.Sign, cl.Line, cl.Staff))
	}
	return strings.Join(parts, " ")
}

func directionString(d score.Direction) string {
	return fmt.Sprintf("%s %q v%d s%d", d.Kind, d.Text, d.Voice, d.Staff)
}

func barlineString(b score.Barline) string {
	if b.Repeat != "" {
		return fmt.Sprintf("%s %s repeat %s", b.Location, b.Style, b.Repeat)
	}
	return fmt.Sprintf("%s %s", b.Location, b.Style)
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}
