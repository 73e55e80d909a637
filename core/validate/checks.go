package validate

import (
	"fmt"

	"github.com/FocuswithJustin/Partitura/core/score"
)

// maxTupletMember caps tuplet ratio members; beyond this the ratio is
// considered pathological rather than musical.
const maxTupletMember = 100

// checkDurationSums verifies that, for each voice within a measure, the
// non-grace note divisions sum to the measure's expected length. Chord
// member notes share their head note's time and do not advance the cursor,
// so only chord heads count. Grace notes contribute zero.
func checkDurationSums(partIndex int, p *score.Part) []Violation {
	var violations []Violation

	for mi := range p.Measures {
		expected, ok := p.ExpectedMeasureDivisions(mi)
		if !ok {
			// No time signature or divisions grid in effect; nothing to
			// check against.
			continue
		}

		sums := make(map[int]int)
		seen := make(map[int]bool)
		for _, n := range p.MeasureNotes(mi) {
			seen[n.Voice] = true
			if n.Grace || n.ChordMember {
				continue
			}
			sums[n.Voice] += n.DurationDivisions
		}

		for voice := range seen {
			if got := sums[voice]; got != expected {
				violations = append(violations, Violation{
					Kind:         DurationSum,
					PartID:       p.ID,
					PartIndex:    partIndex,
					MeasureIndex: mi,
					Voice:        voice,
					Detail: fmt.Sprintf("voice sums to %d divisions, expected %d",
						got, expected),
				})
			}
		}
	}
	return violations
}

// checkTies verifies that every completed tie connects two existing notes
// of identical pitch.
func checkTies(partIndex int, p *score.Part) []Violation {
	var violations []Violation

	for _, tie := range p.Ties {
		start, startOK := p.Note(tie.StartNote)
		end, endOK := p.Note(tie.EndNote)
		if !startOK || !endOK {
			violations = append(violations, Violation{
				Kind:         MissingNote,
				PartID:       p.ID,
				PartIndex:    partIndex,
				MeasureIndex: tie.Start.MeasureIndex,
				Voice:        tie.Start.Voice,
				Detail:       "tie references a note missing from the part",
			})
			continue
		}
		if start.Pitch == nil || end.Pitch == nil {
			violations = append(violations, Violation{
				Kind:         TiePitch,
				PartID:       p.ID,
				PartIndex:    partIndex,
				MeasureIndex: tie.Start.MeasureIndex,
				Voice:        tie.Start.Voice,
				Detail:       "tie endpoint has no pitch",
			})
			continue
		}
		if !start.Pitch.Equal(*end.Pitch) {
			violations = append(violations, Violation{
				Kind:         TiePitch,
				PartID:       p.ID,
				PartIndex:    partIndex,
				MeasureIndex: tie.Start.MeasureIndex,
				Voice:        tie.Start.Voice,
				NoteID:       tie.EndNote,
				Detail: fmt.Sprintf("tie connects %s to %s",
					start.Pitch, end.Pitch),
			})
		}
	}
	return violations
}

// noteIndexes builds a document-order index over the part's notes.
func noteIndexes(p *score.Part) map[score.NoteID]int {
	idx := make(map[score.NoteID]int, len(p.Notes))
	i := 0
	for mi := range p.Measures {
		for _, id := range p.Measures[mi].NoteIDs {
			idx[id] = i
			i++
		}
	}
	return idx
}

// checkBeams verifies that every beam group has at least two primary notes
// and that secondary levels stay inside the primary level's index range.
func checkBeams(partIndex int, p *score.Part) []Violation {
	var violations []Violation
	idx := noteIndexes(p)

	for _, g := range p.Beams {
		primary := g.PrimaryNotes()
		if len(primary) < 2 {
			violations = append(violations, Violation{
				Kind:      BeamContinuity,
				PartID:    p.ID,
				PartIndex: partIndex,
				Voice:     g.Voice,
				Staff:     g.Staff,
				Detail: fmt.Sprintf("beam group has %d primary note(s), need at least 2",
					len(primary)),
			})
			continue
		}

		lo, hi, ok := indexRange(idx, primary)
		if !ok {
			violations = append(violations, Violation{
				Kind:      MissingNote,
				PartID:    p.ID,
				PartIndex: partIndex,
				Voice:     g.Voice,
				Staff:     g.Staff,
				Detail:    "beam group references a note missing from the part",
			})
			continue
		}

		for level := 2; level <= g.MaxLevel(); level++ {
			members := g.Levels[level]
			if len(members) == 0 {
				continue
			}
			slo, shi, ok := indexRange(idx, members)
			if !ok {
				violations = append(violations, Violation{
					Kind:      MissingNote,
					PartID:    p.ID,
					PartIndex: partIndex,
					Voice:     g.Voice,
					Staff:     g.Staff,
					Detail:    fmt.Sprintf("beam level %d references a missing note", level),
				})
				continue
			}
			if slo < lo || shi > hi {
				violations = append(violations, Violation{
					Kind:      BeamContinuity,
					PartID:    p.ID,
					PartIndex: partIndex,
					Voice:     g.Voice,
					Staff:     g.Staff,
					Detail: fmt.Sprintf("beam level %d spans notes %d-%d outside primary range %d-%d",
						level, slo, shi, lo, hi),
				})
			}
		}
	}
	return violations
}

func indexRange(idx map[score.NoteID]int, ids []score.NoteID) (lo, hi int, ok bool) {
	for i, id := range ids {
		pos, found := idx[id]
		if !found {
			return 0, 0, false
		}
		if i == 0 || pos < lo {
			lo = pos
		}
		if i == 0 || pos > hi {
			hi = pos
		}
	}
	return lo, hi, true
}

// checkChords verifies that every chord's members agree on voice, staff,
// and duration. A chord is a head note followed by its ChordMember run.
func checkChords(partIndex int, p *score.Part) []Violation {
	var violations []Violation

	for mi := range p.Measures {
		notes := p.MeasureNotes(mi)
		for i := 0; i < len(notes); i++ {
			if notes[i].ChordMember {
				continue
			}
			head := notes[i]
			for j := i + 1; j < len(notes) && notes[j].ChordMember; j++ {
				member := notes[j]
				if member.Voice != head.Voice || member.Staff != head.Staff ||
					member.DurationDivisions != head.DurationDivisions {
					violations = append(violations, Violation{
						Kind:         ChordCoherence,
						PartID:       p.ID,
						PartIndex:    partIndex,
						MeasureIndex: mi,
						Voice:        head.Voice,
						NoteID:       member.ID,
						Detail: fmt.Sprintf(
							"chord member disagrees with head (voice %d/%d, staff %d/%d, divisions %d/%d)",
							member.Voice, head.Voice,
							member.Staff, head.Staff,
							member.DurationDivisions, head.DurationDivisions),
					})
				}
			}
		}
	}
	return violations
}

// checkTuplets verifies ratio sanity: both members positive, not equal,
// and not of pathological magnitude once reduced. MusicXML encodes ratios
// as notated (a sextuplet is 6:4, not 3:2), so magnitude is judged on the
// reduced form rather than requiring lowest terms. Members must exist.
func checkTuplets(partIndex int, p *score.Part) []Violation {
	var violations []Violation

	for _, tup := range p.Tuplets {
		v := Violation{
			Kind:         TupletRatio,
			PartID:       p.ID,
			PartIndex:    partIndex,
			MeasureIndex: tup.Start.MeasureIndex,
			Voice:        tup.Start.Voice,
		}
		switch {
		case tup.Ratio.Actual < 1 || tup.Ratio.Normal < 1:
			v.Detail = fmt.Sprintf("ratio %d:%d has a non-positive member",
				tup.Ratio.Actual, tup.Ratio.Normal)
			violations = append(violations, v)
		case tup.Ratio.Actual == tup.Ratio.Normal:
			v.Detail = fmt.Sprintf("ratio %d:%d is degenerate",
				tup.Ratio.Actual, tup.Ratio.Normal)
			violations = append(violations, v)
		default:
			g := gcdInt(tup.Ratio.Actual, tup.Ratio.Normal)
			if tup.Ratio.Actual/g > maxTupletMember || tup.Ratio.Normal/g > maxTupletMember {
				v.Detail = fmt.Sprintf("ratio %d:%d is pathological",
					tup.Ratio.Actual, tup.Ratio.Normal)
				violations = append(violations, v)
			}
		}

		for _, id := range tup.NoteIDs {
			if _, ok := p.Note(id); !ok {
				violations = append(violations, Violation{
					Kind:         MissingNote,
					PartID:       p.ID,
					PartIndex:    partIndex,
					MeasureIndex: tup.Start.MeasureIndex,
					Voice:        tup.Start.Voice,
					Detail:       "tuplet references a note missing from the part",
				})
				break
			}
		}
	}
	return violations
}

func gcdInt(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// checkStaffNumbers verifies that every note's staff is within the
// declared staff count at its measure.
func checkStaffNumbers(partIndex int, p *score.Part) []Violation {
	var violations []Violation

	for mi := range p.Measures {
		declared := p.StaffCountAt(mi)
		for _, n := range p.MeasureNotes(mi) {
			if n.Staff < 1 || n.Staff > declared {
				violations = append(violations, Violation{
					Kind:         StaffNumber,
					PartID:       p.ID,
					PartIndex:    partIndex,
					MeasureIndex: mi,
					Voice:        n.Voice,
					Staff:        n.Staff,
					NoteID:       n.ID,
					Detail: fmt.Sprintf("staff %d outside declared range [1, %d]",
						n.Staff, declared),
				})
			}
		}
	}
	return violations
}
