package spanner

import (
	"fmt"

	"github.com/FocuswithJustin/Partitura/core/duration"
	"github.com/FocuswithJustin/Partitura/core/score"
)

// Resolver is the per-part resolution state machine. The open tables live
// only for the duration of one Resolve call; nothing is carried across
// parts.
type resolver struct {
	part *score.Part

	pendingTies map[tieKey]*pendingTie
	openSlurs   map[slurKey]*slurStart
	openTuplets map[int]*tupletStart
	beams       *beamTracker

	ties    []score.CompletedTie
	slurs   []score.SlurPair
	tuplets []score.Tuplet

	violations []Violation
}

// Resolve walks the part's notes in document order, matches every spanner
// marker, stores the completed spanners on the part, and returns the
// resolution violations. Unmatched opens are reported, never silently
// dropped; resolution never fails.
func Resolve(p *score.Part) []Violation {
	r := &resolver{
		part:        p,
		pendingTies: make(map[tieKey]*pendingTie),
		openSlurs:   make(map[slurKey]*slurStart),
		openTuplets: make(map[int]*tupletStart),
		beams:       newBeamTracker(),
	}

	for mi := range p.Measures {
		ni := 0
		for _, n := range p.MeasureNotes(mi) {
			loc := score.Location{
				MeasureIndex: mi,
				NoteIndex:    ni,
				Voice:        n.Voice,
				Staff:        n.Staff,
			}
			r.visit(n, loc)
			ni++
		}
	}
	r.drain()

	p.Ties = r.ties
	p.Slurs = r.slurs
	p.Tuplets = r.tuplets
	p.Beams = r.beams.groups
	return r.violations
}

// visit processes one note's markers. Stop markers are handled before start
// markers so a note that ends one spanner and begins the next (common for
// consecutive slurs) resolves cleanly.
func (r *resolver) visit(n *score.Note, loc score.Location) {
	r.visitTies(n, loc)
	r.visitSlurs(n, loc)
	r.visitTuplets(n, loc)
	r.beams.visit(r, n, loc)
}

func (r *resolver) report(v Violation) {
	r.violations = append(r.violations, v)
}

// --- ties ---

func (r *resolver) visitTies(n *score.Note, loc score.Location) {
	if n.Pitch == nil || len(n.Ties) == 0 {
		return
	}
	key := tieKey{pitch: n.Pitch.String(), voice: n.Voice, staff: n.Staff}

	for _, marker := range n.Ties {
		switch marker {
		case score.Stop:
			r.closeTie(n, loc, key)
		case score.Start:
			if _, open := r.pendingTies[key]; open {
				// Ties cannot stack on the same pitch/voice/staff.
				r.report(Violation{
					Kind: DuplicateStart, Spanner: KindTie,
					NoteID: n.ID, Location: loc,
					Detail: fmt.Sprintf("tie already pending for %s", n.Pitch),
				})
				continue
			}
			r.pendingTies[key] = &pendingTie{noteID: n.ID, location: loc, pitch: *n.Pitch}
		}
	}
}

func (r *resolver) closeTie(n *score.Note, loc score.Location, key tieKey) {
	pending, ok := r.pendingTies[key]
	if !ok {
		// No exact spelling match. A pending tie on an enharmonic
		// equivalent in the same voice/staff is a hard violation, not a
		// silent match.
		if mk, mp := r.findEnharmonicTie(n, key); mp != nil {
			r.report(Violation{
				Kind: PitchMismatch, Spanner: KindTie,
				NoteID: n.ID, Location: loc,
				Detail: fmt.Sprintf("tie started on %s, stopped on %s", mp.pitch, n.Pitch),
			})
			delete(r.pendingTies, mk)
			return
		}
		r.report(Violation{
			Kind: OrphanedStop, Spanner: KindTie,
			NoteID: n.ID, Location: loc,
			Detail: fmt.Sprintf("no pending tie for %s", n.Pitch),
		})
		return
	}

	r.ties = append(r.ties, score.CompletedTie{
		StartNote:      pending.noteID,
		EndNote:        n.ID,
		Start:          pending.location,
		End:            loc,
		Pitch:          pending.pitch,
		CrossesMeasure: pending.location.MeasureIndex != loc.MeasureIndex,
	})
	delete(r.pendingTies, key)
}

// findEnharmonicTie looks for a pending tie in the same voice/staff whose
// pitch sounds like the stopping note's pitch but is spelled differently.
func (r *resolver) findEnharmonicTie(n *score.Note, key tieKey) (tieKey, *pendingTie) {
	for k, p := range r.pendingTies {
		if k.voice == key.voice && k.staff == key.staff && p.pitch.SoundsLike(*n.Pitch) {
			return k, p
		}
	}
	return tieKey{}, nil
}

// --- slurs ---

func (r *resolver) visitSlurs(n *score.Note, loc score.Location) {
	for _, marker := range n.Slurs {
		key := slurKey{number: marker.Number, voice: n.Voice}
		switch marker.Type {
		case score.Stop:
			open, ok := r.openSlurs[key]
			if !ok {
				r.report(Violation{
					Kind: OrphanedStop, Spanner: KindSlur,
					NoteID: n.ID, Location: loc,
					Detail: fmt.Sprintf("slur %d not open", marker.Number),
				})
				continue
			}
			r.slurs = append(r.slurs, score.SlurPair{
				Number:    marker.Number,
				StartNote: open.noteID,
				EndNote:   n.ID,
				Start:     open.location,
				End:       loc,
				Placement: open.placement,
			})
			delete(r.openSlurs, key)
		case score.Start:
			if _, open := r.openSlurs[key]; open {
				// Nesting uses distinct numbers; the same number cannot
				// reopen before it closes.
				r.report(Violation{
					Kind: DuplicateStart, Spanner: KindSlur,
					NoteID: n.ID, Location: loc,
					Detail: fmt.Sprintf("slur %d already open", marker.Number),
				})
				continue
			}
			r.openSlurs[key] = &slurStart{
				noteID:    n.ID,
				location:  loc,
				placement: marker.Placement,
			}
		}
	}
}

// --- tuplets ---

func (r *resolver) visitTuplets(n *score.Note, loc score.Location) {
	for _, marker := range n.Tuplets {
		if marker.Type != score.Start {
			continue
		}
		if open, ok := r.openTuplets[marker.Number]; ok {
			r.report(Violation{
				Kind: DuplicateStart, Spanner: KindTuplet,
				NoteID: n.ID, Location: loc,
				Detail: fmt.Sprintf("tuplet %d already open since measure %d",
					marker.Number, open.location.MeasureIndex),
			})
			continue
		}
		r.openTuplets[marker.Number] = &tupletStart{
			number:      marker.Number,
			actualNotes: marker.ActualNotes,
			normalNotes: marker.NormalNotes,
			voice:       n.Voice,
			location:    loc,
		}
	}

	// Every note visited in the tuplet's voice while it is open becomes a
	// member, the starting and stopping notes included.
	for _, open := range r.openTuplets {
		if open.voice != n.Voice {
			continue
		}
		open.noteIDs = append(open.noteIDs, n.ID)
	}

	for _, marker := range n.Tuplets {
		if marker.Type != score.Stop {
			continue
		}
		open, ok := r.openTuplets[marker.Number]
		if !ok {
			r.report(Violation{
				Kind: OrphanedStop, Spanner: KindTuplet,
				NoteID: n.ID, Location: loc,
				Detail: fmt.Sprintf("tuplet %d not open", marker.Number),
			})
			continue
		}
		r.tuplets = append(r.tuplets, score.Tuplet{
			Number: open.number,
			Ratio: duration.TupletRatio{
				Actual: open.actualNotes,
				Normal: open.normalNotes,
			},
			NoteIDs: open.noteIDs,
			Start:   open.location,
			End:     loc,
		})
		delete(r.openTuplets, marker.Number)
	}
}

// --- end-of-part drain ---

// drain flushes every still-open record as an orphaned start. The tables
// are empty when drain returns; nothing is held across part boundaries.
func (r *resolver) drain() {
	for key, p := range r.pendingTies {
		r.report(Violation{
			Kind: OrphanedStart, Spanner: KindTie,
			NoteID: p.noteID, Location: p.location,
			Detail: fmt.Sprintf("tie on %s never stopped", p.pitch),
		})
		delete(r.pendingTies, key)
	}
	for key, s := range r.openSlurs {
		r.report(Violation{
			Kind: OrphanedStart, Spanner: KindSlur,
			NoteID: s.noteID, Location: s.location,
			Detail: fmt.Sprintf("slur %d never stopped", key.number),
		})
		delete(r.openSlurs, key)
	}
	for number, tp := range r.openTuplets {
		r.report(Violation{
			Kind: OrphanedStart, Spanner: KindTuplet,
			NoteID: tp.noteIDs[0], Location: tp.location,
			Detail: fmt.Sprintf("tuplet %d never stopped", number),
		})
		delete(r.openTuplets, number)
	}
	r.beams.drain(r)
}
