package spanner

import (
	"fmt"
	"sort"

	"github.com/FocuswithJustin/Partitura/core/score"
)

// beamKey scopes a beam run to one voice and staff.
type beamKey struct {
	voice int
	staff int
}

// beamRun is an in-progress beam group: a maximal run of consecutive notes
// whose beam levels are compatible.
type beamRun struct {
	levels map[int][]score.NoteID
	start  score.Location
}

// beamTracker walks notes in document order and emits completed groups.
// Beams are not marker-paired like the other spanners: a run extends while
// compatibility holds and closes when a note breaks continuity (a rest, a
// missing primary beam, or an explicit begin/end value).
type beamTracker struct {
	open   map[beamKey]*beamRun
	groups []score.BeamGroup
}

func newBeamTracker() *beamTracker {
	return &beamTracker{open: make(map[beamKey]*beamRun)}
}

func (t *beamTracker) visit(r *resolver, n *score.Note, loc score.Location) {
	key := beamKey{voice: n.Voice, staff: n.Staff}

	primary, hasPrimary := n.BeamLevel(1)
	if n.IsRest() || !hasPrimary {
		// A rest or an unbeamed note in this voice/staff breaks the run.
		t.close(key)
		if hasPrimary {
			// A rest carrying beam markers is malformed input.
			r.report(Violation{
				Kind: OrphanedStop, Spanner: KindBeam,
				NoteID: n.ID, Location: loc,
				Detail: "beam on rest",
			})
		}
		return
	}

	run, open := t.open[key]
	switch primary {
	case score.BeamBegin:
		if open {
			// A begin while a run is open closes the previous group.
			t.close(key)
		}
		run = &beamRun{levels: make(map[int][]score.NoteID), start: loc}
		t.open[key] = run
	case score.BeamContinue, score.BeamEnd:
		if !open {
			r.report(Violation{
				Kind: OrphanedStop, Spanner: KindBeam,
				NoteID: n.ID, Location: loc,
				Detail: fmt.Sprintf("beam %q with no open group", primary),
			})
			return
		}
	default:
		// Hooks only appear on secondary levels; a primary hook is treated
		// as a single-note group and dropped by the validator later.
		if !open {
			run = &beamRun{levels: make(map[int][]score.NoteID), start: loc}
			t.open[key] = run
		}
	}
	run = t.open[key]

	// Record every level this note carries, checking that level N implies
	// level N-1 on the same note.
	levels := make([]int, 0, len(n.Beams))
	seen := make(map[int]bool, len(n.Beams))
	for _, b := range n.Beams {
		levels = append(levels, b.Level)
		seen[b.Level] = true
	}
	sort.Ints(levels)
	for _, level := range levels {
		if level > 1 && !seen[level-1] {
			r.report(Violation{
				Kind: LevelGap, Spanner: KindBeam,
				NoteID: n.ID, Location: loc,
				Detail: fmt.Sprintf("beam level %d without level %d", level, level-1),
			})
			continue
		}
		run.levels[level] = append(run.levels[level], n.ID)
	}

	if primary == score.BeamEnd {
		t.close(key)
	}
}

// close emits the open run for the key, if any.
func (t *beamTracker) close(key beamKey) {
	run, ok := t.open[key]
	if !ok {
		return
	}
	delete(t.open, key)
	if len(run.levels[1]) == 0 {
		return
	}
	t.groups = append(t.groups, score.BeamGroup{
		Voice:  key.voice,
		Staff:  key.staff,
		Levels: run.levels,
	})
}

// drain closes every still-open run at end of part. A run left open is a
// continuity break at the part boundary, not an orphan: the group is still
// emitted and the validator judges its shape.
func (t *beamTracker) drain(r *resolver) {
	keys := make([]beamKey, 0, len(t.open))
	for key := range t.open {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].voice != keys[j].voice {
			return keys[i].voice < keys[j].voice
		}
		return keys[i].staff < keys[j].staff
	})
	for _, key := range keys {
		t.close(key)
	}
}
