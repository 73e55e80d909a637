package smf

import (
	"bytes"
	"sort"
	"strconv"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/FocuswithJustin/Partitura/core/errors"
	"github.com/FocuswithJustin/Partitura/core/score"
)

// exportTicksPerQuarter is the fixed write-side resolution. 480 divides
// evenly by the common note values and tuplet ratios.
const exportTicksPerQuarter = 480

// exportVelocity is the uniform note-on velocity; the graph does not
// carry dynamics per note.
const exportVelocity = 64

// timedMessage is a message pinned to an absolute tick. order breaks
// same-tick ties so note-offs precede note-ons. msg is smf.Message so
// meta and channel messages share one event list; channel messages
// convert on append.
type timedMessage struct {
	tick  int
	order int
	msg   smf.Message
}

const (
	orderMeta    = 0
	orderNoteOff = 1
	orderNoteOn  = 2
)

// Export renders the score as a format 1 SMF. Tied note chains collapse
// into single sounding events; notation-only detail (beams, slurs,
// articulations) is dropped because the format cannot carry it.
func Export(s *score.Score) ([]byte, error) {
	if s == nil {
		return nil, errors.NewValidation("score", "cannot export nil score")
	}
	if len(s.Parts) == 0 {
		return nil, errors.NewValidation("score", "cannot export score with no parts")
	}

	mf := smf.New()
	mf.TimeFormat = smf.MetricTicks(exportTicksPerQuarter)

	for pi, p := range s.Parts {
		events, err := partEvents(p, pi == 0)
		if err != nil {
			return nil, err
		}
		var track smf.Track
		if p.Name != "" {
			track.Add(0, smf.MetaTrackSequenceName(p.Name))
		}
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].tick != events[j].tick {
				return events[i].tick < events[j].tick
			}
			return events[i].order < events[j].order
		})
		prev := 0
		for _, e := range events {
			track.Add(uint32(e.tick-prev), e.msg)
			prev = e.tick
		}
		track.Close(0)
		if err := mf.Add(track); err != nil {
			return nil, errors.NewIO("encode", "", err)
		}
	}

	var buf bytes.Buffer
	if _, err := mf.WriteTo(&buf); err != nil {
		return nil, errors.NewIO("write", "", err)
	}
	return buf.Bytes(), nil
}

// partEvents renders one part's measures into absolute-tick messages.
// The first part also carries the tempo and meter metadata.
func partEvents(p *score.Part, conductor bool) ([]timedMessage, error) {
	var events []timedMessage

	if conductor {
		if bpm, ok := tempoFor(p); ok {
			events = append(events, timedMessage{
				tick:  0,
				order: orderMeta,
				msg:   smf.MetaTempo(bpm),
			})
		}
	}

	measureStart := 0
	for mi, m := range p.Measures {
		ts := p.TimeAt(mi)
		if ts == nil {
			ts = &score.TimeSignature{Beats: 4, BeatType: 4}
		}
		if conductor && m.Time != nil {
			events = append(events, timedMessage{
				tick:  measureStart,
				order: orderMeta,
				msg:   smf.MetaMeter(uint8(m.Time.Beats), uint8(m.Time.BeatType)),
			})
		}

		divisions := p.DivisionsAt(mi)
		if divisions <= 0 {
			return nil, errors.NewValidation("divisions",
				"measure has no divisions grid")
		}

		cursors := map[int]int{}
		lastStart := map[int]int{}
		for _, id := range m.NoteIDs {
			n, ok := p.Note(id)
			if !ok {
				return nil, errors.NewNotFound("note", string(id))
			}
			if n.Grace {
				continue
			}
			ticks := n.DurationDivisions * exportTicksPerQuarter / divisions

			start := cursors[n.Voice]
			if n.ChordMember {
				start = lastStart[n.Voice]
			} else {
				lastStart[n.Voice] = start
				cursors[n.Voice] = start + ticks
			}

			if n.IsRest() || n.Pitch == nil {
				continue
			}

			channel := uint8(0)
			if n.Type == score.NoteUnpitched {
				channel = percussionChannel
			}
			key := n.Pitch.MIDINumber()
			if key < 0 || key > 127 {
				return nil, errors.NewValidation("pitch",
					"note "+n.Pitch.String()+" is outside the MIDI range")
			}

			// Tie chains sound as one event: the stop side suppresses
			// its note-on, the start side suppresses its note-off.
			if !hasTie(n, score.Stop) {
				events = append(events, timedMessage{
					tick:  measureStart + start,
					order: orderNoteOn,
					msg:   smf.Message(midi.NoteOn(channel, uint8(key), exportVelocity)),
				})
			}
			if !hasTie(n, score.Start) {
				events = append(events, timedMessage{
					tick:  measureStart + start + ticks,
					order: orderNoteOff,
					msg:   smf.Message(midi.NoteOff(channel, uint8(key))),
				})
			}
		}

		measureStart += ts.Beats * 4 * exportTicksPerQuarter / ts.BeatType
	}
	return events, nil
}

func hasTie(n *score.Note, polarity score.StartStop) bool {
	for _, t := range n.Ties {
		if t == polarity {
			return true
		}
	}
	return false
}

// tempoFor reads the first metronome direction in the part.
func tempoFor(p *score.Part) (float64, bool) {
	for _, m := range p.Measures {
		for _, d := range m.Directions {
			if d.Kind != "metronome" {
				continue
			}
			if bpm, err := strconv.Atoi(d.Text); err == nil && bpm > 0 {
				return float64(bpm), true
			}
		}
	}
	return 0, false
}
