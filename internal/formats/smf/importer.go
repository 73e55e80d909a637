// Package smf converts between Standard MIDI Files and the score graph.
// SMF carries no notation, so import reconstructs notated durations with
// the tick quantizer and re-derives ties, chords, and rests.
package smf

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/FocuswithJustin/Partitura/core/duration"
	"github.com/FocuswithJustin/Partitura/core/errors"
	"github.com/FocuswithJustin/Partitura/core/pitch"
	"github.com/FocuswithJustin/Partitura/core/quantize"
	"github.com/FocuswithJustin/Partitura/core/score"
	"github.com/FocuswithJustin/Partitura/core/spanner"
	"github.com/FocuswithJustin/Partitura/internal/formats"
	"github.com/FocuswithJustin/Partitura/internal/logging"
)

// FormatName is the canonical name of this format.
const FormatName = "SMF"

// percussionChannel is the GM drum channel (zero-based).
const percussionChannel = 9

func init() {
	formats.Register(&formats.Handler{
		Name:       FormatName,
		Extensions: []string{".mid", ".midi", ".smf"},
		Detect:     Detect,
		Import:     Import,
		Export:     Export,
	})
}

// Detect probes data for an SMF header chunk.
func Detect(data []byte) *formats.DetectResult {
	if bytes.HasPrefix(data, []byte("MThd")) {
		return &formats.DetectResult{
			Detected: true,
			Format:   FormatName,
			Reason:   "MThd header chunk",
		}
	}
	return &formats.DetectResult{Detected: false, Reason: "no MThd header"}
}

// soundingEvent is one paired note-on/note-off in absolute ticks.
type soundingEvent struct {
	startTick int
	endTick   int
	channel   uint8
	key       uint8
}

// meterChange is a time signature change at an absolute tick.
type meterChange struct {
	tick  int
	num   uint8
	denom uint8
}

// barSpan is one measure's tick extent and its governing meter.
type barSpan struct {
	start int
	end   int
	meter meterChange
}

// Import parses an SMF into a score graph. Positions snap to the
// quantization grid before durations are quantized.
func Import(data []byte, opts formats.ImportOptions) (s *score.Score, err error) {
	// The SMF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = errors.NewParse(FormatName, "", fmt.Sprintf("%v", r))
		}
	}()

	mf, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewParse(FormatName, "", err.Error())
	}

	metric, ok := mf.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, errors.NewUnsupported("SMPTE time format",
			"only metric tick division is supported")
	}

	divisor := opts.GridDivisor
	if divisor == 0 {
		divisor = quantize.DefaultGridDivisor
	}
	q, err := quantize.NewWithGrid(int(metric), divisor)
	if err != nil {
		return nil, err
	}

	s = &score.Score{SourceFormat: FormatName}
	meters, tempoBPM := scanMeta(mf)

	for ti, track := range mf.Tracks {
		events, name := pairTrack(track)
		if len(events) == 0 {
			continue
		}
		id := fmt.Sprintf("P%d", len(s.Parts)+1)
		if name == "" {
			name = fmt.Sprintf("Track %d", ti+1)
		}
		p := score.NewPart(id, name)
		if err := buildPart(p, events, q, meters, tempoBPM, len(s.Parts) == 0); err != nil {
			return nil, err
		}
		violations := spanner.Resolve(p)
		logging.SpannerViolations(p.ID, len(p.Ties), len(violations))
		s.AddPart(p)
	}

	if len(s.Parts) == 0 {
		return nil, errors.NewParse(FormatName, "", "no note events in any track")
	}
	return s, nil
}

// scanMeta collects time signature changes and the first tempo across
// all tracks. A 4/4 default is injected when no meter is set at tick 0.
func scanMeta(mf *smf.SMF) ([]meterChange, float64) {
	var meters []meterChange
	tempo := 0.0

	for _, track := range mf.Tracks {
		abs := 0
		for _, ev := range track {
			abs += int(ev.Delta)
			var num, denom, cpt, dsqpq uint8
			if ev.Message.GetMetaTimeSig(&num, &denom, &cpt, &dsqpq) {
				meters = append(meters, meterChange{tick: abs, num: num, denom: denom})
			}
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && tempo == 0 {
				tempo = bpm
			}
		}
	}

	sort.SliceStable(meters, func(i, j int) bool { return meters[i].tick < meters[j].tick })
	if len(meters) == 0 || meters[0].tick != 0 {
		meters = append([]meterChange{{tick: 0, num: 4, denom: 4}}, meters...)
	}
	return meters, tempo
}

// pairTrack pairs note-on and note-off events into sounding events and
// extracts the track name. Overlapping same-key events pair first-on
// with first-off; orphan note-offs are dropped.
func pairTrack(track smf.Track) ([]soundingEvent, string) {
	type openKey struct {
		channel uint8
		key     uint8
	}
	open := make(map[openKey][]soundingEvent)
	var events []soundingEvent
	var name string

	abs := 0
	for _, ev := range track {
		abs += int(ev.Delta)

		var text string
		if ev.Message.GetMetaTrackName(&text) && name == "" {
			name = text
		}

		var channel, key, velocity uint8
		switch {
		case ev.Message.GetNoteStart(&channel, &key, &velocity):
			k := openKey{channel, key}
			open[k] = append(open[k], soundingEvent{
				startTick: abs,
				channel:   channel,
				key:       key,
			})
		case ev.Message.GetNoteEnd(&channel, &key):
			k := openKey{channel, key}
			pending := open[k]
			if len(pending) == 0 {
				continue
			}
			se := pending[0]
			open[k] = pending[1:]
			se.endTick = abs
			if se.endTick > se.startTick {
				events = append(events, se)
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].startTick != events[j].startTick {
			return events[i].startTick < events[j].startTick
		}
		return events[i].key < events[j].key
	})
	return events, name
}

// ticksPerMeasure returns the tick length of a measure under the meter.
func ticksPerMeasure(m meterChange, tpq int) int {
	return int(m.num) * 4 * tpq / int(m.denom)
}

// meterAt returns the active meter for a tick position.
func meterAt(meters []meterChange, tick int) meterChange {
	active := meters[0]
	for _, m := range meters {
		if m.tick <= tick {
			active = m
		}
	}
	return active
}

// buildPart lays quantized events into measures, filling gaps with
// rests and splitting notes that cross barlines into tied segments.
func buildPart(p *score.Part, events []soundingEvent, q *quantize.Quantizer, meters []meterChange, tempoBPM float64, firstPart bool) error {
	tpq := q.TicksPerQuarter()

	type placed struct {
		start int
		end   int
		ev    soundingEvent
	}
	var laid []placed
	lastTick := 0
	for _, ev := range events {
		start := q.QuantizePosition(ev.startTick)
		end := q.QuantizePosition(ev.endTick)
		if end <= start {
			end = start + q.GridStep()
		}
		laid = append(laid, placed{start: start, end: end, ev: ev})
		if end > lastTick {
			lastTick = end
		}
	}

	bars, err := layBars(meters, tpq, lastTick)
	if err != nil {
		return err
	}

	var prevMeter meterChange
	for bi, bar := range bars {
		m := p.AddMeasure(bi + 1)
		if bi == 0 {
			m.Divisions = tpq
		}
		if bi == 0 || bar.meter != prevMeter {
			m.Time = &score.TimeSignature{
				Beats:    int(bar.meter.num),
				BeatType: int(bar.meter.denom),
			}
		}
		prevMeter = bar.meter
	}
	if firstPart && tempoBPM > 0 {
		p.Measures[0].Directions = append(p.Measures[0].Directions, score.Direction{
			Kind: "metronome",
			Text: strconv.Itoa(int(tempoBPM + 0.5)),
		})
	}

	cursor := 0
	prevStart, prevEnd := -1, -1

	for _, pl := range laid {
		chord := prevStart >= 0 && pl.start == prevStart && pl.end == prevEnd
		if !chord {
			if pl.start > cursor {
				if err := fillRests(p, bars, cursor, pl.start, q); err != nil {
					return err
				}
			}
			cursor = pl.end
			prevStart, prevEnd = pl.start, pl.end
		}
		if err := placeNote(p, bars, pl.start, pl.end, pl.ev, chord, q); err != nil {
			return err
		}
	}

	// Pad the final measure with rests.
	if end := bars[len(bars)-1].end; cursor < end {
		if err := fillRests(p, bars, cursor, end, q); err != nil {
			return err
		}
	}
	return nil
}

// layBars builds the measure grid covering [0, lastTick). At least one
// measure is always produced.
func layBars(meters []meterChange, tpq, lastTick int) ([]barSpan, error) {
	var bars []barSpan
	pos := 0
	for pos < lastTick || len(bars) == 0 {
		m := meterAt(meters, pos)
		length := ticksPerMeasure(m, tpq)
		if length <= 0 {
			return nil, errors.NewValidation("time signature",
				fmt.Sprintf("%d/%d yields an empty measure", m.num, m.denom))
		}
		bars = append(bars, barSpan{start: pos, end: pos + length, meter: m})
		pos += length
	}
	return bars, nil
}

// barIndexAt locates the measure containing the tick.
func barIndexAt(bars []barSpan, tick int) int {
	for i, b := range bars {
		if tick >= b.start && tick < b.end {
			return i
		}
	}
	return len(bars) - 1
}

// placeNote writes one sounding event into the part, splitting at
// barlines into a tied chain.
func placeNote(p *score.Part, bars []barSpan, start, end int, ev soundingEvent, chord bool, q *quantize.Quantizer) error {
	pt, noteType, err := pitchFromKey(ev.channel, ev.key)
	if err != nil {
		return err
	}

	segments := splitAtBars(bars, start, end)
	for si, seg := range segments {
		base, dots, err := q.QuantizeDuration(seg.end - seg.start)
		if err != nil {
			return err
		}
		d, err := duration.New(base, dots)
		if err != nil {
			return err
		}
		n := &score.Note{
			ID:                score.NewNoteID(),
			Type:              noteType,
			Pitch:             pt,
			Duration:          d,
			DurationDivisions: seg.end - seg.start,
			Voice:             1,
			Staff:             1,
			ChordMember:       chord,
		}
		if len(segments) > 1 {
			if si > 0 {
				n.Ties = append(n.Ties, score.Stop)
			}
			if si < len(segments)-1 {
				n.Ties = append(n.Ties, score.Start)
			}
		}
		if err := p.AddNote(barIndexAt(bars, seg.start), n); err != nil {
			return err
		}
	}
	return nil
}

type tickSpan struct {
	start int
	end   int
}

// splitAtBars cuts [start, end) at every measure boundary it crosses.
func splitAtBars(bars []barSpan, start, end int) []tickSpan {
	var spans []tickSpan
	pos := start
	for pos < end {
		stop := bars[barIndexAt(bars, pos)].end
		if end < stop {
			stop = end
		}
		spans = append(spans, tickSpan{start: pos, end: stop})
		pos = stop
	}
	if len(spans) == 0 {
		spans = append(spans, tickSpan{start: start, end: end})
	}
	return spans
}

// fillRests covers [start, end) with rests, cutting at barlines and
// then greedily at notatable durations.
func fillRests(p *score.Part, bars []barSpan, start, end int, q *quantize.Quantizer) error {
	for _, seg := range splitAtBars(bars, start, end) {
		pos := seg.start
		for pos < seg.end {
			d, ticks := largestFit(seg.end-pos, q)
			n := &score.Note{
				ID:                score.NewNoteID(),
				Type:              score.NoteRest,
				Duration:          d,
				DurationDivisions: ticks,
				Voice:             1,
				Staff:             1,
			}
			if err := p.AddNote(barIndexAt(bars, pos), n); err != nil {
				return err
			}
			pos += ticks
		}
	}
	return nil
}

// largestFit returns the longest base+dots duration not exceeding
// ticks. When nothing fits the full span is consumed with its nearest
// notation so the fill always terminates.
func largestFit(ticks int, q *quantize.Quantizer) (duration.Duration, int) {
	var best duration.Duration
	bestTicks := 0
	for _, base := range duration.Bases {
		for dots := 0; dots <= 3; dots++ {
			t, err := q.TicksFor(base, dots)
			if err != nil || t <= 0 || t > ticks {
				continue
			}
			if t > bestTicks {
				bestTicks = t
				best = duration.Duration{Base: base, Dots: dots}
			}
		}
	}
	if bestTicks == 0 {
		base, dots, err := q.QuantizeDuration(ticks)
		if err != nil {
			return duration.Duration{Base: duration.BaseQuarter}, ticks
		}
		return duration.Duration{Base: base, Dots: dots}, ticks
	}
	return best, bestTicks
}

// sharpSpellings maps pitch classes to sharp-preferring spellings.
var sharpSpellings = [12]struct {
	step  pitch.Step
	alter int
}{
	{pitch.StepC, 0}, {pitch.StepC, 1}, {pitch.StepD, 0}, {pitch.StepD, 1},
	{pitch.StepE, 0}, {pitch.StepF, 0}, {pitch.StepF, 1}, {pitch.StepG, 0},
	{pitch.StepG, 1}, {pitch.StepA, 0}, {pitch.StepA, 1}, {pitch.StepB, 0},
}

// pitchFromKey spells a MIDI key, preferring sharps. Notes on the drum
// channel come back unpitched with a display pitch.
func pitchFromKey(channel, key uint8) (*pitch.Pitch, score.NoteType, error) {
	sp := sharpSpellings[int(key)%12]
	octave := int(key)/12 - 1
	pt, err := pitch.New(sp.step, sp.alter, octave)
	if err != nil {
		return nil, "", errors.Wrapf(err, "MIDI key %d", key)
	}
	if channel == percussionChannel {
		return &pt, score.NoteUnpitched, nil
	}
	return &pt, score.NotePitched, nil
}
