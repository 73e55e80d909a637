// Package musicxml converts between MusicXML score-partwise documents
// and the score graph.
package musicxml

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Partitura/core/duration"
	"github.com/FocuswithJustin/Partitura/core/errors"
	"github.com/FocuswithJustin/Partitura/core/pitch"
	"github.com/FocuswithJustin/Partitura/core/rational"
	"github.com/FocuswithJustin/Partitura/core/score"
	"github.com/FocuswithJustin/Partitura/core/spanner"
	"github.com/FocuswithJustin/Partitura/core/xml"
	"github.com/FocuswithJustin/Partitura/internal/formats"
	"github.com/FocuswithJustin/Partitura/internal/logging"
)

// FormatName is the canonical name of this format.
const FormatName = "MusicXML"

func init() {
	formats.Register(&formats.Handler{
		Name:       FormatName,
		Extensions: []string{".musicxml", ".xml"},
		Detect:     Detect,
		Import:     Import,
		Export:     Export,
	})
}

// Detect probes data for a MusicXML score-partwise document.
func Detect(data []byte) *formats.DetectResult {
	if bytes.Contains(data, []byte("<score-partwise")) {
		return &formats.DetectResult{
			Detected: true,
			Format:   FormatName,
			Reason:   "score-partwise root element",
		}
	}
	if bytes.Contains(data, []byte("<score-timewise")) {
		return &formats.DetectResult{
			Detected: false,
			Reason:   "score-timewise documents are not supported",
		}
	}
	return &formats.DetectResult{Detected: false, Reason: "no MusicXML root element"}
}

// Import parses a MusicXML document into a score graph. Spanner markers
// are resolved after assembly; resolution violations are logged, not
// fatal.
func Import(data []byte, opts formats.ImportOptions) (*score.Score, error) {
	doc, err := xml.Parse(data)
	if err != nil {
		return nil, errors.NewParse(FormatName, "", err.Error())
	}

	root := doc.Root()
	if root == nil {
		return nil, errors.NewParse(FormatName, "", "empty document")
	}
	if root.Name() == "score-timewise" {
		return nil, errors.NewUnsupported("score-timewise", "only score-partwise documents are supported")
	}
	if root.Name() != "score-partwise" {
		return nil, errors.NewParse(FormatName, "", "root element is "+root.Name()+", want score-partwise")
	}

	s := &score.Score{SourceFormat: FormatName}
	importHeader(doc, s)

	partNames := importPartList(root)

	for _, partNode := range root.Select("part") {
		id := partNode.Attr("id")
		p := score.NewPart(id, partNames[id])
		if err := importPart(partNode, p); err != nil {
			return nil, err
		}
		violations := spanner.Resolve(p)
		logging.SpannerViolations(p.ID, len(p.Ties)+len(p.Slurs)+len(p.Tuplets)+len(p.Beams), len(violations))
		s.AddPart(p)
	}

	return s, nil
}

func importHeader(doc *xml.Document, s *score.Score) {
	if n, _ := doc.XPathFirst("//work/work-title"); n != nil {
		s.Title = strings.TrimSpace(n.Text())
	}
	if s.Title == "" {
		if n, _ := doc.XPathFirst("//movement-title"); n != nil {
			s.Title = strings.TrimSpace(n.Text())
		}
	}
	if n, _ := doc.XPathFirst("//identification/creator[@type='composer']"); n != nil {
		s.Composer = strings.TrimSpace(n.Text())
	}
	if n, _ := doc.XPathFirst("//identification/encoding/software"); n != nil {
		s.Software = strings.TrimSpace(n.Text())
	}
}

func importPartList(root *xml.Node) map[string]string {
	names := make(map[string]string)
	list := root.First("part-list")
	if list == nil {
		return names
	}
	for _, sp := range list.Select("score-part") {
		id := sp.Attr("id")
		if name := sp.First("part-name"); name != nil {
			names[id] = strings.TrimSpace(name.Text())
		}
	}
	return names
}

func importPart(partNode *xml.Node, p *score.Part) error {
	for mi, measureNode := range partNode.Select("measure") {
		number, _ := strconv.Atoi(measureNode.Attr("number"))
		if number == 0 {
			number = mi + 1
		}
		m := p.AddMeasure(number)

		for _, child := range measureNode.Children() {
			switch child.Name() {
			case "attributes":
				importAttributes(child, m)
			case "note":
				n, err := importNote(child, p, mi)
				if err != nil {
					return err
				}
				if err := p.AddNote(mi, n); err != nil {
					return err
				}
			case "direction":
				if d, ok := importDirection(child, len(m.NoteIDs)); ok {
					m.Directions = append(m.Directions, d)
				}
			case "barline":
				m.Barlines = append(m.Barlines, importBarline(child))
			case "backup", "forward":
				// Position bookkeeping only; note order carries the
				// voice interleaving.
			}
		}
	}
	return nil
}

func importAttributes(node *xml.Node, m *score.Measure) {
	if d := node.First("divisions"); d != nil {
		if v, err := strconv.Atoi(strings.TrimSpace(d.Text())); err == nil {
			m.Divisions = v
		}
	}
	if t := node.First("time"); t != nil {
		ts := &score.TimeSignature{}
		if b := t.First("beats"); b != nil {
			ts.Beats, _ = strconv.Atoi(strings.TrimSpace(b.Text()))
		}
		if bt := t.First("beat-type"); bt != nil {
			ts.BeatType, _ = strconv.Atoi(strings.TrimSpace(bt.Text()))
		}
		if ts.Beats > 0 && ts.BeatType > 0 {
			m.Time = ts
		}
	}
	if k := node.First("key"); k != nil {
		ks := &score.KeySignature{}
		if f := k.First("fifths"); f != nil {
			ks.Fifths, _ = strconv.Atoi(strings.TrimSpace(f.Text()))
		}
		if mode := k.First("mode"); mode != nil {
			ks.Mode = strings.TrimSpace(mode.Text())
		}
		m.Key = ks
	}
	if st := node.First("staves"); st != nil {
		if v, err := strconv.Atoi(strings.TrimSpace(st.Text())); err == nil {
			m.StaffCount = v
		}
	}
	for _, c := range node.Select("clef") {
		clef := score.Clef{Staff: 1}
		if n := c.Attr("number"); n != "" {
			clef.Staff, _ = strconv.Atoi(n)
		}
		if sign := c.First("sign"); sign != nil {
			clef.Sign = strings.TrimSpace(sign.Text())
		}
		if line := c.First("line"); line != nil {
			clef.Line, _ = strconv.Atoi(strings.TrimSpace(line.Text()))
		}
		m.Clefs = append(m.Clefs, clef)
	}
}

func importNote(node *xml.Node, p *score.Part, measureIndex int) (*score.Note, error) {
	n := &score.Note{
		ID:    score.NewNoteID(),
		Type:  score.NotePitched,
		Voice: 1,
		Staff: 1,
	}

	n.Grace = node.First("grace") != nil
	n.ChordMember = node.First("chord") != nil

	switch {
	case node.First("rest") != nil:
		n.Type = score.NoteRest
	case node.First("unpitched") != nil:
		n.Type = score.NoteUnpitched
		if pt, err := importUnpitched(node.First("unpitched")); err == nil {
			n.Pitch = pt
		}
	case node.First("pitch") != nil:
		pt, err := importPitch(node.First("pitch"))
		if err != nil {
			return nil, err
		}
		n.Pitch = pt
	default:
		return nil, errors.NewParse(FormatName, "", "note without pitch, unpitched, or rest")
	}

	if d := node.First("duration"); d != nil {
		n.DurationDivisions, _ = strconv.Atoi(strings.TrimSpace(d.Text()))
	}
	if v := node.First("voice"); v != nil {
		if vn, err := strconv.Atoi(strings.TrimSpace(v.Text())); err == nil {
			n.Voice = vn
		}
	}
	if st := node.First("staff"); st != nil {
		if sn, err := strconv.Atoi(strings.TrimSpace(st.Text())); err == nil {
			n.Staff = sn
		}
	}

	if err := importDuration(node, n, p, measureIndex); err != nil {
		return nil, err
	}

	for _, tie := range node.Select("tie") {
		if ss, ok := parseStartStop(tie.Attr("type")); ok {
			n.Ties = append(n.Ties, ss)
		}
	}

	for _, beam := range node.Select("beam") {
		level := 1
		if num := beam.Attr("number"); num != "" {
			level, _ = strconv.Atoi(num)
		}
		value := score.BeamValue(strings.TrimSpace(beam.Text()))
		n.Beams = append(n.Beams, score.Beam{Level: level, Value: value})
	}

	if notations := node.First("notations"); notations != nil {
		importNotations(notations, n)
	}

	return n, nil
}

// importDuration derives the notated duration from type, dots, and
// time-modification, falling back to the divisions value when the
// document omits <type>.
func importDuration(node *xml.Node, n *score.Note, p *score.Part, measureIndex int) error {
	dots := len(node.Select("dot"))

	var tuplets []duration.TupletRatio
	if tm := node.First("time-modification"); tm != nil {
		ratio := duration.TupletRatio{}
		if a := tm.First("actual-notes"); a != nil {
			ratio.Actual, _ = strconv.Atoi(strings.TrimSpace(a.Text()))
		}
		if nn := tm.First("normal-notes"); nn != nil {
			ratio.Normal, _ = strconv.Atoi(strings.TrimSpace(nn.Text()))
		}
		if ratio.Actual > 0 && ratio.Normal > 0 {
			tuplets = append(tuplets, ratio)
		}
	}

	if t := node.First("type"); t != nil {
		base, err := parseNoteType(strings.TrimSpace(t.Text()))
		if err != nil {
			return err
		}
		d, err := duration.New(base, dots)
		if err != nil {
			return errors.NewParse(FormatName, "", err.Error())
		}
		d.Tuplets = tuplets
		n.Duration = d
		return nil
	}

	// No type element: derive the base from divisions.
	divisions := p.DivisionsAt(measureIndex)
	if n.DurationDivisions > 0 && divisions > 0 {
		if d, ok := durationFromDivisions(n.DurationDivisions, divisions); ok {
			n.Duration = d
			return nil
		}
	}
	n.Duration = duration.Duration{Base: duration.BaseQuarter}
	return nil
}

// durationFromDivisions finds a base and dot count whose exact value
// matches ticks at the given resolution.
func durationFromDivisions(ticks, perQuarter int) (duration.Duration, bool) {
	want, err := rational.New(int64(ticks), int64(perQuarter))
	if err != nil {
		return duration.Duration{}, false
	}
	for _, base := range duration.Bases {
		for dots := 0; dots <= 3; dots++ {
			d, err := duration.New(base, dots)
			if err != nil {
				continue
			}
			v, err := d.QuarterValue()
			if err != nil {
				continue
			}
			if v.Equal(want) {
				return d, true
			}
		}
	}
	return duration.Duration{}, false
}

func importNotations(node *xml.Node, n *score.Note) {
	for _, child := range node.Children() {
		switch child.Name() {
		case "slur":
			if ss, ok := parseStartStop(child.Attr("type")); ok {
				number := 1
				if num := child.Attr("number"); num != "" {
					number, _ = strconv.Atoi(num)
				}
				n.Slurs = append(n.Slurs, score.SlurMarker{
					Type:      ss,
					Number:    number,
					Placement: child.Attr("placement"),
				})
			}
		case "tuplet":
			if ss, ok := parseStartStop(child.Attr("type")); ok {
				number := 1
				if num := child.Attr("number"); num != "" {
					number, _ = strconv.Atoi(num)
				}
				marker := score.TupletMarker{Type: ss, Number: number}
				if len(n.Duration.Tuplets) > 0 {
					marker.ActualNotes = n.Duration.Tuplets[0].Actual
					marker.NormalNotes = n.Duration.Tuplets[0].Normal
				}
				n.Tuplets = append(n.Tuplets, marker)
			}
		case "articulations":
			for _, a := range child.Children() {
				n.Articulations = append(n.Articulations, a.Name())
			}
		case "ornaments":
			for _, o := range child.Children() {
				n.Ornaments = append(n.Ornaments, o.Name())
			}
		case "tied":
			// Visual arc only; sound comes from the tie elements.
		}
	}
}

func importDirection(node *xml.Node, noteIndex int) (score.Direction, bool) {
	d := score.Direction{
		Placement: node.Attr("placement"),
		NoteIndex: noteIndex,
	}
	if v := node.First("voice"); v != nil {
		d.Voice, _ = strconv.Atoi(strings.TrimSpace(v.Text()))
	}
	if st := node.First("staff"); st != nil {
		d.Staff, _ = strconv.Atoi(strings.TrimSpace(st.Text()))
	}

	dt := node.First("direction-type")
	if dt == nil {
		return d, false
	}
	children := dt.Children()
	if len(children) == 0 {
		return d, false
	}
	first := children[0]
	d.Kind = first.Name()
	switch first.Name() {
	case "words":
		d.Text = strings.TrimSpace(first.Text())
	case "dynamics":
		inner := first.Children()
		if len(inner) > 0 {
			d.Text = inner[0].Name()
		}
	case "wedge":
		d.Text = first.Attr("type")
	case "metronome":
		if pm := first.First("per-minute"); pm != nil {
			d.Text = strings.TrimSpace(pm.Text())
		}
	default:
		d.Text = strings.TrimSpace(first.Text())
	}
	return d, true
}

func importBarline(node *xml.Node) score.Barline {
	b := score.Barline{Location: node.Attr("location")}
	if b.Location == "" {
		b.Location = "right"
	}
	if style := node.First("bar-style"); style != nil {
		b.Style = strings.TrimSpace(style.Text())
	}
	if rep := node.First("repeat"); rep != nil {
		b.Repeat = rep.Attr("direction")
	}
	return b
}

func importPitch(node *xml.Node) (*pitch.Pitch, error) {
	step, err := parseStep(node.First("step"))
	if err != nil {
		return nil, err
	}
	octave, err := parseOctave(node.First("octave"))
	if err != nil {
		return nil, err
	}
	alter := rational.Zero
	if a := node.First("alter"); a != nil {
		alter, err = parseAlter(strings.TrimSpace(a.Text()))
		if err != nil {
			return nil, err
		}
	}
	p, err := pitch.NewMicrotonal(step, alter, octave)
	if err != nil {
		return nil, errors.NewParse(FormatName, "", err.Error())
	}
	return &p, nil
}

func importUnpitched(node *xml.Node) (*pitch.Pitch, error) {
	step, err := parseStep(node.First("display-step"))
	if err != nil {
		return nil, err
	}
	octave, err := parseOctave(node.First("display-octave"))
	if err != nil {
		return nil, err
	}
	p, err := pitch.New(step, 0, octave)
	if err != nil {
		return nil, errors.NewParse(FormatName, "", err.Error())
	}
	return &p, nil
}

func parseStep(node *xml.Node) (pitch.Step, error) {
	if node == nil {
		return "", errors.NewParse(FormatName, "", "pitch without step")
	}
	s := strings.TrimSpace(node.Text())
	step := pitch.Step(s)
	switch step {
	case pitch.StepC, pitch.StepD, pitch.StepE, pitch.StepF,
		pitch.StepG, pitch.StepA, pitch.StepB:
		return step, nil
	}
	return "", errors.NewParse(FormatName, "", "invalid step "+s)
}

func parseOctave(node *xml.Node) (int, error) {
	if node == nil {
		return 0, errors.NewParse(FormatName, "", "pitch without octave")
	}
	octave, err := strconv.Atoi(strings.TrimSpace(node.Text()))
	if err != nil {
		return 0, errors.NewParse(FormatName, "", "invalid octave: "+err.Error())
	}
	return octave, nil
}

// parseAlter parses a MusicXML alter value, which may be a signed
// decimal for microtones ("0.5", "-1.5"), into an exact rational.
func parseAlter(s string) (rational.Rational, error) {
	if s == "" {
		return rational.Zero, nil
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	neg := strings.HasPrefix(whole, "-")
	whole = strings.TrimPrefix(strings.TrimPrefix(whole, "-"), "+")

	num := int64(0)
	if whole != "" {
		v, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return rational.Zero, errors.NewParse(FormatName, "", "invalid alter "+s)
		}
		num = v
	}
	den := int64(1)
	if hasFrac {
		for _, c := range frac {
			if c < '0' || c > '9' {
				return rational.Zero, errors.NewParse(FormatName, "", "invalid alter "+s)
			}
			num = num*10 + int64(c-'0')
			den *= 10
		}
	}
	if neg {
		num = -num
	}
	return rational.New(num, den)
}

func parseStartStop(s string) (score.StartStop, bool) {
	switch s {
	case "start":
		return score.Start, true
	case "stop":
		return score.Stop, true
	}
	return "", false
}

// parseNoteType maps a MusicXML note-type name to a Base. The only
// divergence from our own names is "long".
func parseNoteType(s string) (duration.Base, error) {
	if s == "long" {
		return duration.BaseLonga, nil
	}
	base, err := duration.ParseBase(s)
	if err != nil {
		return "", errors.NewParse(FormatName, "", err.Error())
	}
	return base, nil
}
