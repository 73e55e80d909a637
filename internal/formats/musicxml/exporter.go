package musicxml

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/FocuswithJustin/Partitura/core/duration"
	"github.com/FocuswithJustin/Partitura/core/encoding"
	"github.com/FocuswithJustin/Partitura/core/errors"
	"github.com/FocuswithJustin/Partitura/core/pitch"
	"github.com/FocuswithJustin/Partitura/core/score"
)

const (
	xmlDeclaration = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
	doctype        = `<!DOCTYPE score-partwise PUBLIC "-//Recordare//DTD MusicXML 4.0 Partwise//EN" "http://www.musicxml.org/dtds/partwise.dtd">` + "\n"
)

// Export renders a score graph as a MusicXML score-partwise document.
// Notes are written in stored document order, so an import/export cycle
// preserves the original element ordering.
func Export(s *score.Score) ([]byte, error) {
	if s == nil {
		return nil, errors.NewValidation("score", "nil score")
	}

	var b bytes.Buffer
	b.WriteString(xmlDeclaration)
	b.WriteString(doctype)
	b.WriteString(`<score-partwise version="4.0">` + "\n")

	writeHeader(&b, s)
	writePartList(&b, s)

	for _, p := range s.Parts {
		if err := writePart(&b, p); err != nil {
			return nil, err
		}
	}

	b.WriteString("</score-partwise>\n")
	return b.Bytes(), nil
}

func writeHeader(b *bytes.Buffer, s *score.Score) {
	if s.Title != "" {
		b.WriteString("  <work>\n")
		fmt.Fprintf(b, "    <work-title>%s</work-title>\n", encoding.EscapeXMLText(s.Title))
		b.WriteString("  </work>\n")
	}
	if s.Composer != "" || s.Software != "" {
		b.WriteString("  <identification>\n")
		if s.Composer != "" {
			fmt.Fprintf(b, "    <creator type=\"composer\">%s</creator>\n", encoding.EscapeXMLText(s.Composer))
		}
		if s.Software != "" {
			b.WriteString("    <encoding>\n")
			fmt.Fprintf(b, "      <software>%s</software>\n", encoding.EscapeXMLText(s.Software))
			b.WriteString("    </encoding>\n")
		}
		b.WriteString("  </identification>\n")
	}
}

func writePartList(b *bytes.Buffer, s *score.Score) {
	b.WriteString("  <part-list>\n")
	for _, p := range s.Parts {
		fmt.Fprintf(b, "    <score-part id=\"%s\">\n", encoding.EscapeXMLAttr(p.ID))
		name := p.Name
		if name == "" {
			name = p.ID
		}
		fmt.Fprintf(b, "      <part-name>%s</part-name>\n", encoding.EscapeXMLText(name))
		b.WriteString("    </score-part>\n")
	}
	b.WriteString("  </part-list>\n")
}

func writePart(b *bytes.Buffer, p *score.Part) error {
	fmt.Fprintf(b, "  <part id=\"%s\">\n", encoding.EscapeXMLAttr(p.ID))

	for mi, m := range p.Measures {
		fmt.Fprintf(b, "    <measure number=\"%d\">\n", m.Number)
		writeAttributes(b, m)

		// Directions are anchored before the note at their NoteIndex.
		dirAt := make(map[int][]score.Direction)
		for _, d := range m.Directions {
			dirAt[d.NoteIndex] = append(dirAt[d.NoteIndex], d)
		}

		for ni, id := range m.NoteIDs {
			for _, d := range dirAt[ni] {
				writeDirection(b, d)
			}
			n, ok := p.Note(id)
			if !ok {
				return errors.NewNotFound("note", string(id))
			}
			if err := writeNote(b, n, mi, p); err != nil {
				return err
			}
		}
		for _, d := range dirAt[len(m.NoteIDs)] {
			writeDirection(b, d)
		}

		for _, bar := range m.Barlines {
			writeBarline(b, bar)
		}
		b.WriteString("    </measure>\n")
	}

	b.WriteString("  </part>\n")
	return nil
}

func writeAttributes(b *bytes.Buffer, m *score.Measure) {
	hasAny := m.Divisions > 0 || m.Time != nil || m.Key != nil ||
		m.StaffCount > 0 || len(m.Clefs) > 0
	if !hasAny {
		return
	}
	b.WriteString("      <attributes>\n")
	if m.Divisions > 0 {
		fmt.Fprintf(b, "        <divisions>%d</divisions>\n", m.Divisions)
	}
	if m.Key != nil {
		b.WriteString("        <key>\n")
		fmt.Fprintf(b, "          <fifths>%d</fifths>\n", m.Key.Fifths)
		if m.Key.Mode != "" {
			fmt.Fprintf(b, "          <mode>%s</mode>\n", encoding.EscapeXMLText(m.Key.Mode))
		}
		b.WriteString("        </key>\n")
	}
	if m.Time != nil {
		b.WriteString("        <time>\n")
		fmt.Fprintf(b, "          <beats>%d</beats>\n", m.Time.Beats)
		fmt.Fprintf(b, "          <beat-type>%d</beat-type>\n", m.Time.BeatType)
		b.WriteString("        </time>\n")
	}
	if m.StaffCount > 1 {
		fmt.Fprintf(b, "        <staves>%d</staves>\n", m.StaffCount)
	}
	for _, c := range m.Clefs {
		if c.Staff > 1 {
			fmt.Fprintf(b, "        <clef number=\"%d\">\n", c.Staff)
		} else {
			b.WriteString("        <clef>\n")
		}
		fmt.Fprintf(b, "          <sign>%s</sign>\n", encoding.EscapeXMLText(c.Sign))
		if c.Line > 0 {
			fmt.Fprintf(b, "          <line>%d</line>\n", c.Line)
		}
		b.WriteString("        </clef>\n")
	}
	b.WriteString("      </attributes>\n")
}

func writeNote(b *bytes.Buffer, n *score.Note, measureIndex int, p *score.Part) error {
	b.WriteString("      <note>\n")

	if n.Grace {
		b.WriteString("        <grace/>\n")
	}
	if n.ChordMember {
		b.WriteString("        <chord/>\n")
	}

	switch n.Type {
	case score.NoteRest:
		b.WriteString("        <rest/>\n")
	case score.NoteUnpitched:
		b.WriteString("        <unpitched>\n")
		if n.Pitch != nil {
			fmt.Fprintf(b, "          <display-step>%s</display-step>\n", n.Pitch.Step)
			fmt.Fprintf(b, "          <display-octave>%d</display-octave>\n", n.Pitch.Octave)
		}
		b.WriteString("        </unpitched>\n")
	case score.NotePitched:
		if n.Pitch == nil {
			return errors.NewValidation("note", "pitched note without pitch")
		}
		writePitch(b, *n.Pitch)
	default:
		return errors.NewValidation("note", "unknown note type "+string(n.Type))
	}

	if !n.Grace && n.DurationDivisions > 0 {
		fmt.Fprintf(b, "        <duration>%d</duration>\n", n.DurationDivisions)
	}
	for _, tie := range n.Ties {
		fmt.Fprintf(b, "        <tie type=\"%s\"/>\n", tie)
	}
	if n.Voice > 0 {
		fmt.Fprintf(b, "        <voice>%d</voice>\n", n.Voice)
	}
	if n.Duration.Base != "" {
		fmt.Fprintf(b, "        <type>%s</type>\n", noteTypeName(n.Duration.Base))
	}
	for i := 0; i < n.Duration.Dots; i++ {
		b.WriteString("        <dot/>\n")
	}
	if len(n.Duration.Tuplets) > 0 {
		t := n.Duration.Tuplets[0]
		b.WriteString("        <time-modification>\n")
		fmt.Fprintf(b, "          <actual-notes>%d</actual-notes>\n", t.Actual)
		fmt.Fprintf(b, "          <normal-notes>%d</normal-notes>\n", t.Normal)
		b.WriteString("        </time-modification>\n")
	}
	if n.Staff > 1 || p.StaffCountAt(measureIndex) > 1 {
		fmt.Fprintf(b, "        <staff>%d</staff>\n", n.Staff)
	}
	for _, beam := range n.Beams {
		fmt.Fprintf(b, "        <beam number=\"%d\">%s</beam>\n", beam.Level, beam.Value)
	}
	writeNotations(b, n)

	b.WriteString("      </note>\n")
	return nil
}

func writePitch(b *bytes.Buffer, pt pitch.Pitch) {
	b.WriteString("        <pitch>\n")
	fmt.Fprintf(b, "          <step>%s</step>\n", pt.Step)
	if !pt.Alter.IsZero() {
		fmt.Fprintf(b, "          <alter>%s</alter>\n", alterText(pt))
	}
	fmt.Fprintf(b, "          <octave>%d</octave>\n", pt.Octave)
	b.WriteString("        </pitch>\n")
}

// alterText renders the alteration as a MusicXML decimal. Only halves
// and quarters need fractional output.
func alterText(pt pitch.Pitch) string {
	if pt.Alter.Den == 1 {
		return fmt.Sprintf("%d", pt.Alter.Num)
	}
	v := pt.Alter.Float64()
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

func writeNotations(b *bytes.Buffer, n *score.Note) {
	hasTied := len(n.Ties) > 0
	if !hasTied && len(n.Slurs) == 0 && len(n.Tuplets) == 0 &&
		len(n.Articulations) == 0 && len(n.Ornaments) == 0 {
		return
	}
	b.WriteString("        <notations>\n")
	for _, tie := range n.Ties {
		fmt.Fprintf(b, "          <tied type=\"%s\"/>\n", tie)
	}
	for _, s := range n.Slurs {
		if s.Placement != "" {
			fmt.Fprintf(b, "          <slur type=\"%s\" number=\"%d\" placement=\"%s\"/>\n",
				s.Type, s.Number, encoding.EscapeXMLAttr(s.Placement))
		} else {
			fmt.Fprintf(b, "          <slur type=\"%s\" number=\"%d\"/>\n", s.Type, s.Number)
		}
	}
	for _, t := range n.Tuplets {
		fmt.Fprintf(b, "          <tuplet type=\"%s\" number=\"%d\"/>\n", t.Type, t.Number)
	}
	if len(n.Articulations) > 0 {
		b.WriteString("          <articulations>\n")
		for _, a := range n.Articulations {
			fmt.Fprintf(b, "            <%s/>\n", a)
		}
		b.WriteString("          </articulations>\n")
	}
	if len(n.Ornaments) > 0 {
		b.WriteString("          <ornaments>\n")
		for _, o := range n.Ornaments {
			fmt.Fprintf(b, "            <%s/>\n", o)
		}
		b.WriteString("          </ornaments>\n")
	}
	b.WriteString("        </notations>\n")
}

func writeDirection(b *bytes.Buffer, d score.Direction) {
	if d.Placement != "" {
		fmt.Fprintf(b, "      <direction placement=\"%s\">\n", encoding.EscapeXMLAttr(d.Placement))
	} else {
		b.WriteString("      <direction>\n")
	}
	b.WriteString("        <direction-type>\n")
	switch d.Kind {
	case "dynamics":
		fmt.Fprintf(b, "          <dynamics><%s/></dynamics>\n", d.Text)
	case "wedge":
		fmt.Fprintf(b, "          <wedge type=\"%s\"/>\n", encoding.EscapeXMLAttr(d.Text))
	case "metronome":
		b.WriteString("          <metronome>\n")
		b.WriteString("            <beat-unit>quarter</beat-unit>\n")
		fmt.Fprintf(b, "            <per-minute>%s</per-minute>\n", encoding.EscapeXMLText(d.Text))
		b.WriteString("          </metronome>\n")
	default:
		// Kinds like rehearsal, segno, or coda came in as their own
		// element; writing them back under the same name keeps reimport
		// from reclassifying them as words.
		kind := d.Kind
		if kind == "" {
			kind = "words"
		}
		if d.Text == "" {
			fmt.Fprintf(b, "          <%s/>\n", kind)
		} else {
			fmt.Fprintf(b, "          <%s>%s</%s>\n", kind, encoding.EscapeXMLText(d.Text), kind)
		}
	}
	b.WriteString("        </direction-type>\n")
	if d.Voice > 0 {
		fmt.Fprintf(b, "        <voice>%d</voice>\n", d.Voice)
	}
	if d.Staff > 0 {
		fmt.Fprintf(b, "        <staff>%d</staff>\n", d.Staff)
	}
	b.WriteString("      </direction>\n")
}

func writeBarline(b *bytes.Buffer, bar score.Barline) {
	location := bar.Location
	if location == "" {
		location = "right"
	}
	fmt.Fprintf(b, "      <barline location=\"%s\">\n", encoding.EscapeXMLAttr(location))
	if bar.Style != "" {
		fmt.Fprintf(b, "        <bar-style>%s</bar-style>\n", encoding.EscapeXMLText(bar.Style))
	}
	if bar.Repeat != "" {
		fmt.Fprintf(b, "        <repeat direction=\"%s\"/>\n", encoding.EscapeXMLAttr(bar.Repeat))
	}
	b.WriteString("      </barline>\n")
}

// noteTypeName maps a Base to the MusicXML note-type name.
func noteTypeName(base duration.Base) string {
	if base == duration.BaseLonga {
		return "long"
	}
	return string(base)
}
