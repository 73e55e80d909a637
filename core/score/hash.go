package score

import (
	"encoding/hex"
	"encoding/json"
	"strconv"

	"github.com/zeebo/blake3"
)

// jsonMarshal is a variable to allow testing of marshal errors.
var jsonMarshal = json.Marshal

// HashBytes computes the BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Fingerprint computes a content hash of the whole graph by serializing a
// canonical form to JSON and hashing with BLAKE3. Note IDs are replaced by
// document-order ordinals before hashing, so two imports of the same
// source bytes share a fingerprint even though each import assigns fresh
// random IDs. The corpus store compares fingerprints across separate runs
// for regression detection.
func Fingerprint(s *Score) (string, error) {
	c := *s
	c.Parts = make([]*Part, len(s.Parts))
	for i, p := range s.Parts {
		c.Parts[i] = canonicalPart(p)
	}
	data, err := jsonMarshal(&c)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// FingerprintPart computes the content hash of a single part, with the
// same ID canonicalization as Fingerprint.
func FingerprintPart(p *Part) (string, error) {
	data, err := jsonMarshal(canonicalPart(p))
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// canonicalPart returns a copy of the part with every note ID replaced by
// its document-order ordinal ("n1", "n2", ...). Notes not referenced by
// any measure carry no document content and are dropped from the copy.
func canonicalPart(p *Part) *Part {
	ord := make(map[NoteID]NoteID, len(p.Notes))
	seq := 0
	for _, m := range p.Measures {
		for _, id := range m.NoteIDs {
			if _, seen := ord[id]; !seen {
				seq++
				ord[id] = NoteID("n" + strconv.Itoa(seq))
			}
		}
	}

	c := *p
	c.Measures = make([]*Measure, len(p.Measures))
	for i, m := range p.Measures {
		mm := *m
		mm.NoteIDs = remapIDs(m.NoteIDs, ord)
		c.Measures[i] = &mm
	}

	c.Notes = make(map[NoteID]*Note, len(ord))
	for id, n := range p.Notes {
		cid, ok := ord[id]
		if !ok {
			continue
		}
		nn := *n
		nn.ID = cid
		c.Notes[cid] = &nn
	}

	c.Ties = make([]CompletedTie, len(p.Ties))
	for i, t := range p.Ties {
		t.StartNote = ord[t.StartNote]
		t.EndNote = ord[t.EndNote]
		c.Ties[i] = t
	}
	c.Slurs = make([]SlurPair, len(p.Slurs))
	for i, sl := range p.Slurs {
		sl.StartNote = ord[sl.StartNote]
		sl.EndNote = ord[sl.EndNote]
		c.Slurs[i] = sl
	}
	c.Tuplets = make([]Tuplet, len(p.Tuplets))
	for i, t := range p.Tuplets {
		t.NoteIDs = remapIDs(t.NoteIDs, ord)
		c.Tuplets[i] = t
	}
	c.Beams = make([]BeamGroup, len(p.Beams))
	for i, g := range p.Beams {
		levels := make(map[int][]NoteID, len(g.Levels))
		for level, ids := range g.Levels {
			levels[level] = remapIDs(ids, ord)
		}
		g.Levels = levels
		c.Beams[i] = g
	}
	return &c
}

func remapIDs(ids []NoteID, ord map[NoteID]NoteID) []NoteID {
	out := make([]NoteID, len(ids))
	for i, id := range ids {
		out[i] = ord[id]
	}
	return out
}
