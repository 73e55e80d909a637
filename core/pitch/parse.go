package pitch

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/Partitura/core/rational"
)

// pitchGrammar is the participle grammar for scientific pitch notation.
// Examples: "C4", "F#3", "Bb-1", "Gx5", "Ebb2", "D+4" (quarter-tone sharp).
type pitchGrammar struct {
	Step   string `parser:"@Step"`
	Acc    string `parser:"@Acc?"`
	Octave int    `parser:"@Int"`
}

// pitchLexer defines the lexer for pitch strings.
// Note: the accidental must be matched before Int so that "b" is never
// mistaken for part of the octave, and Int carries its own sign so that
// negative octaves ("Bb-1") parse without a separate minus token.
var pitchLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Step", Pattern: `[A-G]`},
	{Name: "Acc", Pattern: `bb|b|x|##|#|\+`},
	{Name: "Int", Pattern: `-?[0-9]+`},
})

// pitchParser is the participle parser for pitch strings.
var pitchParser = participle.MustBuild[pitchGrammar](
	participle.Lexer(pitchLexer),
)

// accidentalAlters maps accidental spellings to semitone alterations.
var accidentalAlters = map[string]rational.Rational{
	"":   rational.Zero,
	"#":  rational.FromInt(1),
	"##": rational.FromInt(2),
	"x":  rational.FromInt(2),
	"b":  rational.FromInt(-1),
	"bb": rational.FromInt(-2),
	"+":  rational.MustNew(1, 2),
}

// Parse parses a scientific pitch notation string.
// Supported forms:
//   - "C4" (natural)
//   - "F#3", "Gx5" (sharp, double sharp)
//   - "Bb2", "Ebb2" (flat, double flat)
//   - "D+4" (quarter-tone sharp)
//   - "A0", "Bb-1" (negative octaves)
func Parse(s string) (Pitch, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Pitch{}, fmt.Errorf("pitch: empty pitch string")
	}

	parsed, err := pitchParser.ParseString("", s)
	if err != nil {
		return Pitch{}, fmt.Errorf("pitch: invalid pitch %q: %w", s, err)
	}

	step := Step(parsed.Step)
	if !step.IsValid() {
		return Pitch{}, fmt.Errorf("pitch: invalid step %q", parsed.Step)
	}

	alter, ok := accidentalAlters[parsed.Acc]
	if !ok {
		return Pitch{}, fmt.Errorf("pitch: invalid accidental %q in %q", parsed.Acc, s)
	}

	return Pitch{Step: step, Alter: alter, Octave: parsed.Octave}, nil
}
