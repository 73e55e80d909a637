// Package quantize maps raw tick values from a performance-encoded event
// stream onto notated durations. Position snapping runs before duration
// quantization: durations are computed as gaps between already-snapped
// onsets, which keeps human timing jitter from leaking into note values.
package quantize

import (
	"github.com/FocuswithJustin/Partitura/core/duration"
	"github.com/FocuswithJustin/Partitura/core/errors"
	"github.com/FocuswithJustin/Partitura/core/rational"
)

// DefaultGridDivisor is the default sub-beat snap grid: sixteenth-note
// resolution (four grid points per quarter).
const DefaultGridDivisor = 4

// Quantizer maps ticks to notated durations at a fixed resolution.
type Quantizer struct {
	ticksPerQuarter int
	gridDivisor     int

	// grid holds every representable (base, dots) point with its exact
	// tick value, precomputed at construction.
	grid []gridPoint
}

type gridPoint struct {
	base  duration.Base
	dots  int
	ticks int
}

// New creates a Quantizer for the given event-stream resolution, snapping
// positions at the default sixteenth-note grid. Non-positive resolutions
// are rejected.
func New(ticksPerQuarter int) (*Quantizer, error) {
	return NewWithGrid(ticksPerQuarter, DefaultGridDivisor)
}

// NewWithGrid creates a Quantizer with an explicit position-snap grid
// divisor (grid points per quarter note).
func NewWithGrid(ticksPerQuarter, gridDivisor int) (*Quantizer, error) {
	if ticksPerQuarter <= 0 {
		return nil, errors.NewValidation("ticksPerQuarter",
			"must be positive")
	}
	if gridDivisor <= 0 {
		return nil, errors.NewValidation("gridDivisor",
			"must be positive")
	}

	q := &Quantizer{
		ticksPerQuarter: ticksPerQuarter,
		gridDivisor:     gridDivisor,
	}
	for _, base := range duration.Bases {
		for dots := 0; dots <= 3; dots++ {
			d := duration.Duration{Base: base, Dots: dots}
			v, err := d.QuarterValue()
			if err != nil {
				return nil, err
			}
			ticks, _ := v.Mul(rational.FromInt(int64(ticksPerQuarter))).Divisions(1)
			if ticks <= 0 {
				// Below the grid's resolution; unreachable targets are
				// excluded so zero-tick inputs cannot match them.
				continue
			}
			q.grid = append(q.grid, gridPoint{base: base, dots: dots, ticks: ticks})
		}
	}
	return q, nil
}

// TicksPerQuarter returns the quantizer's event-stream resolution.
func (q *Quantizer) TicksPerQuarter() int {
	return q.ticksPerQuarter
}

// TicksFor returns the tick value of a (base, dots) pair at the quantizer's
// resolution, rounded to the nearest integer.
func (q *Quantizer) TicksFor(base duration.Base, dots int) (int, error) {
	d := duration.Duration{Base: base, Dots: dots}
	v, err := d.QuarterValue()
	if err != nil {
		return 0, err
	}
	ticks, _ := v.Mul(rational.FromInt(int64(q.ticksPerQuarter))).Divisions(1)
	return ticks, nil
}

// QuantizeDuration maps a raw tick duration to the (base, dots) pair whose
// exact tick value is closest. Distance ties break toward the simpler
// representation (fewer dots, then the longer base). Non-positive inputs
// are rejected.
func (q *Quantizer) QuantizeDuration(ticks int) (duration.Base, int, error) {
	if ticks <= 0 {
		return "", 0, errors.NewValidation("ticks",
			"duration must be positive")
	}

	best := q.grid[0]
	bestDist := distance(ticks, best.ticks)
	for _, p := range q.grid[1:] {
		d := distance(ticks, p.ticks)
		if d < bestDist || (d == bestDist && p.dots < best.dots) {
			best = p
			bestDist = d
		}
	}
	return best.base, best.dots, nil
}

// QuantizePosition snaps an absolute tick position to the nearest point on
// the sub-beat grid. The result is always a multiple of
// ticksPerQuarter/gridDivisor, and snapping is idempotent.
func (q *Quantizer) QuantizePosition(tick int) int {
	step := q.ticksPerQuarter / q.gridDivisor
	if step <= 0 {
		step = 1
	}
	if tick <= 0 {
		return 0
	}
	return ((tick + step/2) / step) * step
}

// GridStep returns the position-snap step in ticks.
func (q *Quantizer) GridStep() int {
	step := q.ticksPerQuarter / q.gridDivisor
	if step <= 0 {
		step = 1
	}
	return step
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
