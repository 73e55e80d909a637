package quantize

import (
	"testing"

	"github.com/FocuswithJustin/Partitura/core/duration"
)

func TestNewRejectsBadResolution(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Error("New(0) should fail")
	}
	if _, err := New(-480); err == nil {
		t.Error("New(-480) should fail")
	}
	if _, err := NewWithGrid(480, 0); err == nil {
		t.Error("NewWithGrid with zero divisor should fail")
	}
}

func TestQuantizeDurationConcrete(t *testing.T) {
	q, err := New(480)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		ticks    int
		wantBase duration.Base
		wantDots int
	}{
		{480, duration.BaseQuarter, 0},
		{720, duration.BaseQuarter, 1},  // dotted quarter
		{840, duration.BaseQuarter, 2},  // double-dotted quarter
		{240, duration.BaseEighth, 0},
		{360, duration.BaseEighth, 1},
		{960, duration.BaseHalf, 0},
		{1920, duration.BaseWhole, 0},
		{120, duration.Base16th, 0},
		{475, duration.BaseQuarter, 0},  // near-quarter jitter
		{490, duration.BaseQuarter, 0},
	}

	for _, tt := range tests {
		base, dots, err := q.QuantizeDuration(tt.ticks)
		if err != nil {
			t.Fatalf("QuantizeDuration(%d): %v", tt.ticks, err)
		}
		if base != tt.wantBase || dots != tt.wantDots {
			t.Errorf("QuantizeDuration(%d) = (%s, %d), want (%s, %d)",
				tt.ticks, base, dots, tt.wantBase, tt.wantDots)
		}
	}
}

func TestQuantizeDurationRejectsNonPositive(t *testing.T) {
	q, err := New(480)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := q.QuantizeDuration(0); err == nil {
		t.Error("QuantizeDuration(0) should fail")
	}
	if _, _, err := q.QuantizeDuration(-10); err == nil {
		t.Error("QuantizeDuration(-10) should fail")
	}
}

func TestDurationRoundTrip(t *testing.T) {
	// quantizeDuration(ticksFor(base, dots)) == (base, dots) for every
	// representable grid point at several resolutions.
	for _, tpq := range []int{96, 480, 960} {
		q, err := New(tpq)
		if err != nil {
			t.Fatalf("New(%d): %v", tpq, err)
		}
		for _, base := range duration.Bases {
			for dots := 0; dots <= 3; dots++ {
				ticks, err := q.TicksFor(base, dots)
				if err != nil {
					t.Fatalf("TicksFor(%s, %d): %v", base, dots, err)
				}
				if ticks <= 0 {
					// Finer than the resolution can represent.
					continue
				}
				gotBase, gotDots, err := q.QuantizeDuration(ticks)
				if err != nil {
					t.Fatalf("QuantizeDuration(%d): %v", ticks, err)
				}
				gotTicks, err := q.TicksFor(gotBase, gotDots)
				if err != nil {
					t.Fatalf("TicksFor(%s, %d): %v", gotBase, gotDots, err)
				}
				// Distinct notations can share a tick value at coarse
				// resolutions; the round trip must at least preserve the
				// exact tick value, and where the value is unique it must
				// preserve the notation.
				if gotTicks != ticks {
					t.Errorf("tpq=%d: (%s, %d) -> %d ticks -> (%s, %d) -> %d ticks",
						tpq, base, dots, ticks, gotBase, gotDots, gotTicks)
				}
			}
		}
	}
}

func TestTieBreakFewerDots(t *testing.T) {
	q, err := New(480)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// 600 is equidistant between a quarter (480) and a dotted quarter
	// (720): the simpler representation wins.
	base, dots, err := q.QuantizeDuration(600)
	if err != nil {
		t.Fatalf("QuantizeDuration: %v", err)
	}
	if base != duration.BaseQuarter || dots != 0 {
		t.Errorf("QuantizeDuration(600) = (%s, %d), want (quarter, 0)", base, dots)
	}
}

func TestQuantizePositionGrid(t *testing.T) {
	q, err := New(480)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	step := q.GridStep()
	if step != 120 {
		t.Fatalf("GridStep() = %d, want 120", step)
	}

	tests := []struct {
		tick int
		want int
	}{
		{0, 0},
		{59, 0},
		{60, 120},
		{119, 120},
		{120, 120},
		{130, 120},
		{235, 240},
		{479, 480},
		{481, 480},
	}

	for _, tt := range tests {
		if got := q.QuantizePosition(tt.tick); got != tt.want {
			t.Errorf("QuantizePosition(%d) = %d, want %d", tt.tick, got, tt.want)
		}
	}
}

func TestQuantizePositionIdempotent(t *testing.T) {
	q, err := New(480)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	step := q.GridStep()
	for tick := 0; tick < 4*480; tick += 7 {
		once := q.QuantizePosition(tick)
		twice := q.QuantizePosition(once)
		if once != twice {
			t.Fatalf("QuantizePosition not idempotent at %d: %d != %d", tick, once, twice)
		}
		if once%step != 0 {
			t.Fatalf("QuantizePosition(%d) = %d not on the %d-tick grid", tick, once, step)
		}
	}
}

func TestQuantizePositionNegativeClampsToZero(t *testing.T) {
	q, err := New(480)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := q.QuantizePosition(-50); got != 0 {
		t.Errorf("QuantizePosition(-50) = %d, want 0", got)
	}
}

func TestCustomGridDivisor(t *testing.T) {
	// Eighth-note grid.
	q, err := NewWithGrid(480, 2)
	if err != nil {
		t.Fatalf("NewWithGrid: %v", err)
	}
	if got := q.GridStep(); got != 240 {
		t.Fatalf("GridStep() = %d, want 240", got)
	}
	if got := q.QuantizePosition(300); got != 240 {
		t.Errorf("QuantizePosition(300) = %d, want 240", got)
	}
}
