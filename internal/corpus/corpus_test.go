package corpus

import (
	"context"
	"path/filepath"
	"testing"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "corpus.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(source, fingerprint string) *Run {
	return &Run{
		Source:      source,
		Format:      "MusicXML",
		Fingerprint: fingerprint,
		Parts:       1,
		Notes:       12,
		Violations:  0,
		Differences: 0,
		Pass:        true,
	}
}

func TestRecordAndList(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run := sampleRun("air.musicxml", "abc123")
	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if run.ID == 0 {
		t.Error("Record() should assign an ID")
	}
	if run.RecordedAt.IsZero() {
		t.Error("Record() should set the timestamp")
	}

	runs, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("List() = %d runs, want 1", len(runs))
	}
	got := runs[0]
	if got.Source != "air.musicxml" || got.Fingerprint != "abc123" || !got.Pass {
		t.Errorf("round-tripped run = %+v", got)
	}
	if got.Notes != 12 {
		t.Errorf("notes = %d, want 12", got.Notes)
	}
}

func TestRecordValidation(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, &Run{Fingerprint: "x"}); err == nil {
		t.Error("Record() should require a source")
	}
	if err := store.Record(ctx, &Run{Source: "x"}); err == nil {
		t.Error("Record() should require a fingerprint")
	}
}

func TestListOrderAndLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for _, fp := range []string{"first", "second", "third"} {
		if err := store.Record(ctx, sampleRun("suite.mid", fp)); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	runs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("List(2) = %d runs, want 2", len(runs))
	}
	if runs[0].Fingerprint != "third" || runs[1].Fingerprint != "second" {
		t.Errorf("List() order = %s, %s; want newest first", runs[0].Fingerprint, runs[1].Fingerprint)
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List(0) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List(0) = %d runs, want 3", len(all))
	}
}

func TestLatestAndBySource(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, sampleRun("a.musicxml", "v1")); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := store.Record(ctx, sampleRun("b.musicxml", "other")); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := store.Record(ctx, sampleRun("a.musicxml", "v2")); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	latest, err := store.Latest(ctx, "a.musicxml")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Fingerprint != "v2" {
		t.Errorf("Latest() fingerprint = %q, want v2", latest.Fingerprint)
	}

	runs, err := store.BySource(ctx, "a.musicxml")
	if err != nil {
		t.Fatalf("BySource() error = %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("BySource() = %d runs, want 2", len(runs))
	}

	if _, err := store.Latest(ctx, "never-seen.xml"); err == nil {
		t.Error("Latest() should fail for an unknown source")
	}
}

func TestRegressed(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	// No history: never a regression.
	regressed, prev, err := store.Regressed(ctx, "new.mid", "fp1")
	if err != nil {
		t.Fatalf("Regressed() error = %v", err)
	}
	if regressed || prev != nil {
		t.Errorf("Regressed() on empty history = %v, %+v", regressed, prev)
	}

	if err := store.Record(ctx, sampleRun("new.mid", "fp1")); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	regressed, prev, err = store.Regressed(ctx, "new.mid", "fp1")
	if err != nil {
		t.Fatalf("Regressed() error = %v", err)
	}
	if regressed {
		t.Error("identical fingerprint should not regress")
	}
	if prev == nil || prev.Fingerprint != "fp1" {
		t.Errorf("previous run = %+v, want fp1", prev)
	}

	regressed, prev, err = store.Regressed(ctx, "new.mid", "fp2")
	if err != nil {
		t.Fatalf("Regressed() error = %v", err)
	}
	if !regressed {
		t.Error("changed fingerprint should regress")
	}
	if prev == nil || prev.Fingerprint != "fp1" {
		t.Errorf("previous run = %+v, want fp1", prev)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	if err := first.Record(context.Background(), sampleRun("x.mid", "fp")); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer second.Close()

	runs, err := second.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("reopened store has %d runs, want 1", len(runs))
	}
}
