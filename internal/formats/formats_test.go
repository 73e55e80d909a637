package formats

import (
	"testing"

	"github.com/FocuswithJustin/Partitura/core/score"
)

func stubHandler(name string, ext string, detected bool) *Handler {
	return &Handler{
		Name:       name,
		Extensions: []string{ext},
		Detect: func(data []byte) *DetectResult {
			return &DetectResult{Detected: detected, Format: name}
		},
		Import: func(data []byte, opts ImportOptions) (*score.Score, error) {
			return &score.Score{SourceFormat: name}, nil
		},
		Export: func(s *score.Score) ([]byte, error) {
			return []byte(name), nil
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	Register(stubHandler("Alpha", ".alpha", false))
	h, err := Get("Alpha")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if h.Name != "Alpha" {
		t.Errorf("Name = %q, want Alpha", h.Name)
	}

	if _, err := Get("Missing"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRegisterIgnoresInvalid(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	Register(nil)
	Register(&Handler{})
	if got := len(List()); got != 0 {
		t.Errorf("registry has %d entries, want 0", got)
	}
}

func TestListSorted(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	Register(stubHandler("Zeta", ".z", false))
	Register(stubHandler("Alpha", ".a", false))

	handlers := List()
	if len(handlers) != 2 {
		t.Fatalf("got %d handlers, want 2", len(handlers))
	}
	if handlers[0].Name != "Alpha" || handlers[1].Name != "Zeta" {
		t.Errorf("handlers not sorted by name: %s, %s", handlers[0].Name, handlers[1].Name)
	}
}

func TestDetectOrder(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	Register(stubHandler("Beta", ".b", true))
	Register(stubHandler("Alpha", ".a", false))

	h, res := Detect([]byte("payload"))
	if h == nil || h.Name != "Beta" {
		t.Fatalf("Detect = %v, want Beta (%+v)", h, res)
	}

	resetRegistry()
	Register(stubHandler("Alpha", ".a", false))
	h, res = Detect([]byte("payload"))
	if h != nil || res.Detected {
		t.Error("expected no match")
	}
}

func TestByExtension(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	Register(stubHandler("Alpha", ".alpha", false))

	h, err := ByExtension(".alpha")
	if err != nil || h.Name != "Alpha" {
		t.Errorf("ByExtension(.alpha) = %v, %v", h, err)
	}
	if _, err := ByExtension(".nope"); err == nil {
		t.Error("expected error for unclaimed extension")
	}
}
