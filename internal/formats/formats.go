// Package formats defines the handler interface for score file formats
// and the registry format packages register themselves into.
package formats

import (
	"sort"

	"github.com/FocuswithJustin/Partitura/core/errors"
	"github.com/FocuswithJustin/Partitura/core/score"
)

// DetectResult is the outcome of probing data against one format.
type DetectResult struct {
	Detected bool   `json:"detected"`
	Format   string `json:"format,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ImportOptions tunes format-specific import behavior.
type ImportOptions struct {
	// GridDivisor is the quantization grid divisor for tick-based
	// formats. Zero means the format's default.
	GridDivisor int
}

// Handler converts between a native format and the score graph.
type Handler struct {
	// Name is the canonical format name ("MusicXML", "SMF").
	Name string

	// Extensions lists lowercase file extensions the format claims.
	Extensions []string

	// Detect probes raw data for this format.
	Detect func(data []byte) *DetectResult

	// Import parses native data into a score graph with resolved
	// spanners.
	Import func(data []byte, opts ImportOptions) (*score.Score, error)

	// Export renders a score graph to native data.
	Export func(s *score.Score) ([]byte, error)
}

// registry holds all registered format handlers.
var registry = make(map[string]*Handler)

// Register registers a format handler by its name. Later registrations
// with the same name replace earlier ones.
func Register(h *Handler) {
	if h != nil && h.Name != "" {
		registry[h.Name] = h
	}
}

// Get returns the handler with the given name, or an error.
func Get(name string) (*Handler, error) {
	h, ok := registry[name]
	if !ok {
		return nil, errors.NewNotFound("format", name)
	}
	return h, nil
}

// List returns all registered handlers sorted by name.
func List() []*Handler {
	out := make([]*Handler, 0, len(registry))
	for _, h := range registry {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Detect probes data against every registered handler and returns the
// first positive match in name order.
func Detect(data []byte) (*Handler, *DetectResult) {
	for _, h := range List() {
		if h.Detect == nil {
			continue
		}
		if res := h.Detect(data); res != nil && res.Detected {
			return h, res
		}
	}
	return nil, &DetectResult{Detected: false, Reason: "no registered format matched"}
}

// ByExtension returns the handler claiming the given lowercase
// extension (with leading dot), or an error.
func ByExtension(ext string) (*Handler, error) {
	for _, h := range List() {
		for _, e := range h.Extensions {
			if e == ext {
				return h, nil
			}
		}
	}
	return nil, errors.NewNotFound("format for extension", ext)
}

// resetRegistry clears the registry. Tests only.
func resetRegistry() {
	registry = make(map[string]*Handler)
}
