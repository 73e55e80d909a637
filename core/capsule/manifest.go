// Package capsule provides a portable, immutable evidence container for
// score reconstruction runs: the source bytes, the reconstructed graph,
// and the reports produced while checking it, all content-addressed and
// packed into a single archive.
package capsule

import (
	"encoding/json"
	"time"
)

// Version is the current capsule format version.
const Version = "1.0.0"

// Artifact kinds stored in a capsule.
const (
	ArtifactKindSource = "source"
	ArtifactKindGraph  = "graph"
	ArtifactKindReport = "report"
)

// Report kinds recorded in the manifest.
const (
	ReportKindValidation = "validation"
	ReportKindRoundTrip  = "roundtrip"
)

// Manifest represents the capsule manifest (manifest.json).
type Manifest struct {
	CapsuleVersion string                   `json:"capsule_version"`
	CreatedAt      string                   `json:"created_at"`
	Tool           ToolInfo                 `json:"tool"`
	Blobs          map[string]*BlobRecord   `json:"blobs"`
	Artifacts      map[string]*Artifact     `json:"artifacts"`
	Graphs         map[string]*GraphRecord  `json:"graphs,omitempty"`
	Reports        map[string]*ReportRecord `json:"reports,omitempty"`
}

// ToolInfo describes the tool that created this capsule.
type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// BlobRecord describes a blob in the capsule, keyed by BLAKE3 hash.
type BlobRecord struct {
	BLAKE3    string `json:"blake3"`
	SizeBytes int64  `json:"size_bytes"`
	Path      string `json:"path"`
	MIME      string `json:"mime,omitempty"`
}

// Artifact represents a stored artifact.
type Artifact struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	OriginalName string `json:"original_name,omitempty"`
	SourcePath   string `json:"source_path,omitempty"`
	Format       string `json:"format,omitempty"`
	BlobBLAKE3   string `json:"blob_blake3"`
	SizeBytes    int64  `json:"size_bytes,omitempty"`
}

// GraphRecord describes a reconstructed score graph in the manifest.
type GraphRecord struct {
	// ID matches the graph artifact's ID.
	ID string `json:"id"`

	// SourceArtifactID is the source the graph was reconstructed from.
	SourceArtifactID string `json:"source_artifact_id,omitempty"`

	// GraphBlobBLAKE3 is the hash of the serialized graph.
	GraphBlobBLAKE3 string `json:"graph_blob_blake3"`

	// Fingerprint is the canonical content fingerprint of the graph,
	// stable across serializations.
	Fingerprint string `json:"fingerprint"`

	// SourceFormat is the format the graph came from.
	SourceFormat string `json:"source_format,omitempty"`

	// Parts and Notes are summary counts for quick inspection.
	Parts int `json:"parts"`
	Notes int `json:"notes"`
}

// ReportRecord describes a stored check report.
type ReportRecord struct {
	ID                string `json:"id"`
	Kind              string `json:"kind"`
	SubjectArtifactID string `json:"subject_artifact_id,omitempty"`
	BlobBLAKE3        string `json:"blob_blake3"`

	// Status is "pass" or "fail".
	Status string `json:"status"`
}

// NewManifest creates a new manifest with default values.
func NewManifest() *Manifest {
	return &Manifest{
		CapsuleVersion: Version,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
		Tool: ToolInfo{
			Name:    "partitura",
			Version: Version,
		},
		Blobs:     make(map[string]*BlobRecord),
		Artifacts: make(map[string]*Artifact),
	}
}

// ToJSON serializes the manifest to JSON.
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ParseManifest parses a manifest from JSON.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Blobs == nil {
		m.Blobs = make(map[string]*BlobRecord)
	}
	if m.Artifacts == nil {
		m.Artifacts = make(map[string]*Artifact)
	}
	return &m, nil
}
