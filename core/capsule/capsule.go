package capsule

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/Partitura/core/cas"
	"github.com/FocuswithJustin/Partitura/core/errors"
	"github.com/FocuswithJustin/Partitura/core/score"
	"github.com/FocuswithJustin/Partitura/internal/safepath"
)

// CompressionType specifies the compression algorithm for capsule archives.
type CompressionType string

const (
	// CompressionXZ uses XZ/LZMA2 compression (default, best ratio).
	CompressionXZ CompressionType = "xz"
	// CompressionGzip uses gzip compression (stdlib, faster).
	CompressionGzip CompressionType = "gzip"
)

// PackOptions configures capsule packing behavior.
type PackOptions struct {
	// Compression specifies the compression algorithm. Defaults to XZ.
	Compression CompressionType
}

// DefaultPackOptions returns the default packing options (XZ compression).
func DefaultPackOptions() *PackOptions {
	return &PackOptions{Compression: CompressionXZ}
}

// Capsule represents an in-memory capsule with its manifest and blob store.
type Capsule struct {
	root     string
	Manifest *Manifest
	store    *cas.Store
}

// New creates a new empty capsule at the given root directory.
func New(root string) (*Capsule, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.NewIO("create directory", root, err)
	}

	store, err := cas.NewStore(root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create blob store")
	}

	return &Capsule{
		root:     root,
		Manifest: NewManifest(),
		store:    store,
	}, nil
}

// Root returns the root directory of the capsule.
func (c *Capsule) Root() string {
	return c.root
}

// Store returns the underlying blob store.
func (c *Capsule) Store() *cas.Store {
	return c.store
}

// storeBlob writes data into the store and records it in the manifest.
func (c *Capsule) storeBlob(data []byte, mime string) (string, error) {
	hash, err := c.store.Store(data)
	if err != nil {
		return "", errors.Wrap(err, "failed to store blob")
	}
	c.Manifest.Blobs[hash] = &BlobRecord{
		BLAKE3:    hash,
		SizeBytes: int64(len(data)),
		Path:      fmt.Sprintf("blobs/blake3/%s/%s", hash[:2], hash),
		MIME:      mime,
	}
	return hash, nil
}

// uniqueArtifactID returns id, suffixed if already taken.
func (c *Capsule) uniqueArtifactID(id string) string {
	candidate := id
	for n := 1; ; n++ {
		if _, exists := c.Manifest.Artifacts[candidate]; !exists {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", id, n)
	}
}

// IngestFile ingests a source file into the capsule, storing it in the
// blob store and recording it as a source artifact.
func (c *Capsule) IngestFile(path, format string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	return c.IngestBytes(filepath.Base(path), path, format, data)
}

// IngestBytes ingests in-memory source bytes under the given name.
func (c *Capsule) IngestBytes(name, sourcePath, format string, data []byte) (*Artifact, error) {
	if err := safepath.CheckName(name); err != nil {
		return nil, errors.NewValidation("artifact name", err.Error())
	}
	hash, err := c.storeBlob(data, "")
	if err != nil {
		return nil, err
	}

	artifact := &Artifact{
		ID:           c.uniqueArtifactID(artifactIDFrom(name)),
		Kind:         ArtifactKindSource,
		OriginalName: name,
		SourcePath:   sourcePath,
		Format:       format,
		BlobBLAKE3:   hash,
		SizeBytes:    int64(len(data)),
	}
	c.Manifest.Artifacts[artifact.ID] = artifact
	return artifact, nil
}

// StoreGraph serializes a score graph and stores it in the capsule,
// recording its fingerprint alongside the blob.
func (c *Capsule) StoreGraph(s *score.Score, sourceArtifactID string) (*Artifact, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize graph: %w", err)
	}
	fingerprint, err := score.Fingerprint(s)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fingerprint graph")
	}

	hash, err := c.storeBlob(data, "application/json")
	if err != nil {
		return nil, err
	}

	id := "graph"
	if sourceArtifactID != "" {
		id = "graph-" + sourceArtifactID
	}
	id = c.uniqueArtifactID(id)

	artifact := &Artifact{
		ID:           id,
		Kind:         ArtifactKindGraph,
		OriginalName: id + ".json",
		Format:       s.SourceFormat,
		BlobBLAKE3:   hash,
		SizeBytes:    int64(len(data)),
	}
	c.Manifest.Artifacts[id] = artifact

	if c.Manifest.Graphs == nil {
		c.Manifest.Graphs = make(map[string]*GraphRecord)
	}
	c.Manifest.Graphs[id] = &GraphRecord{
		ID:               id,
		SourceArtifactID: sourceArtifactID,
		GraphBlobBLAKE3:  hash,
		Fingerprint:      fingerprint,
		SourceFormat:     s.SourceFormat,
		Parts:            len(s.Parts),
		Notes:            s.NoteCount(),
	}
	return artifact, nil
}

// LoadGraph retrieves and deserializes a score graph from the capsule.
func (c *Capsule) LoadGraph(artifactID string) (*score.Score, error) {
	artifact, ok := c.Manifest.Artifacts[artifactID]
	if !ok {
		return nil, errors.NewNotFound("artifact", artifactID)
	}
	if artifact.Kind != ArtifactKindGraph {
		return nil, errors.NewValidation("artifact",
			fmt.Sprintf("artifact %s is not a graph (kind=%s)", artifactID, artifact.Kind))
	}

	data, err := c.store.Retrieve(artifact.BlobBLAKE3)
	if err != nil {
		return nil, errors.Wrap(err, "failed to retrieve graph blob")
	}

	var s score.Score
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.NewParse("graph", "", err.Error())
	}
	return &s, nil
}

// AddReport stores a check report and records it in the manifest.
func (c *Capsule) AddReport(id, kind, subjectArtifactID, status string, report []byte) (*ReportRecord, error) {
	if id == "" {
		return nil, errors.NewValidation("report", "report ID is required")
	}

	hash, err := c.storeBlob(report, "text/plain")
	if err != nil {
		return nil, err
	}

	artifactID := c.uniqueArtifactID(id)
	c.Manifest.Artifacts[artifactID] = &Artifact{
		ID:           artifactID,
		Kind:         ArtifactKindReport,
		OriginalName: artifactID + ".txt",
		BlobBLAKE3:   hash,
		SizeBytes:    int64(len(report)),
	}

	record := &ReportRecord{
		ID:                artifactID,
		Kind:              kind,
		SubjectArtifactID: subjectArtifactID,
		BlobBLAKE3:        hash,
		Status:            status,
	}
	if c.Manifest.Reports == nil {
		c.Manifest.Reports = make(map[string]*ReportRecord)
	}
	c.Manifest.Reports[artifactID] = record
	return record, nil
}

// GetReport retrieves a stored report's content.
func (c *Capsule) GetReport(id string) ([]byte, error) {
	record, ok := c.Manifest.Reports[id]
	if !ok {
		return nil, errors.NewNotFound("report", id)
	}
	return c.store.Retrieve(record.BlobBLAKE3)
}

// RetrieveArtifact retrieves an artifact's raw bytes.
func (c *Capsule) RetrieveArtifact(id string) ([]byte, error) {
	artifact, ok := c.Manifest.Artifacts[id]
	if !ok {
		return nil, errors.NewNotFound("artifact", id)
	}
	return c.store.Retrieve(artifact.BlobBLAKE3)
}

// SaveManifest saves the manifest to disk at the capsule root.
func (c *Capsule) SaveManifest() error {
	data, err := c.Manifest.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}
	path := filepath.Join(c.root, "manifest.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Verify checks every blob the manifest references: the blob must exist
// and its content must still match its hash. It returns one message per
// problem found.
func (c *Capsule) Verify() []string {
	var problems []string
	for hash, record := range c.Manifest.Blobs {
		if hash != record.BLAKE3 {
			problems = append(problems, fmt.Sprintf("blob %s: key does not match record hash %s", hash, record.BLAKE3))
			continue
		}
		data, err := c.store.Retrieve(hash)
		if err != nil {
			problems = append(problems, fmt.Sprintf("blob %s: %v", hash, err))
			continue
		}
		if int64(len(data)) != record.SizeBytes {
			problems = append(problems, fmt.Sprintf("blob %s: size %d, manifest says %d", hash, len(data), record.SizeBytes))
		}
	}
	for id, artifact := range c.Manifest.Artifacts {
		if _, ok := c.Manifest.Blobs[artifact.BlobBLAKE3]; !ok {
			problems = append(problems, fmt.Sprintf("artifact %s: blob %s not in manifest", id, artifact.BlobBLAKE3))
		}
	}
	return problems
}

// Pack packs the capsule into a tar.xz archive (default compression).
func (c *Capsule) Pack(archivePath string) error {
	return c.PackWithOptions(archivePath, DefaultPackOptions())
}

// PackWithOptions packs the capsule with the specified options. The
// manifest is written first so readers can stream it.
func (c *Capsule) PackWithOptions(archivePath string, opts *PackOptions) error {
	if opts == nil {
		opts = DefaultPackOptions()
	}

	file, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer file.Close()

	var compressWriter io.WriteCloser
	switch opts.Compression {
	case CompressionGzip:
		compressWriter, err = gzip.NewWriterLevel(file, gzip.BestCompression)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
	case CompressionXZ:
		fallthrough
	default:
		compressWriter, err = xz.NewWriter(file)
		if err != nil {
			return fmt.Errorf("failed to create xz writer: %w", err)
		}
	}
	defer compressWriter.Close()

	tarWriter := tar.NewWriter(compressWriter)
	defer tarWriter.Close()

	manifestData, err := c.Manifest.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}
	if err := writeToTar(tarWriter, "manifest.json", manifestData); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	blobsDir := filepath.Join(c.root, "blobs")
	if _, err := os.Stat(blobsDir); err == nil {
		err := filepath.Walk(blobsDir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			relPath, err := filepath.Rel(c.root, path)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return writeToTar(tarWriter, relPath, data)
		})
		if err != nil {
			return fmt.Errorf("failed to write blobs: %w", err)
		}
	}

	return nil
}

// DetectCompression detects the compression type of a capsule archive.
func DetectCompression(archivePath string) (CompressionType, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", errors.NewIO("open", archivePath, err)
	}
	defer file.Close()

	magic := make([]byte, 6)
	n, err := file.Read(magic)
	if err != nil {
		return "", errors.NewIO("read magic bytes", archivePath, err)
	}
	if n < 2 {
		return "", errors.NewValidation("archive", "file too small to detect compression")
	}

	if magic[0] == 0x1f && magic[1] == 0x8b {
		return CompressionGzip, nil
	}
	if n >= 6 && magic[0] == 0xfd && magic[1] == 0x37 && magic[2] == 0x7a &&
		magic[3] == 0x58 && magic[4] == 0x5a && magic[5] == 0x00 {
		return CompressionXZ, nil
	}

	return "", errors.NewUnsupported("compression format", "unknown magic bytes")
}

// Unpack unpacks a capsule archive into the given directory,
// auto-detecting the compression format.
func Unpack(archivePath, destDir string) (*Capsule, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	compression, err := DetectCompression(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect compression: %w", err)
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	var decompressReader io.Reader
	switch compression {
	case CompressionGzip:
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		decompressReader = gzReader
	case CompressionXZ:
		xzReader, err := xz.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		decompressReader = xzReader
	default:
		return nil, fmt.Errorf("unsupported compression: %s", compression)
	}

	tarReader := tar.NewReader(decompressReader)
	var manifest *Manifest

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar header: %w", err)
		}

		cleanPath, err := safepath.Within(destDir, header.Name)
		if err != nil {
			continue // skip malicious paths
		}
		destPath := filepath.Join(destDir, cleanPath)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create parent directory: %w", err)
			}
			data, err := io.ReadAll(tarReader)
			if err != nil {
				return nil, fmt.Errorf("failed to read file data: %w", err)
			}
			if err := os.WriteFile(destPath, data, 0644); err != nil {
				return nil, fmt.Errorf("failed to write file: %w", err)
			}
			if header.Name == "manifest.json" {
				manifest, err = ParseManifest(data)
				if err != nil {
					return nil, fmt.Errorf("failed to parse manifest: %w", err)
				}
			}
		}
	}

	if manifest == nil {
		return nil, fmt.Errorf("archive does not contain manifest.json")
	}

	store, err := cas.NewStore(destDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	return &Capsule{
		root:     destDir,
		Manifest: manifest,
		store:    store,
	}, nil
}

// writeToTar writes one file into the tar archive.
func writeToTar(tw *tar.Writer, name string, data []byte) error {
	header := &tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

// artifactIDFrom derives an artifact ID from a filename.
func artifactIDFrom(name string) string {
	id := strings.TrimSuffix(name, filepath.Ext(name))
	var result strings.Builder
	for _, c := range id {
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') || c == '.' || c == '_' || c == '-' {
			result.WriteRune(c)
		} else {
			result.WriteRune('_')
		}
	}
	if result.Len() == 0 {
		return "artifact"
	}
	return result.String()
}
