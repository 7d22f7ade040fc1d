// Package manifest reads and writes latest.json, the small record the
// publishing side uses to identify the current artifact and to decide
// whether a rebuild produced anything new.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/iidx-tools/songmaster/internal/util"
)

// Manifest mirrors the latest.json payload
type Manifest struct {
	FileName      string            `json:"file_name"`
	SchemaVersion string            `json:"schema_version"`
	GeneratedAt   string            `json:"generated_at"`
	SHA256        string            `json:"sha256"`
	ByteSize      int64             `json:"byte_size"`
	SourceHashes  map[string]string `json:"source_hashes,omitempty"`
}

// Build computes the manifest for an artifact on disk
func Build(artifactPath, schemaVersion, generatedAt string, sourceHashes map[string]string) (*Manifest, error) {
	hash, size, err := fileDigest(artifactPath)
	if err != nil {
		return nil, err
	}
	return &Manifest{
		FileName:      filepath.Base(artifactPath),
		SchemaVersion: schemaVersion,
		GeneratedAt:   generatedAt,
		SHA256:        hash,
		ByteSize:      size,
		SourceHashes:  sourceHashes,
	}, nil
}

// Write stores the manifest as indented JSON with a trailing newline
func Write(path string, m *Manifest) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Read loads a manifest file; a missing file returns (nil, nil) since
// the first-ever run has no previous manifest.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return m, nil
}

// Validate compares a written manifest against the artifact it describes
func Validate(manifestPath, artifactPath string) error {
	m, err := Read(manifestPath)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%w: manifest %s not found", util.ErrValidation, manifestPath)
	}

	hash, size, err := fileDigest(artifactPath)
	if err != nil {
		return err
	}

	if want := filepath.Base(artifactPath); m.FileName != want {
		return fmt.Errorf("%w: manifest file_name mismatch (manifest=%s, artifact=%s)",
			util.ErrValidation, m.FileName, want)
	}
	if m.SHA256 != hash {
		return fmt.Errorf("%w: manifest sha256 mismatch", util.ErrValidation)
	}
	if m.ByteSize != size {
		return fmt.Errorf("%w: manifest byte_size mismatch (manifest=%d, artifact=%d)",
			util.ErrValidation, m.ByteSize, size)
	}
	return nil
}

// UnchangedSince reports whether a fresh fetch matches the upstream
// hashes the previous manifest recorded, in which case a rebuild would
// produce an artifact identical up to timestamps and can be skipped.
// A previous manifest without source hashes never matches.
func (m *Manifest) UnchangedSince(sourceHashes map[string]string) bool {
	if m == nil || len(m.SourceHashes) == 0 || len(sourceHashes) == 0 {
		return false
	}
	if len(m.SourceHashes) != len(sourceHashes) {
		return false
	}
	for name, hash := range sourceHashes {
		if m.SourceHashes[name] != hash {
			return false
		}
	}
	return true
}

func fileDigest(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	digest := sha256.New()
	size, err := io.Copy(digest, file)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash artifact: %w", err)
	}
	return hex.EncodeToString(digest.Sum(nil)), size, nil
}
