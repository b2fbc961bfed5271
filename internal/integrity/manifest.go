package integrity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the checksum manifest written next to generated DAG files.
const ManifestFile = ".checksums"

// ErrNoManifest is returned when a directory has no checksum manifest.
var ErrNoManifest = errors.New("checksums file not found (run 'dagwright generate')")

// Manifest records the BLAKE3 hash of each generated file in a directory.
type Manifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	RunID       string            `yaml:"run_id,omitempty"`
	Hashes      map[string]string `yaml:"hashes"`
}

// Status is the verification outcome for one file.
type Status string

const (
	StatusOK       Status = "ok"
	StatusModified Status = "modified"
	StatusMissing  Status = "missing"
)

// FileResult captures verification details for one manifest entry.
type FileResult struct {
	Filename string
	Path     string
	Status   Status
	Expected string
	Actual   string
}

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// VerifyFileHash verifies a file against an expected BLAKE3 hash.
func VerifyFileHash(filePath, expectedHash string) error {
	actualHash, err := ComputeBlake3Hash(filePath)
	if err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}

	if actualHash != expectedHash {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s",
			filepath.Base(filePath), expectedHash, actualHash)
	}

	return nil
}

// Record hashes the given files (paths inside dir) and stores them in the
// directory's manifest, keeping entries for other files already recorded.
func Record(dir string, files []string, runID string) (*Manifest, error) {
	manifest, err := Load(dir)
	if err != nil {
		if !errors.Is(err, ErrNoManifest) {
			return nil, err
		}
		manifest = &Manifest{Version: 1, Hashes: make(map[string]string)}
	}
	manifest.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	manifest.RunID = runID

	for _, file := range files {
		name := filepath.Base(file)
		hash, err := ComputeBlake3Hash(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", name, err)
		}
		manifest.Hashes[name] = hash
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checksums: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write checksums: %w", err)
	}
	return manifest, nil
}

// Load reads the checksum manifest from dir.
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoManifest
		}
		return nil, fmt.Errorf("failed to read checksums: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse checksums: %w", err)
	}
	if manifest.Version != 1 {
		return nil, fmt.Errorf("unsupported checksums version: %d", manifest.Version)
	}
	if manifest.Hashes == nil {
		manifest.Hashes = make(map[string]string)
	}
	return &manifest, nil
}

// Verify checks every file recorded in dir's manifest. The returned error is
// non-nil when any file is modified or missing; results are always complete.
func Verify(dir string) ([]FileResult, error) {
	manifest, err := Load(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(manifest.Hashes))
	for name := range manifest.Hashes {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]FileResult, 0, len(names))
	var failed []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		res := FileResult{Filename: name, Path: path, Expected: manifest.Hashes[name]}

		actual, err := ComputeBlake3Hash(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			res.Status = StatusMissing
		case err != nil:
			return nil, fmt.Errorf("failed to hash %s: %w", name, err)
		case actual != res.Expected:
			res.Status = StatusModified
			res.Actual = actual
		default:
			res.Status = StatusOK
			res.Actual = actual
		}
		if res.Status != StatusOK {
			failed = append(failed, fmt.Sprintf("%s (%s)", name, res.Status))
		}
		results = append(results, res)
	}

	if len(failed) > 0 {
		return results, fmt.Errorf("generated files changed since last run: %v\n"+
			"If you edited them intentionally, edit the template instead and run: dagwright generate", failed)
	}
	return results, nil
}
