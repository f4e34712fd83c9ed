// Package publish serializes normalized collections into the published
// JSON file set and pushes it to optional remote targets.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cmvp-api/cmvp-scraper/internal/cmvp"
)

// Published file names under the output directory.
const (
	FileIndex      = "index.json"
	FileMetadata   = "metadata.json"
	FileModules    = "modules.json"
	FileHistorical = "historical-modules.json"
	FileInProcess  = "modules-in-process.json"
	FileAlgorithms = "algorithms.json"
)

// Snapshot is the complete output of one run.
type Snapshot struct {
	Metadata   cmvp.DatasetMetadata
	Validated  []cmvp.ModuleRecord
	Historical []cmvp.ModuleRecord
	InProcess  []cmvp.ModuleRecord
	Algorithms cmvp.AlgorithmReport
}

// Writer persists snapshots as static JSON files.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter returns a writer rooted at dir, creating it if needed.
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, logger: logger}, nil
}

type modulesDocument struct {
	Modules []cmvp.ModuleRecord `json:"modules"`
}

type indexEndpoint struct {
	Path        string `json:"path"`
	Description string `json:"description"`
}

type indexFeatures struct {
	AlgorithmsIncluded bool `json:"algorithms_included"`
}

type indexDocument struct {
	Name            string                   `json:"name"`
	Description     string                   `json:"description"`
	Endpoints       map[string]indexEndpoint `json:"endpoints"`
	Features        indexFeatures            `json:"features"`
	LastUpdated     string                   `json:"last_updated"`
	TotalModules    int                      `json:"total_modules"`
	TotalHistorical int                      `json:"total_historical"`
	TotalInProcess  int                      `json:"total_in_process"`
}

// WriteSnapshot serializes every document in the snapshot, each atomically
// (write-temp-then-rename), so a partial write never leaves a truncated
// published file visible to consumers. Returns the file names written.
func (w *Writer) WriteSnapshot(ctx context.Context, snap Snapshot) ([]string, error) {
	if snap.Algorithms.Algorithms == nil {
		snap.Algorithms.Algorithms = map[string]cmvp.AlgorithmEntry{}
	}

	documents := []struct {
		name    string
		payload any
	}{
		{FileModules, modulesDocument{Modules: ensureRecords(snap.Validated)}},
		{FileHistorical, modulesDocument{Modules: ensureRecords(snap.Historical)}},
		{FileInProcess, modulesDocument{Modules: ensureRecords(snap.InProcess)}},
		{FileAlgorithms, snap.Algorithms},
		{FileMetadata, snap.Metadata},
		{FileIndex, w.indexDocument(snap)},
	}

	written := make([]string, 0, len(documents))
	for _, doc := range documents {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if err := w.writeJSON(doc.name, doc.payload); err != nil {
			return written, err
		}
		written = append(written, doc.name)
		w.logger.Info("wrote document", zap.String("file", doc.name))
	}
	return written, nil
}

func (w *Writer) indexDocument(snap Snapshot) indexDocument {
	return indexDocument{
		Name:        "NIST CMVP Data API",
		Description: "Static API for NIST Cryptographic Module Validation Program validation records",
		Endpoints: map[string]indexEndpoint{
			"modules": {
				Path:        "/api/" + FileModules,
				Description: "Active validated cryptographic modules",
			},
			"historical_modules": {
				Path:        "/api/" + FileHistorical,
				Description: "Modules moved to historical status",
			},
			"modules_in_process": {
				Path:        "/api/" + FileInProcess,
				Description: "Modules currently working through validation",
			},
			"algorithms": {
				Path:        "/api/" + FileAlgorithms,
				Description: "Algorithm usage aggregated across validated modules",
			},
			"metadata": {
				Path:        "/api/" + FileMetadata,
				Description: "Snapshot generation metadata",
			},
		},
		Features:        indexFeatures{AlgorithmsIncluded: snap.Metadata.AlgorithmsIncluded},
		LastUpdated:     snap.Metadata.GeneratedAt,
		TotalModules:    snap.Metadata.TotalModules,
		TotalHistorical: snap.Metadata.TotalHistorical,
		TotalInProcess:  snap.Metadata.TotalInProcess,
	}
}

func (w *Writer) writeJSON(name string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return &cmvp.WriteError{Path: name, Err: err}
	}
	data = append(data, '\n')

	target := filepath.Join(w.dir, name)
	if err := atomicWriteFile(target, data, 0o644); err != nil {
		return &cmvp.WriteError{Path: target, Err: err}
	}
	return nil
}

// ensureRecords keeps empty collections as [] rather than null in output.
func ensureRecords(records []cmvp.ModuleRecord) []cmvp.ModuleRecord {
	if records == nil {
		return []cmvp.ModuleRecord{}
	}
	return records
}

// atomicWriteFile writes to a temp file in the target directory, syncs,
// then renames over the target. On crash either the old file or the new
// complete file exists.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := f.Name()

	success := false
	defer func() {
		if !success {
			_ = f.Close()
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	success = true
	return nil
}
