package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/a3tai/syllabus-extractor/internal/syllabus"
)

const (
	// CombinedFileName holds every objective of a run.
	CombinedFileName = "combined_syllabuses.json"
	// SummaryFileName holds the run statistics.
	SummaryFileName = "processing_summary.json"
)

// Stats are the per-run counters written to the summary.
type Stats struct {
	TotalFiles      int `json:"total_files"`
	Processed       int `json:"processed"`
	Skipped         int `json:"skipped"`
	Failed          int `json:"failed"`
	TotalObjectives int `json:"total_objectives"`
}

// Failure names a document that could not be processed.
type Failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Summary is the content of processing_summary.json.
type Summary struct {
	Stats     Stats     `json:"stats"`
	Timestamp string    `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Failures  []Failure `json:"failures"`
}

// ArtifactPath returns the per-document artifact path for a source PDF:
// the source stem with a .json extension inside outputDir.
func ArtifactPath(outputDir, source string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, stem+".json")
}

// WriteJSON writes v as two-space indented UTF-8 JSON without HTML escaping.
// The file is written next to path and renamed into place so readers never
// see a partial artifact.
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadArtifact decodes a per-document or combined artifact.
func ReadArtifact(path string) ([]syllabus.Objective, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var objectives []syllabus.Objective
	if err := json.Unmarshal(data, &objectives); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if objectives == nil {
		return nil, fmt.Errorf("decode %s: not an objective list", filepath.Base(path))
	}
	for i := range objectives {
		objectives[i] = objectives[i].Normalized()
	}
	return objectives, nil
}

// ReadSummary decodes processing_summary.json from outputDir.
func ReadSummary(outputDir string) (*Summary, error) {
	data, err := os.ReadFile(filepath.Join(outputDir, SummaryFileName))
	if err != nil {
		return nil, err
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("decode %s: %w", SummaryFileName, err)
	}
	return &summary, nil
}
