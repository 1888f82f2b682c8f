package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdferrors "github.com/a3tai/syllabus-extractor/internal/pdf/errors"
	"github.com/a3tai/syllabus-extractor/internal/pdf/pdftest"
	"github.com/a3tai/syllabus-extractor/internal/syllabus"
)

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func writeBiology(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "biology.pdf")
	pdftest.WriteSyllabus(t, path,
		pdftest.Page{
			Headings: []string{"SECTION 1: CELL BIOLOGY"},
			Ruled:    true,
			Rows: [][]string{
				{"SPECIFIC OBJECTIVES", "CONTENT"},
				{"1. Explain the process of photosynthesis in green plants", "Light reactions; dark reactions; chlorophyll role"},
				{"2. State the functions of the cell membrane", "Diffusion; osmosis; active transport"},
				{"TOTAL", ""},
			},
		},
		pdftest.Page{
			Headings: []string{"SECTION 2: ECOLOGY"},
			Ruled:    true,
			Rows: [][]string{
				{"1. Explain the process of photosynthesis in green plants", "Light reactions; dark reactions; chlorophyll role"},
				{"3. Evaluate the impact of deforestation on habitats", "Biodiversity loss; soil erosion"},
			},
		},
	)
	return path
}

func writeChemistry(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "chemistry.pdf")
	pdftest.WriteSyllabus(t, path, pdftest.Page{
		Headings: []string{"SECTION A: ATOMIC STRUCTURE"},
		Rows: [][]string{
			{"Describe the structure of the atom", "Protons; neutrons; electrons"},
			{"Calculate the relative atomic mass", "Isotopes and abundance"},
		},
	})
	return path
}

// age moves the modification time of path into the past.
func age(t *testing.T, path string, by time.Duration) {
	t.Helper()
	past := time.Now().Add(-by)
	require.NoError(t, os.Chtimes(path, past, past))
}

func TestSubjectPrefix(t *testing.T) {
	tests := map[string]string{
		"biology.pdf":                "BIO",
		"CSEC_Chemistry.pdf":         "CHEM",
		"physics_2024.pdf":           "PHYS",
		"mathematics.pdf":            "MATH",
		"english_a.pdf":              "ENG",
		"principles_of_business.pdf": "POB",
		"pob.pdf":                    "POB",
		"economics.pdf":              "ECON",
		"it_syllabus.pdf":            "IT",
		"social_studies.pdf":         "SOC",
		"geography.pdf":              "GEO",
		"history.pdf":                "HIST",
		"agricultural_science.pdf":   "AGRI",
		"music.pdf":                  "GEN",
	}
	for name, want := range tests {
		assert.Equal(t, want, SubjectPrefix(name), name)
	}
}

func TestDedupAndAssignIDs(t *testing.T) {
	objectives := []syllabus.Objective{
		{Hash: "a", Objective: "first"},
		{Hash: "b", Objective: "second"},
		{Hash: "a", Objective: "duplicate"},
		{Hash: "c", Objective: "third"},
	}

	unique := Dedup(objectives)
	AssignIDs(unique, "BIO")

	require.Len(t, unique, 3)
	assert.Equal(t, "first", unique[0].Objective)
	assert.Equal(t, []string{"BIO-00001", "BIO-00002", "BIO-00003"},
		[]string{unique[0].ID, unique[1].ID, unique[2].ID})
	assert.Empty(t, Dedup(nil))
}

func TestParseCacheMode(t *testing.T) {
	mode, err := ParseCacheMode("")
	require.NoError(t, err)
	assert.Equal(t, CacheByModTime, mode)

	mode, err = ParseCacheMode("content")
	require.NoError(t, err)
	assert.Equal(t, CacheByContent, mode)

	_, err = ParseCacheMode("etag")
	assert.Error(t, err)
}

func TestArtifactPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "Bio.Logy.json"), ArtifactPath("out", "/in/Bio.Logy.pdf"))
	assert.Equal(t, filepath.Join("out", "notes.json"), ArtifactPath("out", "notes.PDF"))
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	require.NoError(t, WriteJSON(path, []syllabus.Objective{{ID: "GEN-00001", Content: "<b> & co"}}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {\n    \"id\": \"GEN-00001\"")
	assert.Contains(t, string(data), `"content": "<b> & co"`)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	require.NoError(t, WriteJSON(path, []syllabus.Objective{}))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestReadArtifact(t *testing.T) {
	dir := t.TempDir()

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))
	_, err := ReadArtifact(corrupt)
	assert.Error(t, err)

	null := filepath.Join(dir, "null.json")
	require.NoError(t, os.WriteFile(null, []byte("null"), 0o644))
	_, err = ReadArtifact(null)
	assert.Error(t, err)

	ok := filepath.Join(dir, "ok.json")
	require.NoError(t, os.WriteFile(ok, []byte(`[{"id":"GEN-00001","skills":null}]`), 0o644))
	objectives, err := ReadArtifact(ok)
	require.NoError(t, err)
	require.Len(t, objectives, 1)
	assert.NotNil(t, objectives[0].Skills)
}

func TestParseExtractsDocument(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	path := writeBiology(t, in)

	p := NewParser(out, WithClock(fixedClock))
	result := p.Parse(context.Background(), path, false)
	require.NoError(t, result.Err)
	assert.Equal(t, StatusProcessed, result.Status)
	assert.Equal(t, "biology.pdf", result.Filename)
	assert.Len(t, result.SourceDigest, 64)

	require.Len(t, result.Objectives, 3)
	first, second, third := result.Objectives[0], result.Objectives[1], result.Objectives[2]

	assert.Equal(t, "BIO-00001", first.ID)
	assert.Equal(t, "SECTION 1: CELL BIOLOGY", first.Section)
	assert.Equal(t, syllabus.DefaultSubsection, first.Subsection)
	assert.Equal(t, 1, first.PageNumber)
	assert.Equal(t, 2, first.Difficulty)
	assert.Equal(t, []string{"Explain the process of photosynthesis in green plants"}, first.SpecificObjectives)
	assert.Equal(t, []string{"Light reactions", "dark reactions", "chlorophyll role"}, first.ContentItems)
	assert.Equal(t, "biology.pdf", first.SourceFile)
	assert.Equal(t, fixedNow.Format(time.RFC3339), first.ExtractionDate)

	assert.Equal(t, "BIO-00002", second.ID)
	assert.Equal(t, 1, second.Difficulty)

	// the repeated photosynthesis row on page 2 is dropped
	assert.Equal(t, "BIO-00003", third.ID)
	assert.Equal(t, "SECTION 2: ECOLOGY", third.Section)
	assert.Equal(t, 2, third.PageNumber)
	assert.Equal(t, 3, third.Difficulty)

	seen := map[string]bool{}
	for _, o := range result.Objectives {
		assert.False(t, seen[o.Hash], "duplicate hash %s", o.Hash)
		seen[o.Hash] = true
		assert.NotContains(t, o.Objective, "TOTAL")
	}

	stored, err := ReadArtifact(filepath.Join(out, "biology.json"))
	require.NoError(t, err)
	assert.Equal(t, result.Objectives, stored)
}

func TestParseIsIdempotent(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	path := writeBiology(t, in)
	p := NewParser(out, WithClock(fixedClock))

	first := p.Parse(context.Background(), path, true)
	require.NoError(t, first.Err)
	firstBytes, err := os.ReadFile(first.ArtifactPath)
	require.NoError(t, err)

	second := p.Parse(context.Background(), path, true)
	require.NoError(t, second.Err)
	assert.Equal(t, StatusProcessed, second.Status)
	secondBytes, err := os.ReadFile(second.ArtifactPath)
	require.NoError(t, err)

	assert.Equal(t, first.Objectives, second.Objectives)
	assert.Equal(t, string(firstBytes), string(secondBytes))
}

func TestParseSkipsUpToDateArtifact(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	path := writeBiology(t, in)
	age(t, path, time.Hour)
	p := NewParser(out, WithClock(fixedClock))

	first := p.Parse(context.Background(), path, false)
	require.Equal(t, StatusProcessed, first.Status)
	written, err := os.ReadFile(first.ArtifactPath)
	require.NoError(t, err)

	second := p.Parse(context.Background(), path, false)
	assert.Equal(t, StatusSkipped, second.Status)
	assert.Equal(t, first.Objectives, second.Objectives)
	kept, err := os.ReadFile(second.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, written, kept, "a skipped document keeps its artifact untouched")

	forced := p.Parse(context.Background(), path, true)
	assert.Equal(t, StatusProcessed, forced.Status)

	// a source newer than its artifact is reparsed
	age(t, first.ArtifactPath, 2*time.Hour)
	stale := p.Parse(context.Background(), path, false)
	assert.Equal(t, StatusProcessed, stale.Status)
}

func TestParseReparsesCorruptCache(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	path := writeBiology(t, in)
	age(t, path, time.Hour)

	require.NoError(t, os.WriteFile(filepath.Join(out, "biology.json"), []byte("{broken"), 0o644))

	result := NewParser(out).Parse(context.Background(), path, false)
	require.NoError(t, result.Err)
	assert.Equal(t, StatusProcessed, result.Status)
	assert.Len(t, result.Objectives, 3)
}

type digestMap map[string]string

func (d digestMap) LookupDigest(_ context.Context, filename string) (string, bool, error) {
	digest, ok := d[filename]
	return digest, ok, nil
}

func TestParseContentCache(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	path := writeBiology(t, in)

	digest, err := FileDigest(path)
	require.NoError(t, err)

	first := NewParser(out).Parse(context.Background(), path, false)
	require.Equal(t, StatusProcessed, first.Status)
	assert.Equal(t, digest, first.SourceDigest)

	// the artifact is older than the source, but the content is unchanged
	age(t, first.ArtifactPath, 2*time.Hour)

	matching := NewParser(out, WithCacheMode(CacheByContent), WithDigestLookup(digestMap{"biology.pdf": digest}))
	assert.Equal(t, StatusSkipped, matching.Parse(context.Background(), path, false).Status)

	changed := NewParser(out, WithCacheMode(CacheByContent), WithDigestLookup(digestMap{"biology.pdf": "0000"}))
	assert.Equal(t, StatusProcessed, changed.Parse(context.Background(), path, false).Status)

	unknown := NewParser(out, WithCacheMode(CacheByContent), WithDigestLookup(digestMap{}))
	assert.Equal(t, StatusProcessed, unknown.Parse(context.Background(), path, false).Status)
}

func TestParseCorruptDocument(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	path := filepath.Join(in, "bad.pdf")
	pdftest.WriteGarbage(t, path)

	result := NewParser(out).Parse(context.Background(), path, false)
	assert.Equal(t, StatusFailed, result.Status)
	require.Error(t, result.Err)
	assert.True(t, pdferrors.IsType(result.Err, pdferrors.ErrorTypeDocumentRead))
	assert.NotNil(t, result.Objectives)
	assert.Empty(t, result.Objectives)
	assert.NoFileExists(t, filepath.Join(out, "bad.json"))

	missing := NewParser(out).Parse(context.Background(), filepath.Join(in, "missing.pdf"), false)
	assert.Equal(t, StatusFailed, missing.Status)
}

type recorder struct {
	reports []*BatchReport
	err     error
}

func (r *recorder) RecordRun(_ context.Context, report *BatchReport) error {
	r.reports = append(r.reports, report)
	return r.err
}

func TestCoordinatorRunIsResilient(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeBiology(t, in)
	writeChemistry(t, in)
	pdftest.WriteGarbage(t, filepath.Join(in, "bad.pdf"))

	rec := &recorder{}
	c := NewCoordinator(NewParser(out), WithWorkers(2), WithRecorder(rec))

	report, err := c.Run(context.Background(), in, false)
	require.NoError(t, err)
	require.True(t, report.Written)
	assert.NotEmpty(t, report.RunID)
	assert.Len(t, report.Results, 3)

	assert.Equal(t, Stats{TotalFiles: 3, Processed: 2, Skipped: 0, Failed: 1, TotalObjectives: 5}, report.Summary.Stats)
	require.Len(t, report.Summary.Failures, 1)
	assert.Equal(t, "bad.pdf", report.Summary.Failures[0].File)

	combined, err := ReadArtifact(filepath.Join(out, CombinedFileName))
	require.NoError(t, err)
	assert.Len(t, combined, 5)
	for _, o := range combined {
		assert.Contains(t, []string{"biology.pdf", "chemistry.pdf"}, o.SourceFile)
	}

	summary, err := ReadSummary(out)
	require.NoError(t, err)
	assert.Equal(t, report.Summary.Stats, summary.Stats)
	assert.Equal(t, report.RunID, summary.RunID)

	require.Len(t, rec.reports, 1)
	assert.Same(t, report, rec.reports[0])
}

func TestCoordinatorSecondRunSkips(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	age(t, writeBiology(t, in), time.Hour)
	age(t, writeChemistry(t, in), time.Hour)

	c := NewCoordinator(NewParser(out), WithRecorder(&recorder{err: assert.AnError}))

	first, err := c.Run(context.Background(), in, false)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Summary.Stats.Processed)

	second, err := c.Run(context.Background(), in, false)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalFiles: 2, Skipped: 2, TotalObjectives: 5}, second.Summary.Stats)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestCoordinatorEmptyInput(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "out")

	report, err := NewCoordinator(NewParser(out)).Run(context.Background(), in, false)
	require.NoError(t, err)
	assert.False(t, report.Written)
	assert.NoDirExists(t, out)
}

func TestCoordinatorMissingInput(t *testing.T) {
	_, err := NewCoordinator(NewParser(t.TempDir())).Run(context.Background(), filepath.Join(t.TempDir(), "nope"), false)
	require.Error(t, err)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypeInputDirectory))
}

func TestPartitionArtifacts(t *testing.T) {
	out := "out"
	files := []string{
		filepath.Join("in", "bio.PDF"),
		filepath.Join("in", "bio.pdf"),
		filepath.Join("in", "chemistry.pdf"),
		filepath.Join("in", "sub", "bio.pdf"),
	}

	unique, collisions := PartitionArtifacts(out, files)
	assert.Equal(t, []string{files[0], files[2]}, unique)
	require.Len(t, collisions, 2)
	assert.Equal(t, files[1], collisions[0].Path)
	assert.Equal(t, files[3], collisions[1].Path)
	for _, c := range collisions {
		assert.Equal(t, StatusFailed, c.Status)
		assert.Equal(t, filepath.Join(out, "bio.json"), c.ArtifactPath)
		assert.NotNil(t, c.Objectives)
		assert.True(t, pdferrors.IsType(c.Err, pdferrors.ErrorTypeArtifactWrite))
		assert.ErrorContains(t, c.Err, "bio.json belongs to bio.PDF")
	}

	unique, collisions = PartitionArtifacts(out, files[1:3])
	assert.Equal(t, files[1:3], unique)
	assert.Empty(t, collisions)
}

func TestCoordinatorRejectsArtifactCollision(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	pdftest.WriteSyllabus(t, filepath.Join(in, "bio.PDF"), pdftest.Page{
		Rows: [][]string{
			{"Explain the process of photosynthesis in green plants", "Light reactions; dark reactions"},
		},
	})
	pdftest.WriteSyllabus(t, filepath.Join(in, "bio.pdf"), pdftest.Page{
		Rows: [][]string{
			{"Describe the structure of the atom", "Protons; neutrons; electrons"},
			{"Calculate the relative atomic mass", "Isotopes and abundance"},
		},
	})

	report, err := NewCoordinator(NewParser(out), WithWorkers(2)).Run(context.Background(), in, false)
	require.NoError(t, err)

	assert.Equal(t, Stats{TotalFiles: 2, Processed: 1, Failed: 1, TotalObjectives: 1}, report.Summary.Stats)
	require.Len(t, report.Summary.Failures, 1)
	assert.Equal(t, "bio.pdf", report.Summary.Failures[0].File)
	assert.Contains(t, report.Summary.Failures[0].Error, "bio.json")

	artifact, err := ReadArtifact(filepath.Join(out, "bio.json"))
	require.NoError(t, err)
	require.Len(t, artifact, 1)
	assert.Equal(t, "bio.PDF", artifact[0].SourceFile)

	combined, err := ReadArtifact(filepath.Join(out, CombinedFileName))
	require.NoError(t, err)
	require.Len(t, combined, 1)
	assert.Equal(t, "bio.PDF", combined[0].SourceFile)
}
