package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/syllabus-extractor/internal/manifest"
	"github.com/a3tai/syllabus-extractor/internal/pdf/pdftest"
	"github.com/a3tai/syllabus-extractor/internal/pipeline"
	"github.com/a3tai/syllabus-extractor/internal/syllabus"
)

func newService(t *testing.T) (*Service, string) {
	t.Helper()
	in, out := t.TempDir(), t.TempDir()

	pdftest.WriteSyllabus(t, filepath.Join(in, "biology.pdf"), pdftest.Page{
		Headings: []string{"SECTION 1: CELL BIOLOGY"},
		Ruled:    true,
		Rows: [][]string{
			{"Explain the process of photosynthesis in green plants", "Light reactions; dark reactions"},
			{"Evaluate the impact of deforestation on habitats", "Biodiversity loss; soil erosion"},
		},
	})
	pdftest.WriteGarbage(t, filepath.Join(in, "bad.pdf"))

	store, err := manifest.Open(filepath.Join(t.TempDir(), "manifest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := pipeline.NewCoordinator(pipeline.NewParser(out), pipeline.WithRecorder(store))
	svc, err := New(in, c, WithHistory(store))
	require.NoError(t, err)
	return svc, in
}

func TestNewRequiresCoordinator(t *testing.T) {
	_, err := New(t.TempDir(), nil)
	assert.Error(t, err)
}

func TestQueriesBeforeFirstBatch(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.QueryObjectives(ctx, Query{})
	assert.ErrorIs(t, err, ErrNoResults)

	_, err = svc.LatestSummary(ctx)
	assert.ErrorIs(t, err, ErrNoResults)

	runs, err := svc.Runs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunBatchAndQuery(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	report, err := svc.RunBatch(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.Stats.Processed)
	assert.Equal(t, 1, report.Summary.Stats.Failed)

	summary, err := svc.LatestSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, summary.RunID)

	all, err := svc.QueryObjectives(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Total)

	hard, err := svc.QueryObjectives(ctx, Query{Difficulty: 3})
	require.NoError(t, err)
	require.Equal(t, 1, hard.Total)
	assert.Contains(t, hard.Objectives[0].Objective, "deforestation")

	text, err := svc.QueryObjectives(ctx, Query{Text: "PHOTOSYNTHESIS"})
	require.NoError(t, err)
	assert.Equal(t, 1, text.Total)

	section, err := svc.QueryObjectives(ctx, Query{Section: "cell biology", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, section.Total)
	assert.Equal(t, 1, section.Returned)

	none, err := svc.QueryObjectives(ctx, Query{SourceFile: "chemistry.pdf"})
	require.NoError(t, err)
	assert.Zero(t, none.Total)
	assert.NotNil(t, none.Objectives)

	runs, err := svc.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
}

func TestListDocuments(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	docs, err := svc.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "bad.pdf", docs[0].Name)
	assert.False(t, docs[1].HasArtifact)
	assert.Empty(t, docs[1].Status)

	_, err = svc.RunBatch(ctx, false)
	require.NoError(t, err)

	docs, err = svc.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "failed", docs[0].Status)
	assert.NotEmpty(t, docs[0].LastError)
	assert.Equal(t, "biology.pdf", docs[1].Name)
	assert.True(t, docs[1].HasArtifact)
	assert.Equal(t, "processed", docs[1].Status)
	assert.Equal(t, 2, docs[1].Objectives)
	assert.Positive(t, docs[1].Size)
}

func TestExtractFile(t *testing.T) {
	svc, in := newService(t)
	ctx := context.Background()

	result, err := svc.ExtractFile(ctx, "biology.pdf", false)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusProcessed, result.Status)
	assert.Len(t, result.Objectives, 2)
	assert.FileExists(t, filepath.Join(svc.OutputDir(), "biology.json"))
	assert.NoFileExists(t, filepath.Join(svc.OutputDir(), pipeline.CombinedFileName))

	result, err = svc.ExtractFile(ctx, filepath.Join(in, "bad.pdf"), false)
	assert.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, pipeline.StatusFailed, result.Status)

	_, err = svc.ExtractFile(ctx, "../outside.pdf", false)
	assert.ErrorContains(t, err, "security validation failed")
}

func TestQueryMatches(t *testing.T) {
	o := syllabus.Objective{
		Section:    "SECTION 1: CELL BIOLOGY",
		Subsection: "TOPIC 2: Respiration",
		Objective:  "Explain aerobic respiration",
		Content:    "Glycolysis; Krebs cycle",
		Skills:     []string{"KC", "UK"},
		Keywords:   []string{"aerobic", "glycolysis"},
		Difficulty: 2,
		SourceFile: "biology.pdf",
	}

	tests := []struct {
		name  string
		query Query
		want  bool
	}{
		{"empty", Query{}, true},
		{"difficulty", Query{Difficulty: 2}, true},
		{"other difficulty", Query{Difficulty: 1}, false},
		{"section", Query{Section: "cell"}, true},
		{"subsection", Query{Section: "respiration"}, true},
		{"skill", Query{Skill: "uk"}, true},
		{"missing skill", Query{Skill: "PS"}, false},
		{"content text", Query{Text: "krebs"}, true},
		{"keyword", Query{Text: "Glycolysis"}, true},
		{"no text", Query{Text: "photosynthesis"}, false},
		{"source", Query{SourceFile: "BIOLOGY.pdf"}, true},
		{"combined mismatch", Query{Difficulty: 2, Skill: "AS"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.Matches(o))
		})
	}
}

func TestExtractFileCreatesOutputDir(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "nested", "out")
	pdftest.WriteSyllabus(t, filepath.Join(in, "chemistry.pdf"), pdftest.Page{
		Rows: [][]string{
			{"Describe the structure of the atom", "Protons; neutrons; electrons"},
			{"Calculate the relative atomic mass", "Isotopes and abundance"},
		},
	})

	svc, err := New(in, pipeline.NewCoordinator(pipeline.NewParser(out)))
	require.NoError(t, err)

	result, err := svc.ExtractFile(context.Background(), "chemistry.pdf", false)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusProcessed, result.Status)

	_, err = os.Stat(out)
	assert.NoError(t, err)
}

func TestExtractFileFeedsContentCache(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	pdftest.WriteSyllabus(t, filepath.Join(in, "chemistry.pdf"), pdftest.Page{
		Rows: [][]string{
			{"Describe the structure of the atom", "Protons; neutrons; electrons"},
		},
	})

	store, err := manifest.Open(filepath.Join(t.TempDir(), "manifest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	parser := pipeline.NewParser(out,
		pipeline.WithCacheMode(pipeline.CacheByContent),
		pipeline.WithDigestLookup(store),
	)
	svc, err := New(in, pipeline.NewCoordinator(parser, pipeline.WithRecorder(store)), WithHistory(store))
	require.NoError(t, err)
	ctx := context.Background()

	result, err := svc.ExtractFile(ctx, "chemistry.pdf", false)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusProcessed, result.Status)

	docs, err := svc.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "processed", docs[0].Status)
	assert.Equal(t, 1, docs[0].Objectives)

	recorded, err := store.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Empty(t, recorded[0].RunID)

	report, err := svc.RunBatch(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.Stats.Skipped)
}

func TestExtractFileRejectsArtifactCollision(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	for _, name := range []string{"bio.PDF", "bio.pdf"} {
		pdftest.WriteSyllabus(t, filepath.Join(in, name), pdftest.Page{
			Rows: [][]string{
				{"Describe the structure of the atom", "Protons; neutrons; electrons"},
			},
		})
	}

	svc, err := New(in, pipeline.NewCoordinator(pipeline.NewParser(out)))
	require.NoError(t, err)
	ctx := context.Background()

	result, err := svc.ExtractFile(ctx, "bio.pdf", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bio.json belongs to bio.PDF")
	require.NotNil(t, result)
	assert.Equal(t, pipeline.StatusFailed, result.Status)
	assert.NoFileExists(t, filepath.Join(out, "bio.json"))

	result, err = svc.ExtractFile(ctx, "bio.PDF", false)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusProcessed, result.Status)
}
