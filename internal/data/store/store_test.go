package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/platform/fault"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

func newTestStore(t *testing.T) (*Store, Layout) {
	t.Helper()
	dir := t.TempDir()
	layout := Layout{DataDir: dir, IntegrationDir: filepath.Join(dir, "_integration")}
	return New(logger.NewNop(), layout), layout
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDocumentsSkipsFilesAndIntegrationDir(t *testing.T) {
	s, layout := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Join(layout.DataDir, "PMC2"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(layout.DataDir, "PMC1"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(layout.DataDir, "other"), 0o755))
	writeFile(t, filepath.Join(layout.DataDir, "PMC3"), "not a dir")

	docs, err := s.Documents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"PMC1", "PMC2"}, docs)
}

func TestSeedLoadSavePreservesUnknownFields(t *testing.T) {
	ctx := context.Background()
	s, layout := newTestStore(t)
	writeFile(t, layout.DocumentFile("PMC1", suffixSamplesRaw), `[{"age":"31","extra":{"nested":true}},{"age":40}]`)

	assert.False(t, s.HasSamples("PMC1"))
	seeded, err := s.SeedSamples(ctx, "PMC1", false)
	require.NoError(t, err)
	assert.True(t, seeded)

	recs, err := s.Load(ctx, "PMC1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	recs[0]["EMBERS___Age"] = types.AlignedValue{Aligned: 31.0, Status: types.StatusConverted}.Map()
	require.NoError(t, s.Save(ctx, "PMC1", recs))

	again, err := s.Load(ctx, "PMC1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"nested": true}, again[0]["extra"])
	v, ok := types.ParseAlignedValue(again[0]["EMBERS___Age"])
	require.True(t, ok)
	assert.Equal(t, 31.0, v.Aligned)

	// A second seed without reset keeps the aligned copy.
	seeded, err = s.SeedSamples(ctx, "PMC1", false)
	require.NoError(t, err)
	assert.False(t, seeded)
	again, err = s.Load(ctx, "PMC1")
	require.NoError(t, err)
	assert.Contains(t, again[0], "EMBERS___Age")

	// No temp files are left behind.
	entries, err := os.ReadDir(layout.DocumentDir("PMC1"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestLoadMissingSamplesIsPersistenceFault(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Load(context.Background(), "PMC404")
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindPersistence))
}

func TestSpecStoreMergesLabels(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, ok, err := s.GetSpec(ctx, "PMC1", "Age")
	require.NoError(t, err)
	assert.False(t, ok)

	age := types.TransformationSpec{ConversionPossible: "yes", Code: `float(input["age"])`, InputKeys: []string{"age"}}
	sex := types.TransformationSpec{ConversionPossible: "no", Reason: "free text"}
	require.NoError(t, s.PutSpec(ctx, "PMC1", "Age", age))
	require.NoError(t, s.PutSpec(ctx, "PMC1", "Sex", sex))

	got, ok, err := s.GetSpec(ctx, "PMC1", "Age")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, age, got)
	got, ok, err = s.GetSpec(ctx, "PMC1", "Sex")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sex, got)
}

func TestKeyCorpusRoundTripDropsEmbeddingFromTexts(t *testing.T) {
	ctx := context.Background()
	s, layout := newTestStore(t)

	_, _, ok, err := s.LoadKeyCorpus(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	texts := []types.KeyRecord{{DocumentID: "PMC1", Key: "Age", Description: "age", Embedding: []float32{1, 0}}}
	require.NoError(t, s.SaveKeyCorpus(ctx, texts, [][]float32{{1, 0}}))

	gotTexts, gotEmb, ok, err := s.LoadKeyCorpus(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, gotTexts[0].Embedding)
	assert.Equal(t, "PMC1", gotTexts[0].DocumentID)
	assert.Equal(t, [][]float32{{1, 0}}, gotEmb)

	raw, err := os.ReadFile(layout.IntegrationFile(fileKeysTexts))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Embedding")
}

func TestLoadTargetsYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	y := filepath.Join(dir, "targets.yaml")
	j := filepath.Join(dir, "targets.json")
	writeFile(t, y, "Age (years):\n  Instructions: age in years as a number\n")
	writeFile(t, j, `{"Sex": {"Instructions": "male or female"}}`)

	got, err := LoadTargets(y)
	require.NoError(t, err)
	assert.Equal(t, "age in years as a number", got["Age (years)"].Instructions)

	got, err = LoadTargets(j)
	require.NoError(t, err)
	assert.Equal(t, "male or female", got["Sex"].Instructions)

	got, err = LoadTargets("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = LoadTargets(filepath.Join(dir, "missing.yaml"))
	assert.True(t, fault.Is(err, fault.KindConfig))
}

func TestGeoDictNullsSurvive(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	japan := "Japan"
	require.NoError(t, s.SaveGeoDict(ctx, GeoDict{"Kyoto": &japan, "unknown": nil}))
	d, ok, err := s.LoadGeoDict(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, d, "unknown")
	assert.Nil(t, d["unknown"])
	assert.Equal(t, "Japan", *d["Kyoto"])
}

func TestProjectFindingsAcceptsLists(t *testing.T) {
	ctx := context.Background()
	s, layout := newTestStore(t)
	writeFile(t, layout.DocumentFile("PMC1", suffixProject), `{"key_findings": ["a", "b"]}`)
	text, ok, err := s.LoadProjectFindings(ctx, "PMC1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a b", text)

	_, ok, err = s.LoadProjectFindings(ctx, "PMC2")
	require.NoError(t, err)
	assert.False(t, ok)
}
