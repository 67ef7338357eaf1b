package steps

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/embers-fuse/internal/data/store"
	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/oracle"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

const testPrefix = "EMBERS___"

func newTestStore(t *testing.T) (*store.Store, store.Layout) {
	t.Helper()
	dir := t.TempDir()
	layout := store.Layout{DataDir: dir, IntegrationDir: filepath.Join(dir, "_integration")}
	return store.New(logger.NewNop(), layout), layout
}

func writeJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, raw, 0o644))
}

func readJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func writeKeyDescriptions(t *testing.T, l store.Layout, doc string, desc map[string]string) {
	writeJSONFile(t, l.DocumentFile(doc, "new_keys_descriptions.json"), desc)
}

func writeRawSamples(t *testing.T, l store.Layout, doc string, recs []map[string]any) {
	writeJSONFile(t, l.DocumentFile(doc, "samples_update.json"), recs)
}

// countingSamples wraps a SampleStore and counts Save calls.
type countingSamples struct {
	store.SampleStore
	mu    sync.Mutex
	saves map[string]int
}

func (c *countingSamples) Save(ctx context.Context, doc string, recs []types.SampleRecord) error {
	c.mu.Lock()
	if c.saves == nil {
		c.saves = map[string]int{}
	}
	c.saves[doc]++
	c.mu.Unlock()
	return c.SampleStore.Save(ctx, doc, recs)
}

// topicPurity scores a group pure when every descriptor mentions "age" or
// none does.
type topicPurity struct{}

func (topicPurity) EvaluatePurity(ctx context.Context, descriptors []string) (float64, error) {
	withAge := 0
	for _, d := range descriptors {
		if strings.Contains(strings.ToLower(d), "age") {
			withAge++
		}
	}
	if withAge == 0 || withAge == len(descriptors) {
		return 1, nil
	}
	return 0.2, nil
}

// stubLabels answers with fn when set, otherwise with the next queued label.
// An empty queued label is reported as an oracle failure.
type stubLabels struct {
	mu     sync.Mutex
	fn     func(descriptors []string) types.LabelDescription
	labels []types.LabelDescription
	calls  int
}

func (s *stubLabels) AssignLabel(ctx context.Context, descriptors []string) (types.LabelDescription, error) {
	if err := ctx.Err(); err != nil {
		return types.LabelDescription{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fn != nil {
		s.calls++
		return s.fn(descriptors), nil
	}
	if s.calls >= len(s.labels) {
		return types.LabelDescription{}, errors.New("no label queued")
	}
	ld := s.labels[s.calls]
	s.calls++
	if ld.Label == "" {
		return types.LabelDescription{}, errors.New("malformed label response")
	}
	return ld, nil
}

// stubTransforms returns a spec chosen by the first reference key.
type stubTransforms struct {
	mu    sync.Mutex
	specs map[string]types.TransformationSpec
	calls int
	reqs  []oracle.TransformRequest
	err   error
}

func (s *stubTransforms) SynthesizeTransform(ctx context.Context, req oracle.TransformRequest) (types.TransformationSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return types.TransformationSpec{}, s.err
	}
	key := strings.Join(req.ReferenceKeys, ",")
	spec, ok := s.specs[key]
	if !ok {
		return types.TransformationSpec{ConversionPossible: "no", Reason: "unknown key"}, nil
	}
	return spec, nil
}

func (s *stubTransforms) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubTopics struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubTopics) SummarizeTopic(ctx context.Context, findings []string) (types.ProjectTopic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return types.ProjectTopic{}, s.err
	}
	if strings.Contains(findings[0], "gut") {
		return types.ProjectTopic{Topic: "Gut microbiome", Reason: "gut"}, nil
	}
	return types.ProjectTopic{Topic: "Soil microbiome", Reason: "soil"}, nil
}

// stubEmbedder maps any text mentioning "age" to one direction and
// everything else to another.
type stubEmbedder struct {
	mu     sync.Mutex
	inputs []string
	err    error
}

func (s *stubEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	s.mu.Lock()
	s.inputs = append(s.inputs, inputs...)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		switch {
		case strings.Contains(strings.ToLower(in), "age"):
			out[i] = []float32{1, 0.05, 0}
		case strings.Contains(strings.ToLower(in), "gut"):
			out[i] = []float32{0, 1, float32(i%3) * 0.01}
		default:
			out[i] = []float32{0, 0.05, 1}
		}
	}
	return out, nil
}

func (s *stubEmbedder) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	return nil, errors.New("not used")
}

func aligned(t *testing.T, rec types.SampleRecord, label string) types.AlignedValue {
	t.Helper()
	v, ok := types.ParseAlignedValue(rec[testPrefix+label])
	require.True(t, ok, "record has no %s field: %v", label, rec)
	return v
}
