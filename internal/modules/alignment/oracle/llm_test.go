package oracle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/observability"
	"github.com/yungbote/embers-fuse/internal/platform/fault"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
	"github.com/yungbote/embers-fuse/internal/platform/oraclecache"
)

type stubClient struct {
	mu       sync.Mutex
	calls    int
	users    []string
	schemas  []string
	response map[string]any
	err      error
	wait     time.Duration
}

func (s *stubClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (s *stubClient) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	s.mu.Lock()
	s.calls++
	s.users = append(s.users, user)
	s.schemas = append(s.schemas, schemaName)
	s.mu.Unlock()
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func oracleCalls(t *testing.T, m *observability.Metrics, oracle, status string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "embers_oracle_calls_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["oracle"] == oracle && labels["status"] == status {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func newTestLLM(t *testing.T, client *stubClient, cache oraclecache.Cache, opts Options) (*LLM, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetrics()
	o, err := NewLLM(LLMDeps{Log: logger.NewNop(), Client: client, Cache: cache, Metrics: m}, opts)
	require.NoError(t, err)
	return o, m
}

func TestEvaluatePurityParsesScore(t *testing.T) {
	client := &stubClient{response: map[string]any{"Purity": 0.92, "Reasoning": "all ages"}}
	o, _ := newTestLLM(t, client, nil, Options{})

	score, err := o.EvaluatePurity(context.Background(), []string{"Key: Age", "Key: host_age"})
	require.NoError(t, err)
	assert.InDelta(t, 0.92, score, 1e-9)
	assert.Equal(t, []string{"key_purity"}, client.schemas)
	assert.Contains(t, client.users[0], "Key: Age ,\nKey: host_age")
}

func TestEvaluatePurityRejectsMalformed(t *testing.T) {
	cases := []map[string]any{
		{"Reasoning": "no score"},
		{"Purity": "high"},
		{"Purity": 1.7},
		{"Purity": []any{0.2, 0.3}},
	}
	for _, resp := range cases {
		client := &stubClient{response: resp}
		o, m := newTestLLM(t, client, nil, Options{})
		_, err := o.EvaluatePurity(context.Background(), []string{"Key: Age"})
		require.Error(t, err)
		assert.True(t, fault.Is(err, fault.KindOracle))
		assert.ErrorIs(t, err, errMalformed)
		assert.Equal(t, 1.0, oracleCalls(t, m, "purity", "malformed"))
	}
}

func TestEvaluatePurityAcceptsBracketedScore(t *testing.T) {
	client := &stubClient{response: map[string]any{"Purity": []any{"0.85"}}}
	o, _ := newTestLLM(t, client, nil, Options{})
	score, err := o.EvaluatePurity(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.InDelta(t, 0.85, score, 1e-9)
}

func TestCacheSkipsRepeatedCalls(t *testing.T) {
	cache, err := oraclecache.NewMemory(16)
	require.NoError(t, err)
	client := &stubClient{response: map[string]any{"Label": "Age (years)", "Description": "age of subjects"}}
	o, m := newTestLLM(t, client, cache, Options{})

	for i := 0; i < 3; i++ {
		ld, err := o.AssignLabel(context.Background(), []string{"Key: Age"})
		require.NoError(t, err)
		assert.Equal(t, alignment.LabelDescription{Label: "Age (years)", Description: "age of subjects"}, ld)
	}
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 2.0, oracleCalls(t, m, "label", "cached"))
}

func TestMalformedResponsesAreNotCached(t *testing.T) {
	cache, err := oraclecache.NewMemory(16)
	require.NoError(t, err)
	client := &stubClient{response: map[string]any{"Label": ""}}
	o, _ := newTestLLM(t, client, cache, Options{})

	_, err = o.AssignLabel(context.Background(), []string{"Key: Age"})
	require.Error(t, err)
	_, err = o.AssignLabel(context.Background(), []string{"Key: Age"})
	require.Error(t, err)
	assert.Equal(t, 2, client.calls)
}

func TestSynthesizeTransform(t *testing.T) {
	client := &stubClient{response: map[string]any{
		"Conversion_possible": "Yes",
		"Code":                `float(input["age_months"]) / 12`,
		"Reason":              "months to years",
	}}
	o, _ := newTestLLM(t, client, nil, Options{})

	spec, err := o.SynthesizeTransform(context.Background(), TransformRequest{
		ReferenceKeys:         []string{"age_months"},
		ReferenceDescriptions: map[string]string{"age_months": "age in months", "other": "ignored"},
		TargetKey:             "Age (years)",
		TargetDescription:     "age in years",
		SampleValues:          []alignment.SampleRecord{{"age_months": 24}},
	})
	require.NoError(t, err)
	assert.True(t, spec.Feasible())
	assert.Equal(t, []string{"age_months"}, spec.InputKeys)
	assert.Equal(t, "Age (years)", spec.Target)
	assert.Contains(t, client.users[0], `{"age_months":"age in months"}`)
	assert.NotContains(t, client.users[0], "ignored")
	assert.Contains(t, client.users[0], `[{"age_months":24}]`)
}

func TestSynthesizeTransformRejectsFeasibleWithoutCode(t *testing.T) {
	client := &stubClient{response: map[string]any{"Conversion_possible": "yes", "Code": "", "Reason": ""}}
	o, _ := newTestLLM(t, client, nil, Options{})
	_, err := o.SynthesizeTransform(context.Background(), TransformRequest{ReferenceKeys: []string{"a"}, TargetKey: "b"})
	assert.True(t, fault.Is(err, fault.KindOracle))

	client.response = map[string]any{"Conversion_possible": "no", "Code": "", "Reason": "free text only"}
	spec, err := o.SynthesizeTransform(context.Background(), TransformRequest{ReferenceKeys: []string{"a"}, TargetKey: "b"})
	require.NoError(t, err)
	assert.False(t, spec.Feasible())
}

func TestTimeoutIsRetryableOracleFault(t *testing.T) {
	client := &stubClient{response: map[string]any{"Topic": "x"}, wait: time.Second}
	o, m := newTestLLM(t, client, nil, Options{Timeout: 20 * time.Millisecond})

	_, err := o.SummarizeTopic(context.Background(), []string{"finding"})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindOracle))
	assert.True(t, fault.IsRetryable(err))
	assert.Equal(t, 1.0, oracleCalls(t, m, "topic", "error"))
}

func TestUserMessageTruncated(t *testing.T) {
	client := &stubClient{response: map[string]any{"Topic": "Diabetes", "Reason": "r"}}
	o, _ := newTestLLM(t, client, nil, Options{MaxInputTokens: 10})

	topic, err := o.SummarizeTopic(context.Background(), []string{strings.Repeat("x", 500)})
	require.NoError(t, err)
	assert.Equal(t, "Diabetes", topic.Topic)
	assert.Len(t, []rune(client.users[0]), 40)
}

func TestNewLLMRequiresDeps(t *testing.T) {
	_, err := NewLLM(LLMDeps{}, Options{})
	assert.Error(t, err)
}
