package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

type recordingObserver struct {
	calls atomic.Int32
	last  atomic.Value
}

func (r *recordingObserver) ObserveLLMRequest(model, endpoint, status string, dur time.Duration, in, out int) {
	r.calls.Add(1)
	r.last.Store(status)
}

func newTestClient(t *testing.T, srv *httptest.Server, obs RequestObserver) Client {
	t.Helper()
	c, err := NewClientWithOptions(logger.NewNop(), Options{
		BaseURL:    srv.URL,
		APIKey:     "sk-test",
		Model:      "test-model",
		EmbedModel: "test-embed",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		RetryBase:  10 * time.Millisecond,
		Observer:   obs,
	})
	require.NoError(t, err)
	return c
}

func TestEmbedOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req embeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-embed", req.Model)
		assert.Equal(t, []string{"a", " "}, req.Input)
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := newTestClient(t, srv, obs)
	out, err := c.Embed(context.Background(), []string{"a", "   "})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, out)
	assert.Equal(t, int32(1), obs.calls.Load())
	assert.Equal(t, "200", obs.last.Load())
}

func TestGenerateJSONRetriesAndStripsFence(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
						w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"slow down"}`))
			return
		}
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		format := req["text"].(map[string]any)["format"].(map[string]any)
		assert.Equal(t, "json_schema", format["type"])
		assert.Equal(t, "purity", format["name"])
		assert.Equal(t, true, format["strict"])
		_, _ = w.Write([]byte(`{"output":[{"type":"message","role":"assistant","content":[{"type":"output_text","text":"` +
			"```json\\n{\\\"Purity\\\": 0.9}\\n```" + `"}]}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	obj, err := c.GenerateJSON(context.Background(), "sys", "user", "purity", map[string]any{"type": "object"})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, obj["Purity"], 1e-9)
	assert.Equal(t, int32(2), hits.Load())
}

func TestGenerateJSONNonRetryableStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad schema"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	_, err := c.GenerateJSON(context.Background(), "sys", "user", "label", map[string]any{"type": "object"})
	require.Error(t, err)
	var httpErr *openAIHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.HTTPStatusCode())
	assert.Equal(t, int32(1), hits.Load())
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens("  "))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}
