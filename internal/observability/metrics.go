package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

// Metrics holds the run's collectors on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec

	purityEvaluations *prometheus.CounterVec
	oracleCalls       *prometheus.CounterVec
	droppedNodes      prometheus.Counter
	keysUnaligned     prometheus.Gauge
	pureClusters      prometheus.Gauge
	transformRecords  *prometheus.CounterVec
	transformFailures *prometheus.GaugeVec
	stageDuration     *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embers_llm_requests_total",
			Help: "LLM requests by model/endpoint/status.",
		}, []string{"model", "endpoint", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "embers_llm_request_duration_seconds",
			Help:    "LLM request latency in seconds by model/endpoint/status.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"model", "endpoint", "status"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embers_llm_tokens_total",
			Help: "LLM tokens by model/direction.",
		}, []string{"model", "direction"}),
		purityEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embers_purity_evaluations_total",
			Help: "Purity evaluations by result (pure, impure, failed).",
		}, []string{"result"}),
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embers_oracle_calls_total",
			Help: "Oracle calls by oracle/status.",
		}, []string{"oracle", "status"}),
		droppedNodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "embers_cluster_dropped_nodes_total",
			Help: "Hierarchy nodes dropped for being under the minimum size.",
		}),
		keysUnaligned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "embers_keys_unaligned",
			Help: "Key records not covered by any pure cluster in the last clustering run.",
		}),
		pureClusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "embers_pure_clusters",
			Help: "Pure clusters emitted by the last clustering run.",
		}),
		transformRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embers_transform_records_total",
			Help: "Per-record transformation outcomes by status.",
		}, []string{"status"}),
		transformFailures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "embers_transform_failures",
			Help: "Records that could not be converted per document/canonical key.",
		}, []string{"document", "key"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "embers_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}, []string{"stage", "status"}),
	}
	reg.MustRegister(
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.purityEvaluations, m.oracleCalls, m.droppedNodes,
		m.keysUnaligned, m.pureClusters,
		m.transformRecords, m.transformFailures, m.stageDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	model = normalizeLabel(model)
	endpoint = normalizeLabel(endpoint)
	status = normalizeLabel(status)
	m.llmRequests.WithLabelValues(model, endpoint, status).Inc()
	m.llmLatency.WithLabelValues(model, endpoint, status).Observe(dur.Seconds())
	if inputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

func (m *Metrics) IncPurityEvaluation(result string) {
	if m == nil {
		return
	}
	m.purityEvaluations.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) IncOracleCall(oracle, status string) {
	if m == nil {
		return
	}
	m.oracleCalls.WithLabelValues(normalizeLabel(oracle), normalizeLabel(status)).Inc()
}

func (m *Metrics) AddDroppedNodes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.droppedNodes.Add(float64(n))
}

func (m *Metrics) SetClusterSummary(pureClusters, unaligned int) {
	if m == nil {
		return
	}
	m.pureClusters.Set(float64(pureClusters))
	m.keysUnaligned.Set(float64(unaligned))
}

func (m *Metrics) AddTransformRecords(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.transformRecords.WithLabelValues(normalizeLabel(status)).Add(float64(n))
}

func (m *Metrics) SetTransformFailures(document, key string, n int) {
	if m == nil {
		return
	}
	m.transformFailures.WithLabelValues(document, key).Set(float64(n))
}

func (m *Metrics) ObserveStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(normalizeLabel(stage), normalizeLabel(status)).Observe(dur.Seconds())
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(log *logger.Logger, path string) error {
	if m == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	if log != nil {
		log.Info("metrics written", "path", path)
	}
	return nil
}

func normalizeLabel(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
