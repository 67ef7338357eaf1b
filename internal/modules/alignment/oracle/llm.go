package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/modules/alignment/prompts"
	"github.com/yungbote/embers-fuse/internal/observability"
	"github.com/yungbote/embers-fuse/internal/platform/fault"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
	"github.com/yungbote/embers-fuse/internal/platform/openai"
	"github.com/yungbote/embers-fuse/internal/platform/oraclecache"
)

const (
	oraclePurity    = "purity"
	oracleLabel     = "label"
	oracleTransform = "transform"
	oracleTopic     = "topic"
)

type LLMDeps struct {
	Log     *logger.Logger
	Client  openai.Client
	Cache   oraclecache.Cache
	Metrics *observability.Metrics
}

type Options struct {
	// Timeout bounds one oracle round-trip, retries included.
	Timeout time.Duration
	// MaxInputTokens truncates the user message; 0 disables truncation.
	MaxInputTokens int
}

// LLM implements every oracle on top of structured completions.
type LLM struct {
	log     *logger.Logger
	client  openai.Client
	cache   oraclecache.Cache
	metrics *observability.Metrics
	opts    Options
}

var (
	_ PurityOracle    = (*LLM)(nil)
	_ LabelOracle     = (*LLM)(nil)
	_ TransformOracle = (*LLM)(nil)
	_ TopicOracle     = (*LLM)(nil)
)

func NewLLM(deps LLMDeps, opts Options) (*LLM, error) {
	if deps.Log == nil || deps.Client == nil {
		return nil, fmt.Errorf("oracle: missing deps")
	}
	return &LLM{
		log:     deps.Log.With("component", "OracleLLM"),
		client:  deps.Client,
		cache:   deps.Cache,
		metrics: deps.Metrics,
		opts:    opts,
	}, nil
}

func descriptorList(descriptors []string) string {
	return strings.Join(descriptors, " ,\n")
}

func (o *LLM) EvaluatePurity(ctx context.Context, descriptors []string) (float64, error) {
	var score float64
	err := o.call(ctx, oraclePurity, prompts.PromptKeyPurity, prompts.Input{
		DescriptorList: descriptorList(descriptors),
	}, func(obj map[string]any) error {
		s, reasoning, err := parsePurity(obj)
		if err != nil {
			return err
		}
		score = s
		o.log.Debug("purity evaluated", "descriptors", len(descriptors), "purity", s, "reasoning", reasoning)
		return nil
	})
	return score, err
}

func (o *LLM) AssignLabel(ctx context.Context, descriptors []string) (alignment.LabelDescription, error) {
	var out alignment.LabelDescription
	err := o.call(ctx, oracleLabel, prompts.PromptKeyLabel, prompts.Input{
		DescriptorList: descriptorList(descriptors),
	}, func(obj map[string]any) error {
		ld, err := parseLabel(obj)
		out = ld
		return err
	})
	return out, err
}

func (o *LLM) SynthesizeTransform(ctx context.Context, req TransformRequest) (alignment.TransformationSpec, error) {
	keys := append([]string(nil), req.ReferenceKeys...)
	sort.Strings(keys)
	descs := make(map[string]string, len(keys))
	for _, k := range keys {
		descs[k] = req.ReferenceDescriptions[k]
	}
	in := prompts.Input{
		ReferenceKeysJSON:         mustJSON(keys),
		TargetKey:                 req.TargetKey,
		ReferenceDescriptionsJSON: mustJSON(descs),
		TargetDescription:         req.TargetDescription,
		SampleValuesJSON:          mustJSON(req.SampleValues),
	}

	var out alignment.TransformationSpec
	err := o.call(ctx, oracleTransform, prompts.PromptTransformSynthesis, in, func(obj map[string]any) error {
		spec, err := parseTransform(obj)
		out = spec
		return err
	})
	if err != nil {
		return alignment.TransformationSpec{}, err
	}
	out.InputKeys = keys
	out.Target = req.TargetKey
	return out, nil
}

func (o *LLM) SummarizeTopic(ctx context.Context, findings []string) (alignment.ProjectTopic, error) {
	var out alignment.ProjectTopic
	err := o.call(ctx, oracleTopic, prompts.PromptProjectTopic, prompts.Input{
		FindingsList: strings.Join(findings, "\n"),
	}, func(obj map[string]any) error {
		t, err := parseTopic(obj)
		out = t
		return err
	})
	return out, err
}

// call renders the prompt, consults the cache, performs the round-trip and
// parses the response. Only responses that parse are cached.
func (o *LLM) call(ctx context.Context, oracle string, name prompts.PromptName, in prompts.Input, parse func(map[string]any) error) (err error) {
	p, err := prompts.Build(name, in)
	if err != nil {
		return fault.Oracle(oracle, err)
	}
	p.User = truncateTokens(p.User, o.opts.MaxInputTokens)

	ctx, span := observability.StartSpan(ctx, "oracle."+oracle,
		attribute.String("oracle", oracle),
		attribute.String("prompt", p.Name),
	)
	defer func() { observability.EndSpan(span, err) }()

	key := oraclecache.Key(oracle, p.Fingerprint())
	if o.cache != nil {
		if raw, ok := o.cache.Get(ctx, key); ok {
			var obj map[string]any
			if json.Unmarshal(raw, &obj) == nil && parse(obj) == nil {
				o.metrics.IncOracleCall(oracle, "cached")
				return nil
			}
		}
	}

	callCtx := ctx
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	obj, err := o.client.GenerateJSON(callCtx, p.System, p.User, p.SchemaName, p.Schema)
	if err != nil {
		o.metrics.IncOracleCall(oracle, "error")
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return err
		}
		return fault.Oracle(oracle, err)
	}
	if err := parse(obj); err != nil {
		o.metrics.IncOracleCall(oracle, "malformed")
		o.log.Warn("malformed oracle response", "oracle", oracle, "error", err)
		return fault.Oracle(oracle, err)
	}
	o.metrics.IncOracleCall(oracle, "ok")

	if o.cache != nil {
		if raw, mErr := json.Marshal(obj); mErr == nil {
			if sErr := o.cache.Set(ctx, key, raw); sErr != nil {
				o.log.Warn("oracle cache write failed", "oracle", oracle, "error", sErr)
			}
		}
	}
	return nil
}

// truncateTokens cuts s to roughly maxTokens tokens (four runes per token).
func truncateTokens(s string, maxTokens int) string {
	if maxTokens <= 0 || openai.EstimateTokens(s) <= maxTokens {
		return s
	}
	runes := []rune(s)
	limit := maxTokens * 4
	if limit >= len(runes) {
		return s
	}
	return string(runes[:limit])
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
