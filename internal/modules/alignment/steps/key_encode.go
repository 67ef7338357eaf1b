package steps

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/yungbote/embers-fuse/internal/data/store"
	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
	"github.com/yungbote/embers-fuse/internal/platform/openai"
)

type KeyEncodeDeps struct {
	Log   *logger.Logger
	Files *store.Store
	AI    openai.Client
}

type KeyEncodeInput struct {
	// Documents restricts the run; empty means every document.
	Documents        []string
	MaxExampleValues int
	BatchSize        int
	Workers          int
	Seed             uint64
}

type KeyEncodeOutput struct {
	DocumentsTotal   int               `json:"documents_total"`
	DocumentsEncoded int               `json:"documents_encoded"`
	DocumentsSkipped int               `json:"documents_skipped"`
	KeysEncoded      int               `json:"keys_encoded"`
	KeysDropped      int               `json:"keys_dropped"`
	ProjectsEncoded  int               `json:"projects_encoded"`
	Failures         []DocumentFailure `json:"failures,omitempty"`
}

// KeyEncode builds KeyRecords (key, description, example values, embedding)
// for every document that has no key embedding file yet, and embeds each
// document's project key findings.
func KeyEncode(ctx context.Context, deps KeyEncodeDeps, in KeyEncodeInput) (KeyEncodeOutput, error) {
	out := KeyEncodeOutput{}
	if deps.Log == nil || deps.Files == nil || deps.AI == nil {
		return out, fmt.Errorf("key_encode: missing deps")
	}
	if in.MaxExampleValues <= 0 {
		in.MaxExampleValues = 5
	}
	if in.BatchSize <= 0 {
		in.BatchSize = 256
	}
	docs := in.Documents
	if len(docs) == 0 {
		var err error
		if docs, err = deps.Files.Documents(ctx); err != nil {
			return out, fmt.Errorf("key_encode: list documents: %w", err)
		}
	}
	out.DocumentsTotal = len(docs)

	seed := in.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	var rngMu sync.Mutex
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))
	var mu sync.Mutex

	log := deps.Log.With("step", "key_encode")
	failures, err := forEachDocument(ctx, log, docs, in.Workers, func(ctx context.Context, doc string) error {
		encoded, err := encodeProject(ctx, deps, doc)
		if err != nil {
			return err
		}
		if encoded {
			mu.Lock()
			out.ProjectsEncoded++
			mu.Unlock()
		}

		if deps.Files.HasDocumentKeys(doc) {
			mu.Lock()
			out.DocumentsSkipped++
			mu.Unlock()
			return nil
		}
		keys, descs, ok, err := deps.Files.LoadKeyDescriptions(ctx, doc)
		if err != nil {
			return err
		}
		if !ok {
			mu.Lock()
			out.DocumentsSkipped++
			mu.Unlock()
			return nil
		}
		samples, err := deps.Files.LoadRawSamples(ctx, doc)
		if err != nil {
			return err
		}

		recs := make([]types.KeyRecord, 0, len(keys))
		for _, k := range keys {
			d := strings.TrimSpace(descs[k])
			if strings.TrimSpace(k) == "" || d == "" {
				continue
			}
			rngMu.Lock()
			examples := exampleValues(samples, k, in.MaxExampleValues, rng)
			rngMu.Unlock()
			recs = append(recs, types.KeyRecord{Key: k, Description: d, ExampleValues: examples})
		}

		inputs := make([]string, len(recs))
		for i, r := range recs {
			inputs[i] = r.Key + ": " + r.Description
		}
		embs, err := embedBatched(ctx, deps.AI, inputs, in.BatchSize)
		if err != nil {
			return fmt.Errorf("embed keys: %w", err)
		}
		kept := recs[:0]
		dropped := 0
		for i, r := range recs {
			if i >= len(embs) || len(embs[i]) == 0 {
				dropped++
				continue
			}
			r.Embedding = embs[i]
			kept = append(kept, r)
		}
		if err := deps.Files.SaveDocumentKeys(ctx, doc, kept); err != nil {
			return err
		}
		log.Debug("document keys encoded", "document_id", doc, "keys", len(kept), "dropped", dropped)

		mu.Lock()
		out.DocumentsEncoded++
		out.KeysEncoded += len(kept)
		out.KeysDropped += dropped
		mu.Unlock()
		return nil
	})
	out.Failures = failures
	if err != nil {
		return out, fmt.Errorf("key_encode: %w", err)
	}
	log.Info("keys encoded",
		"documents", out.DocumentsTotal,
		"encoded", out.DocumentsEncoded,
		"skipped", out.DocumentsSkipped,
		"keys", out.KeysEncoded,
		"failures", len(out.Failures),
	)
	return out, nil
}

// encodeProject embeds the document's key findings once.
func encodeProject(ctx context.Context, deps KeyEncodeDeps, doc string) (bool, error) {
	if deps.Files.HasProjectEmbedding(doc) {
		return false, nil
	}
	findings, ok, err := deps.Files.LoadProjectFindings(ctx, doc)
	if err != nil || !ok || strings.TrimSpace(findings) == "" {
		return false, err
	}
	embs, err := deps.AI.Embed(ctx, []string{findings})
	if err != nil {
		return false, fmt.Errorf("embed project: %w", err)
	}
	if len(embs) != 1 || len(embs[0]) == 0 {
		return false, fmt.Errorf("embed project: got %d embeddings", len(embs))
	}
	p := types.ProjectEmbedding{KeyFindings: findings, Embedding: embs[0]}
	if err := deps.Files.SaveProjectEmbedding(ctx, doc, p); err != nil {
		return false, err
	}
	return true, nil
}

func embedBatched(ctx context.Context, ai openai.Client, inputs []string, batch int) ([][]float32, error) {
	out := make([][]float32, 0, len(inputs))
	for start := 0; start < len(inputs); start += batch {
		end := min(start+batch, len(inputs))
		embs, err := ai.Embed(ctx, inputs[start:end])
		if err != nil {
			return nil, err
		}
		if len(embs) != end-start {
			return nil, fmt.Errorf("embed: got %d embeddings for %d inputs", len(embs), end-start)
		}
		out = append(out, embs...)
	}
	return out, nil
}

// exampleValues returns up to limit distinct scalar values observed for key.
// Placeholders ("", "NA", "NaN"), nulls and nested values are skipped.
func exampleValues(samples []types.SampleRecord, key string, limit int, rng *rand.Rand) []any {
	seen := map[string]bool{}
	var vals []any
	for _, rec := range samples {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case map[string]any, []any:
			continue
		case string:
			if t := strings.TrimSpace(x); t == "" || t == "NA" || t == "NaN" {
				continue
			}
		}
		k := fmt.Sprintf("%T:%v", v, v)
		if seen[k] {
			continue
		}
		seen[k] = true
		vals = append(vals, v)
	}
	if len(vals) <= limit {
		return vals
	}
	idx := rng.Perm(len(vals))[:limit]
	sort.Ints(idx)
	out := make([]any, limit)
	for i, j := range idx {
		out[i] = vals[j]
	}
	return out
}
