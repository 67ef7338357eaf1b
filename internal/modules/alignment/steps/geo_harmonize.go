package steps

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/yungbote/embers-fuse/internal/data/store"
	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/platform/geocode"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

type GeoHarmonizeDeps struct {
	Log     *logger.Logger
	Files   *store.Store
	Samples store.SampleStore
	Geo     geocode.CountryResolver
}

type GeoHarmonizeInput struct {
	TargetLabel string
	FieldPrefix string
	Documents   []string
	Workers     int
}

type GeoHarmonizeOutput struct {
	Values          int               `json:"values"`
	Resolved        int               `json:"resolved"`
	Unresolvable    int               `json:"unresolvable"`
	LookupErrors    int               `json:"lookup_errors"`
	RecordsUpdated  int               `json:"records_updated"`
	DocumentsSaved  int               `json:"documents_saved"`
	DictionaryReuse bool              `json:"dictionary_reuse"`
	Failures        []DocumentFailure `json:"failures,omitempty"`
}

// GeoHarmonize maps the aligned geographic values of one canonical key to
// country names. The previous value moves to Converted.
func GeoHarmonize(ctx context.Context, deps GeoHarmonizeDeps, in GeoHarmonizeInput) (GeoHarmonizeOutput, error) {
	out := GeoHarmonizeOutput{}
	if deps.Log == nil || deps.Files == nil || deps.Samples == nil || deps.Geo == nil {
		return out, fmt.Errorf("geo_harmonize: missing deps")
	}
	if strings.TrimSpace(in.TargetLabel) == "" {
		return out, fmt.Errorf("geo_harmonize: missing target label")
	}
	log := deps.Log.With("step", "geo_harmonize", "label", in.TargetLabel)
	field := types.CanonicalField(in.FieldPrefix, in.TargetLabel)

	docs := in.Documents
	if len(docs) == 0 {
		var err error
		if docs, err = deps.Files.Documents(ctx); err != nil {
			return out, fmt.Errorf("geo_harmonize: list documents: %w", err)
		}
	}

	dict, ok, err := deps.Files.LoadGeoDict(ctx)
	if err != nil {
		return out, fmt.Errorf("geo_harmonize: %w", err)
	}
	if !ok {
		dict = store.GeoDict{}
	}
	out.DictionaryReuse = ok

	values, err := collectGeoValues(ctx, deps.Samples, docs, field)
	if err != nil {
		return out, fmt.Errorf("geo_harmonize: %w", err)
	}
	out.Values = len(values)
	unresolved := map[string]bool{}
	added := 0
	for _, v := range values {
		if _, known := dict[v]; known {
			continue
		}
		country, err := resolveCountry(ctx, deps.Geo, v)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return out, fmt.Errorf("geo_harmonize: %w", err)
			}
			out.LookupErrors++
			unresolved[v] = true
			log.Warn("geocoder lookup failed", "value", v, "error", err)
			continue
		}
		dict[v] = country
		added++
	}
	if added > 0 {
		if err := deps.Files.SaveGeoDict(ctx, dict); err != nil {
			return out, fmt.Errorf("geo_harmonize: %w", err)
		}
	}
	for _, c := range dict {
		if c != nil {
			out.Resolved++
		} else {
			out.Unresolvable++
		}
	}

	var mu sync.Mutex
	failures, err := forEachDocument(ctx, log, docs, in.Workers, func(ctx context.Context, doc string) error {
		if !deps.Samples.HasSamples(doc) {
			return nil
		}
		records, err := deps.Samples.Load(ctx, doc)
		if err != nil {
			return err
		}
		updated := 0
		for _, rec := range records {
			v, ok := types.ParseAlignedValue(rec[field])
			if !ok || v.Converted != nil {
				continue
			}
			s, ok := v.Aligned.(string)
			if !ok || s == "" || unresolved[s] {
				continue
			}
			next := types.AlignedValue{Converted: s, Status: v.Status}
			if c := dict[s]; c != nil {
				next.Aligned = *c
			}
			rec[field] = next.Map()
			updated++
		}
		if updated == 0 {
			return nil
		}
		if err := deps.Samples.Save(ctx, doc, records); err != nil {
			return err
		}
		mu.Lock()
		out.RecordsUpdated += updated
		out.DocumentsSaved++
		mu.Unlock()
		return nil
	})
	out.Failures = failures
	if err != nil {
		return out, fmt.Errorf("geo_harmonize: %w", err)
	}
	log.Info("geographic values harmonized",
		"resolved", out.Resolved,
		"unresolvable", out.Unresolvable,
		"records", out.RecordsUpdated,
		"documents", out.DocumentsSaved,
	)
	return out, nil
}

// collectGeoValues returns the distinct, not yet harmonized string values of field.
func collectGeoValues(ctx context.Context, samples store.SampleStore, docs []string, field string) ([]string, error) {
	seen := map[string]bool{}
	for _, doc := range docs {
		if !samples.HasSamples(doc) {
			continue
		}
		records, err := samples.Load(ctx, doc)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			v, ok := types.ParseAlignedValue(rec[field])
			if !ok || v.Converted != nil {
				continue
			}
			if s, ok := v.Aligned.(string); ok && s != "" {
				seen[s] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// resolveCountry looks up the part before the first ':'. Placeholder values
// resolve to nil without a lookup.
func resolveCountry(ctx context.Context, geo geocode.CountryResolver, value string) (*string, error) {
	query := value
	if i := strings.Index(query, ":"); i >= 0 {
		query = query[:i]
	}
	query = strings.TrimSpace(query)
	lower := strings.ToLower(query)
	if query == "" || strings.Contains(lower, "not applicable") || strings.Contains(lower, "unknown") {
		return nil, nil
	}
	country, err := geo.Country(ctx, query)
	if err != nil {
		return nil, err
	}
	if country == "" {
		return nil, nil
	}
	return &country, nil
}
