package store

import (
	"context"
	"fmt"
	"sort"

	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/platform/fault"
)

// LoadKeyDescriptions reads a document's raw key -> description map. Keys are
// returned sorted so encoding order is stable.
func (s *Store) LoadKeyDescriptions(ctx context.Context, documentID string) ([]string, map[string]string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, false, err
	}
	desc := map[string]string{}
	if err := readJSON(s.layout.DocumentFile(documentID, suffixKeysDescriptions), &desc); err != nil {
		if isNotExist(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, fault.Persistence("load key descriptions "+documentID, err)
	}
	keys := make([]string, 0, len(desc))
	for k := range desc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, desc, true, nil
}

func (s *Store) HasDocumentKeys(documentID string) bool {
	return exists(s.layout.DocumentFile(documentID, suffixKeysEmbedding))
}

func (s *Store) LoadDocumentKeys(ctx context.Context, documentID string) ([]types.KeyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var recs []types.KeyRecord
	if err := readJSON(s.layout.DocumentFile(documentID, suffixKeysEmbedding), &recs); err != nil {
		return nil, fault.Persistence("load key embeddings "+documentID, err)
	}
	for i := range recs {
		recs[i].DocumentID = documentID
	}
	return recs, nil
}

func (s *Store) SaveDocumentKeys(ctx context.Context, documentID string, recs []types.KeyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := make([]types.KeyRecord, len(recs))
	for i, r := range recs {
		r.DocumentID = ""
		out[i] = r
	}
	if err := writeJSONAtomic(s.layout.DocumentFile(documentID, suffixKeysEmbedding), out); err != nil {
		return fault.Persistence("save key embeddings "+documentID, err)
	}
	return nil
}

// LoadKeyCorpus returns the cached corpus-wide key texts and embeddings.
// ok is false when either cache file is missing.
func (s *Store) LoadKeyCorpus(ctx context.Context) ([]types.KeyRecord, [][]float32, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, false, err
	}
	textsPath := s.layout.IntegrationFile(fileKeysTexts)
	embPath := s.layout.IntegrationFile(fileKeysEmbedding)
	if !exists(textsPath) || !exists(embPath) {
		return nil, nil, false, nil
	}
	var texts []types.KeyRecord
	var embs [][]float32
	if err := readJSON(textsPath, &texts); err != nil {
		return nil, nil, false, fault.Persistence("load key texts", err)
	}
	if err := readJSON(embPath, &embs); err != nil {
		return nil, nil, false, fault.Persistence("load key embeddings", err)
	}
	if len(texts) != len(embs) {
		return nil, nil, false, fault.Persistence("load key corpus", fmt.Errorf("texts=%d embeddings=%d", len(texts), len(embs)))
	}
	return texts, embs, true, nil
}

func (s *Store) SaveKeyCorpus(ctx context.Context, texts []types.KeyRecord, embs [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(texts) != len(embs) {
		return fault.Persistence("save key corpus", fmt.Errorf("texts=%d embeddings=%d", len(texts), len(embs)))
	}
	plain := make([]types.KeyRecord, len(texts))
	for i, t := range texts {
		plain[i] = t.Text()
	}
	if err := writeJSONAtomic(s.layout.IntegrationFile(fileKeysEmbedding), embs); err != nil {
		return fault.Persistence("save key embeddings", err)
	}
	if err := writeJSONAtomic(s.layout.IntegrationFile(fileKeysTexts), plain); err != nil {
		return fault.Persistence("save key texts", err)
	}
	return nil
}

// ClusterResult is everything the key clustering stage writes.
type ClusterResult struct {
	PureClusters []types.PureCluster
	// Labels[i] is the canonical label of key record i, "" when unassigned.
	Labels            []string
	LabelDescriptions []types.LabelDescription
	Report            types.ClusterReport
}

func (s *Store) SaveClusterResult(ctx context.Context, res ClusterResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	writes := []struct {
		name string
		v    any
	}{
		{fileKeysPureClusters, nonNil(res.PureClusters)},
		{fileKeysLabels, nonNil(res.Labels)},
		{fileKeysLabelsDescs, nonNil(res.LabelDescriptions)},
		{fileKeysClusterReport, res.Report},
	}
	for _, w := range writes {
		if err := writeJSONAtomic(s.layout.IntegrationFile(w.name), w.v); err != nil {
			return fault.Persistence("save "+w.name, err)
		}
	}
	return nil
}

func (s *Store) LoadLabels(ctx context.Context) ([]string, []types.LabelDescription, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	var labels []string
	var descs []types.LabelDescription
	if err := readJSON(s.layout.IntegrationFile(fileKeysLabels), &labels); err != nil {
		return nil, nil, fault.Persistence("load key labels", err)
	}
	if err := readJSON(s.layout.IntegrationFile(fileKeysLabelsDescs), &descs); err != nil {
		return nil, nil, fault.Persistence("load label descriptions", err)
	}
	return labels, descs, nil
}

func (s *Store) LoadKeyTexts(ctx context.Context) ([]types.KeyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var texts []types.KeyRecord
	if err := readJSON(s.layout.IntegrationFile(fileKeysTexts), &texts); err != nil {
		return nil, fault.Persistence("load key texts", err)
	}
	return texts, nil
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
