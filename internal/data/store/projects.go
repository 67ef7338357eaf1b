package store

import (
	"context"
	"fmt"
	"strings"

	types "github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/platform/fault"
)

// LoadProjectFindings reads the key findings text of a document, ok=false when absent.
func (s *Store) LoadProjectFindings(ctx context.Context, documentID string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	var p struct {
		KeyFindings any `json:"key_findings"`
	}
	if err := readJSON(s.layout.DocumentFile(documentID, suffixProject), &p); err != nil {
		if isNotExist(err) {
			return "", false, nil
		}
		return "", false, fault.Persistence("load project "+documentID, err)
	}
	switch v := p.KeyFindings.(type) {
	case string:
		return v, true, nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, x := range v {
			parts = append(parts, fmt.Sprint(x))
		}
		return strings.Join(parts, " "), true, nil
	case nil:
		return "", true, nil
	default:
		return fmt.Sprint(v), true, nil
	}
}

func (s *Store) HasProjectEmbedding(documentID string) bool {
	return exists(s.layout.DocumentFile(documentID, suffixProjectEmbedding))
}

func (s *Store) SaveProjectEmbedding(ctx context.Context, documentID string, p types.ProjectEmbedding) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeJSONAtomic(s.layout.DocumentFile(documentID, suffixProjectEmbedding), p); err != nil {
		return fault.Persistence("save project embedding "+documentID, err)
	}
	return nil
}

func (s *Store) LoadProjectEmbedding(ctx context.Context, documentID string) (types.ProjectEmbedding, error) {
	if err := ctx.Err(); err != nil {
		return types.ProjectEmbedding{}, err
	}
	var p types.ProjectEmbedding
	if err := readJSON(s.layout.DocumentFile(documentID, suffixProjectEmbedding), &p); err != nil {
		return types.ProjectEmbedding{}, fault.Persistence("load project embedding "+documentID, err)
	}
	return p, nil
}

func (s *Store) LoadProjectCorpus(ctx context.Context) ([]types.ProjectText, [][]float32, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, false, err
	}
	textsPath := s.layout.IntegrationFile(fileProjectTexts)
	embPath := s.layout.IntegrationFile(fileProjectEmbedding)
	if !exists(textsPath) || !exists(embPath) {
		return nil, nil, false, nil
	}
	var texts []types.ProjectText
	var embs [][]float32
	if err := readJSON(textsPath, &texts); err != nil {
		return nil, nil, false, fault.Persistence("load project texts", err)
	}
	if err := readJSON(embPath, &embs); err != nil {
		return nil, nil, false, fault.Persistence("load project embeddings", err)
	}
	if len(texts) != len(embs) {
		return nil, nil, false, fault.Persistence("load project corpus", fmt.Errorf("texts=%d embeddings=%d", len(texts), len(embs)))
	}
	return texts, embs, true, nil
}

func (s *Store) SaveProjectCorpus(ctx context.Context, texts []types.ProjectText, embs [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeJSONAtomic(s.layout.IntegrationFile(fileProjectEmbedding), nonNil(embs)); err != nil {
		return fault.Persistence("save project embeddings", err)
	}
	if err := writeJSONAtomic(s.layout.IntegrationFile(fileProjectTexts), nonNil(texts)); err != nil {
		return fault.Persistence("save project texts", err)
	}
	return nil
}

type ProjectClusterResult struct {
	Coords         [][2]float64
	ClusterIndices []int
	Labels         []string
}

func (s *Store) SaveProjectClusterResult(ctx context.Context, res ProjectClusterResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	writes := []struct {
		name string
		v    any
	}{
		{fileProjectCoords, nonNil(res.Coords)},
		{fileProjectClusterIndex, nonNil(res.ClusterIndices)},
		{fileProjectLabels, nonNil(res.Labels)},
	}
	for _, w := range writes {
		if err := writeJSONAtomic(s.layout.IntegrationFile(w.name), w.v); err != nil {
			return fault.Persistence("save "+w.name, err)
		}
	}
	return nil
}
