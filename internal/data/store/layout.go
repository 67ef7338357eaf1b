package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	suffixKeysDescriptions  = "new_keys_descriptions.json"
	suffixKeysEmbedding     = "new_keys_descriptions_embedding.json"
	suffixSamplesRaw        = "samples_update.json"
	suffixSamplesIntegrated = "samples_update_integrated.json"
	suffixTransformCode     = "transform_code.json"
	suffixProject           = "project.json"
	suffixProjectEmbedding  = "project_embedding.json"
	fileKeysTexts           = "keys_texts.json"
	fileKeysEmbedding       = "keys_embedding.json"
	fileKeysPureClusters    = "keys_pure_clusters.json"
	fileKeysLabels          = "keys_labels.json"
	fileKeysLabelsDescs     = "keys_labels_descriptions.json"
	fileKeysClusterReport   = "keys_cluster_report.json"
	fileIntegration         = "integration.json"
	fileKeyNameVariations   = "key_name_variations.json"
	fileGeoLocDict          = "geo_loc_dict.json"
	fileProjectTexts        = "project_texts.json"
	fileProjectEmbedding    = "project_embedding.json"
	fileProjectCoords       = "project_coords.json"
	fileProjectClusterIndex = "project_cluster_indices.json"
	fileProjectLabels       = "project_labels.json"
	defaultDocumentPattern  = "PMC*"
)

// Layout resolves on-disk paths. Every document lives in <DataDir>/<id>/ and
// its files are named <id>_<suffix>. Corpus-wide artifacts go to IntegrationDir.
type Layout struct {
	DataDir         string
	IntegrationDir  string
	DocumentPattern string
}

func (l Layout) DocumentDir(documentID string) string {
	return filepath.Join(l.DataDir, documentID)
}

func (l Layout) DocumentFile(documentID, suffix string) string {
	return filepath.Join(l.DocumentDir(documentID), documentID+"_"+suffix)
}

func (l Layout) IntegrationFile(name string) string {
	dir := l.IntegrationDir
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(l.DataDir, "_integration")
	}
	return filepath.Join(dir, name)
}

// Documents lists document ids (directory names matching the pattern), sorted.
func (l Layout) Documents() ([]string, error) {
	pattern := strings.TrimSpace(l.DocumentPattern)
	if pattern == "" {
		pattern = defaultDocumentPattern
	}
	matches, err := filepath.Glob(filepath.Join(l.DataDir, pattern))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.IsDir() {
			continue
		}
		name := filepath.Base(m)
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}
