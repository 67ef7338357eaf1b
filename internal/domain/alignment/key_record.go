package alignment

import (
	"encoding/json"
	"fmt"
)

// KeyRecord is one (document, raw metadata key) pair. The embedding is omitted
// from the text-only listings.
type KeyRecord struct {
	DocumentID    string    `json:"PMC_ID,omitempty"`
	Key           string    `json:"Key"`
	Description   string    `json:"Description"`
	ExampleValues []any     `json:"Example_values"`
	Embedding     []float32 `json:"Embedding,omitempty"`
}

// Descriptor is the single-line text shown to the purity and label oracles.
func (k KeyRecord) Descriptor() string {
	examples := "[]"
	if len(k.ExampleValues) > 0 {
		if raw, err := json.Marshal(k.ExampleValues); err == nil {
			examples = string(raw)
		}
	}
	return fmt.Sprintf("Key: %s  Description: %s  Examples: %s", k.Key, k.Description, examples)
}

// Text returns a copy without the embedding.
func (k KeyRecord) Text() KeyRecord {
	k.Embedding = nil
	return k
}

// PureCluster is a hierarchy node judged semantically homogeneous. Texts holds
// the descriptors actually sent to the oracle (a diverse subset for large nodes).
type PureCluster struct {
	Indices []int    `json:"Indices"`
	Texts   []string `json:"Texts"`
	Purity  float64  `json:"Purity"`
}

type LabelDescription struct {
	Label       string `json:"Label"`
	Description string `json:"Description"`
}

// ClusterReport summarises one key clustering run.
type ClusterReport struct {
	Records           int `json:"Records"`
	PureClusters      int `json:"Pure_clusters"`
	Unaligned         int `json:"Unaligned"`
	DroppedNodes      int `json:"Dropped_nodes"`
	DroppedMembers    int `json:"Dropped_members"`
	FailedEvaluations int `json:"Failed_evaluations"`
	DuplicateLabels   int `json:"Duplicate_labels"`
}
