package alignment

// DocumentKeys lists the raw keys of one document that roll into a canonical key.
type DocumentKeys struct {
	DocumentID   string   `json:"PMC_ID"`
	Keys         []string `json:"Keys"`
	Descriptions []string `json:"Keys_Info"`
}

// CanonicalKey is one entry of the unified schema, keyed by label in Integration.
type CanonicalKey struct {
	Description  string         `json:"Description"`
	OriginalKeys []DocumentKeys `json:"Original_keys"`
}

// Integration maps canonical label to its schema entry.
type Integration map[string]CanonicalKey

type KeyNameVariation struct {
	KeyNames    []string `json:"Key_names"`
	Description string   `json:"Description"`
}

// KeyNameVariations maps canonical label to every raw key name seen for it.
type KeyNameVariations map[string]KeyNameVariation

// AlignTarget carries the target description used for one canonical key.
type AlignTarget struct {
	Instructions string `json:"Instructions" yaml:"Instructions"`
}
