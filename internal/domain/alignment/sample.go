package alignment

import "strings"

// SampleRecord is one row of observed data for a document.
type SampleRecord map[string]any

const (
	StatusConverted        = "converted"
	StatusUnconvertible    = "unconvertible"
	StatusMissingReference = "missing_reference"
)

// AlignedValue is the value stored under a canonical field. Converted keeps the
// pre-harmonization value once a later pass rewrites Aligned.
type AlignedValue struct {
	Aligned   any    `json:"Aligned"`
	Converted any    `json:"Converted,omitempty"`
	Status    string `json:"Status"`
}

func (v AlignedValue) Map() map[string]any {
	out := map[string]any{
		"Aligned": v.Aligned,
		"Status":  v.Status,
	}
	if v.Converted != nil {
		out["Converted"] = v.Converted
	}
	return out
}

// ParseAlignedValue reads a canonical field back from a decoded record.
func ParseAlignedValue(raw any) (AlignedValue, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return AlignedValue{}, false
	}
	v := AlignedValue{Aligned: m["Aligned"], Converted: m["Converted"]}
	if s, ok := m["Status"].(string); ok {
		v.Status = s
	}
	return v, true
}

func CanonicalField(prefix, label string) string {
	return prefix + label
}

func IsCanonicalField(prefix, field string) bool {
	return prefix != "" && strings.HasPrefix(field, prefix)
}
