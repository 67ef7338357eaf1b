package alignment

import "strings"

// TransformationSpec is a synthesized per-document conversion rule for one
// canonical key. Code is an expression over the `input` map restricted to
// InputKeys.
type TransformationSpec struct {
	ConversionPossible string   `json:"Conversion_possible"`
	Code               string   `json:"Code"`
	Reason             string   `json:"Reason"`
	InputKeys          []string `json:"Input_keys"`
	Target             string   `json:"Target"`
}

func (s TransformationSpec) Feasible() bool {
	return strings.EqualFold(strings.TrimSpace(s.ConversionPossible), "yes") && strings.TrimSpace(s.Code) != ""
}

// TransformationSpecs is the per-document file content keyed by canonical label.
type TransformationSpecs map[string]TransformationSpec
