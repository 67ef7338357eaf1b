package oracle

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yungbote/embers-fuse/internal/domain/alignment"
)

var errMalformed = errors.New("malformed oracle response")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errMalformed, fmt.Sprintf(format, args...))
}

func parsePurity(obj map[string]any) (float64, string, error) {
	raw, ok := obj["Purity"]
	if !ok {
		return 0, "", malformed("missing Purity")
	}
	score, err := toScore(raw)
	if err != nil {
		return 0, "", err
	}
	reasoning, _ := obj["Reasoning"].(string)
	return score, reasoning, nil
}

func toScore(raw any) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, malformed("Purity %q is not a number", v)
		}
		f = p
	case []any:
		// The model sometimes echoes the bracketed placeholder.
		if len(v) != 1 {
			return 0, malformed("Purity list has %d elements", len(v))
		}
		return toScore(v[0])
	default:
		return 0, malformed("Purity has type %T", raw)
	}
	if math.IsNaN(f) || f < 0 || f > 1 {
		return 0, malformed("Purity %v outside [0,1]", f)
	}
	return f, nil
}

func requireString(obj map[string]any, field string, allowEmpty bool) (string, error) {
	raw, ok := obj[field]
	if !ok {
		return "", malformed("missing %s", field)
	}
	s, ok := raw.(string)
	if !ok {
		return "", malformed("%s has type %T", field, raw)
	}
	s = strings.TrimSpace(s)
	if s == "" && !allowEmpty {
		return "", malformed("empty %s", field)
	}
	return s, nil
}

func parseLabel(obj map[string]any) (alignment.LabelDescription, error) {
	label, err := requireString(obj, "Label", false)
	if err != nil {
		return alignment.LabelDescription{}, err
	}
	desc, err := requireString(obj, "Description", true)
	if err != nil {
		return alignment.LabelDescription{}, err
	}
	return alignment.LabelDescription{Label: label, Description: desc}, nil
}

func parseTransform(obj map[string]any) (alignment.TransformationSpec, error) {
	possible, err := requireString(obj, "Conversion_possible", false)
	if err != nil {
		return alignment.TransformationSpec{}, err
	}
	possible = strings.ToLower(possible)
	if possible != "yes" && possible != "no" {
		return alignment.TransformationSpec{}, malformed("Conversion_possible %q", possible)
	}
	code, err := requireString(obj, "Code", true)
	if err != nil {
		return alignment.TransformationSpec{}, err
	}
	if possible == "yes" && code == "" {
		return alignment.TransformationSpec{}, malformed("feasible transform without code")
	}
	reason, _ := obj["Reason"].(string)
	return alignment.TransformationSpec{
		ConversionPossible: possible,
		Code:               code,
		Reason:             strings.TrimSpace(reason),
	}, nil
}

func parseTopic(obj map[string]any) (alignment.ProjectTopic, error) {
	topic, err := requireString(obj, "Topic", false)
	if err != nil {
		return alignment.ProjectTopic{}, err
	}
	reason, _ := obj["Reason"].(string)
	return alignment.ProjectTopic{Topic: topic, Reason: strings.TrimSpace(reason)}, nil
}
