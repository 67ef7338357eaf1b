package prompts

func object(properties map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func StringSchema() map[string]any {
	return map[string]any{"type": "string"}
}

func NumberSchema() map[string]any {
	return map[string]any{"type": "number"}
}

func EnumSchema(values ...string) map[string]any {
	arr := make([]any, 0, len(values))
	for _, v := range values {
		arr = append(arr, v)
	}
	return map[string]any{"type": "string", "enum": arr}
}

func KeyPuritySchema() map[string]any {
	return object(map[string]any{
		"Purity":    NumberSchema(),
		"Reasoning": StringSchema(),
	}, "Purity", "Reasoning")
}

func KeyLabelSchema() map[string]any {
	return object(map[string]any{
		"Label":       StringSchema(),
		"Description": StringSchema(),
	}, "Label", "Description")
}

func TransformSynthesisSchema() map[string]any {
	return object(map[string]any{
		"Conversion_possible": EnumSchema("yes", "no"),
		"Code":                StringSchema(),
		"Reason":              StringSchema(),
	}, "Conversion_possible", "Code", "Reason")
}

func ProjectTopicSchema() map[string]any {
	return object(map[string]any{
		"Topic":  StringSchema(),
		"Reason": StringSchema(),
	}, "Topic", "Reason")
}
