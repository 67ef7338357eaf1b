package prompts

type PromptName string

const (
	// Key alignment
	PromptKeyPurity PromptName = "key_purity"
	PromptKeyLabel  PromptName = "key_label"

	// Value harmonization
	PromptTransformSynthesis PromptName = "transform_synthesis"

	// Projects
	PromptProjectTopic PromptName = "project_topic"
)
