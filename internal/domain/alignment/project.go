package alignment

type ProjectEmbedding struct {
	KeyFindings string    `json:"key_findings"`
	Embedding   []float32 `json:"embedding"`
}

type ProjectText struct {
	DocumentID  string `json:"PMC_ID"`
	KeyFindings string `json:"key_findings"`
}

type ProjectTopic struct {
	Topic  string `json:"Topic"`
	Reason string `json:"Reason"`
}

const UnlabelledProject = "Unlabelled"
