package prompts

// Input is a superset of all fields any prompt might need.
// Missing fields render empty strings (templates use missingkey=zero).
type Input struct {
	// Key descriptors, one per line ("Key: ...  Description: ...  Examples: ...")
	DescriptorList string

	// Transform synthesis
	ReferenceKeysJSON         string
	TargetKey                 string
	ReferenceDescriptionsJSON string
	TargetDescription         string
	SampleValuesJSON          string

	// Project key findings, one per line
	FindingsList string
}
