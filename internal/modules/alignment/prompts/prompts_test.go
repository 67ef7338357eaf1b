package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRendersInput(t *testing.T) {
	p, err := Build(PromptKeyPurity, Input{DescriptorList: "Key: Age  Description: age  Examples: [1]"})
	require.NoError(t, err)
	assert.Equal(t, "key_purity", p.SchemaName)
	assert.Contains(t, p.User, "Key: Age")
	assert.Contains(t, p.System, "semantic purity")
	assert.Equal(t, []string{"Purity", "Reasoning"}, p.Schema["required"])
	assert.NotEmpty(t, p.Fingerprint())
}

func TestBuildValidates(t *testing.T) {
	_, err := Build(PromptTransformSynthesis, Input{TargetKey: "Age"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ReferenceKeysJSON required")

	_, err = Build(PromptName("nope"), Input{})
	assert.Error(t, err)
}

func TestFingerprintTracksContent(t *testing.T) {
	a, err := Build(PromptProjectTopic, Input{FindingsList: "one"})
	require.NoError(t, err)
	b, err := Build(PromptProjectTopic, Input{FindingsList: "two"})
	require.NoError(t, err)
	a2, err := Build(PromptProjectTopic, Input{FindingsList: "one"})
	require.NoError(t, err)

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, a.Fingerprint(), a2.Fingerprint())
}

func TestEveryPromptRegistered(t *testing.T) {
	for _, name := range []PromptName{PromptKeyPurity, PromptKeyLabel, PromptTransformSynthesis, PromptProjectTopic} {
		schemaName, schema, ok := Schema(name)
		assert.True(t, ok, string(name))
		assert.Equal(t, string(name), schemaName)
		assert.Equal(t, "object", schema["type"])
	}
}

func TestCompileRejectsIncompleteSpecs(t *testing.T) {
	cases := map[string]Spec{
		"no version":    {Name: "x"},
		"no schema":     {Name: "x", Version: 1},
		"bad template":  {Name: "x", Version: 1, Schema: KeyLabelSchema, User: "{{.Broken"},
		"unknown field": {Name: "x", Version: 1, Schema: KeyLabelSchema, Requires: []Field{"Nope"}},
	}
	for name, spec := range cases {
		_, err := compile([]Spec{spec})
		assert.Error(t, err, name)
	}

	ok := Spec{Name: "x", Version: 1, Schema: KeyLabelSchema}
	_, err := compile([]Spec{ok, ok})
	assert.ErrorContains(t, err, "declared twice")
}
