package prompts

// specs lists every prompt the alignment oracles use.
func specs() []Spec {
	return []Spec{
		// ---------- Key alignment ----------

		{
			Name:    PromptKeyPurity,
			Version: 1,
			Schema:  KeyPuritySchema,
			System: `
You will be provided with a list of metadata fields extracted from research papers on the human gut microbiome.
Each metadata field is a text string containing:
1. The original key name of the field (as used in the source paper's data table)
2. A brief description of the field
3. A few unique example values randomly selected from the original data table

Evaluate the "semantic purity" of the set as a whole: the degree to which all fields pertain to the same specific
metadata concept and share the same data type (string, numeric, date), as opposed to a mixture of concepts or types.

Score between 0.0 and 1.0:
- 1.0: the fields all describe the same concept with the same data type.
  "Key: Age  Description: age of subject  Examples: [16, 21, 65]" and
  "Key: host_age  Description: subject age  Examples: [52, 11, 83]" are close to 1.0.
  "Key: Gender  Description: gender of subject  Examples: ["F", "M"]" and
  "Key: host_sex  Description: biological sex  Examples: ["male", "female"]" are close to 1.0.
- 0.0: the fields describe a variety of concepts or data types.
  Age, Gender, BMI and Collection_Date together are close to 0.0.
- Related concepts with different data types (country names next to latitude/longitude pairs) score lower.
- The same concept in easily convertible units or formats (age in years next to "6.0 months") scores higher.

Return JSON only.`,
			User: `
List of descriptions:
[
{{.DescriptorList}}
]`,
			Requires: []Field{FieldDescriptors},
		},

		{
			Name:    PromptKeyLabel,
			Version: 1,
			Schema:  KeyLabelSchema,
			System: `
You will be provided with descriptions of metadata fields that were judged a highly semantically pure set:
they pertain to the same metadata concept, share the same data type and, where applicable, the same unit.
The fields describe study subjects or biological samples in human gut microbiome research.

Generate a concise, standardized label for this metadata item and a brief description of what it represents.
Example: "age of subject (years)", "subject age (years)", "age in years" ->
{"Label": "Age (years)", "Description": "Metadata item describing the age of the study subjects in years"}

Return JSON only.`,
			User: `
List of descriptions:
[
{{.DescriptorList}}
]`,
			Requires: []Field{FieldDescriptors},
		},

		// ---------- Value harmonization ----------

		{
			Name:    PromptTransformSynthesis,
			Version: 1,
			Schema:  TransformSynthesisSchema,
			System: `
Given a reference key list and a target key, descriptions of the reference keys, a description of the target key
and a list of sample records, write an expression that converts one record into the target key value.

The expression is written in the expr language (github.com/expr-lang/expr). It is evaluated once per record with a
single variable named input: a map from each reference key to that record's raw value. It must evaluate to a single
scalar (string, number or boolean), never a map or list. Useful features:
- let bindings: let v = input["Age"]; ...
- conditionals: cond ? a : b, and nil coalescing: input["x"] ?? ""
- conversions: int(), float(), string(), trim(), lower(), upper(), split(), replace()
- operators: contains, startsWith, endsWith, matches (regular expression), in

Convert as many sample records as possible given the data types, patterns and value ranges observed, normalising
to the format in the target key description. Set Conversion_possible to "no" when the reference values cannot
produce the target value; Code may then be empty.

Return JSON only: {"Conversion_possible": "yes"|"no", "Code": "<expression>", "Reason": "<approach>"}`,
			User: `
Reference key list:
{{.ReferenceKeysJSON}}
Target key name:
{{.TargetKey}}

Descriptions of the reference keys:
{{.ReferenceDescriptionsJSON}}

Description of the target key:
{{.TargetDescription}}

List of sample values:
{{.SampleValuesJSON}}`,
			Requires: []Field{FieldReferenceKeys, FieldTargetKey},
		},

		// ---------- Projects ----------

		{
			Name:    PromptProjectTopic,
			Version: 1,
			Schema:  ProjectTopicSchema,
			System: `
Analyze the following key findings from research papers on the human gut microbiome.
Identify the common theme shared by these studies and express it in the shortest possible English word or phrase.
Avoid vague classifications that apply to most papers, such as "human gut microbiome research";
focus on what is specific to this cluster of papers.

Return JSON only: {"Topic": "<topic>", "Reason": "<why this topic>"}`,
			User: `
Key Findings:
{{.FindingsList}}`,
			Requires: []Field{FieldFindings},
		},
	}
}
