package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"text/template"
)

// Field names an Input value a prompt cannot be rendered without.
type Field string

const (
	FieldDescriptors   Field = "DescriptorList"
	FieldReferenceKeys Field = "ReferenceKeysJSON"
	FieldTargetKey     Field = "TargetKey"
	FieldFindings      Field = "FindingsList"
)

func (in Input) value(f Field) (string, bool) {
	switch f {
	case FieldDescriptors:
		return in.DescriptorList, true
	case FieldReferenceKeys:
		return in.ReferenceKeysJSON, true
	case FieldTargetKey:
		return in.TargetKey, true
	case FieldFindings:
		return in.FindingsList, true
	default:
		return "", false
	}
}

// Spec declares one prompt. System and User are text/template sources over Input;
// the response schema is registered under the prompt name.
type Spec struct {
	Name     PromptName
	Version  int
	Schema   func() map[string]any
	System   string
	User     string
	Requires []Field
}

// Prompt is a rendered request ready for openai.GenerateJSON.
type Prompt struct {
	Name       string
	Version    int
	System     string
	User       string
	SchemaName string
	Schema     map[string]any
}

// Fingerprint is equal for two prompts exactly when the oracle would see the
// same request.
func (p Prompt) Fingerprint() string {
	h := sha256.New()
	for _, part := range []string{p.Name, strconv.Itoa(p.Version), p.System, p.User} {
		h.Write([]byte(strings.TrimSpace(part)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	spec   Spec
	system *template.Template
	user   *template.Template
}

var catalog = sync.OnceValues(func() (map[PromptName]entry, error) {
	return compile(specs())
})

func compile(list []Spec) (map[PromptName]entry, error) {
	out := make(map[PromptName]entry, len(list))
	for _, s := range list {
		e, err := compileSpec(s)
		if err != nil {
			return nil, err
		}
		if _, dup := out[s.Name]; dup {
			return nil, fmt.Errorf("prompt %s declared twice", s.Name)
		}
		out[s.Name] = e
	}
	return out, nil
}

func compileSpec(s Spec) (entry, error) {
	switch {
	case strings.TrimSpace(string(s.Name)) == "":
		return entry{}, fmt.Errorf("prompt without name")
	case s.Version <= 0:
		return entry{}, fmt.Errorf("prompt %s: version must be positive", s.Name)
	case s.Schema == nil:
		return entry{}, fmt.Errorf("prompt %s: no response schema", s.Name)
	}
	for _, f := range s.Requires {
		if _, ok := (Input{}).value(f); !ok {
			return entry{}, fmt.Errorf("prompt %s: unknown required field %q", s.Name, f)
		}
	}
	sys, err := template.New(string(s.Name) + ".system").Option("missingkey=zero").Parse(s.System)
	if err != nil {
		return entry{}, fmt.Errorf("prompt %s: system: %w", s.Name, err)
	}
	user, err := template.New(string(s.Name) + ".user").Option("missingkey=zero").Parse(s.User)
	if err != nil {
		return entry{}, fmt.Errorf("prompt %s: user: %w", s.Name, err)
	}
	return entry{spec: s, system: sys, user: user}, nil
}

func render(t *template.Template, in Input) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, in); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}

func lookup(name PromptName) (entry, error) {
	all, err := catalog()
	if err != nil {
		return entry{}, err
	}
	e, ok := all[name]
	if !ok {
		return entry{}, fmt.Errorf("unknown prompt: %s", name)
	}
	return e, nil
}

// Build renders the named prompt for in after checking its required fields.
func Build(name PromptName, in Input) (Prompt, error) {
	e, err := lookup(name)
	if err != nil {
		return Prompt{}, err
	}
	for _, f := range e.spec.Requires {
		if v, _ := in.value(f); strings.TrimSpace(v) == "" {
			return Prompt{}, fmt.Errorf("%s: %s required", name, f)
		}
	}
	sys, err := render(e.system, in)
	if err != nil {
		return Prompt{}, fmt.Errorf("%s: render system: %w", name, err)
	}
	user, err := render(e.user, in)
	if err != nil {
		return Prompt{}, fmt.Errorf("%s: render user: %w", name, err)
	}
	return Prompt{
		Name:       string(name),
		Version:    e.spec.Version,
		System:     sys,
		User:       user,
		SchemaName: string(name),
		Schema:     e.spec.Schema(),
	}, nil
}

func Schema(name PromptName) (string, map[string]any, bool) {
	e, err := lookup(name)
	if err != nil {
		return "", nil, false
	}
	return string(name), e.spec.Schema(), true
}
