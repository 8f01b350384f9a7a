package signature

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
	"github.com/imdario/mergo"
	"github.com/qri-io/jsonschema"
	"github.com/spf13/afero"
	"github.com/stoewer/go-strcase"

	"github.com/cdtdelta/4n6timeliner/internal/fault"
)

// overrideSchema constrains an override document after key normalisation.
const overrideSchema = `{
	"type": "object",
	"additionalProperties": {
		"type": "object",
		"properties": {
			"filename_patterns":   {"type": "array", "items": {"type": "string"}},
			"foldername_patterns": {"type": "array", "items": {"type": "string"}},
			"required_headers":    {"type": "array", "items": {"type": "string"}},
			"encoding":            {"enum": ["utf-8", "cp1252"]}
		},
		"additionalProperties": false
	}
}`

// Patch is the set of fields an override may replace for one artifact.
type Patch struct {
	FilenamePatterns   []string `json:"filename_patterns,omitempty"`
	FoldernamePatterns []string `json:"foldername_patterns,omitempty"`
	RequiredHeaders    []string `json:"required_headers,omitempty"`
	Encoding           string   `json:"encoding,omitempty"`
}

// Override maps artifact names to the fields they replace.
type Override map[string]Patch

// LoadOverride reads an override document. TOML is selected by the .toml
// extension; anything else is parsed as YAML, which also covers JSON.
func LoadOverride(fs afero.Fs, path string) (Override, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, &fault.ConfigurationError{Reason: "reading override " + path, Err: err}
	}
	ov, err := ParseOverride(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, &fault.ConfigurationError{Reason: "override " + path, Err: err}
	}
	return ov, nil
}

// ParseOverride decodes and validates an override document. ext selects the
// syntax (".toml", otherwise YAML/JSON).
func ParseOverride(data []byte, ext string) (Override, error) {
	raw := map[string]interface{}{}
	if ext == ".toml" {
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decoding toml: %w", err)
		}
	} else if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	}

	normalized := make(map[string]interface{}, len(raw))
	for name, v := range raw {
		fields, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("artifact %q: expected a mapping, got %T", name, v)
		}
		nf := make(map[string]interface{}, len(fields))
		for k, fv := range fields {
			nf[strcase.SnakeCase(k)] = fv
		}
		normalized[name] = nf
	}

	doc, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("encoding override: %w", err)
	}
	if err := validateOverride(doc); err != nil {
		return nil, err
	}

	ov := Override{}
	if err := json.Unmarshal(doc, &ov); err != nil {
		return nil, fmt.Errorf("decoding override: %w", err)
	}
	return ov, nil
}

func validateOverride(doc []byte) error {
	schema := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(overrideSchema), schema); err != nil {
		return fmt.Errorf("loading override schema: %w", err)
	}
	keyErrs, err := schema.ValidateBytes(context.Background(), doc)
	if err != nil {
		return fmt.Errorf("validating override: %w", err)
	}
	if len(keyErrs) > 0 {
		flaws := make([]string, 0, len(keyErrs))
		for _, ke := range keyErrs {
			flaws = append(flaws, ke.Error())
		}
		return fmt.Errorf("invalid override: %s", strings.Join(flaws, "; "))
	}
	return nil
}

// Apply merges an override into the registry. Existing signatures keep every
// field the patch leaves empty; unknown names become new enabled signatures
// with fuzzy matching. Applying the same override twice changes nothing.
func (r *Registry) Apply(ov Override) error {
	for name, p := range ov {
		patch := Signature{
			FilenamePatterns:   p.FilenamePatterns,
			FoldernamePatterns: p.FoldernamePatterns,
			RequiredHeaders:    p.RequiredHeaders,
			Encoding:           p.Encoding,
		}
		cur, ok := r.sigs[name]
		if !ok {
			cur = Signature{Name: name, Tool: ToolCustom, Enabled: true}
		}
		if err := mergo.Merge(&cur, patch, mergo.WithOverride); err != nil {
			return fmt.Errorf("merging override for %s: %w", name, err)
		}
		r.Register(cur)
	}
	return nil
}
