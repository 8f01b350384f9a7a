// Package signature holds the artifact signature registry used to classify
// forensic tool exports.
package signature

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/cdtdelta/4n6timeliner/internal/fault"
)

// Tool groups a signature belongs to. They are the values accepted by the
// tool selection option.
const (
	ToolEZ       = "ez"
	ToolAxiom    = "axiom"
	ToolHayabusa = "hayabusa"
	ToolChainsaw = "chainsaw"
	ToolNirsoft  = "nirsoft"
	ToolCustom   = "custom"
	ToolAll      = "all"
)

// Export encodings a signature may declare.
const (
	EncodingUTF8   = "utf-8"
	EncodingCP1252 = "cp1252"
)

// Tools lists the selectable tool groups.
var Tools = []string{ToolEZ, ToolAxiom, ToolHayabusa, ToolChainsaw, ToolNirsoft, ToolCustom}

// Signature identifies one supported source format.
type Signature struct {
	Name               string   `json:"name" yaml:"name"`
	Tool               string   `json:"tool" yaml:"tool"`
	Description        string   `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled            bool     `json:"enabled" yaml:"enabled"`
	FilenamePatterns   []string `json:"filename_patterns" yaml:"filename_patterns"`
	FoldernamePatterns []string `json:"foldername_patterns" yaml:"foldername_patterns"`
	RequiredHeaders    []string `json:"required_headers" yaml:"required_headers"`

	StrictFilenameMatch bool `json:"strict_filename_match" yaml:"strict_filename_match"`
	StrictFolderMatch   bool `json:"strict_folder_match" yaml:"strict_folder_match"`
	StrictHeaderMatch   bool `json:"strict_header_match" yaml:"strict_header_match"`

	// Encoding is the character encoding of the tool's exports; empty means UTF-8.
	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty"`
}

// HeaderFallback reports whether header-based classification is permitted.
func (s Signature) HeaderFallback() bool {
	return !s.StrictFilenameMatch && !s.StrictFolderMatch
}

// HeaderThreshold is the number of required headers that must be present
// for a header-fallback match: half of them rounded down, at least one.
// StrictHeaderMatch requires all of them.
func (s Signature) HeaderThreshold() int {
	n := len(s.RequiredHeaders)
	if s.StrictHeaderMatch {
		return max(1, n)
	}
	return max(1, n/2)
}

// Clone returns a deep copy.
func (s Signature) Clone() Signature {
	c := s
	c.FilenamePatterns = append([]string(nil), s.FilenamePatterns...)
	c.FoldernamePatterns = append([]string(nil), s.FoldernamePatterns...)
	c.RequiredHeaders = append([]string(nil), s.RequiredHeaders...)
	return c
}

// Registry maps artifact names to signatures. It is not safe for concurrent
// mutation; the pipeline works on a Clone taken before discovery starts.
type Registry struct {
	sigs map[string]Signature
}

// NewRegistry creates a registry from the given signatures.
func NewRegistry(sigs ...Signature) *Registry {
	r := &Registry{sigs: make(map[string]Signature, len(sigs))}
	for _, s := range sigs {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a signature.
func (r *Registry) Register(s Signature) {
	r.sigs[s.Name] = s.Clone()
}

// Lookup returns the signature for an artifact name.
func (r *Registry) Lookup(name string) (Signature, error) {
	s, ok := r.sigs[name]
	if !ok {
		return Signature{}, &fault.ConfigurationError{
			Artifact: name,
			Reason:   "no signature registered",
			Err:      fault.ErrUnknownArtifact,
		}
	}
	return s.Clone(), nil
}

// Names returns all registered artifact names, sorted.
func (r *Registry) Names() []string {
	names := lo.Keys(r.sigs)
	sort.Strings(names)
	return names
}

// ByTool returns the names of signatures in a tool group, sorted.
// ToolAll selects every signature.
func (r *Registry) ByTool(tool string) []string {
	tool = strings.ToLower(tool)
	var names []string
	for name, s := range r.sigs {
		if tool == ToolAll || strings.EqualFold(s.Tool, tool) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// All returns copies of every signature ordered by name.
func (r *Registry) All() []Signature {
	return lo.Map(r.Names(), func(name string, _ int) Signature {
		return r.sigs[name].Clone()
	})
}

// Len returns the number of signatures.
func (r *Registry) Len() int {
	return len(r.sigs)
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	return NewRegistry(r.All()...)
}

// SetEnabled toggles a signature on or off.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	s, ok := r.sigs[name]
	if !ok {
		return fmt.Errorf("set enabled: %w", &fault.ConfigurationError{Artifact: name, Err: fault.ErrUnknownArtifact})
	}
	s.Enabled = enabled
	r.sigs[name] = s
	return nil
}
