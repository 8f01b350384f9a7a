// Package normalize turns raw tool export batches into canonical timeline rows.
//
// Every artifact type has one Normalizer, selected by artifact name. A
// normalizer never fails on a single row: unparseable timestamps are
// skipped per (row, field) and reported as ParseErrors in the Result. The
// only error it returns is a SchemaError for a batch that lacks a column the
// normalizer cannot work without.
package normalize

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/cdtdelta/4n6timeliner/internal/csvparser"
	"github.com/cdtdelta/4n6timeliner/internal/fault"
	"github.com/cdtdelta/4n6timeliner/internal/model"
)

// Tool literals written to TimelineRow.Tool.
const (
	ToolEZ       = "EZ Tools"
	ToolAxiom    = "Axiom"
	ToolChainsaw = "Chainsaw"
	ToolHayabusa = "Hayabusa"
	ToolNirsoft  = "Nirsoft"
)

// Normalizer maps one artifact type's batches to timeline rows.
type Normalizer interface {
	// Artifact is the registry key, matching the signature name.
	Artifact() string
	// Tool is the producing ecosystem written to every row.
	Tool() string
	Normalize(b *csvparser.Batch, scanRoot string) (*Result, error)
}

// Result is the outcome of normalizing one batch.
type Result struct {
	Rows []model.TimelineRow
	// Issues holds one ParseError per distinct cause within the batch.
	Issues []*fault.ParseError
	// Skipped counts (row, timestamp field) pairs that produced no row.
	Skipped int
	// Filtered counts source rows dropped by artifact filters.
	Filtered int

	seen map[string]bool
}

func (r *Result) issue(e *fault.ParseError) {
	if r.seen == nil {
		r.seen = make(map[string]bool)
	}
	if r.seen[e.Key()] {
		return
	}
	r.seen[e.Key()] = true
	r.Issues = append(r.Issues, e)
}

// Registry dispatches on artifact name.
type Registry struct {
	mu          sync.RWMutex
	normalizers map[string]Normalizer
}

// NewRegistry creates a registry holding the given normalizers.
func NewRegistry(ns ...Normalizer) *Registry {
	r := &Registry{normalizers: make(map[string]Normalizer, len(ns))}
	for _, n := range ns {
		r.Register(n)
	}
	return r
}

// Register adds a normalizer, replacing any existing one for the artifact.
func (r *Registry) Register(n Normalizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalizers[n.Artifact()] = n
}

// For returns the normalizer for an artifact.
func (r *Registry) For(artifact string) (Normalizer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.normalizers[artifact]
	return n, ok
}

// Artifacts lists the registered artifact names, sorted.
func (r *Registry) Artifacts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.normalizers))
	for name := range r.normalizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options tunes the built-in normalizers.
type Options struct {
	// MFTExtensions keeps only MFT entries whose extension ends with one of these.
	MFTExtensions []string
	// MFTPaths keeps only MFT entries whose path contains one of these.
	MFTPaths []string
	// EventChannels overrides the channel to event id filter for EZ event logs.
	// Nil selects DefaultEventChannels.
	EventChannels map[string][]int
}

// Default returns a registry with every built-in normalizer.
func Default(opts Options) *Registry {
	var ns []Normalizer
	ns = append(ns, ezTools(opts)...)
	ns = append(ns, hayabusa(), chainsawSigma(), chainsawLoginAttacks())
	ns = append(ns, nirsoftBrowsingHistory())
	ns = append(ns, axiomPrefetch(), axiomChromeHistory())
	return NewRegistry(ns...)
}

// EvidencePath renders the source file relative to scanRoot when one is
// given, otherwise as an absolute path. Separators are always forward slashes.
func EvidencePath(sourcePath, scanRoot string) string {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		abs = sourcePath
	}
	if scanRoot != "" {
		root, err := filepath.Abs(scanRoot)
		if err == nil {
			if rel, err := filepath.Rel(root, abs); err == nil {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.ToSlash(abs)
}
