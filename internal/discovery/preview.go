package discovery

import (
	"os"
	"sort"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/cdtdelta/4n6timeliner/internal/logging"
	"github.com/cdtdelta/4n6timeliner/internal/signature"
)

// ToolPreview is the discovery outcome for one tool group.
type ToolPreview struct {
	Tool    string
	Matched []CandidateFile
	// Found and Missing hold artifact names with and without matches.
	Found   []string
	Missing []signature.Signature
}

// Coverage returns the matched share of the group's artifacts, 0 to 100.
func (tp ToolPreview) Coverage() int {
	total := len(tp.Found) + len(tp.Missing)
	if total == 0 {
		return 0
	}
	return len(tp.Found) * 100 / total
}

// Preview is a dry classification of a scan root.
type Preview struct {
	Tools []ToolPreview
	// Unmatched lists CSV files no signature claimed.
	Unmatched []string
}

// PreviewRoot classifies every CSV under scanRoot against the signatures of
// the given tool groups without reading any data rows.
func PreviewRoot(fs afero.Fs, scanRoot string, reg *signature.Registry, tools []string, log logging.Logger) (*Preview, error) {
	if log == nil {
		log = logging.Discard()
	}
	if len(tools) == 0 || lo.Contains(tools, signature.ToolAll) {
		tools = signature.Tools
	}

	p := &Preview{}
	claimed := make(map[string]bool)
	for _, tool := range tools {
		tp := ToolPreview{Tool: tool}
		for _, name := range reg.ByTool(tool) {
			sig, err := reg.Lookup(name)
			if err != nil {
				return nil, err
			}
			matches, err := FindArtifactFiles(fs, scanRoot, sig, log)
			if err != nil {
				return nil, err
			}
			if len(matches) == 0 {
				tp.Missing = append(tp.Missing, sig)
				continue
			}
			tp.Found = append(tp.Found, name)
			tp.Matched = append(tp.Matched, matches...)
			for _, m := range matches {
				claimed[m.Path] = true
			}
		}
		if len(tp.Found)+len(tp.Missing) > 0 {
			p.Tools = append(p.Tools, tp)
		}
	}

	err := afero.Walk(fs, scanRoot, func(path string, fi os.FileInfo, err error) error {
		if err != nil || fi.IsDir() {
			return nil
		}
		if IsCSV(path) && !claimed[path] {
			p.Unmatched = append(p.Unmatched, path)
		}
		return nil
	})
	sort.Strings(p.Unmatched)
	return p, err
}
