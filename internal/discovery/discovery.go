// Package discovery classifies files under a scan root against artifact signatures.
package discovery

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/cdtdelta/4n6timeliner/internal/fault"
	"github.com/cdtdelta/4n6timeliner/internal/logging"
	"github.com/cdtdelta/4n6timeliner/internal/signature"
)

// Match rationales.
const (
	RationaleFilenameFolder = "filename & folder"
	RationaleHeader         = "header overlap"
)

// maxHeaderLine bounds the header peek so a file without newlines cannot be
// read whole.
const maxHeaderLine = 64 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CandidateFile is a file matched against one artifact type.
type CandidateFile struct {
	Path      string
	Artifact  string
	Rationale string
	// Matched is the number of required headers found, for header matches.
	Matched int
}

// FindArtifactFiles walks scanRoot and returns the CSV files that match sig.
// A missing root logs a warning and returns an empty result together with a
// ConfigurationError the caller may record. Files that cannot be peeked are
// skipped with a warning.
func FindArtifactFiles(fs afero.Fs, scanRoot string, sig signature.Signature, log logging.Logger) ([]CandidateFile, error) {
	if log == nil {
		log = logging.Discard()
	}

	if !sig.Enabled {
		log.Info("artifact disabled, skipping discovery", "artifact", sig.Name)
		return nil, nil
	}

	info, err := fs.Stat(scanRoot)
	if err != nil || !info.IsDir() {
		log.Warn("scan root not found", "artifact", sig.Name, "root", scanRoot)
		return nil, &fault.ConfigurationError{Artifact: sig.Name, Reason: scanRoot, Err: fault.ErrMissingRoot}
	}

	var matches []CandidateFile
	err = afero.Walk(fs, scanRoot, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			log.Warn("cannot read path, skipping", "artifact", sig.Name, "path", path, "err", walkErr)
			if fi != nil && fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if fi.IsDir() || !IsCSV(path) {
			return nil
		}

		c, ok, err := Classify(fs, path, sig)
		if err != nil {
			log.Warn("cannot inspect file, skipping", "artifact", sig.Name, "file", path, "err", err)
			return nil
		}
		if ok {
			log.Debug("matched", "artifact", sig.Name, "file", path, "rationale", c.Rationale)
			matches = append(matches, c)
		}
		return nil
	})
	if err != nil {
		log.Warn("walk aborted", "artifact", sig.Name, "root", scanRoot, "err", err)
	}
	return matches, nil
}

// Classify decides whether one file belongs to sig. The returned error is a
// FileAccessError when the header peek fails.
func Classify(fs afero.Fs, path string, sig signature.Signature) (CandidateFile, bool, error) {
	c := CandidateFile{Path: path, Artifact: sig.Name}

	folder := filepath.Base(filepath.Dir(path))
	name := StripDatePrefix(filepath.Base(path))

	if FolderMatched(folder, sig) && FilenameMatched(name, sig) {
		c.Rationale = RationaleFilenameFolder
		return c, true, nil
	}

	if !sig.HeaderFallback() || len(sig.RequiredHeaders) == 0 {
		return c, false, nil
	}

	header, err := PeekHeader(fs, path)
	if err != nil {
		return c, false, err
	}
	n := countHeaders(header, sig.RequiredHeaders)
	if n >= sig.HeaderThreshold() {
		c.Rationale = RationaleHeader
		c.Matched = n
		return c, true, nil
	}
	return c, false, nil
}

// FolderMatched compares a parent directory name with the folder patterns:
// equality under StrictFolderMatch, containment otherwise. Case-insensitive.
func FolderMatched(folder string, sig signature.Signature) bool {
	folder = strings.ToLower(folder)
	for _, p := range sig.FoldernamePatterns {
		p = strings.ToLower(p)
		if p == "" {
			continue
		}
		if sig.StrictFolderMatch {
			if folder == p {
				return true
			}
		} else if strings.Contains(folder, p) {
			return true
		}
	}
	return false
}

// FilenameMatched compares a file name with the filename patterns: suffix
// under StrictFilenameMatch, containment otherwise. Case-insensitive.
func FilenameMatched(name string, sig signature.Signature) bool {
	name = strings.ToLower(name)
	for _, p := range sig.FilenamePatterns {
		p = strings.ToLower(p)
		if p == "" {
			continue
		}
		if sig.StrictFilenameMatch {
			if strings.HasSuffix(name, p) {
				return true
			}
		} else if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// IsCSV reports whether path has a .csv extension.
func IsCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

// StripDatePrefix removes a KAPE style "YYYYMMDD_HHMMSS_" prefix.
func StripDatePrefix(name string) string {
	if len(name) > 16 && name[8] == '_' && name[15] == '_' && allDigits(name[:8]) && allDigits(name[9:15]) {
		return name[16:]
	}
	return name
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// PeekHeader reads only the first line of a file and splits it on commas.
func PeekHeader(fs afero.Fs, path string) ([]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, &fault.FileAccessError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), maxHeaderLine)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, &fault.FileAccessError{Path: path, Op: "read header", Err: err}
		}
		return nil, nil
	}
	line := bytes.TrimPrefix(sc.Bytes(), utf8BOM)

	fields := strings.Split(string(line), ",")
	for i, h := range fields {
		fields[i] = strings.ToLower(strings.Trim(strings.TrimSpace(h), `"`))
	}
	return fields, nil
}

func countHeaders(header, required []string) int {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	n := 0
	for _, r := range required {
		if present[strings.ToLower(r)] {
			n++
		}
	}
	return n
}

// Describe renders a candidate for log and preview output.
func (c CandidateFile) Describe() string {
	if c.Rationale == RationaleHeader {
		return fmt.Sprintf("%s [%s, %d headers]", c.Path, c.Rationale, c.Matched)
	}
	return fmt.Sprintf("%s [%s]", c.Path, c.Rationale)
}
