// Package fault defines the error taxonomy shared by the timeline pipeline.
//
// Errors are caught at the narrowest scope that still lets the run make
// progress: a ParseError skips one row/field, a SchemaError abandons one
// file, a FileAccessError skips one file, and a ConfigurationError skips one
// artifact type. None of them stop a run.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownArtifact is wrapped when an artifact name has no signature or normalizer.
	ErrUnknownArtifact = errors.New("unknown artifact")

	// ErrMissingRoot is wrapped when the scan root does not exist.
	ErrMissingRoot = errors.New("scan root not found")

	// ErrUnparseableTimestamp is the cause recorded for a timestamp that cannot be parsed.
	ErrUnparseableTimestamp = errors.New("unparseable timestamp")
)

// ConfigurationError means the caller asked for something the run cannot
// serve, such as an unsupported artifact type or a missing scan root.
type ConfigurationError struct {
	Artifact string
	Reason   string
	Err      error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration")
	if e.Artifact != "" {
		b.WriteString(" [" + e.Artifact + "]")
	}
	if e.Reason != "" {
		b.WriteString(": " + e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// FileAccessError means a single file could not be opened or peeked.
type FileAccessError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// ParseError is a row-level failure for one field.
type ParseError struct {
	Path  string
	Field string
	Cause string
	Err   error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parsing %s in %s", e.Field, e.Path)
	if e.Cause != "" {
		msg += ": " + e.Cause
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Key identifies the failure cause within one file.
func (e *ParseError) Key() string {
	return e.Field + "|" + e.Cause
}

// SchemaError means a batch lacks a column its normalizer cannot work without.
type SchemaError struct {
	Path     string
	Artifact string
	Missing  []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s is missing required column(s): %s",
		e.Artifact, e.Path, strings.Join(e.Missing, ", "))
}

// Outcome tags the result of processing one row or one file.
type Outcome int

const (
	Success Outcome = iota
	Skip
	FatalForFile
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Skip:
		return "skip"
	case FatalForFile:
		return "fatal-for-file"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Classify maps an error to the outcome the pipeline applies to a file.
func Classify(err error) Outcome {
	if err == nil {
		return Success
	}
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return FatalForFile
	}
	return Skip
}
