package enrich

import (
	"errors"
	"strings"
)

const (
	failurePrefix = "ERROR "
	failureSuffix = ": COULD NOT GENERATE DEFINITION"
)

// ErrEmptyDefinition is the failure recorded when the service answers
// without text
var ErrEmptyDefinition = errors.New("empty definition")

// Result is the outcome of generating one definition. Sources is never nil.
type Result struct {
	Text    string
	Sources []string
	OK      bool
	Err     error
}

// Success builds a successful Result
func Success(text string, sources []string) Result {
	if sources == nil {
		sources = []string{}
	}
	return Result{Text: text, Sources: sources, OK: true}
}

// Failure builds a failed Result carrying err
func Failure(err error) Result {
	if err == nil {
		err = errors.New("unknown error")
	}
	return Result{Sources: []string{}, Err: err}
}

// Definition returns the value stored in the definition column: the text
// for a success, the failure marker otherwise
func (r Result) Definition() string {
	if r.OK {
		return r.Text
	}
	return FailureMarker(r.Err)
}

// FailureMarker renders err as the on-disk failure text
func FailureMarker(err error) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return failurePrefix + msg + failureSuffix
}

// IsFailureMarker reports whether a stored definition records a failed
// generation. Only used when reading back tables written by earlier runs.
func IsFailureMarker(definition string) bool {
	return strings.HasPrefix(definition, failurePrefix) && strings.HasSuffix(definition, failureSuffix)
}

// NeedsGeneration is the resume predicate: a row is regenerated when its
// definition is blank or a failure marker
func NeedsGeneration(definition string) bool {
	return strings.TrimSpace(definition) == "" || IsFailureMarker(definition)
}

// normalizeNewlines folds CRLF line breaks to LF. Chunk files cannot carry
// CRLF inside a field, so both modes store text in this form.
func normalizeNewlines(s string) string {
	for strings.Contains(s, "\r\n") {
		s = strings.ReplaceAll(s, "\r\n", "\n")
	}
	return s
}
