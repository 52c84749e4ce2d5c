package errors

import (
	"fmt"
	"sort"
	"strings"
)

// MultiErrors collects per-message failures across one batch run, keyed by
// the message identifier that produced them.
type MultiErrors struct {
	Errors map[string][]ErrorInfo
}

type ErrorInfo struct {
	Stage    string
	RawError error
}

func NewMultiErrors() *MultiErrors {
	return &MultiErrors{
		Errors: make(map[string][]ErrorInfo),
	}
}

func (e *MultiErrors) Add(key, stage string, err error) {
	e.Errors[key] = append(e.Errors[key], ErrorInfo{
		Stage:    stage,
		RawError: err,
	})
}

func (e *MultiErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *MultiErrors) Error() string {
	keys := make([]string, 0, len(e.Errors))
	for key := range e.Errors {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var parts []string
	for _, key := range keys {
		for _, info := range e.Errors[key] {
			parts = append(parts, fmt.Sprintf("%s: %s: %v", key, info.Stage, info.RawError))
		}
	}
	return strings.Join(parts, " | ")
}
