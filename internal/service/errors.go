package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound            = errors.New("discussion not found")
	ErrNotCompleted        = errors.New("discussion is not completed")
	ErrSummaryDisabled     = errors.New("summaries are disabled")
	ErrTooManyDiscussions  = errors.New("too many discussions in progress")
	ErrServiceShuttingDown = errors.New("discussion service is shutting down")
)

// ValidationError lists what is wrong with a request, keyed by field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return "invalid request: " + strings.Join(parts, "; ")
}
