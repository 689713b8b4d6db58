package poller

import (
	"errors"
	"fmt"

	"basegraph.app/boardroom/common/llm"
)

// ErrEmptyResponse means a run completed but left no reply on the thread.
var ErrEmptyResponse = errors.New("run completed without a response")

// RunTimeoutError is returned when a run is still not terminal after the last poll.
type RunTimeoutError struct {
	RunID      string
	Attempts   int
	LastStatus llm.RunStatus
}

func (e *RunTimeoutError) Error() string {
	return fmt.Sprintf("run %s not finished after %d polls (last status %q)", e.RunID, e.Attempts, e.LastStatus)
}

// RunFailedError carries the terminal status of a run that did not complete.
type RunFailedError struct {
	RunID  string
	Status llm.RunStatus
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("run %s ended with status %q", e.RunID, e.Status)
}
