package services

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoJobID is returned when the server accepts a message (202) without
	// saying which job to poll.
	ErrNoJobID = errors.New("no job_id in accepted response")

	// ErrNoLocation is returned when no status URL can be derived for a job.
	ErrNoLocation = errors.New("no status location for job")

	ErrJobNotFound = errors.New("job not found")
	ErrPollTimeout = errors.New("timed out waiting for reply")
	ErrJobFailed   = errors.New("job failed")

	// ErrAborted wraps the context error of a cancelled Ask.
	ErrAborted = errors.New("aborted")
)

// JobFailedError carries the server's explanation for a failed job.
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return ErrJobFailed.Error()
	}
	return fmt.Sprintf("%s: %s", ErrJobFailed, e.Message)
}

func (e *JobFailedError) Unwrap() error { return ErrJobFailed }

// aborted wraps cause so callers can match both ErrAborted and the context
// error.
func aborted(cause error) error {
	if cause == nil {
		cause = context.Canceled
	}
	return fmt.Errorf("%w: %w", ErrAborted, cause)
}
