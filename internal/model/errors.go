package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy. Transport and rate-limit errors are retryable inside a
// stage; malformed responses get one corrective re-prompt; the rest are
// input problems and fail the stage outright.

// ErrEmptyDocument: ingestion produced zero chunks.
var ErrEmptyDocument = errors.New("no text chunks could be extracted from the document")

// ErrChunkNotFound: a chunk id does not resolve in the project's store.
var ErrChunkNotFound = errors.New("chunk not found")

// ErrProjectBusy: a project already has an active job.
var ErrProjectBusy = errors.New("project already has an active job")

// ErrJobTerminal: attempted to mutate a succeeded or failed job.
var ErrJobTerminal = errors.New("job is in a terminal state")

// TransportError wraps an infrastructure failure talking to an external
// service. Retryable with exponential backoff up to the attempt budget.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitError is a 429-class rejection from a reasoning call.
type RateLimitError struct {
	Op  string
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited during %s: %v", e.Op, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// MalformedResponseError means the reasoning call returned structure the
// expected schema does not accept. Retried once with a corrective
// re-prompt, then escalated.
type MalformedResponseError struct {
	Op  string
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response during %s: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ExtractionError: the fact extractor could not produce a valid sheet.
// Fatal for the stage; the fact sheet is not written.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// UnverifiedClaimsError fails the content stage when factual claims end
// without a SUPPORTED verdict and allow_unsafe is not set. The offending
// claims and their verdicts are part of the message, per the user-visible
// failure contract.
type UnverifiedClaimsError struct {
	Results []VerificationResult
}

func (e *UnverifiedClaimsError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d claim(s) failed verification:", len(e.Results))
	for _, r := range e.Results {
		fmt.Fprintf(&b, " [%s %s: %q]", r.ClaimID, r.Verdict, truncate(r.ClaimText, 80))
	}
	return b.String()
}

// Retryable reports whether an error is an infrastructure failure the
// orchestrator may retry without altering inputs.
func Retryable(err error) bool {
	var te *TransportError
	var re *RateLimitError
	return errors.As(err, &te) || errors.As(err, &re)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
