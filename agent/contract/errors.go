package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")

	ErrNotFound          = errors.New("not found")
	ErrAlreadyGraded     = errors.New("quiz attempt already graded")
	ErrStaleQuiz         = errors.New("quiz submission is stale")
	ErrMalformedAttempt  = errors.New("malformed quiz attempt")
	ErrInvalidTransition = errors.New("invalid activity transition")

	// Transient; the caller owns the retry policy.
	ErrUpstream        = errors.New("upstream capability failed")
	ErrUpstreamTimeout = errors.New("upstream capability timed out")
)
