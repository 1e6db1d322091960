package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrValidation      = errors.New("validation failed")

	// ErrUnparsableQuery is local to the query analyzer: the input is empty.
	// Everything else downgrades to best-effort attributes.
	ErrUnparsableQuery = errors.New("query is empty")

	// Transient retrieval failures, retried with backoff before surfacing.
	ErrRetrievalTimeout     = errors.New("retrieval timed out")
	ErrRetrievalUnavailable = errors.New("retrieval backend unavailable")

	// ErrRetryExhausted means one stage accumulated failures up to the retry
	// ceiling and the run gave up on it.
	ErrRetryExhausted = errors.New("retry ceiling exhausted")

	// ErrFormatting is a contract violation in the candidate records. Fatal to
	// the run, never retried.
	ErrFormatting = errors.New("malformed candidate record")

	// ErrLoopExceeded means the turn cap was hit: the progress guarantee of
	// the selector/agent interaction was violated.
	ErrLoopExceeded = errors.New("orchestration loop exceeded turn cap")

	// ErrIncompleteRun means the selector signalled done before a formatted
	// answer existed.
	ErrIncompleteRun = errors.New("run completed without a formatted answer")

	// ErrLogging is reported separately and never fails a run that already
	// produced a final answer.
	ErrLogging = errors.New("conversation logging failed")
)
