package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors (retryable)
const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
)

// Resource errors
const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCodeConflict      ErrorCode = "CONFLICT"
)

// Validation errors
const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Processing errors
const (
	// ErrCodeCollaboratorFailure marks a failed diarization, embedding,
	// transcription, insight or single-call analysis backend.
	ErrCodeCollaboratorFailure ErrorCode = "COLLABORATOR_FAILURE"
	// ErrCodePersistenceFailure marks a failed database or storage write.
	ErrCodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable:  true,
	ErrCodeTimeout:             true,
	ErrCodeCollaboratorFailure: true,
	ErrCodePersistenceFailure:  true,
}

// IsRetryableCode reports whether callers may retry an operation that failed with code.
// The pipeline itself never retries; the flag is surfaced to API clients.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
