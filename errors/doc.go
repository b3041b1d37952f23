// Package errors provides the application error type used across speakerhub.
//
// Every failure that crosses a package boundary is an *AppError carrying a
// machine-readable code, an HTTP status for the API layer, and an optional
// cause. The codes double as the pipeline failure taxonomy: NOT_FOUND,
// INVALID_INPUT, COLLABORATOR_FAILURE and PERSISTENCE_FAILURE.
package errors
