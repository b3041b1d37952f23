package database

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/speakerhub/errors"
)

var connectionErrorPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no route to host",
	"driver: bad connection",
	"database is locked",
}

// IsConnectionError reports whether err looks like a transient connection failure.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range connectionErrorPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsNotFoundError reports whether err is a GORM record-not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// FromDatabase converts a GORM error for resource into an AppError.
// Missing rows become NOT_FOUND; everything else is a persistence failure.
func FromDatabase(err error, resource string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	if IsNotFoundError(err) {
		return apperrors.NotFound(resource, "").WithCause(err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.AlreadyExists(resource).WithCause(err)
	}
	appErr := apperrors.PersistenceFailure(resource, err)
	if IsConnectionError(err) {
		appErr.WithDetail("connection", true)
	}
	return appErr
}
