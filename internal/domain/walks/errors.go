package walks

import "errors"

// Error codes carried by apperrors.AppError values produced in this package.
const (
	CodeInvalidCoordinate   = "invalid_coordinate"
	CodeDataUnavailable     = "data_unavailable"
	CodeLocationUnavailable = "location_unavailable"
	CodeInvalidInput        = "invalid_input"
	CodeSessionNotFound     = "session_not_found"
	CodeLocationConflict    = "location_conflict"
)

var (
	// ErrPermissionDenied is returned by a Locator when the user refused to
	// share a position. It is a normal terminal state, not a failure.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrCorruptSnapshot is returned by a SnapshotStore when a persisted
	// payload can no longer be decoded.
	ErrCorruptSnapshot = errors.New("corrupt walk snapshot")
)
