// Package errors provides structured error handling for the registration
// engine. Domain errors carry a machine-readable code, an internal message,
// and optional metadata for collaborators that render user-facing output.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Registration errors
	CodeRegistrationEmailRequired       Code = "REGISTRATION_EMAIL_REQUIRED"
	CodeRegistrationNameRequired        Code = "REGISTRATION_NAME_REQUIRED"
	CodeRegistrationNoSessionsRequested Code = "REGISTRATION_NO_SESSIONS_REQUESTED"
	CodeRegistrationSessionNotFound     Code = "REGISTRATION_SESSION_NOT_FOUND"
	CodeRegistrationNothingAccepted     Code = "REGISTRATION_NOTHING_ACCEPTED"

	// Session catalog errors
	CodeSessionEmptyID         Code = "SESSION_EMPTY_ID"
	CodeSessionInvalidCapacity Code = "SESSION_INVALID_CAPACITY"
	CodeSessionInvalidSchedule Code = "SESSION_INVALID_SCHEDULE"

	// Token errors
	CodeTokenMalformed Code = "TOKEN_MALFORMED"

	// Storage errors
	CodeNotFound       Code = "NOT_FOUND"
	CodeStorageTimeout Code = "STORAGE_TIMEOUT"
	CodeStorageFailure Code = "STORAGE_FAILURE"
)

// HTTPStatus maps domain codes to HTTP status classes for outer transports.
// Per-session conflict and capacity rejections are data, not errors, so they
// never reach this mapping; a request that accepts at least one session is a
// success regardless of its rejected entries.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeRegistrationEmailRequired,
		CodeRegistrationNameRequired,
		CodeRegistrationNoSessionsRequested,
		CodeRegistrationSessionNotFound,
		CodeRegistrationNothingAccepted,
		CodeSessionEmptyID,
		CodeSessionInvalidCapacity,
		CodeSessionInvalidSchedule,
		CodeTokenMalformed:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeStorageTimeout, CodeStorageFailure, CodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
