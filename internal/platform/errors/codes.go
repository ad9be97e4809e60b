// Package errors provides structured, coded errors shared by the chat,
// auth, and history services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Token errors
	CodeTokenMissing Code = "TOKEN_MISSING"
	CodeTokenInvalid Code = "TOKEN_INVALID"
	CodeTokenExpired Code = "TOKEN_EXPIRED"
	CodeTokenRevoked Code = "TOKEN_REVOKED"

	// User errors
	CodeUserInvalidCredentials Code = "USER_INVALID_CREDENTIALS"
	CodeUserMissingFields      Code = "USER_MISSING_FIELDS"
	CodeUserInvalidEmail       Code = "USER_INVALID_EMAIL"
	CodeUserWeakCredentials    Code = "USER_WEAK_CREDENTIALS"
	CodeUserAlreadyExists      Code = "USER_ALREADY_EXISTS"
	CodeUserInvalidStatus      Code = "USER_INVALID_STATUS"
	CodeUserNotFound           Code = "USER_NOT_FOUND"

	// Room and message errors
	CodeRoomNotFound        Code = "ROOM_NOT_FOUND"
	CodeRoomAccessDenied    Code = "ROOM_ACCESS_DENIED"
	CodeMessageNotFound     Code = "MESSAGE_NOT_FOUND"
	CodeMessageEmpty        Code = "MESSAGE_EMPTY"
	CodeMessageNotOwned     Code = "MESSAGE_NOT_OWNED"

	// Session errors
	CodeSessionCapacity     Code = "SESSION_CAPACITY"
	CodeSessionInvalidState Code = "SESSION_INVALID_STATE"
	CodeSessionUnknown      Code = "SESSION_UNKNOWN"
)

// HTTPStatus maps an error code to the HTTP status returned by REST handlers.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUserMissingFields,
		CodeUserInvalidEmail,
		CodeUserWeakCredentials,
		CodeUserInvalidStatus,
		CodeMessageEmpty:
		return http.StatusBadRequest

	case CodeTokenMissing,
		CodeTokenInvalid,
		CodeTokenExpired,
		CodeTokenRevoked,
		CodeUserInvalidCredentials:
		return http.StatusUnauthorized

	case CodeRoomAccessDenied, CodeMessageNotOwned:
		return http.StatusForbidden

	case CodeUserNotFound, CodeRoomNotFound, CodeMessageNotFound, CodeSessionUnknown:
		return http.StatusNotFound

	case CodeUserAlreadyExists, CodeSessionInvalidState:
		return http.StatusConflict

	case CodeSessionCapacity:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
