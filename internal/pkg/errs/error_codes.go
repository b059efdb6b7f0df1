/*
Package errs provides custom error types and application-level error code constants.

The codes identify business and system failures both inside the server and on the wire,
where they are returned in the JSON envelope of HTTP responses and in WebSocket error events.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body is not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained data after the JSON document.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the caller exceeded its request budget.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Group and Message Errors
const (
	// ErrGroupNotFound indicates that the addressed group does not exist.
	ErrGroupNotFound = 2101

	// ErrGroupNameInvalid indicates a missing or oversized group name or description.
	ErrGroupNameInvalid = 2102

	// ErrNotGroupMember indicates that the caller is not a member of the addressed group.
	ErrNotGroupMember = 2103

	// ErrRecipientNotFound indicates that a direct message names an unknown identity.
	ErrRecipientNotFound = 2104

	// ErrMessageContentTooLong indicates that message content exceeded the maximum length.
	ErrMessageContentTooLong = 2201

	// ErrMessageContentEmpty indicates that message content was empty or whitespace only.
	ErrMessageContentEmpty = 2202
)

// 3xxx: Identity and Session Errors
const (
	// ErrUnauthorized indicates a missing, malformed, forged or expired credential.
	ErrUnauthorized = 3001

	// ErrSessionReplaced indicates that the connection was superseded by a newer one for the same identity.
	ErrSessionReplaced = 3002

	// ErrInvalidUsername indicates that the username does not match the allowed format.
	ErrInvalidUsername = 3101

	// ErrInvalidPassword indicates that the password length is out of range.
	ErrInvalidPassword = 3102

	// ErrUserAlreadyExists indicates a registration for a username that is taken.
	ErrUserAlreadyExists = 3103

	// ErrInvalidCredentials indicates a login with an unknown username or a wrong password.
	ErrInvalidCredentials = 3104
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified server error.
	ErrUnknown = 5000
)
