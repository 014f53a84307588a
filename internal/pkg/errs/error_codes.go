/*
Package errs provides custom error types and application-level error code constants.

Codes are grouped by the category of failure so that a client can tell a retryable
input mistake from a missing peer or a state conflict without parsing messages.
*/
package errs

// 1xxx: Validation Errors (bad input, nothing was changed)
const (
	// ErrInvalidParams indicates that a request or event payload failed validation.
	ErrInvalidParams = 1001

	// ErrInvalidJSONFormat indicates that an inbound frame is not valid JSON.
	ErrInvalidJSONFormat = 1002

	// ErrUnknownEvent indicates that the client sent an event name the server does not handle.
	ErrUnknownEvent = 1003

	// ErrUsernameEmpty indicates that the requested display name is empty.
	ErrUsernameEmpty = 1101

	// ErrUsernameTooLong indicates that the requested display name exceeds the length limit.
	ErrUsernameTooLong = 1102

	// ErrUsernameCharset indicates that the requested display name contains disallowed characters.
	ErrUsernameCharset = 1103

	// ErrRoomIDInvalid indicates that a room id is empty or uses the reserved call-room prefix.
	ErrRoomIDInvalid = 1201
)

// 2xxx: Not Found Errors
const (
	// ErrUserNotFound indicates that no live connection holds the requested display name.
	ErrUserNotFound = 2001

	// ErrCallerNotFound indicates that the caller named in a call response is no longer reachable.
	ErrCallerNotFound = 2002
)

// 3xxx: Conflict Errors
const (
	// ErrNameInUse indicates that the display name is held by another live connection.
	ErrNameInUse = 3001

	// ErrTargetInCall indicates that the called user is already in a call.
	ErrTargetInCall = 3002

	// ErrAlreadyInCall indicates that the invited user is already in a call.
	ErrAlreadyInCall = 3003
)

// 4xxx: Precondition Errors
const (
	// ErrIdentityRequired indicates that the connection must set a username first.
	ErrIdentityRequired = 4001

	// ErrNotRegistered indicates that the connection has no participant record yet.
	ErrNotRegistered = 4002

	// ErrNotInCall indicates that the operation requires an active call.
	ErrNotInCall = 4003
)

// 5xxx: Transport and Internal Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrRateLimitExceeded indicates that the connection or IP exceeded its request budget.
	ErrRateLimitExceeded = 5001

	// ErrServerBusy indicates that the coordinator could not accept the event right now.
	ErrServerBusy = 5002
)

// Kind is the broad category an error code belongs to.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindPrecondition Kind = "precondition"
	KindInternal     Kind = "internal"
)

// KindOf maps an error code to its category using the code's thousands digit.
func KindOf(code int) Kind {
	switch code / 1000 {
	case 1:
		return KindValidation
	case 2:
		return KindNotFound
	case 3:
		return KindConflict
	case 4:
		return KindPrecondition
	default:
		return KindInternal
	}
}
