package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
// Messages containing a verb are formatted with the details passed to NewError.
var errorMap = map[int]CustomError{
	// 1xxx: Validation Errors
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrInvalidJSONFormat: {Code: ErrInvalidJSONFormat, Message: "Unsupported message format."},
	ErrUnknownEvent:      {Code: ErrUnknownEvent, Message: "Unknown event %q."},
	ErrUsernameEmpty:     {Code: ErrUsernameEmpty, Message: "Username is required."},
	ErrUsernameTooLong:   {Code: ErrUsernameTooLong, Message: "Username must be at most %d characters."},
	ErrUsernameCharset:   {Code: ErrUsernameCharset, Message: "Username may only contain letters, numbers, underscores and hyphens."},
	ErrRoomIDInvalid:     {Code: ErrRoomIDInvalid, Message: "Invalid room id."},

	// 2xxx: Not Found Errors
	ErrUserNotFound:   {Code: ErrUserNotFound, Message: "User not found.", Status: http.StatusNotFound},
	ErrCallerNotFound: {Code: ErrCallerNotFound, Message: "Caller not found.", Status: http.StatusNotFound},

	// 3xxx: Conflict Errors
	ErrNameInUse:     {Code: ErrNameInUse, Message: "Username is already taken.", Status: http.StatusConflict},
	ErrTargetInCall:  {Code: ErrTargetInCall, Message: "User is in another call.", Status: http.StatusConflict},
	ErrAlreadyInCall: {Code: ErrAlreadyInCall, Message: "User is already in a call.", Status: http.StatusConflict},

	// 4xxx: Precondition Errors
	ErrIdentityRequired: {Code: ErrIdentityRequired, Message: "Please set a username first."},
	ErrNotRegistered:    {Code: ErrNotRegistered, Message: "You are not registered."},
	ErrNotInCall:        {Code: ErrNotInCall, Message: "You are not in a call."},

	// 5xxx: Transport and Internal Errors
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please slow down.", Status: http.StatusTooManyRequests},
	ErrServerBusy:        {Code: ErrServerBusy, Message: "Server is busy. Please try again.", Status: http.StatusServiceUnavailable},
}
