/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to CustomError values, standardizing
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the CustomError corresponding to every application error code.
// The key is the error code, the value contains the user message and HTTP status.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Messaging Business Logic Errors
	ErrMessageEmpty:             {Code: ErrMessageEmpty, Message: "Message cannot be empty."},
	ErrMessageContentTooLong:    {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrRecipientNotFound:        {Code: ErrRecipientNotFound, Message: "Recipient not found."},
	ErrSendRejected:             {Code: ErrSendRejected, Message: "Message could not be sent. Please try again."},
	ErrConversationsUnavailable: {Code: ErrConversationsUnavailable, Message: "Conversations are unavailable right now."},

	// 3xxx: User, Session, and Access Errors
	ErrUnauthorized:     {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrPermissionDenied: {Code: ErrPermissionDenied, Message: "You do not have access to this content.", Status: http.StatusForbidden},
	ErrUserNotFound:     {Code: ErrUserNotFound, Message: "Account not found."},
	ErrSessionReplaced:  {Code: ErrSessionReplaced, Message: "You were signed in on another device."},

	// 5xxx: Internal System Errors
	ErrUnknown:             {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrAvatarStorageFailed: {Code: ErrAvatarStorageFailed, Message: "Avatar upload failed. Please try again."},
}
