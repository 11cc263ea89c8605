/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both internally
within the server and in responses sent to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON is malformed.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained trailing content after valid JSON.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Messaging Business Logic Errors
const (
	// ErrMessageEmpty indicates a send attempt whose text is empty after trimming.
	ErrMessageEmpty = 2201

	// ErrMessageContentTooLong indicates the message text exceeded the maximum length.
	ErrMessageContentTooLong = 2202

	// ErrRecipientNotFound indicates the message receiver does not resolve to a known user.
	ErrRecipientNotFound = 2203

	// ErrSendRejected indicates the backing store refused the message write.
	ErrSendRejected = 2204

	// ErrConversationsUnavailable indicates the conversation list could not be loaded.
	ErrConversationsUnavailable = 2205
)

// 3xxx: User, Session, and Access Errors
const (
	// ErrUnauthorized indicates the request carries no valid identity.
	ErrUnauthorized = 3001

	// ErrPermissionDenied indicates a row-level policy refused the read or write.
	ErrPermissionDenied = 3002

	// ErrUserNotFound indicates the requested user account does not exist.
	ErrUserNotFound = 3003

	// ErrSessionReplaced indicates the realtime session was superseded by a newer connection.
	ErrSessionReplaced = 3004
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal server error.
	ErrUnknown = 5000

	// ErrAvatarStorageFailed indicates the avatar storage backend rejected the operation.
	ErrAvatarStorageFailed = 5001
)
