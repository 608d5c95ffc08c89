package router

// Error codes
const (
	ErrInternalCode           = "INTERNAL_ERROR"
	ErrBadRequestCode         = "BAD_REQUEST"
	ErrNotFoundCode           = "NOT_FOUND"
	ErrConflictCode           = "CONFLICT"
	ErrUnprocessableCode      = "UNPROCESSABLE_ENTITY"
	ErrServiceUnavailableCode = "SERVICE_UNAVAILABLE"
)

// Error messages
const (
	ErrMsgAppStateNotInitialized = "application state not initialized"
	ErrMsgGeneratorUnavailable   = "template generator is not configured"
)
