package apperr

// ValidationError rejects malformed or out-of-range input before any
// state is touched.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func Validation(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

// NotFoundError marks a lookup miss (unknown user or correlation id).
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NotFound(msg string) *NotFoundError {
	return &NotFoundError{Message: msg}
}
