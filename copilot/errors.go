package copilot

import "net/http"

// ServiceError is a classified backend failure carrying a human-readable
// message and the HTTP status code intended for the client.
type ServiceError struct {
	Message string
	// Code is the intended HTTP status; -1 when the backend supplied none.
	Code int
}

// NewServiceError creates a classified error without a status code.
func NewServiceError(message string) *ServiceError {
	return &ServiceError{Message: message, Code: -1}
}

// NewServiceErrorWithCode creates a classified error with a status code.
func NewServiceErrorWithCode(message string, code int) *ServiceError {
	return &ServiceError{Message: message, Code: code}
}

func (e *ServiceError) Error() string {
	return e.Message
}

// HTTPStatus returns the status code to write for this error, falling back
// to 500 when the carried code is not a valid HTTP status.
func (e *ServiceError) HTTPStatus() int {
	if e.Code >= 100 && e.Code < 600 {
		return e.Code
	}
	return http.StatusInternalServerError
}
