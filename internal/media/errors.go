package media

import "errors"

// Domain errors
var (
	ErrEmptyURL          = errors.New("resource URL cannot be empty")
	ErrResourceNotFound  = errors.New("resource not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)
