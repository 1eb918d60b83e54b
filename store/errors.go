package store

import "errors"

// Store-level errors; handlers map these to HTTP status codes.
var (
	ErrNotFound         = errors.New("record not found")
	ErrEditRejected     = errors.New("message already read")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrNotSender        = errors.New("not the message sender")
)
