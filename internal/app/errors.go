package app

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("missing caller identity")
	ErrNotFound          = errors.New("document not found")
	ErrQuotaExceeded     = errors.New("page count exceeds plan limit")
	ErrParseFailure      = errors.New("document could not be parsed")
	ErrMessageEnqueue    = errors.New("message enqueue failed")
	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
)
