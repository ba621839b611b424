package service

import "errors"

// Errors returned by the services. Storage errors never cross this
// boundary; callers match these with errors.Is.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("slug already in use")
	ErrUnavailable = errors.New("page store unavailable")
	ErrForbidden   = errors.New("forbidden")
	ErrValidation  = errors.New("invalid input")
	ErrDamaged     = errors.New("stored page content is damaged")
)
