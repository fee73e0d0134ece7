package apperr

import "errors"

// Caller input
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("invalid credentials")
)

// Completion service
var (
	ErrUpstreamUnavailable = errors.New("completion service unavailable")
	ErrEmptyResponse       = errors.New("completion service returned an empty response")
	ErrParse               = errors.New("unparseable completion output")
)

// Relational store
var (
	ErrStorageUnavailable = errors.New("storage unavailable")
)
