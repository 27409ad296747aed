package service

import (
	"errors"
	"net/http"
)

// HTTPError is implemented by errors that carry their own response status.
type HTTPError interface {
	error
	StatusCode() int
}

type (
	NotFoundError struct {
		Message string
	}

	ValidationError struct {
		Message string
	}

	UnauthorizedError struct {
		Message string
	}
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("already exists")
)

func (e *NotFoundError) Error() string { return e.Message }
func (e *ValidationError) Error() string { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }

func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

func notFound(msg string) error { return &NotFoundError{Message: msg} }
func invalid(msg string) error { return &ValidationError{Message: msg} }
func badCredentials() error { return &UnauthorizedError{Message: "Invalid email or password."} }
