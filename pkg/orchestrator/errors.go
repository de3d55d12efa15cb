package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady indicates the orchestrator has not finished its startup
	// sequence or has been closed.
	ErrNotReady = errors.New("orchestrator is not ready")

	// ErrInvalidFollow indicates a follow request that can never succeed,
	// such as a user following themselves. Returned before any store write.
	ErrInvalidFollow = errors.New("invalid follow request")

	// ErrDuplicateFollow indicates the follow edge already exists.
	ErrDuplicateFollow = errors.New("follow already exists")

	// ErrStoreUnavailable indicates the store required for the primary step
	// of an operation is not connected.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// UserCreateError indicates the primary step of user creation failed.
type UserCreateError struct {
	Cause error
}

func (e *UserCreateError) Error() string {
	return fmt.Sprintf("user creation failed: %v", e.Cause)
}

func (e *UserCreateError) Unwrap() error {
	return e.Cause
}

// PostCreateError indicates the primary step of post creation failed.
type PostCreateError struct {
	Cause error
}

func (e *PostCreateError) Error() string {
	return fmt.Sprintf("post creation failed: %v", e.Cause)
}

func (e *PostCreateError) Unwrap() error {
	return e.Cause
}

// MediaUploadError indicates the primary step of a media upload failed.
type MediaUploadError struct {
	Cause error
}

func (e *MediaUploadError) Error() string {
	return fmt.Sprintf("media upload failed: %v", e.Cause)
}

func (e *MediaUploadError) Unwrap() error {
	return e.Cause
}

// ValidationError indicates caller input that fails domain validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
