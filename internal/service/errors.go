package service

import "fmt"

type ErrRunQueueFull struct{}

func (e ErrRunQueueFull) Error() string {
	return "run queue is full"
}

func NewErrRunQueueFull() *ErrRunQueueFull {
	return &ErrRunQueueFull{}
}

type RunCancelError struct {
	Message string
}

func (rce RunCancelError) Error() string {
	return rce.Message
}

// ErrSpecField marks a missing or invalid build spec field.
type ErrSpecField struct {
	Field string
}

func (e ErrSpecField) Error() string {
	return fmt.Sprintf("build spec field '%s' is missing or invalid", e.Field)
}

// ErrArtifactMissing is returned when the compiler reported success but the
// expected build output does not exist on the runner.
type ErrArtifactMissing struct {
	Path string
}

func (e ErrArtifactMissing) Error() string {
	return fmt.Sprintf("build output '%s' does not exist on the runner", e.Path)
}
