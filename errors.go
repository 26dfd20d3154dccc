package streammind

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the service configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMissingRoomID is returned when an operation is called without a room id
	ErrMissingRoomID = errors.New("room id is required")

	// ErrLLMInvocation is returned when the chat-completion call fails
	ErrLLMInvocation = errors.New("llm invocation failed")

	// ErrPersistence wraps storage read/write failures surfaced to callers
	ErrPersistence = errors.New("persistence operation failed")

	// ErrEmptyPrompt is returned when an assembled prompt has no messages
	ErrEmptyPrompt = errors.New("assembled prompt is empty")
)

// ServiceError represents an error with additional context
type ServiceError struct {
	Op      string         // Operation that failed
	RoomID  string         // Room ID if applicable
	Err     error          // Underlying error
	Context map[string]any // Additional context
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.RoomID != "" {
		return fmt.Sprintf("%s (room=%s): %v", e.Op, e.RoomID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *ServiceError) WithContext(key string, value any) *ServiceError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewServiceError creates a new ServiceError
func NewServiceError(op string, err error) *ServiceError {
	return &ServiceError{Op: op, Err: err}
}

// NewServiceErrorWithRoom creates a new ServiceError with a room ID
func NewServiceErrorWithRoom(op, roomID string, err error) *ServiceError {
	return &ServiceError{Op: op, RoomID: roomID, Err: err}
}
