package channel

import "errors"

// Domain-specific errors for channel operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned by Send when the socket is not open.
	// Callers must not assume fire-and-forget delivery.
	ErrNotConnected = errors.New("channel: not connected")

	// ErrInvalidTopic is returned for empty topic names.
	ErrInvalidTopic = errors.New("channel: topic cannot be empty")

	// ErrDuplicateTopic is returned when a topic is already subscribed.
	ErrDuplicateTopic = errors.New("channel: topic already subscribed")

	// ErrInvalidToken is returned when the configured API key is not a
	// well-formed JWT.
	ErrInvalidToken = errors.New("channel: invalid API key token")
)
