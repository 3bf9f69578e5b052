package transport

import "errors"

// Domain-specific errors for wireless link operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a
	// disconnected link.
	ErrNotConnected = errors.New("transport: link not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("transport: connection failed")

	// ErrSendFailed is returned when a downlink send fails.
	ErrSendFailed = errors.New("transport: send failed")

	// ErrSubscribeFailed is returned when the frame subscription fails.
	ErrSubscribeFailed = errors.New("transport: subscribe failed")

	// ErrFrameTooLarge is returned for downlink payloads over the frame limit.
	ErrFrameTooLarge = errors.New("transport: frame exceeds maximum length")
)
