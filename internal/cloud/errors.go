package cloud

import "errors"

// Domain-specific errors for cloud HTTP operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrRequestTooLarge is returned when the assembled request does not
	// fit the output buffer.
	ErrRequestTooLarge = errors.New("cloud: request exceeds output buffer")

	// ErrConnectFailed is returned when the TLS connection cannot be
	// established within the timeout.
	ErrConnectFailed = errors.New("cloud: connection failed")

	// ErrNoStatusLine is returned when no parseable HTTP status line is
	// found in the response.
	ErrNoStatusLine = errors.New("cloud: missing or malformed status line")

	// ErrIncompleteResponse is returned when the bounded read retries are
	// exhausted before the response is complete.
	ErrIncompleteResponse = errors.New("cloud: incomplete response")

	// ErrRejected is returned for a non-2xx response status.
	ErrRejected = errors.New("cloud: request rejected")

	// ErrNotConfigured is returned when the cloud host or device key is
	// not set.
	ErrNotConfigured = errors.New("cloud: client not configured")
)
