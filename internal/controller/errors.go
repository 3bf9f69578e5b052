package controller

import "errors"

// Sentinel errors returned by controller operations.
//
// Use errors.Is() to check for specific conditions:
//
//	if errors.Is(err, controller.ErrAlreadyArmed) {
//	    // report to the caller, not a fault
//	}
var (
	// ErrAlreadyArmed is returned by Arm when the system is already armed.
	// Callers treat this as a no-op result, not a failure.
	ErrAlreadyArmed = errors.New("controller: system already armed")

	// ErrNotArmable is returned by Arm when the system is in alarm or
	// tamper and must be disarmed first.
	ErrNotArmable = errors.New("controller: system must be disarmed before arming")

	// ErrQueueFull is returned by Enqueue when the message queue stayed
	// full for the bounded wait.
	ErrQueueFull = errors.New("controller: message queue full")

	// ErrInvalidBootMode is returned by SetBootMode for unknown modes.
	ErrInvalidBootMode = errors.New("controller: invalid boot mode")
)
