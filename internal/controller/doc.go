// Package controller implements the security state machine at the heart of
// the gateway.
//
// The controller owns the system state (disarmed, armed, alarm, tamper), the
// sensor registry, and the boot-mode policy. All mutation happens under one
// mutex, and all inbound traffic — decoded wireless frames, remote commands,
// local button presses — funnels through a single FIFO message queue consumed
// by Run. Producers never touch state directly.
//
// Every state transition persists {boot_mode, last_state} to the settings
// store, drives the human-interface indicator synchronously, and journals a
// state-change notification for asynchronous cloud delivery. A failed cloud
// delivery never blocks or reverts a transition: local state is the source
// of truth.
//
// Transition rules:
//   - Arm: only from Disarmed. Armed returns ErrAlreadyArmed; alarm and
//     tamper require a disarm first.
//   - Disarm: from any state, always succeeds.
//   - TriggerAlarm: from any state.
//   - A sensor opening while armed raises the alarm automatically.
//   - A tamper report forces the tamper state from anywhere, and takes
//     precedence over the open-while-armed rule for the same message.
//
// Usage:
//
//	ctrl, err := controller.New(cfg.Gateway, settings, indicator, notifier, logger)
//	if err != nil {
//	    return err
//	}
//	go ctrl.Run(ctx)
//	ctrl.Enqueue(ctx, msg) // from any producer goroutine
package controller
