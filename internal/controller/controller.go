package controller

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/ghost-gateway/internal/infrastructure/config"
	"github.com/nerrad567/ghost-gateway/internal/infrastructure/database"
	"github.com/nerrad567/ghost-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/ghost-gateway/internal/message"
)

// Settings keys for persisted controller state. The names predate this
// codebase and are kept for compatibility with already-deployed gateways.
const (
	settingsNamespace = "sys_cfg"
	keyBootMode       = "boot_mode"
	keyLastState      = "last_state"
)

// enqueueTimeout bounds how long producers wait on a full message queue.
const enqueueTimeout = 1 * time.Second

// Indicator receives the current system state for human-visible feedback
// (LEDs, sounder). Implementations must not block; the controller calls
// SetState synchronously inside the transition path.
type Indicator interface {
	SetState(state message.SystemState)
}

// Notifier is told about completed state transitions so they can be
// propagated to the cloud. Implementations must return quickly; delivery
// happens elsewhere.
type Notifier interface {
	StateChanged(old, current message.SystemState)
}

// Controller owns the security state machine and sensor registry.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - Run must be called exactly once; it is the sole queue consumer.
type Controller struct {
	settings  *database.Settings
	indicator Indicator
	notifier  Notifier
	log       *logging.Logger
	queue     chan message.Message

	mu        sync.Mutex
	state     message.SystemState
	prevState message.SystemState
	bootMode  message.BootMode
	sensors   []SensorRecord
	capacity  int

	droppedMessages uint64
}

// New constructs the controller and resolves its initial state from the
// boot-mode policy.
//
// BootRestoreLast loads the persisted state, defaulting to disarmed on first
// boot. BootForceDisarmed and BootForceArmed override whatever was stored.
// The resolved state is persisted back and pushed to the indicator so the
// gateway shows a coherent state from the first instant.
//
// Parameters:
//   - ctx: Context for the initial settings reads
//   - cfg: Gateway configuration (registry capacity, queue size)
//   - settings: Persistent key/value store
//   - indicator: Human-interface feedback, may not be nil
//   - notifier: Cloud notification hook, may be nil until pairing completes
//   - log: Structured logger
//
// Returns:
//   - *Controller: Ready controller; call Run to start consuming
//   - error: If persisted state cannot be read or written
func New(ctx context.Context, cfg config.GatewayConfig, settings *database.Settings,
	indicator Indicator, notifier Notifier, log *logging.Logger) (*Controller, error) {

	c := &Controller{
		settings:  settings,
		indicator: indicator,
		notifier:  notifier,
		log:       log.With("component", "controller"),
		queue:     make(chan message.Message, cfg.QueueSize),
		capacity:  cfg.MaxSensors,
		sensors:   make([]SensorRecord, 0, cfg.MaxSensors),
	}

	mode, err := c.loadBootMode(ctx)
	if err != nil {
		return nil, err
	}
	c.bootMode = mode

	initial, err := c.resolveInitialState(ctx, mode)
	if err != nil {
		return nil, err
	}
	c.state = initial
	c.prevState = initial

	if err := c.persistLocked(ctx); err != nil {
		return nil, err
	}
	c.indicator.SetState(initial)

	c.log.Info("controller initialised",
		"boot_mode", int(mode), "state", initial.Name())

	return c, nil
}

// loadBootMode reads the persisted boot mode, defaulting to restore-last.
func (c *Controller) loadBootMode(ctx context.Context) (message.BootMode, error) {
	raw, err := c.settings.Load(ctx, settingsNamespace, keyBootMode)
	if errors.Is(err, database.ErrNotFound) {
		return message.BootRestoreLast, nil
	}
	if err != nil {
		return 0, fmt.Errorf("controller: loading boot mode: %w", err)
	}

	n, err := strconv.Atoi(string(raw))
	if err != nil || !message.BootMode(n).Valid() {
		c.log.Warn("ignoring corrupt persisted boot mode", "raw", string(raw))
		return message.BootRestoreLast, nil
	}
	return message.BootMode(n), nil
}

// resolveInitialState applies the boot-mode policy to pick the startup state.
func (c *Controller) resolveInitialState(ctx context.Context, mode message.BootMode) (message.SystemState, error) {
	switch mode {
	case message.BootForceDisarmed:
		return message.StateDisarmed, nil
	case message.BootForceArmed:
		return message.StateArmed, nil
	}

	raw, err := c.settings.Load(ctx, settingsNamespace, keyLastState)
	if errors.Is(err, database.ErrNotFound) {
		// First boot.
		return message.StateDisarmed, nil
	}
	if err != nil {
		return 0, fmt.Errorf("controller: loading last state: %w", err)
	}

	n, aerr := strconv.Atoi(string(raw))
	if aerr != nil || !message.SystemState(n).Valid() {
		c.log.Warn("ignoring corrupt persisted state", "raw", string(raw))
		return message.StateDisarmed, nil
	}
	return message.SystemState(n), nil
}

// State returns the current and previous system states.
func (c *Controller) State() (current, previous message.SystemState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.prevState
}

// BootMode returns the active boot-mode policy.
func (c *Controller) BootMode() message.BootMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bootMode
}

// SetBootMode changes and persists the boot-mode policy.
func (c *Controller) SetBootMode(ctx context.Context, mode message.BootMode) error {
	if !mode.Valid() {
		return ErrInvalidBootMode
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.bootMode = mode
	return c.persistLocked(ctx)
}

// Arm transitions Disarmed -> Armed.
//
// Returns ErrAlreadyArmed if the system is already armed, and ErrNotArmable
// from alarm or tamper; both are reportable no-ops, not faults.
func (c *Controller) Arm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case message.StateArmed:
		return ErrAlreadyArmed
	case message.StateAlarm, message.StateTamper:
		return ErrNotArmable
	}
	return c.transitionLocked(ctx, message.StateArmed)
}

// Disarm transitions to Disarmed from any state. It always succeeds.
func (c *Controller) Disarm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitionLocked(ctx, message.StateDisarmed)
}

// TriggerAlarm transitions to Alarm from any state.
func (c *Controller) TriggerAlarm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitionLocked(ctx, message.StateAlarm)
}

// transitionLocked applies a state change: previous/current update, durable
// persist, synchronous indicator update, and a journalled cloud notification.
// Must be called with the controller lock held.
func (c *Controller) transitionLocked(ctx context.Context, next message.SystemState) error {
	if next == c.state {
		return nil
	}

	old := c.state
	c.prevState = old
	c.state = next

	if err := c.persistLocked(ctx); err != nil {
		// State already changed in memory; persistence catches up on the
		// next transition. Log loudly rather than reverting.
		c.log.Error("persisting state change failed",
			"old", old.Name(), "new", next.Name(), "error", err)
	}

	c.indicator.SetState(next)

	if c.notifier != nil {
		c.notifier.StateChanged(old, next)
	}

	c.log.Info("state transition",
		"old", old.Name(), "old_code", int(old),
		"new", next.Name(), "new_code", int(next))

	return nil
}

// persistLocked writes {boot_mode, last_state} to the settings store.
// Must be called with the controller lock held.
func (c *Controller) persistLocked(ctx context.Context) error {
	if err := c.settings.Save(ctx, settingsNamespace, keyBootMode,
		[]byte(strconv.Itoa(int(c.bootMode)))); err != nil {
		return fmt.Errorf("controller: persisting boot mode: %w", err)
	}
	if err := c.settings.Save(ctx, settingsNamespace, keyLastState,
		[]byte(strconv.Itoa(int(c.state)))); err != nil {
		return fmt.Errorf("controller: persisting state: %w", err)
	}
	return nil
}
