package chess_arm

import (
	"context"
	"sync"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

// Actuator is the electromagnet on the tool head. The hardware only offers a
// flip, so Engaged reports what the last successful Toggle implied, never a
// reading from the magnet.
type Actuator interface {
	Toggle(ctx context.Context) (bool, error)
	Engaged() bool
}

// Releaser is implemented by actuators that can force the magnet off
// regardless of tracked state.
type Releaser interface {
	Release(ctx context.Context) error
}

const (
	DefaultEngageVoltage     = 24
	DefaultSettleTime        = 300 * time.Millisecond
	DefaultReleaseSettleTime = 200 * time.Millisecond
	toolVoltageOff           = 0
)

// ActuatorConfig holds the channel address and timing for a ToolVoltageActuator.
type ActuatorConfig struct {
	Host              string
	Port              int
	EngageVoltage     int
	SettleTime        time.Duration
	ReleaseSettleTime time.Duration
	DialTimeout       time.Duration
}

// ToolVoltageActuator drives a magnet wired to the tool flange's voltage
// output by sending set_tool_voltage programs over the script port.
type ToolVoltageActuator struct {
	client *scriptClient
	cfg    ActuatorConfig
	logger logging.Logger

	mu      sync.Mutex
	engaged bool
}

func NewToolVoltageActuator(cfg ActuatorConfig, logger logging.Logger) *ToolVoltageActuator {
	if cfg.EngageVoltage == 0 {
		cfg.EngageVoltage = DefaultEngageVoltage
	}
	return &ToolVoltageActuator{
		client: newScriptClient(cfg.Host, cfg.Port, cfg.DialTimeout),
		cfg:    cfg,
		logger: logger,
	}
}

// Toggle engages the magnet if it is tracked as off and releases it otherwise.
// The tracked state flips only after the program has been sent; a failed send
// leaves it untouched and returns ErrActuatorUnreachable.
func (a *ToolVoltageActuator) Toggle(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	volts := a.cfg.EngageVoltage
	if a.engaged {
		volts = toolVoltageOff
	}
	if err := a.client.Send(ctx, toolVoltageScript(volts)); err != nil {
		return a.engaged, asKind(ErrActuatorUnreachable, err)
	}
	a.engaged = !a.engaged
	a.logger.Debugf("tool voltage set to %d, magnet engaged=%v", volts, a.engaged)

	a.settle(ctx, a.cfg.SettleTime)
	return a.engaged, nil
}

// Release sends voltage 0 and marks the magnet off.
func (a *ToolVoltageActuator) Release(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.client.Send(ctx, toolVoltageScript(toolVoltageOff)); err != nil {
		return asKind(ErrActuatorUnreachable, err)
	}
	a.engaged = false
	a.logger.Debug("tool voltage forced to 0")

	a.settle(ctx, a.cfg.ReleaseSettleTime)
	return nil
}

func (a *ToolVoltageActuator) Engaged() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engaged
}

// settle waits for the magnet to grip or let go. The command has already
// left, so an interrupted wait is logged rather than reported.
func (a *ToolVoltageActuator) settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	if !utils.SelectContextOrWait(ctx, d) {
		a.logger.Warnf("settle wait interrupted after tool voltage change: %v", ctx.Err())
	}
}
