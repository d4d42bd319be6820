package chess_arm

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func TestToolVoltageActuatorToggle(t *testing.T) {
	logger := logging.NewTestLogger(t)
	host, port, scripts := startScriptListener(t)
	act := NewToolVoltageActuator(ActuatorConfig{Host: host, Port: port, DialTimeout: time.Second}, logger)
	ctx := context.Background()

	assert.False(t, act.Engaged())

	engaged, err := act.Toggle(ctx)
	require.NoError(t, err)
	assert.True(t, engaged)
	assert.True(t, act.Engaged())
	assert.Equal(t, toolVoltageScript(24), receive(t, scripts))

	engaged, err = act.Toggle(ctx)
	require.NoError(t, err)
	assert.False(t, engaged)
	assert.Equal(t, toolVoltageScript(0), receive(t, scripts))
}

func TestToolVoltageActuatorCustomVoltage(t *testing.T) {
	host, port, scripts := startScriptListener(t)
	act := NewToolVoltageActuator(ActuatorConfig{Host: host, Port: port, EngageVoltage: 12}, logging.NewTestLogger(t))

	_, err := act.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, toolVoltageScript(12), receive(t, scripts))
}

func TestToolVoltageActuatorRelease(t *testing.T) {
	host, port, scripts := startScriptListener(t)
	act := NewToolVoltageActuator(ActuatorConfig{Host: host, Port: port}, logging.NewTestLogger(t))
	ctx := context.Background()

	_, err := act.Toggle(ctx)
	require.NoError(t, err)
	receive(t, scripts)

	require.NoError(t, act.Release(ctx))
	assert.False(t, act.Engaged())
	assert.Equal(t, toolVoltageScript(0), receive(t, scripts))

	// release is idempotent
	require.NoError(t, act.Release(ctx))
	assert.Equal(t, toolVoltageScript(0), receive(t, scripts))
}

func TestToolVoltageActuatorUnreachable(t *testing.T) {
	act := NewToolVoltageActuator(ActuatorConfig{
		Host:        "127.0.0.1",
		Port:        closedPort(t),
		DialTimeout: 200 * time.Millisecond,
	}, logging.NewTestLogger(t))

	engaged, err := act.Toggle(context.Background())
	assert.True(t, errors.Is(err, ErrActuatorUnreachable))
	assert.False(t, engaged)
	assert.False(t, act.Engaged(), "failed toggle must not flip tracked state")

	err = act.Release(context.Background())
	assert.True(t, errors.Is(err, ErrActuatorUnreachable))
}
