package chess_arm

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/generic"
)

func newTestService(t *testing.T) (resource.Resource, *ActuatorRegistry, *Config, <-chan string) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	host, port, scripts := startScriptListener(t)

	cfg := &Config{
		Host:                host,
		Port:                port,
		SquareSizeMM:        45,
		SettleTimeMs:        1,
		ReleaseSettleTimeMs: 1,
	}
	require.NoError(t, validate(cfg))

	registry := NewActuatorRegistry()
	svc, err := NewPickPlaceService(context.Background(), resource.NewName(generic.API, "chess"),
		cfg, NewSimMover(logger), registry, logger)
	require.NoError(t, err)

	// session start forces the magnet off
	assert.Equal(t, toolVoltageScript(0), receive(t, scripts))
	return svc, registry, cfg, scripts
}

func TestPickPlaceServiceCommands(t *testing.T) {
	svc, _, _, scripts := newTestService(t)
	ctx := context.Background()

	resp, err := svc.DoCommand(ctx, map[string]interface{}{"command": "move_to", "square": "e2"})
	require.NoError(t, err)
	assert.Equal(t, "hovering_at_source", resp["state"])
	assert.Equal(t, "e2", resp["square"])

	resp, err = svc.DoCommand(ctx, map[string]interface{}{"command": "pick", "piece": "P"})
	require.NoError(t, err)
	assert.Equal(t, "holding", resp["state"])
	assert.Equal(t, true, resp["magnet_engaged"])
	assert.Equal(t, toolVoltageScript(24), receive(t, scripts))

	resp, err = svc.DoCommand(ctx, map[string]interface{}{"command": "dispense"})
	require.NoError(t, err)
	assert.Equal(t, "idle", resp["state"])
	assert.Equal(t, "dispense", resp["level"])
	assert.Equal(t, toolVoltageScript(0), receive(t, scripts))

	resp, err = svc.DoCommand(ctx, map[string]interface{}{"command": "execute", "move": "g1f3", "piece": "knight"})
	require.NoError(t, err)
	assert.Equal(t, "f3", resp["square"])

	resp, err = svc.DoCommand(ctx, map[string]interface{}{"command": "status"})
	require.NoError(t, err)
	pose, ok := resp["pose"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 164, pose["z"], 1e-6, "status reports millimetres")
}

func TestPickPlaceServiceTranslate(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	resp, err := svc.DoCommand(context.Background(), map[string]interface{}{"command": "translate", "square": "a1"})
	require.NoError(t, err)
	assert.Contains(t, resp, "x")
	assert.Contains(t, resp, "y")
}

func TestPickPlaceServiceErrors(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.DoCommand(ctx, map[string]interface{}{"command": "dance"})
	assert.ErrorContains(t, err, "unknown command")

	_, err = svc.DoCommand(ctx, map[string]interface{}{"command": "move_to"})
	assert.Error(t, err)

	_, err = svc.DoCommand(ctx, map[string]interface{}{"command": "move_to", "square": "q9"})
	assert.True(t, errors.Is(err, ErrUnknownSquare))

	_, err = svc.DoCommand(ctx, map[string]interface{}{"command": "relocate", "from": "a1", "to": "a2"})
	assert.Error(t, err)
}

func TestPickPlaceServiceClose(t *testing.T) {
	svc, registry, cfg, _ := newTestService(t)
	assert.Equal(t, int64(1), registry.RefCount(cfg.ActuatorConfig()))

	require.NoError(t, svc.Close(context.Background()))
	assert.Equal(t, int64(0), registry.RefCount(cfg.ActuatorConfig()))
}

func TestPickPlaceServiceSharedMagnet(t *testing.T) {
	first, registry, cfg, scripts := newTestService(t)
	logger := logging.NewTestLogger(t)
	ctx := context.Background()
	name := resource.NewName(generic.API, "chess-2")

	_, err := first.DoCommand(ctx, map[string]interface{}{"command": "move_to", "square": "e2"})
	require.NoError(t, err)
	_, err = first.DoCommand(ctx, map[string]interface{}{"command": "pick", "piece": "pawn"})
	require.NoError(t, err)
	assert.Equal(t, toolVoltageScript(24), receive(t, scripts))

	t.Run("refuses to start while the magnet holds a piece", func(t *testing.T) {
		_, err := NewPickPlaceService(ctx, name, cfg, NewSimMover(logger), registry, logger)
		assert.True(t, errors.Is(err, ErrActuatorStateConflict), "got %v", err)
		assert.Equal(t, int64(1), registry.RefCount(cfg.ActuatorConfig()))

		resp, err := first.DoCommand(ctx, map[string]interface{}{"command": "status"})
		require.NoError(t, err)
		assert.Equal(t, true, resp["magnet_engaged"])
		assert.Equal(t, true, resp["holding"])
	})

	_, err = first.DoCommand(ctx, map[string]interface{}{"command": "dispense"})
	require.NoError(t, err)
	assert.Equal(t, toolVoltageScript(0), receive(t, scripts))

	t.Run("starts without touching the magnet once it is free", func(t *testing.T) {
		second, err := NewPickPlaceService(ctx, name, cfg, NewSimMover(logger), registry, logger)
		require.NoError(t, err)
		defer second.Close(ctx)
		assert.Equal(t, int64(2), registry.RefCount(cfg.ActuatorConfig()))

		select {
		case script := <-scripts:
			t.Fatalf("unexpected script on start: %q", script)
		case <-time.After(100 * time.Millisecond):
		}
	})
}
