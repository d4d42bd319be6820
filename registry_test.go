package chess_arm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func testActuatorConfig(host string) ActuatorConfig {
	return ActuatorConfig{
		Host:        host,
		Port:        DefaultScriptPort,
		DialTimeout: time.Second,
	}
}

func TestActuatorRegistrySharing(t *testing.T) {
	logger := logging.NewTestLogger(t)
	registry := NewActuatorRegistry()
	cfg := testActuatorConfig("10.0.0.1")

	first, err := registry.GetActuator(cfg, logger)
	require.NoError(t, err)
	second, err := registry.GetActuator(cfg, logger)
	require.NoError(t, err)

	assert.Same(t, first, second, "one controller, one tracked magnet")
	assert.Equal(t, int64(2), registry.RefCount(cfg))

	other, err := registry.GetActuator(testActuatorConfig("10.0.0.2"), logger)
	require.NoError(t, err)
	assert.NotSame(t, first, other)
}

func TestActuatorRegistryConflict(t *testing.T) {
	logger := logging.NewTestLogger(t)
	registry := NewActuatorRegistry()
	cfg := testActuatorConfig("10.0.0.1")

	_, err := registry.GetActuator(cfg, logger)
	require.NoError(t, err)

	different := cfg
	different.EngageVoltage = 12
	_, err = registry.GetActuator(different, logger)
	assert.ErrorContains(t, err, "conflict")
	assert.Equal(t, int64(1), registry.RefCount(cfg))
}

func TestActuatorRegistryRelease(t *testing.T) {
	logger := logging.NewTestLogger(t)
	registry := NewActuatorRegistry()
	cfg := testActuatorConfig("10.0.0.1")

	first, err := registry.GetActuator(cfg, logger)
	require.NoError(t, err)
	_, err = registry.GetActuator(cfg, logger)
	require.NoError(t, err)

	registry.ReleaseActuator(cfg)
	assert.Equal(t, int64(1), registry.RefCount(cfg))
	registry.ReleaseActuator(cfg)
	assert.Equal(t, int64(0), registry.RefCount(cfg))

	// releasing an unknown address is a no-op
	registry.ReleaseActuator(cfg)

	fresh, err := registry.GetActuator(cfg, logger)
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
}

func TestActuatorRegistryConcurrentAccess(t *testing.T) {
	logger := logging.NewTestLogger(t)
	registry := NewActuatorRegistry()
	cfg := testActuatorConfig("10.0.0.1")

	const workers = 20
	var wg sync.WaitGroup
	results := make([]*ToolVoltageActuator, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := registry.GetActuator(cfg, logger)
			assert.NoError(t, err)
			results[i] = a
		}(i)
	}
	wg.Wait()

	for _, a := range results {
		assert.Same(t, results[0], a)
	}
	assert.Equal(t, int64(workers), registry.RefCount(cfg))
}
