package chess_arm

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"go.viam.com/rdk/logging"
)

// Every service talking to one controller must share one actuator, or each
// would track its own idea of whether the magnet is on.
type actuatorEntry struct {
	actuator *ToolVoltageActuator
	config   ActuatorConfig
	refCount int64
	mu       sync.Mutex
}

// ActuatorRegistry hands out one ToolVoltageActuator per controller address.
type ActuatorRegistry struct {
	entries map[string]*actuatorEntry // host:port -> entry
	mu      sync.Mutex
}

func NewActuatorRegistry() *ActuatorRegistry {
	return &ActuatorRegistry{
		entries: make(map[string]*actuatorEntry),
	}
}

var globalActuatorRegistry = NewActuatorRegistry()

func actuatorKey(cfg ActuatorConfig) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// GetActuator returns the shared actuator for cfg's address, creating it on
// first use. A caller asking for the same address with different settings
// gets a conflict error. Every successful call must be paired with
// ReleaseActuator.
func (r *ActuatorRegistry) GetActuator(cfg ActuatorConfig, logger logging.Logger) (*ToolVoltageActuator, error) {
	key := actuatorKey(cfg)

	r.mu.Lock()
	entry, exists := r.entries[key]
	if !exists {
		entry = &actuatorEntry{
			actuator: NewToolVoltageActuator(cfg, logger),
			config:   cfg,
		}
		r.entries[key] = entry
	}
	r.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !actuatorConfigsEqual(entry.config, cfg) {
		return nil, fmt.Errorf("conflict: actuator for %s already uses different settings (refCount: %d)",
			key, atomic.LoadInt64(&entry.refCount))
	}
	atomic.AddInt64(&entry.refCount, 1)
	return entry.actuator, nil
}

// ReleaseActuator drops one reference and forgets the actuator once nobody
// holds it.
func (r *ActuatorRegistry) ReleaseActuator(cfg ActuatorConfig) {
	key := actuatorKey(cfg)

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[key]
	if !exists {
		return
	}
	if atomic.AddInt64(&entry.refCount, -1) <= 0 {
		delete(r.entries, key)
	}
}

// RefCount reports how many holders the actuator at cfg's address has.
func (r *ActuatorRegistry) RefCount(cfg ActuatorConfig) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[actuatorKey(cfg)]
	if !exists {
		return 0
	}
	return atomic.LoadInt64(&entry.refCount)
}

func actuatorConfigsEqual(a, b ActuatorConfig) bool {
	return a.Host == b.Host &&
		a.Port == b.Port &&
		a.EngageVoltage == b.EngageVoltage &&
		a.SettleTime == b.SettleTime &&
		a.ReleaseSettleTime == b.ReleaseSettleTime &&
		a.DialTimeout == b.DialTimeout
}
