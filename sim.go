package chess_arm

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// SimMover records commanded poses instead of moving anything. It backs the
// CLI's dry-run mode and the tests.
type SimMover struct {
	mu     sync.Mutex
	logger logging.Logger
	poses  []Pose

	// FailAt makes the move that would record the n-th pose (1-based) fail
	// once, with FailErr if set.
	FailAt  int
	FailErr error
}

func NewSimMover(logger logging.Logger) *SimMover {
	return &SimMover{logger: logger}
}

func (m *SimMover) MoveLinear(ctx context.Context, pose Pose, velocity, acceleration float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailAt > 0 && len(m.poses)+1 == m.FailAt {
		m.FailAt = 0
		if m.FailErr != nil {
			return m.FailErr
		}
		return errors.New("simulated motion failure")
	}
	m.poses = append(m.poses, pose)
	if m.logger != nil {
		m.logger.Infof("[sim] movel %v v=%.3f a=%.3f", pose, velocity, acceleration)
	}
	return nil
}

func (m *SimMover) CurrentPose(ctx context.Context) (Pose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.poses) == 0 {
		return Pose{}, errors.New("no pose commanded yet")
	}
	return m.poses[len(m.poses)-1], nil
}

// Poses returns a copy of every pose reached so far.
func (m *SimMover) Poses() []Pose {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Pose(nil), m.poses...)
}

// SimActuator tracks a magnet without hardware.
type SimActuator struct {
	mu      sync.Mutex
	logger  logging.Logger
	engaged bool
	toggles int

	// FailNext makes the next Toggle or Release fail without changing state.
	FailNext bool
}

func NewSimActuator(logger logging.Logger) *SimActuator {
	return &SimActuator{logger: logger}
}

func (a *SimActuator) Toggle(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.FailNext {
		a.FailNext = false
		return a.engaged, errors.Wrap(ErrActuatorUnreachable, "simulated channel failure")
	}
	a.engaged = !a.engaged
	a.toggles++
	if a.logger != nil {
		a.logger.Infof("[sim] magnet engaged=%v", a.engaged)
	}
	return a.engaged, nil
}

func (a *SimActuator) Release(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.FailNext {
		a.FailNext = false
		return errors.Wrap(ErrActuatorUnreachable, "simulated channel failure")
	}
	a.engaged = false
	return nil
}

func (a *SimActuator) Engaged() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engaged
}

// Toggles counts successful toggles.
func (a *SimActuator) Toggles() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.toggles
}

// ForceEngaged overrides the tracked state, as when the magnet is switched
// from the teach pendant behind the controller's back.
func (a *SimActuator) ForceEngaged(engaged bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.engaged = engaged
}
