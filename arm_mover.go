package chess_arm

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
)

// ArmMover drives a viam arm component. Poses are metres with a rotation
// vector orientation; the arm API wants millimetres and an axis-angle.
type ArmMover struct {
	arm    arm.Arm
	logger logging.Logger
}

func NewArmMover(a arm.Arm, logger logging.Logger) *ArmMover {
	return &ArmMover{arm: a, logger: logger}
}

func (m *ArmMover) MoveLinear(ctx context.Context, pose Pose, velocity, acceleration float64) error {
	extra := map[string]interface{}{
		"velocity":     velocity,
		"acceleration": acceleration,
	}
	target := toSpatialPose(pose)
	m.logger.Debugf("MoveToPosition %v", target.Point())
	if err := m.arm.MoveToPosition(ctx, target, extra); err != nil {
		return errors.Wrapf(err, "arm %s failed to reach %v", m.arm.Name().ShortName(), pose)
	}
	return nil
}

func (m *ArmMover) CurrentPose(ctx context.Context) (Pose, error) {
	p, err := m.arm.EndPosition(ctx, nil)
	if err != nil {
		return Pose{}, errors.Wrap(err, "failed to read end position")
	}
	return fromSpatialPose(p), nil
}

func toSpatialPose(p Pose) spatialmath.Pose {
	pt := p.Point.Mul(mmPerMetre)
	theta := p.Orientation.Norm()
	if theta == 0 {
		return spatialmath.NewPoseFromPoint(pt)
	}
	axis := p.Orientation.Mul(1 / theta)
	return spatialmath.NewPose(pt, &spatialmath.R4AA{Theta: theta, RX: axis.X, RY: axis.Y, RZ: axis.Z})
}

func fromSpatialPose(p spatialmath.Pose) Pose {
	aa := p.Orientation().AxisAngles()
	return Pose{
		Point:       p.Point().Mul(1 / mmPerMetre),
		Orientation: r3.Vector{X: aa.RX, Y: aa.RY, Z: aa.RZ}.Mul(aa.Theta),
	}
}
