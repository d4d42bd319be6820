package chess_arm

import (
	"context"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
)

// Mover is the motion-execution subsystem: a blocking linear move of the
// tool to pose at the given velocity (m/s) and acceleration (m/s²).
type Mover interface {
	MoveLinear(ctx context.Context, pose Pose, velocity, acceleration float64) error
}

// PoseReporter is implemented by movers that can report where the tool is.
type PoseReporter interface {
	CurrentPose(ctx context.Context) (Pose, error)
}

// MotionProfile is the fixed speed and acceleration used for every move.
type MotionProfile struct {
	Velocity     float64
	Acceleration float64
}

// PoseDriver issues the session's moves. Orientation and profile are fixed;
// only x, y and z vary, and z is always one of the configured heights.
type PoseDriver struct {
	mover       Mover
	orientation r3.Vector
	profile     MotionProfile
	boardHeight float64
	hoverOffset float64
	heights     PieceHeights
	logger      logging.Logger
}

func NewPoseDriver(
	mover Mover,
	orientation r3.Vector,
	profile MotionProfile,
	boardHeight, hoverOffset float64,
	heights PieceHeights,
	logger logging.Logger,
) *PoseDriver {
	return &PoseDriver{
		mover:       mover,
		orientation: orientation,
		profile:     profile,
		boardHeight: boardHeight,
		hoverOffset: hoverOffset,
		heights:     heights,
		logger:      logger,
	}
}

// HoverHeight is the same for every square and every piece.
func (d *PoseDriver) HoverHeight() float64 {
	return d.boardHeight + d.hoverOffset
}

// ContactHeight is where the magnet meets the top of a piece of the given kind.
func (d *PoseDriver) ContactHeight(kind PieceKind) (float64, error) {
	offset, err := d.heights.Offset(kind)
	if err != nil {
		return 0, err
	}
	return d.boardHeight + offset, nil
}

// HoverOver moves to hover height above an arm-space point.
func (d *PoseDriver) HoverOver(ctx context.Context, xy r2.Point) (Pose, error) {
	return d.GoTo(ctx, d.At(xy, d.HoverHeight()))
}

// DescendTo lowers onto a piece of the given kind. Unknown kinds fail before
// any motion is issued.
func (d *PoseDriver) DescendTo(ctx context.Context, xy r2.Point, kind PieceKind) (Pose, error) {
	z, err := d.ContactHeight(kind)
	if err != nil {
		return Pose{}, err
	}
	return d.GoTo(ctx, d.At(xy, z))
}

// Ascend returns to hover height without moving in x or y.
func (d *PoseDriver) Ascend(ctx context.Context, xy r2.Point) (Pose, error) {
	return d.HoverOver(ctx, xy)
}

// GoTo moves to an explicit pose with the session profile.
func (d *PoseDriver) GoTo(ctx context.Context, pose Pose) (Pose, error) {
	d.logger.Debugf("moving to %v", pose)
	if err := d.mover.MoveLinear(ctx, pose, d.profile.Velocity, d.profile.Acceleration); err != nil {
		return Pose{}, asKind(ErrMotionUnreachable, err)
	}
	return pose, nil
}

// At builds a pose at the session orientation.
func (d *PoseDriver) At(xy r2.Point, z float64) Pose {
	return Pose{
		Point:       r3.Vector{X: xy.X, Y: xy.Y, Z: z},
		Orientation: d.orientation,
	}
}
