package chess_arm

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Pose is a tool pose in the arm's base frame.
type Pose struct {
	Point       r3.Vector // metres
	Orientation r3.Vector // rotation vector, radians
}

// XY drops the height.
func (p Pose) XY() r2.Point {
	return r2.Point{X: p.Point.X, Y: p.Point.Y}
}

func (p Pose) String() string {
	return fmt.Sprintf("p[%.5f, %.5f, %.5f, %.4f, %.4f, %.4f]",
		p.Point.X, p.Point.Y, p.Point.Z, p.Orientation.X, p.Orientation.Y, p.Orientation.Z)
}

// Level records which of the fixed heights a commanded pose sits at.
type Level int

const (
	LevelUnknown Level = iota
	LevelHover
	LevelContact
	LevelRest
	LevelDispense
)

func (l Level) String() string {
	switch l {
	case LevelHover:
		return "hover"
	case LevelContact:
		return "contact"
	case LevelRest:
		return "rest"
	case LevelDispense:
		return "dispense"
	default:
		return "unknown"
	}
}
