package chess_arm

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"
)

// BoardFrame places the board's coordinate system inside the arm's base frame.
// Board points are optionally swapped (x, y) -> (y, x), rotated by Angle and
// then translated by Origin. The swap reproduces the axis convention the
// board geometry files were measured in.
type BoardFrame struct {
	Origin   r2.Point // metres, arm space
	Angle    s1.Angle
	SwapAxes bool
}

// NewBoardFrame returns a frame with the given origin (metres) and rotation.
func NewBoardFrame(origin r2.Point, angle s1.Angle, swapAxes bool) BoardFrame {
	return BoardFrame{Origin: origin, Angle: angle, SwapAxes: swapAxes}
}

// Transform maps a board-space point (metres) into arm space.
func (f BoardFrame) Transform(p r2.Point) r2.Point {
	if f.SwapAxes {
		p = r2.Point{X: p.Y, Y: p.X}
	}
	return rotate(p, f.Angle).Add(f.Origin)
}

// Inverse maps an arm-space point back into board space.
func (f BoardFrame) Inverse(q r2.Point) r2.Point {
	p := rotate(q.Sub(f.Origin), -f.Angle)
	if f.SwapAxes {
		p = r2.Point{X: p.Y, Y: p.X}
	}
	return p
}

func (f BoardFrame) String() string {
	return fmt.Sprintf("origin=(%.4f, %.4f) angle=%.3f° swap=%v", f.Origin.X, f.Origin.Y, f.Angle.Degrees(), f.SwapAxes)
}

func rotate(p r2.Point, angle s1.Angle) r2.Point {
	sin, cos := math.Sincos(angle.Radians())
	return r2.Point{
		X: p.X*cos - p.Y*sin,
		Y: p.X*sin + p.Y*cos,
	}
}
