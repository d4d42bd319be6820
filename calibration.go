package chess_arm

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"
)

// fitScaleTolerance bounds how far the measured square spacing may differ
// from the geometry table before the fit is rejected.
const fitScaleTolerance = 0.05

// SquareMeasurement pairs a square with the arm-space point the tool was
// jogged to over its centre.
type SquareMeasurement struct {
	Square string   `json:"square"`
	Arm    r2.Point `json:"arm"`
}

// FrameFit is the result of fitting a board frame to measurements.
type FrameFit struct {
	Frame BoardFrame
	// Scale is measured distance over table distance; 1 for a perfect table.
	Scale float64
	// Residual is how far, in metres, the second square lands from where it
	// was measured once the fitted frame is applied.
	Residual float64
}

// FitBoardFrame derives the board origin and rotation from two measured
// squares. The rigid transform cannot absorb scale, so a table whose spacing
// disagrees with the measurements by more than a few percent is an error.
func FitBoardFrame(g *SquareGeometry, swapAxes bool, first, second SquareMeasurement) (FrameFit, error) {
	b1, err := g.Lookup(first.Square)
	if err != nil {
		return FrameFit{}, err
	}
	b2, err := g.Lookup(second.Square)
	if err != nil {
		return FrameFit{}, err
	}

	unrotated := NewBoardFrame(r2.Point{}, 0, swapAxes)
	s1p, s2p := unrotated.Transform(b1), unrotated.Transform(b2)

	boardDelta := s2p.Sub(s1p)
	armDelta := second.Arm.Sub(first.Arm)
	if boardDelta.Norm() == 0 {
		return FrameFit{}, fmt.Errorf("squares %s and %s share a centre", first.Square, second.Square)
	}
	if armDelta.Norm() == 0 {
		return FrameFit{}, fmt.Errorf("measurements for %s and %s are the same point", first.Square, second.Square)
	}

	angle := s1.Angle(math.Atan2(armDelta.Y, armDelta.X) - math.Atan2(boardDelta.Y, boardDelta.X))
	angle = s1.Angle(math.Remainder(angle.Radians(), 2*math.Pi))
	origin := first.Arm.Sub(rotate(s1p, angle))
	frame := NewBoardFrame(origin, angle, swapAxes)

	fit := FrameFit{
		Frame:    frame,
		Scale:    armDelta.Norm() / boardDelta.Norm(),
		Residual: frame.Transform(b2).Sub(second.Arm).Norm(),
	}
	if math.Abs(fit.Scale-1) > fitScaleTolerance {
		return fit, fmt.Errorf("measured spacing is %.3fx the geometry table, check square_size_mm or geometry_file", fit.Scale)
	}
	return fit, nil
}
