package chess_arm

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

func TestBoardFrameTransform(t *testing.T) {
	frame := NewBoardFrame(r2.Point{X: 0.40, Y: -0.56}, 44.785*s1.Degree, true)

	tests := []struct {
		name     string
		board    r2.Point
		expected r2.Point
	}{
		{
			name:     "origin maps to origin",
			board:    r2.Point{},
			expected: r2.Point{X: 0.40, Y: -0.56},
		},
		{
			name:     "diagonal square",
			board:    r2.Point{X: 0.35, Y: 0.35},
			expected: r2.Point{X: 0.4018573675, Y: -0.0650287380},
		},
		{
			name:     "axes are swapped before rotation",
			board:    r2.Point{X: 0.05, Y: 0.35},
			expected: r2.Point{X: 0.6131918937, Y: -0.2779552935},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := frame.Transform(tt.board)
			assert.InDelta(t, tt.expected.X, got.X, 1e-9)
			assert.InDelta(t, tt.expected.Y, got.Y, 1e-9)
		})
	}
}

func TestBoardFrameWithoutSwap(t *testing.T) {
	frame := NewBoardFrame(r2.Point{X: 1, Y: 2}, s1.Angle(math.Pi/2), false)

	got := frame.Transform(r2.Point{X: 1, Y: 0})
	assert.InDelta(t, 1.0, got.X, tol)
	assert.InDelta(t, 3.0, got.Y, tol)
}

func TestBoardFrameRoundTrip(t *testing.T) {
	frames := []BoardFrame{
		NewBoardFrame(r2.Point{X: 0.401, Y: -0.564}, 44.785*s1.Degree, true),
		NewBoardFrame(r2.Point{X: -0.2, Y: 0.3}, s1.Angle(-2.1), false),
		NewBoardFrame(r2.Point{}, 0, true),
	}
	points := []r2.Point{{}, {X: 0.35, Y: 0.05}, {X: -0.1, Y: 0.42}, {X: 0.0225, Y: 0.3375}}

	for _, f := range frames {
		for _, p := range points {
			back := f.Inverse(f.Transform(p))
			assert.InDelta(t, p.X, back.X, tol, "frame %v point %v", f, p)
			assert.InDelta(t, p.Y, back.Y, tol, "frame %v point %v", f, p)
		}
	}
}

func TestBoardFrameIsDeterministic(t *testing.T) {
	frame := NewBoardFrame(r2.Point{X: 0.401, Y: -0.564}, 44.785*s1.Degree, true)
	g, err := GridSquareGeometry(8, 45, 22.5)
	require.NoError(t, err)

	for _, sq := range g.Squares() {
		p, err := g.Lookup(sq)
		require.NoError(t, err)
		assert.Equal(t, frame.Transform(p), frame.Transform(p), sq)
	}
}
