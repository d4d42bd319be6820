package chess_arm

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePieceKind(t *testing.T) {
	tests := []struct {
		input    string
		expected PieceKind
	}{
		{"rook", Rook},
		{"Rook", Rook},
		{"R", Rook},
		{"n", Knight},
		{" queen ", Queen},
		{"archbishop", PieceKind("archbishop")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			kind, err := ParsePieceKind(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, kind)
		})
	}

	_, err := ParsePieceKind("  ")
	assert.True(t, errors.Is(err, ErrUnknownPieceKind))
}

func TestPieceHeights(t *testing.T) {
	heights := DefaultPieceHeights()

	offset, err := heights.Offset(Rook)
	require.NoError(t, err)
	assert.Equal(t, 0.04, offset)

	_, err = heights.Offset(PieceKind("archbishop"))
	assert.True(t, errors.Is(err, ErrUnknownPieceKind))

	// taller pieces are contacted higher
	king, _ := heights.Offset(King)
	pawn, _ := heights.Offset(Pawn)
	assert.Greater(t, king, pawn)
}
