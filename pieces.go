package chess_arm

import (
	"strings"

	"github.com/pkg/errors"
)

// PieceKind names a type of chess piece. Contact height depends on it.
type PieceKind string

const (
	King   PieceKind = "king"
	Queen  PieceKind = "queen"
	Rook   PieceKind = "rook"
	Bishop PieceKind = "bishop"
	Knight PieceKind = "knight"
	Pawn   PieceKind = "pawn"
)

var pieceLetters = map[string]PieceKind{
	"k": King,
	"q": Queen,
	"r": Rook,
	"b": Bishop,
	"n": Knight,
	"p": Pawn,
}

// ParsePieceKind accepts a piece name ("rook") or its SAN letter ("R", "r").
// Names outside the standard set are passed through lower-cased so custom
// height tables can define their own kinds.
func ParsePieceKind(s string) (PieceKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return "", errors.Wrap(ErrUnknownPieceKind, "empty piece kind")
	}
	if kind, ok := pieceLetters[name]; ok {
		return kind, nil
	}
	return PieceKind(name), nil
}

// PieceHeights maps a piece kind to its contact offset above the board, in metres.
type PieceHeights map[PieceKind]float64

// DefaultPieceHeights are the measured heights of a standard tournament set.
func DefaultPieceHeights() PieceHeights {
	return PieceHeights{
		King:   0.0762,
		Queen:  0.0686,
		Bishop: 0.0559,
		Knight: 0.0457,
		Rook:   0.04,
		Pawn:   0.0356,
	}
}

// Offset returns the contact offset for kind.
func (h PieceHeights) Offset(kind PieceKind) (float64, error) {
	offset, ok := h[kind]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownPieceKind, "%q", string(kind))
	}
	return offset, nil
}
