package chess_arm

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

const (
	DefaultBoardSize = 8
	maxBoardSize     = 26
	mmPerMetre       = 1000.0
)

// SquarePoint is a raw square centre in board space, in millimetres.
type SquarePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SquareGeometry maps square identifiers to board-space coordinates.
// It is read-only once constructed.
type SquareGeometry struct {
	size    int
	squares map[string]SquarePoint
}

// NewSquareGeometry validates a raw table against an N×N addressing scheme.
// Keys are normalised to lower case.
func NewSquareGeometry(size int, raw map[string]SquarePoint) (*SquareGeometry, error) {
	if size < 1 || size > maxBoardSize {
		return nil, fmt.Errorf("board size must be between 1 and %d, got %d", maxBoardSize, size)
	}
	if len(raw) == 0 {
		return nil, errors.New("geometry table is empty")
	}

	squares := make(map[string]SquarePoint, len(raw))
	for id, pt := range raw {
		name, err := ParseSquare(id, size)
		if err != nil {
			return nil, errors.Wrap(err, "invalid geometry table")
		}
		if _, dup := squares[name]; dup {
			return nil, fmt.Errorf("invalid geometry table: square %s listed twice", name)
		}
		squares[name] = pt
	}
	return &SquareGeometry{size: size, squares: squares}, nil
}

// LoadSquareGeometry reads a JSON table of the form {"a1": {"x": 25, "y": 25}, ...}.
func LoadSquareGeometry(filePath string, size int) (*SquareGeometry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read geometry file: %w", err)
	}

	var raw map[string]SquarePoint
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse geometry JSON: %w", err)
	}
	return NewSquareGeometry(size, raw)
}

// GridSquareGeometry builds a uniform table where a1's centre sits at
// (offsetMM, offsetMM) and each square is pitchMM wide.
func GridSquareGeometry(size int, pitchMM, offsetMM float64) (*SquareGeometry, error) {
	if pitchMM <= 0 {
		return nil, fmt.Errorf("square pitch must be positive, got %v", pitchMM)
	}
	raw := make(map[string]SquarePoint, size*size)
	for file := 0; file < size; file++ {
		for rank := 0; rank < size; rank++ {
			raw[squareName(file, rank)] = SquarePoint{
				X: offsetMM + float64(file)*pitchMM,
				Y: offsetMM + float64(rank)*pitchMM,
			}
		}
	}
	return NewSquareGeometry(size, raw)
}

// Lookup returns the board-space centre of a square in metres.
func (g *SquareGeometry) Lookup(squareID string) (r2.Point, error) {
	name, err := ParseSquare(squareID, g.size)
	if err != nil {
		return r2.Point{}, err
	}
	pt, ok := g.squares[name]
	if !ok {
		return r2.Point{}, errors.Wrapf(ErrUnknownSquare, "%q not in geometry table", squareID)
	}
	return r2.Point{X: pt.X / mmPerMetre, Y: pt.Y / mmPerMetre}, nil
}

// Size is the board edge length in squares.
func (g *SquareGeometry) Size() int {
	return g.size
}

// Squares lists every square in the table, sorted.
func (g *SquareGeometry) Squares() []string {
	names := make([]string, 0, len(g.squares))
	for name := range g.squares {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseSquare normalises a file+rank identifier such as "E4" to "e4" and
// checks it is addressable on a board of the given size.
func ParseSquare(id string, size int) (string, error) {
	s := strings.ToLower(strings.TrimSpace(id))
	if len(s) < 2 {
		return "", errors.Wrapf(ErrUnknownSquare, "%q", id)
	}
	file := int(s[0]) - 'a'
	rank, err := strconv.Atoi(s[1:])
	if err != nil || file < 0 || file >= size || rank < 1 || rank > size {
		return "", errors.Wrapf(ErrUnknownSquare, "%q", id)
	}
	return squareName(file, rank-1), nil
}

func squareName(file, rank int) string {
	return string(rune('a'+file)) + strconv.Itoa(rank+1)
}
