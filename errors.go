package chess_arm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Error kinds returned by the controller. Every one of them aborts the
// high-level operation in progress; nothing is retried.
var (
	ErrUnknownSquare         = errors.New("unknown square")
	ErrUnknownPieceKind      = errors.New("unknown piece kind")
	ErrActuatorUnreachable   = errors.New("actuator unreachable")
	ErrMotionUnreachable     = errors.New("motion unreachable")
	ErrActuatorStateConflict = errors.New("actuator state conflict")
	ErrInvalidState          = errors.New("operation not allowed in current state")
	ErrFaulted               = errors.New("session faulted, operator recovery required")
)

// StepError records which step of which operation failed, and on what
// square or piece, so the operator knows where the arm stopped.
type StepError struct {
	Op     string
	Step   string
	Square string
	Piece  PieceKind
	Err    error
}

func (e *StepError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Step != "" {
		b.WriteString(": ")
		b.WriteString(e.Step)
	}
	if e.Square != "" {
		fmt.Fprintf(&b, " [square %s]", e.Square)
	}
	if e.Piece != "" {
		fmt.Fprintf(&b, " [piece %s]", e.Piece)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// asKind tags err with kind unless it already carries it, keeping the
// original cause reachable through errors.Is and errors.As.
func asKind(kind, err error) error {
	if err == nil || errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
