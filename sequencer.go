package chess_arm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// SequencerState is the pick-and-place state machine's position.
type SequencerState int

const (
	StateIdle SequencerState = iota
	StateHoveringAtSource
	StateContactingSource
	StateHolding
	StateHoveringAtTarget
	StateContactingTarget
)

func (s SequencerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHoveringAtSource:
		return "hovering_at_source"
	case StateContactingSource:
		return "contacting_source"
	case StateHolding:
		return "holding"
	case StateHoveringAtTarget:
		return "hovering_at_target"
	case StateContactingTarget:
		return "contacting_target"
	default:
		return "unknown"
	}
}

// Station is a fixed off-board location, such as the rest or dispense point.
type Station struct {
	XY     r2.Point // metres, arm space
	Height float64  // metres, absolute z
}

// SequencerConfig wires a Sequencer to its collaborators.
type SequencerConfig struct {
	Frame    BoardFrame
	Geometry *SquareGeometry
	Driver   *PoseDriver
	Actuator Actuator
	Rest     Station
	Dispense Station

	// SharedActuator is set when other sessions drive the same magnet. Begin
	// then never forces it off, and refuses to start while it is engaged.
	SharedActuator bool

	// Closers run once on Close, in order, to release channel handles.
	Closers []func() error
}

// Move is a square-to-square relocation, with the kind of any piece that
// must be cleared from the destination first.
type Move struct {
	From     string
	To       string
	Piece    PieceKind
	Captured PieceKind
}

// ParseMove splits a coordinate move such as "e2e4" into its squares.
func ParseMove(s string, piece, captured PieceKind) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i := 2; i < len(s)-1; i++ {
		if s[i] >= 'a' && s[i] <= 'z' {
			return Move{From: s[:i], To: s[i:], Piece: piece, Captured: captured}, nil
		}
	}
	return Move{}, errors.Wrapf(ErrUnknownSquare, "cannot split move %q into two squares", s)
}

// Status is a snapshot of the session.
type Status struct {
	State         SequencerState
	Holding       bool
	MagnetEngaged bool
	Faulted       bool
	Square        string
	Pose          Pose
	Level         Level
	HasPose       bool
}

// Sequencer composes lookup, transform, pose driver and actuator into safe
// pick-and-place operations. It is the only writer of session state, and it
// runs one operation at a time.
type Sequencer struct {
	mu sync.Mutex

	frame    BoardFrame
	geometry *SquareGeometry
	driver   *PoseDriver
	actuator Actuator
	rest     Pose
	dispense Pose
	closers  []func() error
	shared   bool
	logger   logging.Logger

	state   SequencerState
	holding bool
	faulted bool
	square  string
	armXY   r2.Point
	pose    Pose
	level   Level
	hasPose bool
	closed  bool
}

func NewSequencer(cfg SequencerConfig, logger logging.Logger) (*Sequencer, error) {
	if cfg.Geometry == nil {
		return nil, errors.New("sequencer requires a square geometry table")
	}
	if cfg.Driver == nil {
		return nil, errors.New("sequencer requires a pose driver")
	}
	if cfg.Actuator == nil {
		return nil, errors.New("sequencer requires an actuator")
	}
	return &Sequencer{
		frame:    cfg.Frame,
		geometry: cfg.Geometry,
		driver:   cfg.Driver,
		actuator: cfg.Actuator,
		rest:     cfg.Driver.At(cfg.Rest.XY, cfg.Rest.Height),
		dispense: cfg.Driver.At(cfg.Dispense.XY, cfg.Dispense.Height),
		closers:  cfg.Closers,
		shared:   cfg.SharedActuator,
		logger:   logger,
		state:    StateIdle,
	}, nil
}

// Begin starts a session: the magnet is forced off (or must already be
// tracked as off) and the tool hovers over the board origin. A shared magnet
// is never forced off, since another session may be holding a piece with it.
func (s *Sequencer) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const op = "begin"
	if s.shared {
		if s.actuator.Engaged() {
			return &StepError{Op: op, Step: "check shared magnet",
				Err: errors.Wrap(ErrActuatorStateConflict, "shared magnet is engaged by another session")}
		}
	} else if r, ok := s.actuator.(Releaser); ok {
		if err := r.Release(ctx); err != nil {
			return &StepError{Op: op, Step: "release magnet", Err: err}
		}
	} else if s.actuator.Engaged() {
		return &StepError{Op: op, Step: "release magnet",
			Err: errors.Wrap(ErrActuatorStateConflict, "magnet tracked as engaged at session start")}
	}
	s.holding = false
	s.faulted = false

	pose, err := s.driver.HoverOver(ctx, s.frame.Origin)
	if err != nil {
		return &StepError{Op: op, Step: "hover over board origin", Err: err}
	}
	s.record(pose, LevelHover)
	s.square = ""
	s.state = StateIdle

	s.logger.Infof("session started, board frame %v", s.frame)
	return nil
}

// Translate returns the arm-space centre of a square without moving.
func (s *Sequencer) Translate(square string) (r2.Point, error) {
	p, err := s.geometry.Lookup(square)
	if err != nil {
		return r2.Point{}, err
	}
	return s.frame.Transform(p), nil
}

// MoveTo hovers over a square.
func (s *Sequencer) MoveTo(ctx context.Context, square string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveTo(ctx, square)
}

// Connect descends onto the piece under the tool, toggles the magnet and
// ascends again. Hovering empty-handed it picks; holding, it places.
func (s *Sequencer) Connect(ctx context.Context, kind PieceKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connect(context.WithoutCancel(ctx), kind)
}

// Pick is Connect restricted to an empty-handed tool.
func (s *Sequencer) Pick(ctx context.Context, kind PieceKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holding {
		return s.stepErr("pick", "precondition", s.square, kind,
			errors.Wrap(ErrInvalidState, "already holding a piece"))
	}
	return s.connect(context.WithoutCancel(ctx), kind)
}

// Place is Connect restricted to a tool that holds a piece.
func (s *Sequencer) Place(ctx context.Context, kind PieceKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.holding {
		return s.stepErr("place", "precondition", s.square, kind,
			errors.Wrap(ErrInvalidState, "not holding a piece"))
	}
	return s.connect(context.WithoutCancel(ctx), kind)
}

// Dispense drops the held piece at the dispense station.
func (s *Sequencer) Dispense(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispenseHeld(context.WithoutCancel(ctx))
}

// Rest parks the tool at the rest station. The magnet is left as it is.
func (s *Sequencer) Rest(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const op = "rest"
	if err := s.checkMotionAllowed(op, ""); err != nil {
		return err
	}
	s.logger.Info("Moving to rest position")
	pose, err := s.driver.GoTo(ctx, s.rest)
	if err != nil {
		return s.stepErr(op, "move to rest position", "", "", err)
	}
	s.record(pose, LevelRest)
	s.square = ""
	if s.holding {
		s.state = StateHolding
	} else {
		s.state = StateIdle
	}
	return nil
}

// Relocate picks the piece on from and places it on to.
func (s *Sequencer) Relocate(ctx context.Context, from, to string, kind PieceKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireEmptyHanded("relocate"); err != nil {
		return err
	}
	if err := s.validate("relocate", kind, from, to); err != nil {
		return err
	}
	return s.relocate(ctx, from, to, kind)
}

// Capture clears the captured piece from to, dispenses it, then relocates
// the capturing piece from from to to.
func (s *Sequencer) Capture(ctx context.Context, from, to string, kind, captured PieceKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture(ctx, from, to, kind, captured)
}

// Execute runs a move, clearing the destination first if it captures.
func (s *Sequencer) Execute(ctx context.Context, m Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Captured != "" {
		return s.capture(ctx, m.From, m.To, m.Piece, m.Captured)
	}
	if err := s.requireEmptyHanded("relocate"); err != nil {
		return err
	}
	if err := s.validate("relocate", m.Piece, m.From, m.To); err != nil {
		return err
	}
	return s.relocate(ctx, m.From, m.To, m.Piece)
}

// Recover clears a fault after the operator has inspected the arm. If
// magnetOff is set the magnet is forced off first; otherwise the tracked
// state is trusted. The tool then returns to hover height where it stopped.
func (s *Sequencer) Recover(ctx context.Context, magnetOff bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const op = "recover"
	if magnetOff {
		r, ok := s.actuator.(Releaser)
		if !ok {
			return s.stepErr(op, "release magnet", s.square, "",
				errors.New("actuator cannot be released directly"))
		}
		if err := r.Release(ctx); err != nil {
			return s.stepErr(op, "release magnet", s.square, "", err)
		}
	}
	s.holding = s.actuator.Engaged()

	if s.hasPose && s.level == LevelContact {
		pose, err := s.driver.Ascend(ctx, s.armXY)
		if err != nil {
			return s.stepErr(op, "ascend", s.square, "", err)
		}
		s.record(pose, LevelHover)
	}

	s.faulted = false
	s.state = s.restingState()
	s.logger.Infof("recovered, state %s, holding=%v", s.state, s.holding)
	return nil
}

// Status returns a snapshot of the session.
func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:         s.state,
		Holding:       s.holding,
		MagnetEngaged: s.actuator.Engaged(),
		Faulted:       s.faulted,
		Square:        s.square,
		Pose:          s.pose,
		Level:         s.level,
		HasPose:       s.hasPose,
	}
}

// Close releases the channel handles. It does not move the arm.
func (s *Sequencer) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.holding {
		s.logger.Warn("closing session while holding a piece")
	}

	var errs []string
	for _, closer := range s.closers {
		if err := closer(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close session: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s *Sequencer) moveTo(ctx context.Context, square string) error {
	const op = "move_to"
	if err := s.checkMotionAllowed(op, square); err != nil {
		return err
	}
	xy, err := s.Translate(square)
	if err != nil {
		return s.stepErr(op, "lookup", square, "", err)
	}

	s.logger.Infof("Moving to %s at (%.4f, %.4f)", square, xy.X, xy.Y)
	pose, err := s.driver.HoverOver(ctx, xy)
	if err != nil {
		return s.stepErr(op, "hover", square, "", err)
	}
	s.record(pose, LevelHover)
	s.square, _ = ParseSquare(square, s.geometry.Size())
	if s.holding {
		s.state = StateHoveringAtTarget
	} else {
		s.state = StateHoveringAtSource
	}
	return nil
}

func (s *Sequencer) connect(ctx context.Context, kind PieceKind) error {
	const op = "connect"
	if s.faulted {
		return s.stepErr(op, "precondition", s.square, kind, ErrFaulted)
	}

	var picking bool
	var contacting SequencerState
	switch s.state {
	case StateHoveringAtSource:
		picking, contacting = true, StateContactingSource
	case StateHolding, StateHoveringAtTarget:
		picking, contacting = false, StateContactingTarget
	default:
		return s.stepErr(op, "precondition", s.square, kind,
			errors.Wrapf(ErrInvalidState, "cannot connect while %s", s.state))
	}
	// holding at the rest or dispense station is not over a square
	if s.square == "" || s.level != LevelHover {
		return s.stepErr(op, "precondition", s.square, kind,
			errors.Wrapf(ErrInvalidState, "not hovering over a square (%s at %s level)", s.state, s.level))
	}
	if engaged := s.actuator.Engaged(); engaged == picking {
		return s.stepErr(op, "precondition", s.square, kind,
			errors.Wrapf(ErrActuatorStateConflict, "magnet engaged=%v, holding=%v", engaged, s.holding))
	}
	if _, err := s.driver.ContactHeight(kind); err != nil {
		return s.stepErr(op, "contact height", s.square, kind, err)
	}

	if picking {
		s.logger.Infof("Picking %s at %s", kind, s.square)
	} else {
		s.logger.Infof("Placing %s at %s", kind, s.square)
	}

	pose, err := s.driver.DescendTo(ctx, s.armXY, kind)
	if err != nil {
		return s.fault(op, "descend", kind, err)
	}
	s.record(pose, LevelContact)
	s.state = contacting

	engaged, err := s.actuator.Toggle(ctx)
	if err != nil {
		return s.fault(op, "actuate", kind, err)
	}
	s.holding = engaged
	if engaged != picking {
		return s.fault(op, "actuate", kind,
			errors.Wrapf(ErrActuatorStateConflict, "toggle reported engaged=%v", engaged))
	}

	pose, err = s.driver.Ascend(ctx, s.armXY)
	if err != nil {
		return s.fault(op, "ascend", kind, err)
	}
	s.record(pose, LevelHover)
	if picking {
		s.state = StateHolding
	} else {
		s.state = StateIdle
	}
	return nil
}

func (s *Sequencer) dispenseHeld(ctx context.Context) error {
	const op = "dispense"
	if s.faulted {
		return s.stepErr(op, "precondition", "", "", ErrFaulted)
	}
	if !s.holding || (s.state != StateHolding && s.state != StateHoveringAtTarget) {
		return s.stepErr(op, "precondition", "", "",
			errors.Wrapf(ErrInvalidState, "cannot dispense while %s", s.state))
	}
	if !s.actuator.Engaged() {
		return s.stepErr(op, "precondition", "", "",
			errors.Wrap(ErrActuatorStateConflict, "holding a piece but magnet is not engaged"))
	}

	s.logger.Info("Dispensing held piece")
	pose, err := s.driver.GoTo(ctx, s.dispense)
	if err != nil {
		return s.stepErr(op, "move to dispense position", "", "", err)
	}
	s.record(pose, LevelDispense)
	s.square = ""

	engaged, err := s.actuator.Toggle(ctx)
	if err != nil {
		return s.fault(op, "actuate", "", err)
	}
	s.holding = engaged
	if engaged {
		return s.fault(op, "actuate", "",
			errors.Wrap(ErrActuatorStateConflict, "toggle reported magnet still engaged"))
	}
	s.state = StateIdle
	return nil
}

func (s *Sequencer) relocate(ctx context.Context, from, to string, kind PieceKind) error {
	if err := s.moveTo(ctx, from); err != nil {
		return err
	}
	if err := s.connect(context.WithoutCancel(ctx), kind); err != nil {
		return err
	}
	if err := s.moveTo(ctx, to); err != nil {
		return err
	}
	return s.connect(context.WithoutCancel(ctx), kind)
}

func (s *Sequencer) capture(ctx context.Context, from, to string, kind, captured PieceKind) error {
	if err := s.requireEmptyHanded("capture"); err != nil {
		return err
	}
	if err := s.validate("capture", kind, from, to); err != nil {
		return err
	}
	if err := s.validate("capture", captured); err != nil {
		return err
	}

	s.logger.Infof("Capturing %s on %s with %s from %s", captured, to, kind, from)
	if err := s.moveTo(ctx, to); err != nil {
		return err
	}
	if err := s.connect(context.WithoutCancel(ctx), captured); err != nil {
		return err
	}
	if err := s.dispenseHeld(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	return s.relocate(ctx, from, to, kind)
}

// requireEmptyHanded rejects composite moves that would start with a piece
// already on the magnet.
func (s *Sequencer) requireEmptyHanded(op string) error {
	if s.faulted {
		return s.stepErr(op, "precondition", s.square, "", ErrFaulted)
	}
	if s.holding || s.actuator.Engaged() {
		return s.stepErr(op, "precondition", s.square, "",
			errors.Wrapf(ErrInvalidState, "cannot start while holding a piece (%s)", s.state))
	}
	return nil
}

// validate rejects unknown squares and piece kinds before any motion.
func (s *Sequencer) validate(op string, kind PieceKind, squares ...string) error {
	for _, sq := range squares {
		if _, err := s.geometry.Lookup(sq); err != nil {
			return s.stepErr(op, "lookup", sq, kind, err)
		}
	}
	if _, err := s.driver.ContactHeight(kind); err != nil {
		return s.stepErr(op, "contact height", "", kind, err)
	}
	return nil
}

func (s *Sequencer) checkMotionAllowed(op, square string) error {
	if s.faulted {
		return s.stepErr(op, "precondition", square, "", ErrFaulted)
	}
	if s.state == StateContactingSource || s.state == StateContactingTarget {
		return s.stepErr(op, "precondition", square, "",
			errors.Wrapf(ErrInvalidState, "cannot move while %s", s.state))
	}
	return nil
}

func (s *Sequencer) restingState() SequencerState {
	switch {
	case s.holding && s.square != "":
		return StateHoveringAtTarget
	case s.holding:
		return StateHolding
	case s.square != "":
		return StateHoveringAtSource
	default:
		return StateIdle
	}
}

func (s *Sequencer) record(pose Pose, level Level) {
	s.pose = pose
	s.armXY = pose.XY()
	s.level = level
	s.hasPose = true
}

func (s *Sequencer) stepErr(op, step, square string, kind PieceKind, err error) error {
	return &StepError{Op: op, Step: step, Square: square, Piece: kind, Err: err}
}

// fault halts the session after a failure mid-sequence. The arm stays
// where it was last commanded and nothing else moves until Recover.
func (s *Sequencer) fault(op, step string, kind PieceKind, err error) error {
	s.faulted = true
	serr := s.stepErr(op, step, s.square, kind, err)
	s.logger.Errorf("halting, operator intervention required: %v", serr)
	return serr
}
