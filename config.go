package chess_arm

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"go.viam.com/rdk/logging"
)

const (
	MotionArm      = "arm"
	MotionURScript = "urscript"
)

// Measured on the reference cell; override per installation.
var (
	defaultBoardOrigin      = []float64{0.401, -0.564}
	defaultRotationAngleDeg = 44.785
	defaultTCPOrientation   = []float64{1.393, -2.770, -0.085}
	defaultRestPosition     = []float64{-0.11676, -0.3524}
	defaultDispensePosition = []float64{0.0087, -0.6791}
)

const (
	defaultBoardHeight    = 0.014
	defaultHoverOffset    = 0.15
	defaultVelocity       = 0.5
	defaultAcceleration   = 0.3
	defaultMoveMarginMs   = 250
	defaultFirstMoveMs    = 3000
	defaultDialTimeoutMs  = 2000
	defaultSquareOffsetMM = 0.5
)

type Config struct {
	// Controller script port, used for the magnet and for URScript motion
	Host string `json:"host"`
	Port int    `json:"port,omitempty"`

	// Motion backend: "arm" drives a viam arm dependency, "urscript" sends movel programs
	Motion       string `json:"motion,omitempty"`
	Arm          string `json:"arm,omitempty"`
	MoveMarginMs int    `json:"move_margin_ms,omitempty"`
	// Wait after the first scripted move, whose start pose is unknown
	FirstMoveWaitMs int `json:"first_move_wait_ms,omitempty"`

	// Board frame
	BoardOrigin      []float64 `json:"board_origin_m,omitempty"`
	RotationAngleDeg *float64  `json:"rotation_angle_deg,omitempty"`
	RotationAngleRad *float64  `json:"rotation_angle_rad,omitempty"`
	SwapAxes         *bool     `json:"swap_axes,omitempty"`

	// Tool pose
	TCPOrientation []float64          `json:"tcp_orientation_rad,omitempty"`
	BoardHeight    *float64           `json:"board_height_m,omitempty"`
	HoverOffset    float64            `json:"hover_offset_m,omitempty"`
	PieceHeights   map[string]float64 `json:"piece_heights_m,omitempty"`

	// Stations off the board
	RestPosition     []float64 `json:"rest_position_m,omitempty"`
	DispensePosition []float64 `json:"dispense_position_m,omitempty"`
	RestHeight       *float64  `json:"rest_height_m,omitempty"`
	DispenseHeight   *float64  `json:"dispense_height_m,omitempty"`

	Velocity     float64 `json:"velocity_m_per_sec,omitempty"`
	Acceleration float64 `json:"acceleration_m_per_sec_per_sec,omitempty"`

	// Magnet
	EngageVoltage       int `json:"engage_voltage,omitempty"`
	SettleTimeMs        int `json:"settle_time_ms,omitempty"`
	ReleaseSettleTimeMs int `json:"release_settle_time_ms,omitempty"`
	DialTimeoutMs       int `json:"dial_timeout_ms,omitempty"`

	// Square geometry: a measured table, or a uniform grid
	BoardSize    int     `json:"board_size,omitempty"`
	GeometryFile string  `json:"geometry_file,omitempty"`
	SquareSizeMM float64 `json:"square_size_mm,omitempty"`
}

// Validate fills defaults and checks the config. An arm dependency is
// returned when motion runs through a viam arm.
func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if cfg.Host == "" {
		return nil, nil, fmt.Errorf("must specify host of the arm controller")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultScriptPort
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}

	if cfg.Motion == "" {
		if cfg.Arm != "" {
			cfg.Motion = MotionArm
		} else {
			cfg.Motion = MotionURScript
		}
	}
	var deps []string
	switch cfg.Motion {
	case MotionArm:
		if cfg.Arm == "" {
			return nil, nil, fmt.Errorf("motion %q requires an arm", MotionArm)
		}
		deps = append(deps, cfg.Arm)
	case MotionURScript:
		if cfg.MoveMarginMs == 0 {
			cfg.MoveMarginMs = defaultMoveMarginMs
		}
		if cfg.FirstMoveWaitMs == 0 {
			cfg.FirstMoveWaitMs = defaultFirstMoveMs
		}
		if cfg.MoveMarginMs < 0 || cfg.FirstMoveWaitMs < 0 {
			return nil, nil, fmt.Errorf("move_margin_ms and first_move_wait_ms must not be negative")
		}
	default:
		return nil, nil, fmt.Errorf("motion must be %q or %q, got %q", MotionArm, MotionURScript, cfg.Motion)
	}

	if cfg.RotationAngleDeg != nil && cfg.RotationAngleRad != nil {
		return nil, nil, fmt.Errorf("specify only one of rotation_angle_deg and rotation_angle_rad")
	}
	if cfg.RotationAngleDeg == nil && cfg.RotationAngleRad == nil {
		deg := defaultRotationAngleDeg
		cfg.RotationAngleDeg = &deg
	}
	if cfg.SwapAxes == nil {
		swap := true
		cfg.SwapAxes = &swap
	}

	var err error
	if cfg.BoardOrigin, err = vectorOrDefault("board_origin_m", cfg.BoardOrigin, defaultBoardOrigin); err != nil {
		return nil, nil, err
	}
	if cfg.TCPOrientation, err = vectorOrDefault("tcp_orientation_rad", cfg.TCPOrientation, defaultTCPOrientation); err != nil {
		return nil, nil, err
	}
	if cfg.RestPosition, err = vectorOrDefault("rest_position_m", cfg.RestPosition, defaultRestPosition); err != nil {
		return nil, nil, err
	}
	if cfg.DispensePosition, err = vectorOrDefault("dispense_position_m", cfg.DispensePosition, defaultDispensePosition); err != nil {
		return nil, nil, err
	}

	cfg.BoardHeight = floatOrDefault(cfg.BoardHeight, defaultBoardHeight)
	if cfg.HoverOffset == 0 {
		cfg.HoverOffset = defaultHoverOffset
	}
	if cfg.HoverOffset < 0 {
		return nil, nil, fmt.Errorf("hover_offset_m must be positive, got %v", cfg.HoverOffset)
	}
	cfg.RestHeight = floatOrDefault(cfg.RestHeight, *cfg.BoardHeight+cfg.HoverOffset)
	cfg.DispenseHeight = floatOrDefault(cfg.DispenseHeight, *cfg.BoardHeight+cfg.HoverOffset)
	for name, h := range cfg.PieceHeights {
		if _, err := ParsePieceKind(name); err != nil {
			return nil, nil, fmt.Errorf("piece_heights_m: %w", err)
		}
		if h <= 0 || h >= cfg.HoverOffset {
			return nil, nil, fmt.Errorf("piece_heights_m[%s] must be between 0 and hover_offset_m, got %v", name, h)
		}
	}

	if cfg.Velocity == 0 {
		cfg.Velocity = defaultVelocity
	}
	if cfg.Acceleration == 0 {
		cfg.Acceleration = defaultAcceleration
	}
	if cfg.Velocity < 0 || cfg.Acceleration < 0 {
		return nil, nil, fmt.Errorf("velocity and acceleration must be positive")
	}

	if cfg.EngageVoltage == 0 {
		cfg.EngageVoltage = DefaultEngageVoltage
	}
	if cfg.EngageVoltage != 12 && cfg.EngageVoltage != 24 {
		return nil, nil, fmt.Errorf("engage_voltage must be 12 or 24, got %d", cfg.EngageVoltage)
	}
	if cfg.SettleTimeMs == 0 {
		cfg.SettleTimeMs = int(DefaultSettleTime / time.Millisecond)
	}
	if cfg.ReleaseSettleTimeMs == 0 {
		cfg.ReleaseSettleTimeMs = int(DefaultReleaseSettleTime / time.Millisecond)
	}
	if cfg.DialTimeoutMs == 0 {
		cfg.DialTimeoutMs = defaultDialTimeoutMs
	}

	if cfg.BoardSize == 0 {
		cfg.BoardSize = DefaultBoardSize
	}
	if cfg.BoardSize < 1 || cfg.BoardSize > maxBoardSize {
		return nil, nil, fmt.Errorf("board_size must be between 1 and %d, got %d", maxBoardSize, cfg.BoardSize)
	}
	if cfg.GeometryFile == "" && cfg.SquareSizeMM <= 0 {
		return nil, nil, fmt.Errorf("must specify geometry_file or a positive square_size_mm")
	}

	return deps, nil, nil
}

func floatOrDefault(v *float64, def float64) *float64 {
	if v != nil {
		return v
	}
	return &def
}

func vectorOrDefault(name string, v, def []float64) ([]float64, error) {
	if len(v) == 0 {
		return append([]float64(nil), def...), nil
	}
	if len(v) != len(def) {
		return nil, fmt.Errorf("%s must have %d values, got %d", name, len(def), len(v))
	}
	return v, nil
}

// Frame returns the board frame described by the config.
func (cfg *Config) Frame() BoardFrame {
	var angle s1.Angle
	if cfg.RotationAngleRad != nil {
		angle = s1.Angle(*cfg.RotationAngleRad)
	} else {
		angle = s1.Angle(*cfg.RotationAngleDeg) * s1.Degree
	}
	return NewBoardFrame(r2.Point{X: cfg.BoardOrigin[0], Y: cfg.BoardOrigin[1]}, angle, *cfg.SwapAxes)
}

// Heights merges configured piece heights over the defaults.
func (cfg *Config) Heights() PieceHeights {
	heights := DefaultPieceHeights()
	for name, h := range cfg.PieceHeights {
		kind, err := ParsePieceKind(name)
		if err != nil {
			continue
		}
		heights[kind] = h
	}
	return heights
}

// ResolveGeometryFile resolves a relative geometry_file under
// VIAM_MODULE_DATA, falling back to /tmp.
func (cfg *Config) ResolveGeometryFile() string {
	if cfg.GeometryFile == "" || filepath.IsAbs(cfg.GeometryFile) {
		return cfg.GeometryFile
	}
	moduleDataDir := os.Getenv("VIAM_MODULE_DATA")
	if moduleDataDir == "" {
		moduleDataDir = "/tmp"
	}
	return filepath.Join(moduleDataDir, cfg.GeometryFile)
}

// Geometry loads the square table from geometry_file, or builds a uniform
// grid from square_size_mm when no file is set.
func (cfg *Config) Geometry(logger logging.Logger) (*SquareGeometry, error) {
	if cfg.GeometryFile != "" {
		path := cfg.ResolveGeometryFile()
		g, err := LoadSquareGeometry(path, cfg.BoardSize)
		if err != nil {
			return nil, err
		}
		logger.Infof("Loaded %d squares from %s", len(g.Squares()), path)
		return g, nil
	}
	logger.Debugf("No geometry file specified, using a %.1fmm grid", cfg.SquareSizeMM)
	return GridSquareGeometry(cfg.BoardSize, cfg.SquareSizeMM, cfg.SquareSizeMM*defaultSquareOffsetMM)
}

func (cfg *Config) ActuatorConfig() ActuatorConfig {
	return ActuatorConfig{
		Host:              cfg.Host,
		Port:              cfg.Port,
		EngageVoltage:     cfg.EngageVoltage,
		SettleTime:        time.Duration(cfg.SettleTimeMs) * time.Millisecond,
		ReleaseSettleTime: time.Duration(cfg.ReleaseSettleTimeMs) * time.Millisecond,
		DialTimeout:       time.Duration(cfg.DialTimeoutMs) * time.Millisecond,
	}
}

// ScriptMover builds the URScript motion backend.
func (cfg *Config) ScriptMover(logger logging.Logger) *ScriptMover {
	return NewScriptMover(cfg.Host, cfg.Port,
		time.Duration(cfg.DialTimeoutMs)*time.Millisecond,
		time.Duration(cfg.MoveMarginMs)*time.Millisecond,
		time.Duration(cfg.FirstMoveWaitMs)*time.Millisecond,
		logger)
}

func (cfg *Config) PoseDriver(mover Mover, logger logging.Logger) *PoseDriver {
	return NewPoseDriver(
		mover,
		r3.Vector{X: cfg.TCPOrientation[0], Y: cfg.TCPOrientation[1], Z: cfg.TCPOrientation[2]},
		MotionProfile{Velocity: cfg.Velocity, Acceleration: cfg.Acceleration},
		*cfg.BoardHeight, cfg.HoverOffset,
		cfg.Heights(),
		logger,
	)
}

// SequencerConfig collects everything a Sequencer needs from a validated config.
func (cfg *Config) SequencerConfig(mover Mover, actuator Actuator, logger logging.Logger, closers ...func() error) (SequencerConfig, error) {
	geometry, err := cfg.Geometry(logger)
	if err != nil {
		return SequencerConfig{}, err
	}
	return SequencerConfig{
		Frame:    cfg.Frame(),
		Geometry: geometry,
		Driver:   cfg.PoseDriver(mover, logger),
		Actuator: actuator,
		Rest: Station{
			XY:     r2.Point{X: cfg.RestPosition[0], Y: cfg.RestPosition[1]},
			Height: *cfg.RestHeight,
		},
		Dispense: Station{
			XY:     r2.Point{X: cfg.DispensePosition[0], Y: cfg.DispensePosition[1]},
			Height: *cfg.DispenseHeight,
		},
		Closers: closers,
	}, nil
}

// NewSequencer wires a sequencer from a validated config.
func (cfg *Config) NewSequencer(mover Mover, actuator Actuator, logger logging.Logger, closers ...func() error) (*Sequencer, error) {
	seqCfg, err := cfg.SequencerConfig(mover, actuator, logger, closers...)
	if err != nil {
		return nil, err
	}
	return NewSequencer(seqCfg, logger)
}
