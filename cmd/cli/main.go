package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	chessArm "chess_arm"

	"github.com/caarlos0/env/v11"
	"github.com/golang/geo/r2"
	"go.viam.com/rdk/logging"
)

// envOverrides are applied on top of the JSON config file.
type envOverrides struct {
	Host         string  `env:"CHESSARM_HOST"`
	Port         int     `env:"CHESSARM_PORT"`
	GeometryFile string  `env:"CHESSARM_GEOMETRY_FILE"`
	SquareSizeMM float64 `env:"CHESSARM_SQUARE_SIZE_MM"`
	DryRun       bool    `env:"CHESSARM_DRY_RUN"`
}

const usage = `usage: chessarm-cli [-config file] [-dry-run] <command> [args]

commands:
  move <square>                              hover over a square
  relocate <from> <to> <piece>               move a piece
  capture <from> <to> <piece> <captured>     clear the destination, then move
  execute <move> <piece> [captured]          run a coordinate move such as e2e4
  rest                                       park at the rest position
  translate <square>...                      print arm coordinates, no motion
  fit <sq1> <x1> <y1> <sq2> <x2> <y2>        fit the board frame to two measured squares
`

func main() {
	err := realMain()
	if err != nil {
		panic(err)
	}
}

func realMain() error {
	ctx := context.Background()
	logger := logging.NewLogger("chessarm-cli")

	configPath := flag.String("config", "", "path to a JSON config file")
	dryRun := flag.Bool("dry-run", false, "simulate motion and magnet instead of connecting to the controller")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("no command given")
	}

	cfg, sim, err := loadConfig(*configPath, *dryRun)
	if err != nil {
		return err
	}

	switch args[0] {
	case "translate":
		return translate(cfg, args[1:], logger)
	case "fit":
		return fit(cfg, args[1:], logger)
	}

	seq, err := openSession(ctx, cfg, sim, logger)
	if err != nil {
		return err
	}
	defer seq.Close(ctx)

	switch cmd, rest := args[0], args[1:]; cmd {
	case "move":
		if len(rest) != 1 {
			return fmt.Errorf("move needs a square")
		}
		return seq.MoveTo(ctx, rest[0])

	case "relocate":
		if len(rest) != 3 {
			return fmt.Errorf("relocate needs <from> <to> <piece>")
		}
		kind, err := chessArm.ParsePieceKind(rest[2])
		if err != nil {
			return err
		}
		return seq.Relocate(ctx, rest[0], rest[1], kind)

	case "capture":
		if len(rest) != 4 {
			return fmt.Errorf("capture needs <from> <to> <piece> <captured>")
		}
		kind, err := chessArm.ParsePieceKind(rest[2])
		if err != nil {
			return err
		}
		captured, err := chessArm.ParsePieceKind(rest[3])
		if err != nil {
			return err
		}
		return seq.Capture(ctx, rest[0], rest[1], kind, captured)

	case "execute":
		if len(rest) < 2 || len(rest) > 3 {
			return fmt.Errorf("execute needs <move> <piece> [captured]")
		}
		kind, err := chessArm.ParsePieceKind(rest[1])
		if err != nil {
			return err
		}
		var captured chessArm.PieceKind
		if len(rest) == 3 {
			if captured, err = chessArm.ParsePieceKind(rest[2]); err != nil {
				return err
			}
		}
		move, err := chessArm.ParseMove(rest[0], kind, captured)
		if err != nil {
			return err
		}
		return seq.Execute(ctx, move)

	case "rest":
		return seq.Rest(ctx)

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func loadConfig(path string, dryRun bool) (*chessArm.Config, bool, error) {
	cfg := &chessArm.Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, false, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return nil, false, fmt.Errorf("parse env: %w", err)
	}
	if overrides.Host != "" {
		cfg.Host = overrides.Host
	}
	if overrides.Port != 0 {
		cfg.Port = overrides.Port
	}
	if overrides.GeometryFile != "" {
		cfg.GeometryFile = overrides.GeometryFile
	}
	if overrides.SquareSizeMM != 0 {
		cfg.SquareSizeMM = overrides.SquareSizeMM
	}
	sim := dryRun || overrides.DryRun

	// A standalone run has no viam arm to depend on.
	cfg.Motion = chessArm.MotionURScript
	cfg.Arm = ""
	if sim && cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if _, _, err := cfg.Validate(path); err != nil {
		return nil, false, err
	}
	return cfg, sim, nil
}

func openSession(ctx context.Context, cfg *chessArm.Config, sim bool, logger logging.Logger) (*chessArm.Sequencer, error) {
	var (
		mover    chessArm.Mover
		actuator chessArm.Actuator
	)
	if sim {
		logger.Info("Dry run: no commands will reach the controller")
		mover = chessArm.NewSimMover(logger)
		actuator = chessArm.NewSimActuator(logger)
	} else {
		mover = cfg.ScriptMover(logger)
		actuator = chessArm.NewToolVoltageActuator(cfg.ActuatorConfig(), logger)
	}

	return startSession(ctx, cfg, mover, actuator, logger)
}

// startSession builds and begins a sequencer. A session that fails to begin
// is closed before the error is returned.
func startSession(
	ctx context.Context,
	cfg *chessArm.Config,
	mover chessArm.Mover,
	actuator chessArm.Actuator,
	logger logging.Logger,
	closers ...func() error,
) (*chessArm.Sequencer, error) {
	seq, err := cfg.NewSequencer(mover, actuator, logger, closers...)
	if err != nil {
		return nil, err
	}
	if err := seq.Begin(ctx); err != nil {
		if cerr := seq.Close(ctx); cerr != nil {
			logger.Warnf("failed to close session: %v", cerr)
		}
		return nil, err
	}
	return seq, nil
}

func translate(cfg *chessArm.Config, squares []string, logger logging.Logger) error {
	if len(squares) == 0 {
		return fmt.Errorf("translate needs at least one square")
	}
	geometry, err := cfg.Geometry(logger)
	if err != nil {
		return err
	}
	frame := cfg.Frame()
	for _, sq := range squares {
		p, err := geometry.Lookup(sq)
		if err != nil {
			return err
		}
		q := frame.Transform(p)
		fmt.Printf("%s\tboard (%.4f, %.4f)\tarm (%.4f, %.4f)\n", sq, p.X, p.Y, q.X, q.Y)
	}
	return nil
}

func fit(cfg *chessArm.Config, args []string, logger logging.Logger) error {
	if len(args) != 6 {
		return fmt.Errorf("fit needs <sq1> <x1> <y1> <sq2> <x2> <y2>")
	}
	first, err := measurement(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	second, err := measurement(args[3], args[4], args[5])
	if err != nil {
		return err
	}
	geometry, err := cfg.Geometry(logger)
	if err != nil {
		return err
	}

	result, err := chessArm.FitBoardFrame(geometry, *cfg.SwapAxes, first, second)
	if err != nil {
		return err
	}
	logger.Infof("Fitted %v (scale %.4f, residual %.4fm)", result.Frame, result.Scale, result.Residual)
	fmt.Printf("\"board_origin_m\": [%.5f, %.5f],\n\"rotation_angle_deg\": %.4f\n",
		result.Frame.Origin.X, result.Frame.Origin.Y, result.Frame.Angle.Degrees())
	return nil
}

func measurement(square, x, y string) (chessArm.SquareMeasurement, error) {
	px, err := strconv.ParseFloat(x, 64)
	if err != nil {
		return chessArm.SquareMeasurement{}, fmt.Errorf("bad x for %s: %w", square, err)
	}
	py, err := strconv.ParseFloat(y, 64)
	if err != nil {
		return chessArm.SquareMeasurement{}, fmt.Errorf("bad y for %s: %w", square, err)
	}
	return chessArm.SquareMeasurement{Square: square, Arm: r2.Point{X: px, Y: py}}, nil
}
