package chess_arm

import (
	"context"
	"fmt"

	commonpb "go.viam.com/api/common/v1"
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/generic"
	"go.viam.com/rdk/spatialmath"
)

var PickPlaceModel = resource.NewModel("devrel", "chessboard", "pick-place")

func init() {
	resource.RegisterService(generic.API, PickPlaceModel,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newPickPlaceService,
		},
	)
}

type pickPlaceService struct {
	resource.Named
	resource.AlwaysRebuild

	logger logging.Logger
	cfg    *Config
	seq    *Sequencer
}

func newPickPlaceService(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}
	if _, _, err := conf.Validate(""); err != nil {
		return nil, err
	}

	var mover Mover
	switch conf.Motion {
	case MotionArm:
		a, err := arm.FromDependencies(deps, conf.Arm)
		if err != nil {
			return nil, fmt.Errorf("failed to get arm %q: %w", conf.Arm, err)
		}
		mover = NewArmMover(a, logger)
	default:
		mover = conf.ScriptMover(logger)
	}

	return NewPickPlaceService(ctx, rawConf.ResourceName(), conf, mover, globalActuatorRegistry, logger)
}

// NewPickPlaceService builds the service around mover, taking the magnet
// from registry. The session is started before it returns.
func NewPickPlaceService(
	ctx context.Context,
	name resource.Name,
	conf *Config,
	mover Mover,
	registry *ActuatorRegistry,
	logger logging.Logger,
) (resource.Resource, error) {
	actCfg := conf.ActuatorConfig()
	actuator, err := registry.GetActuator(actCfg, logger)
	if err != nil {
		return nil, err
	}
	release := func() error {
		registry.ReleaseActuator(actCfg)
		return nil
	}

	seqCfg, err := conf.SequencerConfig(mover, actuator, logger, release)
	if err != nil {
		release()
		return nil, err
	}
	// another service on this controller may be holding a piece
	seqCfg.SharedActuator = registry.RefCount(actCfg) > 1
	seq, err := NewSequencer(seqCfg, logger)
	if err != nil {
		release()
		return nil, err
	}
	if err := seq.Begin(ctx); err != nil {
		seq.Close(ctx)
		return nil, err
	}

	return &pickPlaceService{
		Named:  name.AsNamed(),
		logger: logger,
		cfg:    conf,
		seq:    seq,
	}, nil
}

func (s *pickPlaceService) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	command, _ := cmd["command"].(string)
	switch command {
	case "move_to":
		square, err := stringArg(cmd, "square")
		if err != nil {
			return nil, err
		}
		return s.statusAfter(s.seq.MoveTo(ctx, square))

	case "connect", "pick", "place":
		kind, err := pieceArg(cmd, "piece")
		if err != nil {
			return nil, err
		}
		switch command {
		case "pick":
			err = s.seq.Pick(ctx, kind)
		case "place":
			err = s.seq.Place(ctx, kind)
		default:
			err = s.seq.Connect(ctx, kind)
		}
		return s.statusAfter(err)

	case "dispense":
		return s.statusAfter(s.seq.Dispense(ctx))

	case "rest":
		return s.statusAfter(s.seq.Rest(ctx))

	case "relocate", "capture":
		from, err := stringArg(cmd, "from")
		if err != nil {
			return nil, err
		}
		to, err := stringArg(cmd, "to")
		if err != nil {
			return nil, err
		}
		kind, err := pieceArg(cmd, "piece")
		if err != nil {
			return nil, err
		}
		if command == "relocate" {
			return s.statusAfter(s.seq.Relocate(ctx, from, to, kind))
		}
		captured, err := pieceArg(cmd, "captured")
		if err != nil {
			return nil, err
		}
		return s.statusAfter(s.seq.Capture(ctx, from, to, kind, captured))

	case "execute":
		moveStr, err := stringArg(cmd, "move")
		if err != nil {
			return nil, err
		}
		kind, err := pieceArg(cmd, "piece")
		if err != nil {
			return nil, err
		}
		var captured PieceKind
		if _, ok := cmd["captured"]; ok {
			if captured, err = pieceArg(cmd, "captured"); err != nil {
				return nil, err
			}
		}
		move, err := ParseMove(moveStr, kind, captured)
		if err != nil {
			return nil, err
		}
		return s.statusAfter(s.seq.Execute(ctx, move))

	case "translate":
		square, err := stringArg(cmd, "square")
		if err != nil {
			return nil, err
		}
		xy, err := s.seq.Translate(square)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"square": square, "x": xy.X, "y": xy.Y}, nil

	case "status":
		return s.status(), nil

	case "recover":
		releaseMagnet, _ := cmd["release_magnet"].(bool)
		return s.statusAfter(s.seq.Recover(ctx, releaseMagnet))

	default:
		return nil, fmt.Errorf("unknown command: %v", cmd["command"])
	}
}

func (s *pickPlaceService) Close(ctx context.Context) error {
	return s.seq.Close(ctx)
}

// statusAfter reports the session state alongside an operation's result so
// callers can see where the arm stopped on failure.
func (s *pickPlaceService) statusAfter(err error) (map[string]interface{}, error) {
	if err != nil {
		return nil, err
	}
	resp := s.status()
	resp["success"] = true
	return resp, nil
}

func (s *pickPlaceService) status() map[string]interface{} {
	st := s.seq.Status()
	resp := map[string]interface{}{
		"state":          st.State.String(),
		"holding":        st.Holding,
		"magnet_engaged": st.MagnetEngaged,
		"faulted":        st.Faulted,
		"square":         st.Square,
		"level":          st.Level.String(),
	}
	if st.HasPose {
		resp["pose"] = poseToMap(spatialmath.PoseToProtobuf(toSpatialPose(st.Pose)))
	}
	return resp
}

func poseToMap(p *commonpb.Pose) map[string]interface{} {
	return map[string]interface{}{
		"x":     p.GetX(),
		"y":     p.GetY(),
		"z":     p.GetZ(),
		"o_x":   p.GetOX(),
		"o_y":   p.GetOY(),
		"o_z":   p.GetOZ(),
		"theta": p.GetTheta(),
	}
}

func stringArg(cmd map[string]interface{}, key string) (string, error) {
	v, ok := cmd[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%s must be a non-empty string", key)
	}
	return v, nil
}

func pieceArg(cmd map[string]interface{}, key string) (PieceKind, error) {
	v, err := stringArg(cmd, key)
	if err != nil {
		return "", err
	}
	return ParsePieceKind(v)
}
