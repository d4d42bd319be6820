package chess_arm

import (
	"context"
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

const (
	// DefaultScriptPort is the controller's secondary client interface,
	// which executes any URScript program written to it.
	DefaultScriptPort    = 30002
	defaultDialTimeout   = 2 * time.Second
	defaultFirstMoveWait = 3 * time.Second
)

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// scriptClient writes one URScript program per short-lived connection.
// Nothing is read back; the controller does not acknowledge programs.
type scriptClient struct {
	addr    string
	timeout time.Duration
	dial    dialFunc
}

func newScriptClient(host string, port int, timeout time.Duration) *scriptClient {
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	d := &net.Dialer{Timeout: timeout}
	return &scriptClient{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		timeout: timeout,
		dial:    d.DialContext,
	}
}

// Send delivers a program. A nil error means every byte left this process.
func (c *scriptClient) Send(ctx context.Context, script string) error {
	conn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", c.addr)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return errors.Wrap(err, "failed to set write deadline")
	}
	if _, err := conn.Write([]byte(script)); err != nil {
		return errors.Wrapf(err, "failed to write script to %s", c.addr)
	}
	return nil
}

func toolVoltageScript(volts int) string {
	return fmt.Sprintf("sec myProg():\n\tset_tool_voltage(%d)\nend\nmyProg()\n", volts)
}

func moveLinearScript(p Pose, velocity, acceleration float64) string {
	return fmt.Sprintf("def chessMove():\n\tmovel(p[%.6f,%.6f,%.6f,%.6f,%.6f,%.6f], a=%.4f, v=%.4f)\nend\nchessMove()\n",
		p.Point.X, p.Point.Y, p.Point.Z,
		p.Orientation.X, p.Orientation.Y, p.Orientation.Z,
		acceleration, velocity)
}

// ScriptMover drives the arm by sending movel programs over the script port.
// A new program pre-empts the running one, so MoveLinear waits out the
// estimated travel time before returning.
type ScriptMover struct {
	client *scriptClient
	logger logging.Logger
	margin time.Duration
	first  time.Duration

	last    Pose
	hasLast bool
}

// NewScriptMover returns a mover for the controller at host:port. margin is
// added to every travel estimate. firstMove replaces the estimate for the
// first move, whose start pose is unknown; zero means three seconds.
func NewScriptMover(host string, port int, dialTimeout, margin, firstMove time.Duration, logger logging.Logger) *ScriptMover {
	if firstMove <= 0 {
		firstMove = defaultFirstMoveWait
	}
	return &ScriptMover{
		client: newScriptClient(host, port, dialTimeout),
		logger: logger,
		margin: margin,
		first:  firstMove,
	}
}

func (m *ScriptMover) MoveLinear(ctx context.Context, pose Pose, velocity, acceleration float64) error {
	if err := m.client.Send(ctx, moveLinearScript(pose, velocity, acceleration)); err != nil {
		return err
	}

	wait := m.margin
	if m.hasLast {
		wait += travelTime(m.last.Point.Distance(pose.Point), velocity, acceleration)
	} else {
		wait += m.first
	}
	m.last, m.hasLast = pose, true

	m.logger.Debugf("movel to %v, waiting %v", pose, wait)
	if !utils.SelectContextOrWait(ctx, wait) {
		return ctx.Err()
	}
	return nil
}

// CurrentPose reports the last commanded pose; the script port gives no telemetry.
func (m *ScriptMover) CurrentPose(ctx context.Context) (Pose, error) {
	if !m.hasLast {
		return Pose{}, errors.New("no pose commanded yet")
	}
	return m.last, nil
}

// travelTime estimates a trapezoidal (or triangular, for short moves)
// velocity profile starting and ending at rest.
func travelTime(dist, velocity, acceleration float64) time.Duration {
	if dist <= 0 || velocity <= 0 || acceleration <= 0 {
		return 0
	}
	var seconds float64
	if dist >= velocity*velocity/acceleration {
		seconds = dist/velocity + velocity/acceleration
	} else {
		seconds = 2 * math.Sqrt(dist/acceleration)
	}
	return time.Duration(seconds * float64(time.Second))
}
