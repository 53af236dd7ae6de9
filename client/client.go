// Package client implements the outbound dispatch core: it turns a
// (target, method, args) tuple into a delivered request, classifies the
// response, and exposes unary calls and streaming sessions.
//
// Every invocation dials a fresh channel; if the target is not reachable the
// core asks the launcher to start it, waits a grace period, and retries the
// connect exactly once. Channels are closed on every exit path — success,
// error, or timeout.
package client

import (
	"fmt"
	"time"

	"github.com/op/go-logging"

	"peerlink/codec"
	"peerlink/message"
	"peerlink/registry"
	"peerlink/transport"
)

var log = logging.MustGetLogger("peerlink")

// Config holds the per-core tunables. Zero values mean "use the default"
// listed on each field; NoTimeout selects unbounded blocking where a field
// supports it.
type Config struct {
	// CallTimeout bounds the wait for a unary response. Default 5s.
	CallTimeout time.Duration

	// LaunchGrace is the fixed delay after a successful on-demand launch
	// before the connect is retried, long enough for a typical process
	// to come up and listen. Default 1.5s.
	LaunchGrace time.Duration

	// StreamHeaderTimeout bounds the wait for a stream session header.
	// Default 30s; NoTimeout restores the historical unbounded wait.
	StreamHeaderTimeout time.Duration

	// DialTimeout bounds each socket connect attempt. Default 250ms.
	DialTimeout time.Duration

	// Codec selects the wire serialization for outgoing frames.
	Codec codec.CodecType
}

// NoTimeout disables a timeout field that supports unbounded blocking.
const NoTimeout time.Duration = -1

const (
	defaultCallTimeout         = 5 * time.Second
	defaultLaunchGrace         = 1500 * time.Millisecond
	defaultStreamHeaderTimeout = 30 * time.Second
	defaultDialTimeout         = 250 * time.Millisecond
)

func (cfg *Config) withDefaults() Config {
	out := *cfg
	if out.CallTimeout == 0 {
		out.CallTimeout = defaultCallTimeout
	}
	if out.LaunchGrace == 0 {
		out.LaunchGrace = defaultLaunchGrace
	}
	if out.StreamHeaderTimeout == 0 {
		out.StreamHeaderTimeout = defaultStreamHeaderTimeout
	}
	if out.DialTimeout == 0 {
		out.DialTimeout = defaultDialTimeout
	}
	return out
}

// Core is the dispatch core. It is safe for concurrent use: each invocation
// owns its channel exclusively and shares nothing but the config and the
// launcher.
type Core struct {
	cfg      Config
	launcher registry.Launcher
}

// New creates a dispatch core. launcher may be nil, in which case an
// unreachable target fails immediately with no launch attempt.
func New(launcher registry.Launcher, cfg Config) *Core {
	return &Core{
		cfg:      cfg.withDefaults(),
		launcher: launcher,
	}
}

// Call invokes a remote method and waits for its single result, using the
// configured default timeout.
func (c *Core) Call(target, method string, args []any, kwargs map[string]any) (any, error) {
	return c.CallTimeout(target, method, args, kwargs, c.cfg.CallTimeout)
}

// CallTimeout is Call with an explicit per-call timeout.
//
// Outcomes: the remote handler's result; *RemoteError if the handler failed;
// ErrUnreachable, ErrTimeout, ErrConnectionLost, or ErrProtocol otherwise.
func (c *Core) CallTimeout(target, method string, args []any, kwargs map[string]any, timeout time.Duration) (any, error) {
	req := &message.Request{Method: method, Args: args, Kwargs: kwargs}

	ch, err := c.connectOrLaunch(target, req)
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	readable, err := ch.Poll(timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrConnectionLost, target, method, err)
	}
	if !readable {
		return nil, fmt.Errorf("%w: %s.%s after %s", ErrTimeout, target, method, timeout)
	}

	resp, err := ch.RecvResponse()
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrConnectionLost, target, method, err)
	}

	switch resp.Status {
	case message.StatusOK:
		return resp.Data, nil
	case message.StatusError:
		return nil, &RemoteError{Target: target, Method: method, Msg: resp.Msg}
	default:
		return nil, fmt.Errorf("%w: unexpected status %q from %s.%s", ErrProtocol, resp.Status, target, method)
	}
}

// Stream invokes a streaming method and returns a live session once the
// target acknowledges it.
//
// A header other than stream_start is not an error: the target declined the
// session, and the caller gets an immediately-empty session instead — the
// deliberate fail-soft counterpart to the unary path's fail-loud contract.
func (c *Core) Stream(target, method string, args []any, kwargs map[string]any) (*Session, error) {
	req := &message.Request{Method: method, Args: args, Kwargs: kwargs}

	ch, err := c.connectOrLaunch(target, req)
	if err != nil {
		return nil, err
	}

	if c.cfg.StreamHeaderTimeout != NoTimeout {
		readable, err := ch.Poll(c.cfg.StreamHeaderTimeout)
		if err != nil {
			ch.Close()
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrConnectionLost, target, method, err)
		}
		if !readable {
			ch.Close()
			return nil, fmt.Errorf("%w: %s.%s stream header after %s", ErrTimeout, target, method, c.cfg.StreamHeaderTimeout)
		}
	}

	header, err := ch.RecvResponse()
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrConnectionLost, target, method, err)
	}

	if header.Status != message.StatusStreamStart {
		log.Debugf("%s.%s declined stream: status=%s", target, method, header.Status)
		ch.Close()
		return newEmptySession(target, method), nil
	}

	return newSession(target, method, header.TaskID, ch), nil
}

// connectOrLaunch is the connect-or-recover sequence shared by Call and
// Stream: connect and send; on failure launch the target, wait the grace
// period, and try exactly once more. Two connect attempts, at most one
// launch — bounded latency instead of a retry storm.
func (c *Core) connectOrLaunch(target string, req *message.Request) (*transport.Channel, error) {
	ch, err := c.connectAndSend(target, req)
	if err == nil {
		return ch, nil
	}

	if c.launcher == nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, target, err)
	}

	log.Infof("%s offline, attempting launch", target)
	if launchErr := c.launcher.Launch(target); launchErr != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, target, launchErr)
	}

	time.Sleep(c.cfg.LaunchGrace)

	ch, err = c.connectAndSend(target, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, target, err)
	}
	return ch, nil
}

// connectAndSend dials the target and delivers the request immediately, so a
// successfully returned channel always has the request on the wire.
func (c *Core) connectAndSend(target string, req *message.Request) (*transport.Channel, error) {
	ch, err := transport.Connect(target, c.cfg.Codec, c.cfg.DialTimeout)
	if err != nil {
		return nil, err
	}
	if err := ch.Send(req); err != nil {
		ch.Close()
		return nil, err
	}
	return ch, nil
}
