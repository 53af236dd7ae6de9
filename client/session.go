package client

import (
	"fmt"
	"io"
	"sync"

	"peerlink/message"
	"peerlink/transport"
)

type sessionState int

const (
	stateOpen sessionState = iota
	stateEnded
	stateErrored
)

// Session is the handle to one streaming invocation. It lazily pulls chunks
// from its exclusively-owned channel:
//
//	Open ──Next:data──▶ Open
//	Open ──Next:end────▶ Ended   (io.EOF, channel closed)
//	Open ──Next:error──▶ Errored (*RemoteError, channel closed)
//
// Once Ended or Errored the handle is terminal: further Next calls return
// ErrSessionClosed, and the session cannot be restarted.
//
// A Session is not safe for concurrent Next calls; it belongs to the one
// consumer that created it.
type Session struct {
	target string
	method string
	taskID string

	mu    sync.Mutex
	ch    *transport.Channel // nil for an empty (declined) session
	state sessionState
	eof   bool // end-of-sequence already delivered
}

func newSession(target, method, taskID string, ch *transport.Channel) *Session {
	return &Session{target: target, method: method, taskID: taskID, ch: ch}
}

// newEmptySession is the fail-soft result of a declined stream: a session
// whose first Next immediately reports end-of-sequence.
func newEmptySession(target, method string) *Session {
	return &Session{target: target, method: method, eof: true}
}

// TaskID returns the session identifier assigned by the target, or "" for a
// declined session.
func (s *Session) TaskID() string {
	return s.taskID
}

// Next blocks for the next value in the sequence. End of the stream is
// reported once as io.EOF; after that (or after an error) the session is
// terminal and Next returns ErrSessionClosed.
func (s *Session) Next() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.eof {
		s.eof = false
		s.state = stateEnded
		return nil, io.EOF
	}
	if s.state != stateOpen {
		return nil, fmt.Errorf("%w: %s.%s task %s", ErrSessionClosed, s.target, s.method, s.taskID)
	}

	chunk, err := s.ch.RecvChunk()
	if err != nil {
		s.terminate(stateErrored)
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrConnectionLost, s.target, s.method, err)
	}

	switch chunk.Status {
	case message.StatusData:
		return chunk.Value, nil
	case message.StatusEnd:
		s.terminate(stateEnded)
		return nil, io.EOF
	case message.StatusError:
		s.terminate(stateErrored)
		return nil, &RemoteError{Target: s.target, Method: s.method, Msg: chunk.Msg}
	default:
		s.terminate(stateErrored)
		return nil, fmt.Errorf("%w: unexpected chunk status %q", ErrProtocol, chunk.Status)
	}
}

// Collect drains the remaining sequence into a slice. On a stream error the
// values received so far are returned alongside the error.
func (s *Session) Collect() ([]any, error) {
	var values []any
	for {
		v, err := s.Next()
		if err == io.EOF {
			return values, nil
		}
		if err != nil {
			return values, err
		}
		values = append(values, v)
	}
}

// Close abandons the session early. The target sees the channel close and
// stops producing; this is cooperative cancellation, not a protocol error.
// Safe to call at any time, including after the session ended.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateOpen {
		s.state = stateEnded
		s.eof = false
		if s.ch != nil {
			return s.ch.Close()
		}
	}
	return nil
}

// terminate closes the channel and parks the session in a terminal state.
// Called with mu held.
func (s *Session) terminate(state sessionState) {
	s.state = state
	if s.ch != nil {
		s.ch.Close()
	}
}
