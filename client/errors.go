package client

import (
	"errors"
	"fmt"
)

// Every failure a call or stream can surface is one of these, so call sites
// can branch with errors.Is / errors.As instead of string matching.
var (
	// ErrUnreachable: the target could not be contacted even after a
	// launch attempt.
	ErrUnreachable = errors.New("peerlink: target unreachable")

	// ErrTimeout: a unary response (or stream header) did not arrive
	// within the allotted window.
	ErrTimeout = errors.New("peerlink: request timeout")

	// ErrConnectionLost: the channel failed or closed while a response
	// was pending. Raw transport faults are folded into this and never
	// leak through the call-site contract.
	ErrConnectionLost = errors.New("peerlink: connection lost")

	// ErrProtocol: a response had a recognized-but-unexpected or unknown
	// shape.
	ErrProtocol = errors.New("peerlink: protocol violation")

	// ErrSessionClosed: Next was called on a terminated session.
	ErrSessionClosed = errors.New("peerlink: session closed")
)

// RemoteError carries a remote handler failure, message verbatim.
type RemoteError struct {
	Target string
	Method string
	Msg    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error in %s.%s: %s", e.Target, e.Method, e.Msg)
}
