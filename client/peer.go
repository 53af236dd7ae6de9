package client

import "time"

// Peer is a thin handle bound to one target application. It forwards
// verbatim to the core — no state, no extra failure handling — and exists so
// call sites read target.Call("method", ...) instead of threading the target
// name everywhere.
type Peer struct {
	core   *Core
	target string
}

// Peer returns a handle bound to the named target.
func (c *Core) Peer(target string) *Peer {
	return &Peer{core: c, target: target}
}

// Target returns the bound application name.
func (p *Peer) Target() string {
	return p.target
}

// Call invokes a unary method with positional arguments only.
func (p *Peer) Call(method string, args ...any) (any, error) {
	return p.core.Call(p.target, method, args, nil)
}

// CallKw invokes a unary method with positional and keyword arguments.
func (p *Peer) CallKw(method string, args []any, kwargs map[string]any) (any, error) {
	return p.core.Call(p.target, method, args, kwargs)
}

// CallTimeout invokes a unary method with an explicit timeout.
func (p *Peer) CallTimeout(method string, timeout time.Duration, args ...any) (any, error) {
	return p.core.CallTimeout(p.target, method, args, nil, timeout)
}

// Stream opens a streaming session with positional arguments only.
func (p *Peer) Stream(method string, args ...any) (*Session, error) {
	return p.core.Stream(p.target, method, args, nil)
}

// StreamKw opens a streaming session with positional and keyword arguments.
func (p *Peer) StreamKw(method string, args []any, kwargs map[string]any) (*Session, error) {
	return p.core.Stream(p.target, method, args, kwargs)
}
