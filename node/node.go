// Package node bootstraps one peerlink application: it enforces single
// instance per name, registers the application in the directory, serves
// exposed methods inbound, and dispatches outbound calls.
//
// Typical wiring:
//
//	n, err := node.New("imgcache", node.Options{Registry: reg})
//	n.Expose("lookup", lookupHandler)
//	n.ExposeStream("scan", scanHandler)
//	n.Start()
//	defer n.Close()
//
//	resp, err := n.Peer("thumbnailer").Call("render", path)
//
// Inbound serving runs on its own goroutines, so the caller's goroutines are
// free to issue outbound calls — including back to a process that is
// currently calling us.
package node

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/op/go-logging"

	"peerlink/client"
	"peerlink/middleware"
	"peerlink/registry"
	"peerlink/server"
	"peerlink/transport"
)

var log = logging.MustGetLogger("peerlink")

// ErrAlreadyRunning means another process already serves this application
// name. The embedding application decides whether to exit or pick another
// name; the library won't kill the process on its own.
var ErrAlreadyRunning = errors.New("peerlink: application already running")

// Options configures a Node. Zero values select the documented defaults.
type Options struct {
	// Registry is the application directory. Default: a process-local
	// StaticRegistry (fine for tests; real deployments share one).
	Registry registry.Registry

	// Launcher starts offline targets on demand. Default: a
	// RegistryLauncher over Registry.
	Launcher registry.Launcher

	// Client tunes the outbound dispatch core.
	Client client.Config

	// LaunchCmd is what other processes run to start this application.
	// Default: the current executable with its arguments.
	LaunchCmd []string

	// TTL is the directory registration lease in seconds. Default 10.
	TTL int64
}

// Node is one application endpoint: a served method table plus an outbound
// dispatch core under a single registered name.
type Node struct {
	name   string
	reg    registry.Registry
	server *server.Server
	core   *client.Core
}

// New probes for an existing instance, registers the application in the
// directory, and prepares (but does not start) the inbound server.
func New(name string, opts Options) (*Node, error) {
	if name == "" {
		return nil, errors.New("peerlink: application name must be non-empty")
	}
	if opts.Registry == nil {
		opts.Registry = registry.NewStaticRegistry()
	}
	if opts.Launcher == nil {
		opts.Launcher = registry.NewLauncher(opts.Registry)
	}
	if opts.TTL == 0 {
		opts.TTL = 10
	}

	// Single-instance probe: if the name's socket answers, somebody else
	// owns it. The probe connection is dropped without a request; servers
	// tolerate that quietly.
	if ch, err := transport.Connect(name, opts.Client.Codec, 250*time.Millisecond); err == nil {
		ch.Close()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}

	launchCmd := opts.LaunchCmd
	if launchCmd == nil {
		if exe, err := os.Executable(); err == nil {
			launchCmd = append([]string{exe}, os.Args[1:]...)
		}
	}

	instance := registry.AppInstance{
		Addr:      transport.SocketPath(name),
		LaunchCmd: launchCmd,
	}
	if err := opts.Registry.Register(name, instance, opts.TTL); err != nil {
		return nil, fmt.Errorf("register %s: %w", name, err)
	}

	return &Node{
		name:   name,
		reg:    opts.Registry,
		server: server.NewServer(name),
		core:   client.New(opts.Launcher, opts.Client),
	}, nil
}

// Name returns the registered application name.
func (n *Node) Name() string {
	return n.name
}

// Expose binds a unary handler. Call before Start in the common path;
// late re-registration is permitted but rare.
func (n *Node) Expose(method string, h server.Handler) {
	n.server.Methods().Register(method, h)
}

// ExposeStream binds a streaming handler.
func (n *Node) ExposeStream(method string, h server.StreamHandler) {
	n.server.Methods().RegisterStream(method, h)
}

// Use adds a server middleware. Must be called before Start.
func (n *Node) Use(mw middleware.Middleware) {
	n.server.Use(mw)
}

// Start begins serving inbound connections in the background and returns
// once the socket is listening, so an immediate Peer call from the launched
// process's counterpart can already connect.
func (n *Node) Start() error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.server.Serve()
	}()

	socketPath := transport.SocketPath(n.name)
	for i := 0; i < 100; i++ {
		select {
		case err := <-errCh:
			return fmt.Errorf("serve %s: %w", n.name, err)
		default:
		}
		if _, err := os.Stat(socketPath); err == nil {
			log.Infof("%s ready", n.name)
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("serve %s: socket did not appear", n.name)
}

// Peer returns a call handle bound to the named target.
func (n *Node) Peer(target string) *client.Peer {
	return n.core.Peer(target)
}

// Call invokes target.method once and returns its result.
func (n *Node) Call(target, method string, args []any, kwargs map[string]any) (any, error) {
	return n.core.Call(target, method, args, kwargs)
}

// Stream opens a streaming session against target.method.
func (n *Node) Stream(target, method string, args []any, kwargs map[string]any) (*client.Session, error) {
	return n.core.Stream(target, method, args, kwargs)
}

// Close deregisters the application and shuts the server down, letting
// in-flight requests finish.
func (n *Node) Close() error {
	if err := n.reg.Deregister(n.name); err != nil {
		log.Warningf("deregister %s: %v", n.name, err)
	}
	return n.server.Shutdown(5 * time.Second)
}
