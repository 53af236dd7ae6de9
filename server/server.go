// Package server implements the inbound side of a peerlink application: the
// method registry and the socket server that executes remote invocations.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (one goroutine per connection, one request each)
//	  → RecvRequest → Middleware Chain → dispatch (unary result or stream header)
//	  → unary: write response, close
//	  → stream: write stream_start, pump chunks until End/Error, close
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/op/go-logging"
	uuid "github.com/satori/go.uuid"

	"peerlink/codec"
	"peerlink/message"
	"peerlink/middleware"
	"peerlink/transport"
)

var log = logging.MustGetLogger("peerlink")

// Server executes remote invocations against the local method registry.
type Server struct {
	app         string
	methods     *MethodRegistry
	codecType   codec.CodecType
	listener    net.Listener
	wg          sync.WaitGroup          // in-flight requests, for graceful shutdown
	shutdown    atomic.Bool             // suppresses the Accept error raised by Close
	middlewares []middleware.Middleware // applied in order
	handler     middleware.HandlerFunc  // chain(dispatch), built once at serve time
}

// NewServer creates a server with an empty method registry.
func NewServer(app string) *Server {
	return &Server{
		app:       app,
		methods:   NewMethodRegistry(),
		codecType: codec.CodecTypeJSON,
	}
}

// Methods exposes the registry so the embedding application can bind
// handlers before Serve.
func (svr *Server) Methods() *MethodRegistry {
	return svr.methods
}

// SetCodec selects the codec used for outgoing frames (default JSON).
func (svr *Server) SetCodec(codecType codec.CodecType) {
	svr.codecType = codecType
}

// Use registers a middleware. Middlewares are applied in the order added and
// wrap the production of the first response (unary reply or stream header).
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// Serve listens on the application's socket and blocks in the accept loop.
// The middleware chain is built once here, not per request.
func (svr *Server) Serve() error {
	listener, err := transport.Listen(svr.app)
	if err != nil {
		return err
	}
	svr.listener = listener
	svr.handler = middleware.Chain(svr.middlewares...)(svr.dispatch)

	log.Infof("%s serving on %s", svr.app, transport.SocketPath(svr.app))

	for {
		conn, err := listener.Accept()
		if err != nil {
			// Shutdown closes the listener, which surfaces here as an
			// Accept error; the flag tells intentional close from real
			// failure.
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		go svr.handleConn(conn)
	}
}

// handleConn serves exactly one request: the channel contract is one
// request/response exchange or one stream session per connection, never
// reuse.
func (svr *Server) handleConn(conn net.Conn) {
	svr.wg.Add(1)
	defer svr.wg.Done()

	ch := transport.NewChannel(conn, svr.codecType)
	defer ch.Close()

	req, err := ch.RecvRequest()
	if err != nil {
		// Singleton probes connect and close without sending anything;
		// not worth more than a debug line.
		log.Debugf("%s: dropped connection before request: %v", svr.app, err)
		return
	}

	resp := svr.handler(context.Background(), req)
	if err := ch.Send(resp); err != nil {
		log.Warningf("%s: failed to write response for %s: %v", svr.app, req.Method, err)
		return
	}

	if resp.Status == message.StatusStreamStart {
		svr.pumpStream(ch, req, resp.TaskID)
	}
}

// dispatch is the business handler wrapped by the middleware chain. For a
// streaming method it only produces the session header; the chunk pump runs
// afterwards, outside the chain.
func (svr *Server) dispatch(ctx context.Context, req *message.Request) *message.Response {
	method, ok := svr.methods.Lookup(req.Method)
	if !ok {
		return message.Error(fmt.Sprintf("unknown method: %s", req.Method))
	}

	if method.Stream != nil {
		return message.StreamStart(uuid.NewV4().String())
	}

	data, err := method.Unary(req.Args, req.Kwargs)
	if err != nil {
		return message.Error(err.Error())
	}
	return message.Ok(data)
}

// pumpStream runs the streaming handler and relays its values as chunks.
// A consumer that closes its end early makes emit fail; that is cooperative
// cancellation, not an error, so the pump just stops.
func (svr *Server) pumpStream(ch *transport.Channel, req *message.Request, taskID string) {
	emitFailed := false
	emit := func(value any) error {
		if err := ch.SendChunk(message.Chunk(value)); err != nil {
			emitFailed = true
			return err
		}
		return nil
	}

	err := svr.lookupStream(req.Method)(req.Args, req.Kwargs, emit)
	if emitFailed {
		log.Debugf("%s: stream %s consumer went away", svr.app, taskID)
		return
	}
	if err != nil {
		if sendErr := ch.SendChunk(message.Error(err.Error())); sendErr != nil {
			log.Debugf("%s: stream %s error chunk not delivered: %v", svr.app, taskID, sendErr)
		}
		return
	}
	if err := ch.SendChunk(message.End()); err != nil {
		log.Debugf("%s: stream %s end chunk not delivered: %v", svr.app, taskID, err)
	}
}

// lookupStream re-resolves the handler after the header was sent. A handler
// re-registered between header and pump is a rare administrative action; the
// fresh lookup keeps the two consistent enough, and a now-missing handler
// degrades to an immediate empty stream.
func (svr *Server) lookupStream(name string) StreamHandler {
	method, ok := svr.methods.Lookup(name)
	if !ok || method.Stream == nil {
		return func(args []any, kwargs map[string]any, emit func(any) error) error {
			return nil
		}
	}
	return method.Stream
}

// Shutdown stops accepting connections and waits up to timeout for in-flight
// requests to finish. The socket file is removed so the name can be reused.
func (svr *Server) Shutdown(timeout time.Duration) error {
	svr.shutdown.Store(true)
	if svr.listener != nil {
		svr.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for ongoing requests to finish")
	}
}
