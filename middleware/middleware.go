// Package middleware wraps inbound request handling on the serving side.
//
// A middleware sees the production of the first response for a connection:
// the unary reply, or the stream_start/rejection header of a streaming call.
// Chunk pumping happens below the chain and is not interceptable.
package middleware

import (
	"context"

	"peerlink/message"
)

type HandlerFunc func(ctx context.Context, req *message.Request) *message.Response

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares into one, applied in the given order:
// Chain(A, B, C)(h) runs A before B before C before h.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
