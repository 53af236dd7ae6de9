package middleware

import (
	"context"
	"fmt"

	"peerlink/message"
)

// RecoveryMiddleware converts a handler panic into an error response.
// Handlers are arbitrary registered functions receiving untyped args; a
// panicking handler must not take the whole serving goroutine down with it.
func RecoveryMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (resp *message.Response) {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("panic in handler %s: %v", req.Method, r)
					resp = message.Error(fmt.Sprintf("handler panic: %v", r))
				}
			}()
			return next(ctx, req)
		}
	}
}
