package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"peerlink/message"
)

// RateLimitMiddleware rejects requests beyond r per second (token bucket with
// the given burst). Applies to stream admissions too: a rejected stream never
// sends its stream_start header, which the caller's fail-soft path turns into
// an empty session.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			if !limiter.Allow() {
				return message.Error("rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
