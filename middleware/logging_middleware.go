package middleware

import (
	"context"
	"time"

	"github.com/op/go-logging"

	"peerlink/message"
)

var log = logging.MustGetLogger("peerlink")

func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			start := time.Now()
			resp := next(ctx, req)
			log.Infof("method=%s duration=%s", req.Method, time.Since(start))
			if resp.Status == message.StatusError {
				log.Warningf("method=%s error=%s", req.Method, resp.Msg)
			}
			return resp
		}
	}
}
