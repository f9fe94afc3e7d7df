package middleware

import (
	"context"
	"log/slog"

	"github.com/aidlink/triage/request"
)

// Timeout returns middleware that enforces a per-request execution deadline.
// If the request has a non-zero Timeout, a context.WithTimeout wraps the
// handler call. When the deadline is exceeded the context is cancelled and
// the handler should return context.DeadlineExceeded.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, req *request.Request, next Handler) error {
		if req.Timeout > 0 {
			logger.Debug("request timeout set",
				slog.String("request_id", req.ID.String()),
				slog.Duration("timeout", req.Timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, req.Timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
