package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/aidlink/triage/request"
)

// Logging returns middleware that logs request start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, req *request.Request, next Handler) error {
		logger.Info("request started",
			slog.String("request_type", req.Type),
			slog.String("request_id", req.ID.String()),
			slog.String("priority", req.Priority.String()),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("request failed",
				slog.String("request_type", req.Type),
				slog.String("request_id", req.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("request completed",
				slog.String("request_type", req.Type),
				slog.String("request_id", req.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
