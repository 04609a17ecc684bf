package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// Outcome is implemented by response messages that summarize an engine run.
// Its attributes are appended to the call's log line.
type Outcome interface {
	LogAttrs() []any
}

// LoggingInterceptor logs one line per call: who called in which role, how
// long it took, and what the engine reported back. Scheduler runs that end
// with failed memberships are logged at warn even though the call succeeded.
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			attrs := []any{"procedure", req.Spec().Procedure}
			if p := GetPrincipal(ctx); p != nil {
				attrs = append(attrs, "caller", p.Subject, "role", string(p.Role))
			}

			resp, err := next(ctx, req)
			attrs = append(attrs, "duration_ms", time.Since(start).Milliseconds())

			var connectErr *connect.Error
			switch {
			case errors.As(err, &connectErr):
				logger.Warn("RPC error", append(attrs, "code", connectErr.Code(), "error", connectErr.Message())...)
			case err != nil:
				logger.Error("RPC error", append(attrs, "error", err)...)
			default:
				level := slog.LevelInfo
				if resp != nil {
					if o, ok := resp.Any().(Outcome); ok {
						outcome := o.LogAttrs()
						attrs = append(attrs, outcome...)
						if failedCount(outcome) > 0 {
							level = slog.LevelWarn
						}
					}
				}
				logger.Log(ctx, level, "RPC ok", attrs...)
			}
			return resp, err
		}
	}
}

func failedCount(attrs []any) int {
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i] == "failed" {
			n, _ := attrs[i+1].(int)
			return n
		}
	}
	return 0
}
