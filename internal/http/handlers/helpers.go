package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	httpctx "advisorgate/internal/http/ctx"
)

// RequestLogger tags each request with an id and logs it once served.
func RequestLogger(log zerolog.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			id := string(ctx.Request.Header.Peek("X-Request-ID"))
			if id == "" {
				id = uuid.NewString()
			}
			httpctx.SetRequestID(ctx, id)
			ctx.Response.Header.Set("X-Request-ID", id)

			next(ctx)

			status := ctx.Response.StatusCode()
			ev := log.Info()
			if status >= fasthttp.StatusInternalServerError {
				ev = log.Warn()
			}
			ev.Str("request_id", id).
				Bytes("method", ctx.Method()).
				Bytes("path", ctx.Path()).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Str("ip", ctx.RemoteIP().String()).
				Msg("request")
		}
	}
}

// mustUser returns the authenticated user id, or sends 401 and returns ("", false).
func mustUser(ctx *fasthttp.RequestCtx) (string, bool) {
	userID, ok := httpctx.UserIDFromCtx(ctx)
	if !ok {
		httpctx.Error(ctx, fasthttp.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return "", false
	}
	return userID, true
}

// requestLog returns log annotated with the request id.
func requestLog(ctx *fasthttp.RequestCtx, log zerolog.Logger) *zerolog.Logger {
	if id := httpctx.RequestIDFromCtx(ctx); id != "" {
		l := log.With().Str("request_id", id).Logger()
		return &l
	}
	return &log
}
