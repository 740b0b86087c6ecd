package middleware

import (
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"advisorgate/internal/auth"
	httpctx "advisorgate/internal/http/ctx"
)

// TokenVerifier checks a bearer token.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// BearerAuth verifies the request's JWT and stores its claims on the context.
func BearerAuth(v TokenVerifier, log zerolog.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			header := ctx.Request.Header.Peek("Authorization")
			if len(header) == 0 {
				httpctx.Error(ctx, fasthttp.StatusUnauthorized, "UNAUTHORIZED", "missing Authorization header")
				return
			}

			token, ok := auth.ExtractBearerToken(string(header))
			if !ok {
				httpctx.Error(ctx, fasthttp.StatusUnauthorized, "UNAUTHORIZED", "invalid Authorization header")
				return
			}

			claims, err := v.Verify(token)
			if err != nil {
				log.Debug().Err(err).Bytes("path", ctx.Path()).Msg("token rejected")
				httpctx.Error(ctx, fasthttp.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
				return
			}

			httpctx.SetClaims(ctx, claims)
			next(ctx)
		}
	}
}
