package middleware

import (
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"advisorgate/internal/auth"
	"advisorgate/internal/config"
	httpctx "advisorgate/internal/http/ctx"
)

// AdminAuth guards operator endpoints with a static token whose bcrypt hash
// is configured in APP_ADMIN_TOKEN_HASH. Without a hash the routes are off.
func AdminAuth(cfg *config.Config) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	hash := []byte(cfg.AdminTokenHash)
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if len(hash) == 0 {
				httpctx.Error(ctx, fasthttp.StatusNotFound, "NOT_FOUND", "not found")
				return
			}

			token := string(ctx.Request.Header.Peek("X-Admin-Token"))
			if token == "" {
				token, _ = auth.ExtractBearerToken(string(ctx.Request.Header.Peek("Authorization")))
			}
			if token == "" || bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil {
				httpctx.Error(ctx, fasthttp.StatusUnauthorized, "UNAUTHORIZED", "invalid admin token")
				return
			}
			next(ctx)
		}
	}
}
