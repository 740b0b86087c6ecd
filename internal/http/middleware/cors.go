package middleware

import (
	"strings"

	"github.com/samber/lo"
	"github.com/valyala/fasthttp"
)

const (
	corsAllowMethods = "GET, POST, DELETE, OPTIONS"
	corsAllowHeaders = "Authorization, Content-Type, X-Admin-Token"
)

// CORS answers preflight requests and decorates every response with the
// allow headers for permitted origins. "*" permits any origin.
func CORS(allowed []string) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	wildcard := lo.Contains(allowed, "*")
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			origin := string(ctx.Request.Header.Peek("Origin"))
			if origin != "" && (wildcard || lo.ContainsBy(allowed, func(o string) bool { return strings.EqualFold(o, origin) })) {
				h := &ctx.Response.Header
				if wildcard {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Max-Age", "86400")
			}

			if ctx.IsOptions() {
				ctx.SetStatusCode(fasthttp.StatusNoContent)
				return
			}
			next(ctx)
		}
	}
}
