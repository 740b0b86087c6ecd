package middleware

import (
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"advisorgate/internal/metrics"
)

// RequestMetrics records every request's route, status and duration.
// Scrapes and health checks are not recorded.
func RequestMetrics(m *metrics.Metrics) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			next(ctx)

			route, _ := ctx.UserValue(router.MatchedRoutePathParam).(string)
			if route == "" {
				route = "unmatched"
			}
			if route == "/metrics" || route == "/healthz" {
				return
			}
			m.HTTPRequest(string(ctx.Method()), route, strconv.Itoa(ctx.Response.StatusCode()), time.Since(start))
		}
	}
}
