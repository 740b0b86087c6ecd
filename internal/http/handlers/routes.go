package handlers

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"advisorgate/internal/advisor"
	"advisorgate/internal/billing"
	"advisorgate/internal/config"
	appmw "advisorgate/internal/http/middleware"
	"advisorgate/internal/ledger"
	"advisorgate/internal/metrics"
	"advisorgate/internal/provider"
)

// Services are the dependencies the HTTP surface is built from.
type Services struct {
	Config   *config.Config
	Ledger   *ledger.Ledger
	Provider provider.Client
	Verifier appmw.TokenVerifier
	Billing  *billing.Sync
	Metrics  *metrics.Metrics
	Log      zerolog.Logger
}

// Routes builds the router and the global middleware chain around it.
func Routes(s Services) fasthttp.RequestHandler {
	r := router.New()
	r.SaveMatchedRoutePath = true

	authed := appmw.BearerAuth(s.Verifier, s.Log)
	admin := appmw.AdminAuth(s.Config)

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})

	deps := MeteredDeps{
		Meter:           s.Ledger,
		Provider:        s.Provider,
		Validator:       advisor.NewValidator(),
		Metrics:         s.Metrics,
		Log:             s.Log,
		UpstreamTimeout: s.Config.Provider.Timeout,
	}
	for _, f := range advisor.Features() {
		r.POST(f.Path, authed(Metered(f, deps)))
	}

	r.GET("/v1/usage", authed(GetUsage(s.Ledger, s.Log)))
	r.POST("/v1/usage/resync", authed(ResyncUsage(s.Ledger, s.Log)))
	r.DELETE("/v1/account", authed(DeleteAccount(s.Ledger, s.Log)))

	r.POST("/v1/billing/sync", authed(BillingSync(s.Billing, s.Log)))
	r.POST("/v1/stripe/webhook", StripeWebhook(s.Billing, s.Log))

	r.GET("/admin/ledger/{userID}", admin(AdminLedger(s.Ledger, s.Log)))
	r.POST("/admin/ledger/{userID}/resync", admin(AdminResync(s.Ledger, s.Log)))
	r.GET("/metrics", admin(PrometheusMetrics(s.Metrics)))

	// Global middleware chain: request logger, then metrics, then CORS, then router.
	h := appmw.CORS(s.Config.CORSAllowedOrigins)(r.Handler)
	h = appmw.RequestMetrics(s.Metrics)(h)
	return RequestLogger(s.Log)(h)
}
