package handlers

import (
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	httpctx "advisorgate/internal/http/ctx"
	"advisorgate/internal/ledger"
	"advisorgate/internal/metrics"
)

type adminLedgerResponse struct {
	usageResponse
	StripeCustomerID *string `json:"stripe_customer_id"`
}

func pathUserID(ctx *fasthttp.RequestCtx) (string, bool) {
	id, _ := ctx.UserValue("userID").(string)
	if id == "" {
		httpctx.Error(ctx, fasthttp.StatusBadRequest, "INVALID_INPUT", "missing user id")
		return "", false
	}
	return id, true
}

// AdminLedger shows the stored ledger row for a user.
func AdminLedger(l *ledger.Ledger, log zerolog.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		userID, ok := pathUserID(ctx)
		if !ok {
			return
		}
		row, err := l.Get(ctx, userID)
		if err != nil {
			requestLog(ctx, log).Error().Err(err).Str("user_id", userID).Msg("failed to load ledger")
			httpctx.Error(ctx, fasthttp.StatusInternalServerError, "INTERNAL", "could not load ledger")
			return
		}
		httpctx.JSON(ctx, fasthttp.StatusOK, adminLedgerResponse{usageView(l, row), row.StripeCustomerID})
	}
}

// AdminResync rebuilds a user's ledger from history.
func AdminResync(l *ledger.Ledger, log zerolog.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		userID, ok := pathUserID(ctx)
		if !ok {
			return
		}
		row, err := l.Resync(ctx, userID)
		if err != nil {
			requestLog(ctx, log).Error().Err(err).Str("user_id", userID).Msg("admin resync failed")
			httpctx.Error(ctx, fasthttp.StatusInternalServerError, "INTERNAL", "could not resync ledger")
			return
		}
		requestLog(ctx, log).Info().Str("user_id", userID).Msg("ledger resynced by admin")
		httpctx.JSON(ctx, fasthttp.StatusOK, adminLedgerResponse{usageView(l, row), row.StripeCustomerID})
	}
}

// PrometheusMetrics serves the registry in text format. ?prefix= limits the
// output to families whose name starts with it.
func PrometheusMetrics(m *metrics.Metrics) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var keep func(*dto.MetricFamily) bool
		if prefix := string(ctx.QueryArgs().Peek("prefix")); prefix != "" {
			keep = func(mf *dto.MetricFamily) bool { return strings.HasPrefix(mf.GetName(), prefix) }
		}
		body, contentType, err := m.ExposeFiltered(keep)
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString("failed to gather metrics")
			return
		}
		ctx.SetContentType(contentType)
		ctx.SetBody(body)
	}
}
