package handlers

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"advisorgate/internal/billing"
	httpctx "advisorgate/internal/http/ctx"
)

const maxWebhookBody = 65536

// StripeWebhook applies signed Stripe events to the ledger.
func StripeWebhook(s *billing.Sync, log zerolog.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		body := ctx.PostBody()
		if len(body) > maxWebhookBody {
			httpctx.Error(ctx, fasthttp.StatusRequestEntityTooLarge, "INVALID_INPUT", "payload too large")
			return
		}
		err := s.HandleWebhook(ctx, body, string(ctx.Request.Header.Peek("Stripe-Signature")))
		switch {
		case err == nil:
			httpctx.JSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
		case errors.Is(err, billing.ErrNotConfigured):
			httpctx.Error(ctx, fasthttp.StatusServiceUnavailable, "NOT_CONFIGURED", "webhook not configured")
		case errors.Is(err, billing.ErrBadSignature):
			httpctx.Error(ctx, fasthttp.StatusBadRequest, "INVALID_SIGNATURE", "signature verification failed")
		case errors.Is(err, billing.ErrBadPayload):
			requestLog(ctx, log).Warn().Err(err).Msg("stripe webhook payload rejected")
			httpctx.Error(ctx, fasthttp.StatusBadRequest, "INVALID_INPUT", "invalid event payload")
		default:
			requestLog(ctx, log).Error().Err(err).Msg("stripe webhook failed")
			httpctx.Error(ctx, fasthttp.StatusInternalServerError, "INTERNAL", "failed to apply event")
		}
	}
}

// BillingSync refreshes the caller's premium flag from Stripe.
func BillingSync(s *billing.Sync, log zerolog.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		userID, ok := mustUser(ctx)
		if !ok {
			return
		}
		res, err := s.SyncUser(ctx, userID)
		switch {
		case err == nil:
			httpctx.JSON(ctx, fasthttp.StatusOK, res)
		case errors.Is(err, billing.ErrNotConfigured):
			httpctx.Error(ctx, fasthttp.StatusServiceUnavailable, "NOT_CONFIGURED", "billing not configured")
		default:
			requestLog(ctx, log).Error().Err(err).Str("user_id", userID).Msg("billing sync failed")
			httpctx.Error(ctx, fasthttp.StatusBadGateway, "BILLING_ERROR", "could not reach the billing provider")
		}
	}
}
