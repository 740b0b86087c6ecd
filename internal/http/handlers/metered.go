package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"gorm.io/datatypes"

	"advisorgate/internal/advisor"
	"advisorgate/internal/db"
	httpctx "advisorgate/internal/http/ctx"
	"advisorgate/internal/ledger"
	"advisorgate/internal/metrics"
	"advisorgate/internal/provider"
	"advisorgate/internal/usage"
)

// Meter is the part of the ledger a metered request touches.
type Meter interface {
	Now() time.Time
	Reserve(ctx context.Context, userID string, tier usage.Tier) (ledger.Decision, error)
	Release(ctx context.Context, userID string, r ledger.Reservation) error
	Record(ctx context.Context, rec *db.AnalysisRecord) error
	Settle(ctx context.Context, userID string, at time.Time) error
}

type MeteredDeps struct {
	Meter           Meter
	Provider        provider.Client
	Validator       *advisor.Validator
	Metrics         *metrics.Metrics
	Log             zerolog.Logger
	UpstreamTimeout time.Duration
}

type meteredResponse struct {
	ID      string         `json:"id"`
	Feature db.PayloadType `json:"feature"`
	Result  any            `json:"result"`
	Usage   tierUsage      `json:"usage"`
}

type invalidInputBody struct {
	Error   string               `json:"error"`
	Message string               `json:"message"`
	Details []advisor.FieldError `json:"details"`
}

// Metered serves one advisor feature. The request is validated, checked
// against the ledger, sent upstream, stored in history and then counted.
// A credit is only kept when the analysis was stored: every failure after
// the limit check hands the reserved slot back.
func Metered(f advisor.Feature, d MeteredDeps) fasthttp.RequestHandler {
	feature := string(f.Name)
	return func(ctx *fasthttp.RequestCtx) {
		userID, ok := mustUser(ctx)
		if !ok {
			return
		}
		log := requestLog(ctx, d.Log).With().Str("feature", feature).Str("user_id", userID).Logger()

		in, fieldErrs := d.Validator.Decode(f, ctx.PostBody())
		if len(fieldErrs) > 0 {
			d.Metrics.Metered(feature, "", "invalid")
			httpctx.JSON(ctx, fasthttp.StatusBadRequest, invalidInputBody{
				Error:   "INVALID_INPUT",
				Message: "request validation failed",
				Details: fieldErrs,
			})
			return
		}
		tier := in.Tier()
		outcome := func(o string) { d.Metrics.Metered(feature, string(tier), o) }

		decision, err := d.Meter.Reserve(ctx, userID, tier)
		if err != nil {
			log.Error().Err(err).Str("tier", string(tier)).Msg("limit check failed")
			outcome("error")
			httpctx.Error(ctx, fasthttp.StatusInternalServerError, "INTERNAL", "could not check usage limits")
			return
		}
		if !decision.Allowed {
			outcome("denied")
			httpctx.JSON(ctx, fasthttp.StatusTooManyRequests, denial(decision, d.Meter.Now()))
			return
		}

		release := func(reason string) {
			if err := d.Meter.Release(ctx, userID, decision.Reservation()); err != nil {
				d.Metrics.LedgerWriteFailed("release")
				log.Error().Err(err).Str("reason", reason).Msg("failed to release reserved credit")
			}
		}

		upstreamCtx, cancel := context.WithTimeout(ctx, d.UpstreamTimeout)
		start := time.Now()
		resp, err := d.Provider.Complete(upstreamCtx, in.Request(userID))
		cancel()
		d.Metrics.Upstream(feature, time.Since(start))
		if err != nil {
			release("upstream")
			outcome("upstream_error")
			writeUpstreamError(ctx, log, err)
			return
		}

		result := resp.Result()
		rec := &db.AnalysisRecord{
			UserID:       userID,
			CreatedAt:    decision.At,
			Feature:      feature,
			AnalysisMode: tier.Mode(),
			Payload:      datatypes.NewJSONType(in.Payload(result)),
		}
		if err := d.Meter.Record(ctx, rec); err != nil {
			release("persist")
			outcome("error")
			log.Error().Err(err).Msg("failed to store analysis")
			httpctx.Error(ctx, fasthttp.StatusInternalServerError, "PERSISTENCE_ERROR", "the analysis could not be saved, please try again")
			return
		}

		if err := d.Meter.Settle(ctx, userID, rec.CreatedAt); err != nil {
			d.Metrics.LedgerWriteFailed("settle")
			log.Warn().Err(err).Msg("failed to stamp last analysis time")
		}

		outcome("ok")
		log.Info().Str("tier", string(tier)).Str("record_id", rec.ID).Int("tokens", resp.Usage.TotalTokens).Msg("analysis completed")
		httpctx.JSON(ctx, fasthttp.StatusOK, meteredResponse{
			ID:      rec.ID,
			Feature: f.Name,
			Result:  result,
			Usage:   usageAfter(decision),
		})
	}
}

func writeUpstreamError(ctx *fasthttp.RequestCtx, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, provider.ErrQuotaExceeded):
		log.Error().Err(err).Msg("upstream quota exceeded")
		httpctx.Error(ctx, fasthttp.StatusPaymentRequired, "QUOTA_EXCEEDED", "the analysis service is temporarily unavailable, please try again later")
	case errors.Is(err, provider.ErrRateLimited):
		log.Warn().Err(err).Msg("upstream rate limited")
		httpctx.Error(ctx, fasthttp.StatusTooManyRequests, "UPSTREAM_RATE_LIMITED", "the analysis service is busy, please try again in a minute")
	default:
		log.Error().Err(err).Msg("upstream call failed")
		httpctx.Error(ctx, fasthttp.StatusInternalServerError, "UPSTREAM_ERROR", "the analysis could not be generated, please try again")
	}
}
