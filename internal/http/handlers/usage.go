package handlers

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/valyala/fasthttp"

	"advisorgate/internal/db"
	httpctx "advisorgate/internal/http/ctx"
	"advisorgate/internal/ledger"
	"advisorgate/internal/usage"
)

type usageResponse struct {
	UserID         string      `json:"user_id"`
	IsPremium      bool        `json:"is_premium"`
	Tiers          []tierUsage `json:"tiers"`
	LastAnalysisAt *time.Time  `json:"last_analysis_at"`
}

func usageView(l *ledger.Ledger, row db.UsageLedger) usageResponse {
	now, limits := l.Now(), l.Limits()
	return usageResponse{
		UserID:    row.UserID,
		IsPremium: row.IsPremium,
		Tiers: lo.Map(usage.Tiers, func(t usage.Tier, _ int) tierUsage {
			return usageNow(ledger.Evaluate(now, row, t, limits))
		}),
		LastAnalysisAt: row.LastAnalysisAt,
	}
}

// GetUsage reports the caller's remaining credits per tier. The ledger is
// resynced from history first so the numbers shown are never stale.
func GetUsage(l *ledger.Ledger, log zerolog.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		userID, ok := mustUser(ctx)
		if !ok {
			return
		}
		row, err := l.Resync(ctx, userID)
		if err != nil {
			requestLog(ctx, log).Warn().Err(err).Str("user_id", userID).Msg("resync before usage read failed")
			if row, err = l.Get(ctx, userID); err != nil {
				requestLog(ctx, log).Error().Err(err).Str("user_id", userID).Msg("failed to load ledger")
				httpctx.Error(ctx, fasthttp.StatusInternalServerError, "INTERNAL", "could not load usage")
				return
			}
		}
		httpctx.JSON(ctx, fasthttp.StatusOK, usageView(l, row))
	}
}

// ResyncUsage rebuilds the caller's ledger from history.
func ResyncUsage(l *ledger.Ledger, log zerolog.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		userID, ok := mustUser(ctx)
		if !ok {
			return
		}
		row, err := l.Resync(ctx, userID)
		if err != nil {
			requestLog(ctx, log).Error().Err(err).Str("user_id", userID).Msg("resync failed")
			httpctx.Error(ctx, fasthttp.StatusInternalServerError, "INTERNAL", "could not resync usage")
			return
		}
		httpctx.JSON(ctx, fasthttp.StatusOK, usageView(l, row))
	}
}

// DeleteAccount removes the caller's history and ledger.
func DeleteAccount(l *ledger.Ledger, log zerolog.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		userID, ok := mustUser(ctx)
		if !ok {
			return
		}
		n, err := l.DeleteUser(ctx, userID)
		if err != nil {
			requestLog(ctx, log).Error().Err(err).Str("user_id", userID).Msg("account deletion failed")
			httpctx.Error(ctx, fasthttp.StatusInternalServerError, "INTERNAL", "could not delete account data")
			return
		}
		httpctx.JSON(ctx, fasthttp.StatusOK, map[string]any{"deleted": true, "analyses_removed": n})
	}
}
