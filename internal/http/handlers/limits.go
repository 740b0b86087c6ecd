package handlers

import (
	"fmt"
	"math"
	"time"

	"advisorgate/internal/ledger"
	"advisorgate/internal/usage"
)

// tierUsage is the per-tier view the client renders its counter from.
type tierUsage struct {
	Tier      usage.Tier `json:"tier"`
	Used      int        `json:"used"`
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
	ResetAt   *time.Time `json:"reset_at"`
}

// usageNow describes a tier as it stands, without a pending request.
func usageNow(d ledger.Decision) tierUsage {
	u := tierUsage{
		Tier:      d.Tier,
		Used:      d.Used,
		Limit:     d.Limit,
		Remaining: max(d.Limit-d.Used, 0),
	}
	if !d.ResetAt.IsZero() {
		reset := d.ResetAt
		u.ResetAt = &reset
	}
	return u
}

// usageAfter describes a tier once the allowed request d is counted.
func usageAfter(d ledger.Decision) tierUsage {
	u := tierUsage{
		Tier:      d.Tier,
		Used:      d.Used + 1,
		Limit:     d.Limit,
		Remaining: d.Remaining(),
	}
	if d.WindowStart != nil {
		reset := d.WindowStart.Add(usage.Window)
		u.ResetAt = &reset
	}
	return u
}

// limitBody is the 429 body for a ledger denial.
type limitBody struct {
	Error          string     `json:"error"`
	Message        string     `json:"message"`
	Tier           usage.Tier `json:"tier"`
	ResetAt        *time.Time `json:"reset_at"`
	WaitMinutes    *int       `json:"waitMinutes,omitempty"`
	HoursRemaining *int       `json:"hoursRemaining,omitempty"`
	IsPremium      bool       `json:"is_premium"`
	Limit          int        `json:"limit"`

	// UpgradeRequired means the plan grants nothing for the tier, so waiting
	// will not help. UpgradeAvailable means a higher plan exists.
	UpgradeRequired  bool `json:"upgrade_required"`
	UpgradeAvailable bool `json:"upgrade_available"`
}

func denial(d ledger.Decision, now time.Time) limitBody {
	body := limitBody{
		Error:            "RATE_LIMITED",
		Tier:             d.Tier,
		IsPremium:        d.IsPremium,
		Limit:            d.Limit,
		UpgradeRequired:  d.UpgradeRequired,
		UpgradeAvailable: !d.IsPremium,
	}

	if d.ResetAt.IsZero() {
		body.Message = fmt.Sprintf("%s analyses are not included in your plan. Upgrade to premium to unlock them.", tierLabel(d.Tier))
		return body
	}

	reset := d.ResetAt
	wait := max(reset.Sub(now), 0)
	minutes := int(math.Ceil(wait.Minutes()))
	hours := int(math.Ceil(wait.Hours()))
	body.ResetAt = &reset
	body.WaitMinutes = &minutes
	body.HoursRemaining = &hours
	body.Message = fmt.Sprintf("You have used all %d %s analyses for the last 24 hours. Try again in %s.",
		d.Limit, d.Tier, formatWait(minutes))
	if !d.IsPremium {
		body.Message += " Upgrade to premium for a higher limit."
	}
	return body
}

func tierLabel(t usage.Tier) string {
	switch t {
	case usage.TierDeep:
		return "Deep"
	case usage.TierTools:
		return "Tool"
	}
	return "Standard"
}

func formatWait(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d minutes", minutes)
	}
	h, m := minutes/60, minutes%60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
