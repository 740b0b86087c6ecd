package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"advisorgate/internal/usage"
)

// TierCounter is the persisted {count, window_start} pair for one tier.
// WindowStart is NULL iff Count is 0.
//
// Pending is the part of Count reserved by requests whose analysis has not
// been stored yet. Resync cannot see those in history, so it carries them
// over while PendingAt is recent.
type TierCounter struct {
	Count       int `gorm:"not null;default:0"`
	WindowStart *time.Time

	Pending   int `gorm:"not null;default:0"`
	PendingAt *time.Time
}

// Usage converts the stored pair for window arithmetic.
func (c TierCounter) Usage() usage.Counter {
	return usage.Counter{Count: c.Count, WindowStart: c.WindowStart}
}

// CounterFrom converts a computed counter back to its stored form.
func CounterFrom(c usage.Counter) TierCounter {
	if c.Count <= 0 {
		return TierCounter{}
	}
	return TierCounter{Count: c.Count, WindowStart: c.WindowStart}
}

// UsageLedger is the per-user cache of recent analysis counts. It is
// derived from AnalysisRecord rows and can be rebuilt from them at any time.
type UsageLedger struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// UserID is the auth provider's subject for the account.
	UserID string `gorm:"uniqueIndex;size:64;not null"`

	// IsPremium is written by subscription sync and read by every limit check.
	IsPremium bool `gorm:"not null;default:false"`

	// StripeCustomerID links subscription webhooks back to the user.
	StripeCustomerID *string `gorm:"uniqueIndex;size:64"`

	Standard TierCounter `gorm:"embedded;embeddedPrefix:standard_"`
	Deep     TierCounter `gorm:"embedded;embeddedPrefix:deep_"`
	Tools    TierCounter `gorm:"embedded;embeddedPrefix:tools_"`

	// LastAnalysisAt is informational only.
	LastAnalysisAt *time.Time
}

// Counter returns the stored pair for t, or nil for an unknown tier.
func (l *UsageLedger) Counter(t usage.Tier) *TierCounter {
	switch t {
	case usage.TierStandard:
		return &l.Standard
	case usage.TierDeep:
		return &l.Deep
	case usage.TierTools:
		return &l.Tools
	}
	return nil
}

// CounterColumns returns the column names backing tier t.
func CounterColumns(t usage.Tier) (count, windowStart string) {
	prefix := string(t) + "_"
	return prefix + "count", prefix + "window_start"
}

// PendingColumns returns the in-flight reservation columns backing tier t.
func PendingColumns(t usage.Tier) (pending, pendingAt string) {
	prefix := string(t) + "_"
	return prefix + "pending", prefix + "pending_at"
}

// AnalysisRecord is one completed, persisted analysis. Rows are never
// updated; they are removed only when the account is deleted.
type AnalysisRecord struct {
	ID string `gorm:"primaryKey;size:36"`

	CreatedAt time.Time `gorm:"index:idx_analysis_user_created,priority:2;not null"`

	UserID string `gorm:"index:idx_analysis_user_created,priority:1;size:64;not null"`

	// Feature names the endpoint that produced the record.
	Feature string `gorm:"size:32;not null"`

	// AnalysisMode is the tier tag. NULL means standard.
	AnalysisMode *string `gorm:"size:16"`

	Payload datatypes.JSONType[Payload]
}

// BeforeCreate assigns a uuid when the caller did not.
func (r *AnalysisRecord) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Tier returns the record's tier, treating an unreadable tag as standard.
func (r AnalysisRecord) Tier() usage.Tier {
	t, err := usage.ParseTier(r.AnalysisMode)
	if err != nil {
		return usage.TierStandard
	}
	return t
}
